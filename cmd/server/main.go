package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	adapterevent "github.com/ogurasousui/codex-hr-lifecycle/internal/adapters/event"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/adapters/grpc/handler"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/adapters/repository/memory"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/app"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/platform/config"
	pg "github.com/ogurasousui/codex-hr-lifecycle/internal/platform/db/postgres"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/platform/logger"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/platform/server"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/platform/worker"
)

func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventLog := adapterevent.NewLogPublisher(log)
	deps := app.Deps{RequireExitInterview: cfg.Workflow.RequireExitInterview}
	var tasks []worker.Task

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		deps.Repos = app.Repositories{
			Employees:    memory.NewEmployeeRepository(store),
			Contracts:    memory.NewContractRepository(store),
			Extensions:   memory.NewExtensionRepository(store),
			Resignations: memory.NewResignationRepository(store),
		}
		deps.Tx = store
		deps.Events = adapterevent.FanOut{store, eventLog}
		log.Warn().Msg("using in-memory storage; data is lost on shutdown")

	default:
		pool, err := pg.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("initialize database pool: %w", err)
		}
		defer pool.Close()

		tx := pg.NewTransactionManager(pool)
		outbox := postgres.NewEventOutbox(pool)
		deps.Repos = app.Repositories{
			Employees:    postgres.NewEmployeeRepository(pool),
			Contracts:    postgres.NewContractRepository(pool),
			Extensions:   postgres.NewExtensionRepository(pool),
			Resignations: postgres.NewResignationRepository(pool),
		}
		deps.Tx = tx
		deps.Events = outbox
		tasks = append(tasks, worker.OutboxRelay(outbox, eventLog, tx))
	}

	services := app.NewServices(deps)
	tasks = append(services.SweepTasks(), tasks...)

	lifecycle := handler.NewLifecycleGrpcHandler(services.Employees, services.Contracts, services.Extensions, services.Resignations)
	grpcServer := server.New(cfg.Server.ListenAddr, lifecycle, log)
	sweeper := worker.New(cfg.Workflow.SweepInterval, log, tasks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })

	return g.Wait()
}
