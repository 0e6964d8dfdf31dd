package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/platform/config"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/platform/logger"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
		migrationsDir = flag.String("dir", "assets/migrations", "directory containing migration files")
	)
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.PathFromEnv()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	if cfg.Storage.Driver != config.DriverPostgres {
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("migrations require the postgres storage driver")
	}

	if err := runMigration(log, action, *migrationsDir, cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Str("action", action).Msg("migration failed")
	}

	log.Info().Str("action", action).Msg("migration completed")
}

func runMigration(log zerolog.Logger, action, dir, dsn string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	absDir = filepath.ToSlash(absDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", absDir), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch action {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Info().Msg("no migration applied")
				return nil
			}
			return err
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current migration version")
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}
