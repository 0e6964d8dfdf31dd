// Package app はリポジトリとサービスを組み立てます。
package app

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/event"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/extension"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/resignation"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/platform/worker"
)

// Clock は現在時刻を返します。
type Clock interface {
	Now() time.Time
}

// TransactionManager はユースケース単位のトランザクションを提供します。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

// Repositories は永続化の実装一式です。
type Repositories struct {
	Employees    employee.Repository
	Contracts    contract.Repository
	Extensions   extension.Repository
	Resignations resignation.Repository
}

// Deps は Services の構築に必要な依存です。Clock と Events は省略できます。
type Deps struct {
	Repos                Repositories
	Tx                   TransactionManager
	Events               event.Publisher
	Clock                Clock
	RequireExitInterview bool
}

// Services はワークフローのユースケース一式です。
type Services struct {
	Employees    *employee.Service
	Contracts    *contract.Service
	Extensions   *extension.Service
	Resignations *resignation.Service
}

// NewServices はサービス同士の依存を配線して返します。
func NewServices(d Deps) *Services {
	events := d.Events
	if events == nil {
		events = event.Noop()
	}

	employees := employee.NewService(d.Repos.Employees, d.Clock, d.Tx, events)
	contracts := contract.NewService(d.Repos.Contracts, employees, d.Clock, d.Tx,
		contract.WithExtensionLookup(extension.NewPendingLookup(d.Repos.Extensions, events)),
		contract.WithEventPublisher(events),
	)
	extensions := extension.NewService(d.Repos.Extensions, contracts, d.Clock, d.Tx, events)
	resignations := resignation.NewService(d.Repos.Resignations, employees, contracts, d.Clock, d.Tx,
		resignation.WithEventPublisher(events),
		resignation.WithExitInterviewRequired(d.RequireExitInterview),
	)

	return &Services{
		Employees:    employees,
		Contracts:    contracts,
		Extensions:   extensions,
		Resignations: resignations,
	}
}

// SweepTasks は期限切れ判定を一括適用する定期タスクを返します。
func (s *Services) SweepTasks() []worker.Task {
	return []worker.Task{
		{Name: "extension-expiry", Run: s.Extensions.SweepExpired},
		{Name: "contract-expiry", Run: s.Contracts.ExpireOverdue},
	}
}
