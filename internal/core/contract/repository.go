package contract

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
)

// Repository は雇用契約の永続化を行うインターフェースです。
// Update は Version による compare-and-set であり、競合時は ErrConcurrentModification を返します。
type Repository interface {
	Create(ctx context.Context, contract *Contract) (*Contract, error)
	Update(ctx context.Context, contract *Contract) (*Contract, error)
	FindByNumber(ctx context.Context, number string) (*Contract, error)
	FindCurrentByEmployee(ctx context.Context, employeeID string) (*Contract, error)
	List(ctx context.Context, filter ListContractsFilter) ([]*Contract, string, error)
}

// ListContractsFilter は一覧取得時の検索条件を表します。
type ListContractsFilter struct {
	EmployeeID *string
	Statuses   []Status
	EndBefore  *time.Time
	Limit      int
	Offset     int
}

// EmployeeDirectory は契約対象の社員を確認します。
type EmployeeDirectory interface {
	Ensure(ctx context.Context, id string) (*employee.Employee, error)
}

// ExtensionLookup は契約に保留中の延長があるかを返します。期限切れ判定は実装側で適用済みであること。
// ClosePending は契約の終了に合わせて保留中の延長を REJECTED で閉じます。
type ExtensionLookup interface {
	HasPendingExtension(ctx context.Context, contractNumber string, now time.Time) (bool, error)
	ClosePending(ctx context.Context, contractNumber string, now time.Time, reason string) error
}
