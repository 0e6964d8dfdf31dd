package resignation

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
)

// Repository は退職届の永続化を行うインターフェースです。
// Update は Version による compare-and-set であり、競合時は ErrConcurrentModification を返します。
type Repository interface {
	Create(ctx context.Context, r *Resignation) (*Resignation, error)
	Update(ctx context.Context, r *Resignation) (*Resignation, error)
	FindByID(ctx context.Context, id string) (*Resignation, error)
	FindOpenByEmployee(ctx context.Context, employeeID string) (*Resignation, error)
	List(ctx context.Context, filter ListResignationsFilter) ([]*Resignation, string, error)
}

// ListResignationsFilter は一覧取得時の条件です。
type ListResignationsFilter struct {
	EmployeeID *string
	Status     *Status
	Limit      int
	Offset     int
}

// EmployeeDirectory は退職ワークフローが参照する社員側の操作です。
type EmployeeDirectory interface {
	Ensure(ctx context.Context, id string) (*employee.Employee, error)
	MarkSeparated(ctx context.Context, id string, lastWorkingDay time.Time) error
}

// ContractTerminator は退職確定時に現在契約を解除します。
type ContractTerminator interface {
	TerminateCurrent(ctx context.Context, employeeID, reason string) (*contract.Contract, error)
}
