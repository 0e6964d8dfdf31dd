package extension

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
)

// Repository は契約延長の永続化を行うインターフェースです。
// Update は Version による compare-and-set であり、競合時は ErrConcurrentModification を返します。
type Repository interface {
	Create(ctx context.Context, ext *Extension) (*Extension, error)
	Update(ctx context.Context, ext *Extension) (*Extension, error)
	FindByID(ctx context.Context, id string) (*Extension, error)
	FindPendingByContract(ctx context.Context, contractNumber string) (*Extension, error)
	ListByContract(ctx context.Context, contractNumber string) ([]*Extension, error)
	ListPendingDueBefore(ctx context.Context, before time.Time, limit int) ([]*Extension, error)
	NextSequence(ctx context.Context, contractNumber string) (int, error)
}

// ContractGateway は延長ワークフローが必要とする契約側の操作です。
type ContractGateway interface {
	GetContract(ctx context.Context, in contract.GetContractInput) (*contract.Contract, error)
	AdoptExtensionTerms(ctx context.Context, number string, amendment contract.Amendment) (*contract.Contract, error)
}
