package memory

import (
	"context"
	"sort"
	"slices"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
)

// ContractRepository は Store 上の雇用契約リポジトリです。
type ContractRepository struct {
	store *Store
}

// NewContractRepository は ContractRepository を生成します。
func NewContractRepository(store *Store) *ContractRepository {
	return &ContractRepository{store: store}
}

// Create は契約を登録します。
func (r *ContractRepository) Create(ctx context.Context, c *contract.Contract) (*contract.Contract, error) {
	var created contract.Contract
	err := r.store.run(ctx, func(t *tables) error {
		if _, ok := t.contracts[c.Number]; ok {
			return contract.ErrNumberAlreadyExists
		}
		if c.Status.IsCurrent() && hasOtherCurrent(t, c.EmployeeID, c.Number) {
			return contract.ErrEmployeeHasCurrent
		}
		created = *c
		created.Version = 1
		t.contracts[c.Number] = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update は Version が一致する場合のみ契約を更新し、Version を進めます。
func (r *ContractRepository) Update(ctx context.Context, c *contract.Contract) (*contract.Contract, error) {
	var updated contract.Contract
	err := r.store.run(ctx, func(t *tables) error {
		existing, ok := t.contracts[c.Number]
		if !ok {
			return contract.ErrContractNotFound
		}
		if existing.Version != c.Version {
			return contract.ErrConcurrentModification
		}
		if c.Status.IsCurrent() && hasOtherCurrent(t, c.EmployeeID, c.Number) {
			return contract.ErrEmployeeHasCurrent
		}
		updated = *c
		updated.Version = existing.Version + 1
		t.contracts[c.Number] = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// FindByNumber は契約番号で契約を取得します。
func (r *ContractRepository) FindByNumber(ctx context.Context, number string) (*contract.Contract, error) {
	var found contract.Contract
	err := r.store.run(ctx, func(t *tables) error {
		c, ok := t.contracts[number]
		if !ok {
			return contract.ErrContractNotFound
		}
		found = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// FindCurrentByEmployee は社員の ACTIVE または EXTENDED の契約を取得します。
func (r *ContractRepository) FindCurrentByEmployee(ctx context.Context, employeeID string) (*contract.Contract, error) {
	var found contract.Contract
	err := r.store.run(ctx, func(t *tables) error {
		for _, c := range t.contracts {
			if c.EmployeeID == employeeID && c.Status.IsCurrent() {
				found = c
				return nil
			}
		}
		return contract.ErrContractNotFound
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// List は条件に一致する契約を契約番号順に返します。
func (r *ContractRepository) List(ctx context.Context, filter contract.ListContractsFilter) ([]*contract.Contract, string, error) {
	var (
		page []*contract.Contract
		next string
	)
	err := r.store.run(ctx, func(t *tables) error {
		var matched []*contract.Contract
		for _, c := range t.contracts {
			if filter.EmployeeID != nil && c.EmployeeID != *filter.EmployeeID {
				continue
			}
			if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, c.Status) {
				continue
			}
			if filter.EndBefore != nil && !c.EndDate.Before(*filter.EndBefore) {
				continue
			}
			c := c
			matched = append(matched, &c)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].Number < matched[j].Number })
		page, next = paginate(matched, filter.Limit, filter.Offset)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return page, next, nil
}

func hasOtherCurrent(t *tables, employeeID, number string) bool {
	for _, c := range t.contracts {
		if c.Number != number && c.EmployeeID == employeeID && c.Status.IsCurrent() {
			return true
		}
	}
	return false
}
