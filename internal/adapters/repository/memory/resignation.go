package memory

import (
	"context"
	"sort"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/resignation"
)

// ResignationRepository は Store 上の退職届リポジトリです。
type ResignationRepository struct {
	store *Store
}

// NewResignationRepository は ResignationRepository を生成します。
func NewResignationRepository(store *Store) *ResignationRepository {
	return &ResignationRepository{store: store}
}

// Create は退職届を登録します。社員ごとに未完了の退職届は一件までです。
func (r *ResignationRepository) Create(ctx context.Context, res *resignation.Resignation) (*resignation.Resignation, error) {
	var created resignation.Resignation
	err := r.store.run(ctx, func(t *tables) error {
		for _, existing := range t.resignations {
			if existing.Number == res.Number {
				return resignation.ErrNumberAlreadyExists
			}
			if existing.EmployeeID == res.EmployeeID && !existing.Status.IsTerminal() {
				return resignation.ErrOpenResignationExists
			}
		}
		created = *res
		created.Version = 1
		t.resignations[res.ID] = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update は Version が一致する場合のみ退職届を更新し、Version を進めます。
func (r *ResignationRepository) Update(ctx context.Context, res *resignation.Resignation) (*resignation.Resignation, error) {
	var updated resignation.Resignation
	err := r.store.run(ctx, func(t *tables) error {
		existing, ok := t.resignations[res.ID]
		if !ok {
			return resignation.ErrResignationNotFound
		}
		if existing.Version != res.Version {
			return resignation.ErrConcurrentModification
		}
		updated = *res
		updated.Version = existing.Version + 1
		t.resignations[res.ID] = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// FindByID は ID で退職届を取得します。
func (r *ResignationRepository) FindByID(ctx context.Context, id string) (*resignation.Resignation, error) {
	var found resignation.Resignation
	err := r.store.run(ctx, func(t *tables) error {
		res, ok := t.resignations[id]
		if !ok {
			return resignation.ErrResignationNotFound
		}
		found = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// FindOpenByEmployee は社員の未完了の退職届を取得します。
func (r *ResignationRepository) FindOpenByEmployee(ctx context.Context, employeeID string) (*resignation.Resignation, error) {
	var found resignation.Resignation
	err := r.store.run(ctx, func(t *tables) error {
		for _, res := range t.resignations {
			if res.EmployeeID == employeeID && !res.Status.IsTerminal() {
				found = res
				return nil
			}
		}
		return resignation.ErrResignationNotFound
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// List は条件に一致する退職届を提出の新しい順に返します。
func (r *ResignationRepository) List(ctx context.Context, filter resignation.ListResignationsFilter) ([]*resignation.Resignation, string, error) {
	var (
		page []*resignation.Resignation
		next string
	)
	err := r.store.run(ctx, func(t *tables) error {
		var matched []*resignation.Resignation
		for _, res := range t.resignations {
			if filter.EmployeeID != nil && res.EmployeeID != *filter.EmployeeID {
				continue
			}
			if filter.Status != nil && res.Status != *filter.Status {
				continue
			}
			res := res
			matched = append(matched, &res)
		}
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].Number < matched[j].Number
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
		page, next = paginate(matched, filter.Limit, filter.Offset)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return page, next, nil
}
