package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/extension"
)

// ExtensionRepository は Store 上の契約延長リポジトリです。
type ExtensionRepository struct {
	store *Store
}

// NewExtensionRepository は ExtensionRepository を生成します。
func NewExtensionRepository(store *Store) *ExtensionRepository {
	return &ExtensionRepository{store: store}
}

// Create は延長を登録します。契約ごとに PENDING は一件までです。
func (r *ExtensionRepository) Create(ctx context.Context, ext *extension.Extension) (*extension.Extension, error) {
	var created extension.Extension
	err := r.store.run(ctx, func(t *tables) error {
		for _, existing := range t.extensions {
			if existing.ContractNumber != ext.ContractNumber {
				continue
			}
			if existing.Status == extension.StatusPending && ext.Status == extension.StatusPending {
				return extension.ErrPendingExtensionExists
			}
			if existing.Sequence == ext.Sequence {
				return extension.ErrConcurrentModification
			}
		}
		created = *ext
		created.Version = 1
		t.extensions[ext.ID] = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update は Version が一致する場合のみ延長を更新し、Version を進めます。
func (r *ExtensionRepository) Update(ctx context.Context, ext *extension.Extension) (*extension.Extension, error) {
	var updated extension.Extension
	err := r.store.run(ctx, func(t *tables) error {
		existing, ok := t.extensions[ext.ID]
		if !ok {
			return extension.ErrExtensionNotFound
		}
		if existing.Version != ext.Version {
			return extension.ErrConcurrentModification
		}
		updated = *ext
		updated.Version = existing.Version + 1
		t.extensions[ext.ID] = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// FindByID は ID で延長を取得します。
func (r *ExtensionRepository) FindByID(ctx context.Context, id string) (*extension.Extension, error) {
	var found extension.Extension
	err := r.store.run(ctx, func(t *tables) error {
		ext, ok := t.extensions[id]
		if !ok {
			return extension.ErrExtensionNotFound
		}
		found = ext
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// FindPendingByContract は契約の PENDING の延長を取得します。
func (r *ExtensionRepository) FindPendingByContract(ctx context.Context, contractNumber string) (*extension.Extension, error) {
	var found extension.Extension
	err := r.store.run(ctx, func(t *tables) error {
		for _, ext := range t.extensions {
			if ext.ContractNumber == contractNumber && ext.Status == extension.StatusPending {
				found = ext
				return nil
			}
		}
		return extension.ErrExtensionNotFound
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// ListByContract は契約の延長を連番順に返します。
func (r *ExtensionRepository) ListByContract(ctx context.Context, contractNumber string) ([]*extension.Extension, error) {
	var result []*extension.Extension
	err := r.store.run(ctx, func(t *tables) error {
		for _, ext := range t.extensions {
			if ext.ContractNumber == contractNumber {
				ext := ext
				result = append(result, &ext)
			}
		}
		sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListPendingDueBefore は期限が before より前の PENDING の延長を期限順に最大 limit 件返します。
func (r *ExtensionRepository) ListPendingDueBefore(ctx context.Context, before time.Time, limit int) ([]*extension.Extension, error) {
	var result []*extension.Extension
	err := r.store.run(ctx, func(t *tables) error {
		for _, ext := range t.extensions {
			if ext.Status == extension.StatusPending && ext.ExpiresAt.Before(before) {
				ext := ext
				result = append(result, &ext)
			}
		}
		sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
		if limit > 0 && len(result) > limit {
			result = result[:limit]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// NextSequence は契約内の次の延長連番を返します。
func (r *ExtensionRepository) NextSequence(ctx context.Context, contractNumber string) (int, error) {
	next := 1
	err := r.store.run(ctx, func(t *tables) error {
		for _, ext := range t.extensions {
			if ext.ContractNumber == contractNumber && ext.Sequence >= next {
				next = ext.Sequence + 1
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
