package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
)

// EmployeeRepository は Store 上の社員リポジトリです。
type EmployeeRepository struct {
	store *Store
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(store *Store) *EmployeeRepository {
	return &EmployeeRepository{store: store}
}

// Create は社員を登録します。ID が空の場合は採番します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	var created employee.Employee
	err := r.store.run(ctx, func(t *tables) error {
		for _, existing := range t.employees {
			if existing.EmployeeCode == e.EmployeeCode {
				return employee.ErrEmployeeCodeAlreadyExists
			}
		}
		created = *e
		if created.ID == "" {
			created.ID = uuid.NewString()
		}
		if _, ok := t.employees[created.ID]; ok {
			return employee.ErrEmployeeCodeAlreadyExists
		}
		t.employees[created.ID] = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update は社員を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	var updated employee.Employee
	err := r.store.run(ctx, func(t *tables) error {
		if _, ok := t.employees[e.ID]; !ok {
			return employee.ErrEmployeeNotFound
		}
		updated = *e
		t.employees[e.ID] = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	var found employee.Employee
	err := r.store.run(ctx, func(t *tables) error {
		e, ok := t.employees[id]
		if !ok {
			return employee.ErrEmployeeNotFound
		}
		found = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// FindByCode は社員コードで社員を取得します。
func (r *EmployeeRepository) FindByCode(ctx context.Context, code string) (*employee.Employee, error) {
	var found employee.Employee
	err := r.store.run(ctx, func(t *tables) error {
		for _, e := range t.employees {
			if e.EmployeeCode == code {
				found = e
				return nil
			}
		}
		return employee.ErrEmployeeNotFound
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// List は条件に一致する社員を社員コード順に返します。
func (r *EmployeeRepository) List(ctx context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, string, error) {
	var (
		page []*employee.Employee
		next string
	)
	err := r.store.run(ctx, func(t *tables) error {
		var matched []*employee.Employee
		for _, e := range t.employees {
			if filter.SupervisorID != nil && (e.SupervisorID == nil || *e.SupervisorID != *filter.SupervisorID) {
				continue
			}
			if filter.Status != nil && e.Status != *filter.Status {
				continue
			}
			e := e
			matched = append(matched, &e)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].EmployeeCode < matched[j].EmployeeCode })
		page, next = paginate(matched, filter.Limit, filter.Offset)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return page, next, nil
}
