package employee

import "time"

// Status は社員の在籍状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Employee は社員エンティティです。雇用契約と退職届はこの社員を参照します。
type Employee struct {
	ID           string
	EmployeeCode string
	Name         string
	SupervisorID *string
	Status       Status
	HiredAt      *time.Time
	TerminatedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive は在籍中かを返します。
func (e *Employee) IsActive() bool {
	return e != nil && e.Status == StatusActive
}

// IsSupervisedBy は employeeID が直属の上長かを返します。
func (e *Employee) IsSupervisedBy(employeeID string) bool {
	return e != nil && e.SupervisorID != nil && employeeID != "" && *e.SupervisorID == employeeID
}
