package employee

import "github.com/ogurasousui/codex-hr-lifecycle/internal/core/failure"

var (
	ErrInvalidID                 = failure.New(failure.ErrValidation, "employee: invalid id")
	ErrInvalidEmployeeCode       = failure.New(failure.ErrValidation, "employee: invalid employee code")
	ErrInvalidName               = failure.New(failure.ErrValidation, "employee: invalid name")
	ErrInvalidStatus             = failure.New(failure.ErrValidation, "employee: invalid status")
	ErrInvalidPageSize           = failure.New(failure.ErrValidation, "employee: invalid page size")
	ErrInvalidPageToken          = failure.New(failure.ErrValidation, "employee: invalid page token")
	ErrInvalidDateRange          = failure.New(failure.ErrValidation, "employee: invalid employment period")
	ErrEmployeeNotFound          = failure.New(failure.ErrNotFound, "employee: not found")
	ErrSupervisorNotFound        = failure.New(failure.ErrNotFound, "employee: supervisor not found")
	ErrEmployeeInactive          = failure.New(failure.ErrPrecondition, "employee: not active")
	ErrEmployeeCodeAlreadyExists = failure.New(failure.ErrConflict, "employee: employee code already exists")
	ErrForbidden                 = failure.New(failure.ErrForbidden, "employee: actor is not allowed to manage employees")
)
