package extension

import "github.com/ogurasousui/codex-hr-lifecycle/internal/core/failure"

var (
	ErrInvalidID              = failure.New(failure.ErrValidation, "extension: invalid id")
	ErrInvalidContractNumber  = failure.New(failure.ErrValidation, "extension: invalid contract number")
	ErrInvalidDateRange       = failure.New(failure.ErrValidation, "extension: new end date must be after new start date")
	ErrInvalidSalary          = failure.New(failure.ErrValidation, "extension: new salary must be positive")
	ErrSalaryReasonRequired   = failure.New(failure.ErrValidation, "extension: salary change requires a reason")
	ErrContractNotActive      = failure.New(failure.ErrPrecondition, "extension: contract is not active")
	ErrNotPending             = failure.New(failure.ErrState, "extension: not pending")
	ErrConcurrentModification = failure.New(failure.ErrState, "extension: modified concurrently")
	ErrForbidden              = failure.New(failure.ErrForbidden, "extension: actor lacks HR or CEO capability")
	ErrNotOwner               = failure.New(failure.ErrForbidden, "extension: only the contract's employee may respond")
	ErrExtensionExpired       = failure.New(failure.ErrExpired, "extension: acceptance deadline has passed")
	ErrPendingExtensionExists = failure.New(failure.ErrConflict, "extension: contract already has a pending extension")
	ErrExtensionNotFound      = failure.New(failure.ErrNotFound, "extension: not found")
)
