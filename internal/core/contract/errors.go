package contract

import "github.com/ogurasousui/codex-hr-lifecycle/internal/core/failure"

var (
	ErrInvalidNumber           = failure.New(failure.ErrValidation, "contract: invalid contract number")
	ErrInvalidEmployeeID       = failure.New(failure.ErrValidation, "contract: invalid employee id")
	ErrInvalidPositionTitle    = failure.New(failure.ErrValidation, "contract: invalid position title")
	ErrInvalidType             = failure.New(failure.ErrValidation, "contract: invalid contract type")
	ErrInvalidDateRange        = failure.New(failure.ErrValidation, "contract: end date must be after start date")
	ErrInvalidSalary           = failure.New(failure.ErrValidation, "contract: monthly salary must be positive")
	ErrInvalidCurrency         = failure.New(failure.ErrValidation, "contract: invalid currency")
	ErrInvalidNoticePeriod     = failure.New(failure.ErrValidation, "contract: notice period must not be negative")
	ErrInvalidInitialStatus    = failure.New(failure.ErrValidation, "contract: initial status must be DRAFT or ACTIVE")
	ErrInvalidStatus           = failure.New(failure.ErrValidation, "contract: invalid status")
	ErrInvalidPageSize         = failure.New(failure.ErrValidation, "contract: invalid page size")
	ErrInvalidPageToken        = failure.New(failure.ErrValidation, "contract: invalid page token")
	ErrEmployeeHasCurrent      = failure.New(failure.ErrValidation, "contract: employee already has a current contract")
	ErrInvalidTransition       = failure.New(failure.ErrState, "contract: transition not allowed")
	ErrConcurrentModification  = failure.New(failure.ErrState, "contract: modified concurrently")
	ErrForbidden               = failure.New(failure.ErrForbidden, "contract: actor lacks HR or CEO capability")
	ErrNumberAlreadyExists     = failure.New(failure.ErrConflict, "contract: contract number already exists")
	ErrContractNotFound        = failure.New(failure.ErrNotFound, "contract: not found")
	ErrCurrentContractNotFound = failure.New(failure.ErrNotFound, "contract: employee has no current contract")
)
