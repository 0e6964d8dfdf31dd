package resignation

import "github.com/ogurasousui/codex-hr-lifecycle/internal/core/failure"

var (
	ErrInvalidID               = failure.New(failure.ErrValidation, "resignation: invalid id")
	ErrInvalidEmployeeID       = failure.New(failure.ErrValidation, "resignation: invalid employee id")
	ErrInvalidStage            = failure.New(failure.ErrValidation, "resignation: stage must be supervisor, hr or ceo")
	ErrInvalidDateRange        = failure.New(failure.ErrValidation, "resignation: intended last working day is before resignation date")
	ErrInvalidNoticePeriod     = failure.New(failure.ErrValidation, "resignation: notice period must not be negative")
	ErrInvalidApprovedDate     = failure.New(failure.ErrValidation, "resignation: approved last working day is before resignation date")
	ErrInvalidStatus           = failure.New(failure.ErrValidation, "resignation: invalid status")
	ErrInvalidPageSize         = failure.New(failure.ErrValidation, "resignation: invalid page size")
	ErrInvalidPageToken        = failure.New(failure.ErrValidation, "resignation: invalid page token")
	ErrExitInterviewRequired   = failure.New(failure.ErrPrecondition, "resignation: exit interview has not been completed")
	ErrOutOfOrder              = failure.New(failure.ErrState, "resignation: stage is not the next approval stage")
	ErrNotAwaitingFinalization = failure.New(failure.ErrState, "resignation: only CEO-approved resignations can be finalized")
	ErrNotWithdrawable         = failure.New(failure.ErrState, "resignation: cannot be withdrawn in its current state")
	ErrConcurrentModification  = failure.New(failure.ErrState, "resignation: modified concurrently")
	ErrForbidden               = failure.New(failure.ErrForbidden, "resignation: actor lacks HR or CEO capability")
	ErrNotResigningEmployee    = failure.New(failure.ErrForbidden, "resignation: only the employee may act on their own resignation")
	ErrStageRoleRequired       = failure.New(failure.ErrForbidden, "resignation: actor may not approve this stage")
	ErrSelfApproval            = failure.New(failure.ErrForbidden, "resignation: employees may not approve their own resignation")
	ErrOpenResignationExists   = failure.New(failure.ErrConflict, "resignation: employee already has an open resignation")
	ErrNumberAlreadyExists     = failure.New(failure.ErrConflict, "resignation: number already exists")
	ErrResignationNotFound     = failure.New(failure.ErrNotFound, "resignation: not found")
)
