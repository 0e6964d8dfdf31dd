package resignation

import (
	"fmt"
	"time"
)

// Status は退職届の状態を表します。
type Status string

const (
	StatusSubmitted            Status = "SUBMITTED"
	StatusAcceptedBySupervisor Status = "ACCEPTED_BY_SUPERVISOR"
	StatusAcceptedByHR         Status = "ACCEPTED_BY_HR"
	StatusAcceptedByCEO        Status = "ACCEPTED_BY_CEO"
	StatusCompleted            Status = "COMPLETED"
	StatusWithdrawn            Status = "WITHDRAWN"
)

// IsTerminal は以降の遷移が存在しない状態かを返します。
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusWithdrawn
}

// CanWithdraw は取り下げが可能な状態かを返します。
func (s Status) CanWithdraw() bool {
	switch s {
	case StatusSubmitted, StatusAcceptedBySupervisor, StatusAcceptedByHR:
		return true
	default:
		return false
	}
}

// Stage は承認段階です。
type Stage string

const (
	StageSupervisor Stage = "supervisor"
	StageHR         Stage = "hr"
	StageCEO        Stage = "ceo"
)

type gate struct {
	from Status
	to   Status
}

// gates は承認段階ごとの直前状態と遷移先です。段階の飛ばしはできません。
var gates = map[Stage]gate{
	StageSupervisor: {from: StatusSubmitted, to: StatusAcceptedBySupervisor},
	StageHR:         {from: StatusAcceptedBySupervisor, to: StatusAcceptedByHR},
	StageCEO:        {from: StatusAcceptedByHR, to: StatusAcceptedByCEO},
}

// ParseStage は文字列を Stage に変換します。
func ParseStage(raw string) (Stage, error) {
	stage := Stage(raw)
	if _, ok := gates[stage]; !ok {
		return "", fmt.Errorf("stage %q: %w", raw, ErrInvalidStage)
	}
	return stage, nil
}

// Approval は段階ごとの承認記録です。
type Approval struct {
	AcceptedAt *time.Time
	ApprovedBy string
	Comments   string
}

// Done は承認済みかを返します。
func (a Approval) Done() bool {
	return a.AcceptedAt != nil
}

// Resignation は退職届エンティティです。
type Resignation struct {
	ID                     string
	Number                 string
	EmployeeID             string
	ResignationDate        time.Time
	IntendedLastWorkingDay time.Time
	NoticePeriodDays       int
	Reason                 string
	ApprovedLastWorkingDay *time.Time
	Supervisor             Approval
	HR                     Approval
	CEO                    Approval
	ExitInterviewCompleted bool
	Status                 Status
	CompletedAt            *time.Time
	WithdrawnAt            *time.Time
	WithdrawnBy            *string
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// EarliestLastWorkingDay は予告期間を満たす最短の最終出勤日です。
func (r *Resignation) EarliestLastWorkingDay() time.Time {
	return r.ResignationDate.AddDate(0, 0, r.NoticePeriodDays)
}

// ShortNotice は希望最終出勤日が予告期間を満たしていないかを返します。参考情報であり提出は妨げません。
func (r *Resignation) ShortNotice() bool {
	return r.IntendedLastWorkingDay.Before(r.EarliestLastWorkingDay())
}

// NextStage は次に承認すべき段階を返します。
func (r *Resignation) NextStage() (Stage, bool) {
	for _, stage := range []Stage{StageSupervisor, StageHR, StageCEO} {
		if gates[stage].from == r.Status {
			return stage, true
		}
	}
	return "", false
}

// ApprovalFor は段階の承認記録を返します。
func (r *Resignation) ApprovalFor(stage Stage) Approval {
	switch stage {
	case StageSupervisor:
		return r.Supervisor
	case StageHR:
		return r.HR
	case StageCEO:
		return r.CEO
	default:
		return Approval{}
	}
}

// Approve は stage の承認を記録し状態を進めます。直前の段階が完了していなければ ErrOutOfOrder です。
func (r *Resignation) Approve(stage Stage, approvedBy, comments string, now time.Time) error {
	g, ok := gates[stage]
	if !ok {
		return ErrInvalidStage
	}
	if r.Status != g.from {
		return fmt.Errorf("%s approval while %s: %w", stage, r.Status, ErrOutOfOrder)
	}

	acceptedAt := now
	record := Approval{AcceptedAt: &acceptedAt, ApprovedBy: approvedBy, Comments: comments}
	switch stage {
	case StageSupervisor:
		r.Supervisor = record
	case StageHR:
		r.HR = record
	case StageCEO:
		r.CEO = record
	}
	r.Status = g.to
	r.UpdatedAt = now
	return nil
}

// Complete は CEO 承認済みの退職届を確定します。
func (r *Resignation) Complete(approvedLastWorkingDay time.Time, exitInterviewCompleted, requireExitInterview bool, now time.Time) error {
	if r.Status != StatusAcceptedByCEO {
		return fmt.Errorf("finalize while %s: %w", r.Status, ErrNotAwaitingFinalization)
	}
	day := dateOnly(approvedLastWorkingDay)
	if day.IsZero() || day.Before(r.ResignationDate) {
		return ErrInvalidApprovedDate
	}
	if requireExitInterview && !exitInterviewCompleted {
		return ErrExitInterviewRequired
	}

	completedAt := now
	r.ApprovedLastWorkingDay = &day
	r.ExitInterviewCompleted = exitInterviewCompleted
	r.CompletedAt = &completedAt
	r.Status = StatusCompleted
	r.UpdatedAt = now
	return nil
}

// Withdraw は退職届を取り下げます。
func (r *Resignation) Withdraw(by string, now time.Time) error {
	if !r.Status.CanWithdraw() {
		return fmt.Errorf("withdraw while %s: %w", r.Status, ErrNotWithdrawable)
	}
	withdrawnAt := now
	r.WithdrawnAt = &withdrawnAt
	r.WithdrawnBy = &by
	r.Status = StatusWithdrawn
	r.UpdatedAt = now
	return nil
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
