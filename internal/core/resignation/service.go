package resignation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/actor"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/event"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
	aggregateType       = "resignation"
)

// Service は退職届の段階承認ワークフローです。
type Service struct {
	repo                 Repository
	employees            EmployeeDirectory
	contracts            ContractTerminator
	clock                Clock
	tx                   TransactionManager
	events               event.Publisher
	requireExitInterview bool
}

// UseCase は退職ユースケースの公開インターフェースです。
type UseCase interface {
	SubmitResignation(ctx context.Context, in SubmitResignationInput) (*Resignation, error)
	ApproveResignation(ctx context.Context, in ApproveResignationInput) (*Resignation, error)
	FinalizeResignation(ctx context.Context, in FinalizeResignationInput) (*Resignation, error)
	WithdrawResignation(ctx context.Context, in WithdrawResignationInput) (*Resignation, error)
	GetResignation(ctx context.Context, in GetResignationInput) (*Resignation, error)
	ListResignations(ctx context.Context, in ListResignationsInput) (*ListResignationsResult, error)
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithEventPublisher はイベントの配送先を設定します。
func WithEventPublisher(p event.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithExitInterviewRequired は確定前の退職面談を必須にします。
func WithExitInterviewRequired(required bool) Option {
	return func(s *Service) {
		s.requireExitInterview = required
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, employees EmployeeDirectory, contracts ContractTerminator, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:      repo,
		employees: employees,
		contracts: contracts,
		clock:     clock,
		tx:        tx,
		events:    event.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitResignationInput は退職届提出の入力です。EmployeeID を省略した場合は操作主体の社員です。
type SubmitResignationInput struct {
	Actor                  actor.Actor
	EmployeeID             string
	ResignationDate        *time.Time
	IntendedLastWorkingDay time.Time
	NoticePeriodDays       int
	Reason                 string
}

// ApproveResignationInput は段階承認の入力です。
type ApproveResignationInput struct {
	Actor         actor.Actor
	ResignationID string
	Stage         string
	Comments      string
}

// FinalizeResignationInput は退職確定の入力です。
type FinalizeResignationInput struct {
	Actor                  actor.Actor
	ResignationID          string
	ApprovedLastWorkingDay time.Time
	ExitInterviewCompleted bool
}

// WithdrawResignationInput は取り下げの入力です。
type WithdrawResignationInput struct {
	Actor         actor.Actor
	ResignationID string
}

// GetResignationInput は退職届取得の入力です。
type GetResignationInput struct {
	ID string
}

// ListResignationsInput は一覧取得の入力です。
type ListResignationsInput struct {
	EmployeeID *string
	Status     *Status
	PageSize   int
	PageToken  string
}

// ListResignationsResult は一覧取得結果です。
type ListResignationsResult struct {
	Resignations  []*Resignation
	NextPageToken string
}

// SubmitResignation は社員本人が退職届を提出します。
func (s *Service) SubmitResignation(ctx context.Context, in SubmitResignationInput) (*Resignation, error) {
	employeeID := strings.TrimSpace(in.EmployeeID)
	if employeeID == "" {
		employeeID = in.Actor.EmployeeID
	}
	if employeeID == "" {
		return nil, ErrInvalidEmployeeID
	}
	if !in.Actor.IsEmployee(employeeID) {
		return nil, ErrNotResigningEmployee
	}
	if in.NoticePeriodDays < 0 {
		return nil, ErrInvalidNoticePeriod
	}

	now := s.clock.Now()
	resignationDate := dateOnly(now)
	if in.ResignationDate != nil {
		resignationDate = dateOnly(*in.ResignationDate)
	}
	intended := dateOnly(in.IntendedLastWorkingDay)
	if intended.IsZero() || intended.Before(resignationDate) {
		return nil, ErrInvalidDateRange
	}

	var submitted *Resignation
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.employees.Ensure(txCtx, employeeID); err != nil {
			return err
		}
		if err := s.ensureNoOpenResignation(txCtx, employeeID); err != nil {
			return err
		}

		created, err := s.repo.Create(txCtx, &Resignation{
			ID:                     uuid.NewString(),
			Number:                 newNumber(resignationDate),
			EmployeeID:             employeeID,
			ResignationDate:        resignationDate,
			IntendedLastWorkingDay: intended,
			NoticePeriodDays:       in.NoticePeriodDays,
			Reason:                 strings.TrimSpace(in.Reason),
			Status:                 StatusSubmitted,
			CreatedAt:              now,
			UpdatedAt:              now,
		})
		if err != nil {
			return err
		}
		submitted = created

		return s.events.Publish(txCtx, event.New(event.ResignationSubmitted, aggregateType, created.ID, now, map[string]any{
			"number":                    created.Number,
			"employee_id":               created.EmployeeID,
			"intended_last_working_day": created.IntendedLastWorkingDay.Format(time.DateOnly),
			"short_notice":              created.ShortNotice(),
		}))
	}); err != nil {
		return nil, err
	}

	return submitted, nil
}

// ApproveResignation は次の承認段階を記録します。段階は supervisor, hr, ceo の順でのみ進みます。
func (s *Service) ApproveResignation(ctx context.Context, in ApproveResignationInput) (*Resignation, error) {
	stage, err := ParseStage(strings.ToLower(strings.TrimSpace(in.Stage)))
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(in.ResignationID)
	if id == "" {
		return nil, ErrInvalidID
	}

	var approved *Resignation
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if in.Actor.IsEmployee(existing.EmployeeID) {
			return ErrSelfApproval
		}
		if err := s.authorizeStage(txCtx, in.Actor, stage, existing.EmployeeID); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := existing.Approve(stage, in.Actor.ID, strings.TrimSpace(in.Comments), now); err != nil {
			return err
		}

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		approved = result

		return s.events.Publish(txCtx, event.New(event.ResignationApproved, aggregateType, result.ID, now, map[string]any{
			"number":      result.Number,
			"stage":       string(stage),
			"status":      string(result.Status),
			"approved_by": in.Actor.ID,
		}))
	}); err != nil {
		return nil, err
	}

	return approved, nil
}

// FinalizeResignation は CEO 承認済みの退職届を確定し、現在契約の解除と社員の離職を同一トランザクションで行います。
func (s *Service) FinalizeResignation(ctx context.Context, in FinalizeResignationInput) (*Resignation, error) {
	if !in.Actor.HasAny(actor.RoleHR, actor.RoleCEO) {
		return nil, ErrForbidden
	}
	id := strings.TrimSpace(in.ResignationID)
	if id == "" {
		return nil, ErrInvalidID
	}

	var completed *Resignation
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if err := existing.Complete(in.ApprovedLastWorkingDay, in.ExitInterviewCompleted, s.requireExitInterview, now); err != nil {
			return err
		}

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}

		if _, err := s.contracts.TerminateCurrent(txCtx, result.EmployeeID, "resignation "+result.Number); err != nil {
			return err
		}
		if err := s.employees.MarkSeparated(txCtx, result.EmployeeID, *result.ApprovedLastWorkingDay); err != nil {
			return err
		}
		completed = result

		return s.events.Publish(txCtx, event.New(event.ResignationCompleted, aggregateType, result.ID, now, map[string]any{
			"number":                    result.Number,
			"employee_id":               result.EmployeeID,
			"approved_last_working_day": result.ApprovedLastWorkingDay.Format(time.DateOnly),
		}))
	}); err != nil {
		return nil, err
	}

	return completed, nil
}

// WithdrawResignation は社員本人または人事が退職届を取り下げます。
func (s *Service) WithdrawResignation(ctx context.Context, in WithdrawResignationInput) (*Resignation, error) {
	id := strings.TrimSpace(in.ResignationID)
	if id == "" {
		return nil, ErrInvalidID
	}

	var withdrawn *Resignation
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !in.Actor.IsEmployee(existing.EmployeeID) && !in.Actor.Has(actor.RoleHR) {
			return ErrNotResigningEmployee
		}

		now := s.clock.Now()
		if err := existing.Withdraw(in.Actor.ID, now); err != nil {
			return err
		}

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		withdrawn = result

		return s.events.Publish(txCtx, event.New(event.ResignationWithdrawn, aggregateType, result.ID, now, map[string]any{
			"number":       result.Number,
			"withdrawn_by": in.Actor.ID,
		}))
	}); err != nil {
		return nil, err
	}

	return withdrawn, nil
}

// GetResignation は退職届を取得します。
func (s *Service) GetResignation(ctx context.Context, in GetResignationInput) (*Resignation, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, ErrInvalidID
	}

	var result *Resignation
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListResignations は退職届の一覧を取得します。
func (s *Service) ListResignations(ctx context.Context, in ListResignationsInput) (*ListResignationsResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	if in.Status != nil && !isValidStatus(*in.Status) {
		return nil, ErrInvalidStatus
	}

	var result ListResignationsResult
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		resignations, token, err := s.repo.List(txCtx, ListResignationsFilter{
			EmployeeID: in.EmployeeID,
			Status:     in.Status,
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return err
		}
		result.Resignations = resignations
		result.NextPageToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

// authorizeStage は段階ごとの承認権限を確認します。
// supervisor 段階は社員の直属の上長のみで、人事や CEO の代行は認めません。
func (s *Service) authorizeStage(ctx context.Context, who actor.Actor, stage Stage, employeeID string) error {
	switch stage {
	case StageSupervisor:
		if !who.Has(actor.RoleSupervisor) {
			return fmt.Errorf("%s: %w", stage, ErrStageRoleRequired)
		}
		emp, err := s.employees.Ensure(ctx, employeeID)
		if err != nil {
			return err
		}
		if !emp.IsSupervisedBy(who.EmployeeID) {
			return fmt.Errorf("%s: %w", stage, ErrStageRoleRequired)
		}
	case StageHR:
		if !who.Has(actor.RoleHR) {
			return fmt.Errorf("%s: %w", stage, ErrStageRoleRequired)
		}
	case StageCEO:
		if !who.Has(actor.RoleCEO) {
			return fmt.Errorf("%s: %w", stage, ErrStageRoleRequired)
		}
	}
	return nil
}

func (s *Service) ensureNoOpenResignation(ctx context.Context, employeeID string) error {
	open, err := s.repo.FindOpenByEmployee(ctx, employeeID)
	if err != nil && !errors.Is(err, ErrResignationNotFound) {
		return err
	}
	if open != nil {
		return ErrOpenResignationExists
	}
	return nil
}

func newNumber(resignationDate time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("RSG-%s-%s", resignationDate.Format("20060102"), suffix)
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusSubmitted, StatusAcceptedBySupervisor, StatusAcceptedByHR, StatusAcceptedByCEO, StatusCompleted, StatusWithdrawn:
		return true
	default:
		return false
	}
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
