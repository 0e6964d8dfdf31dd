package contract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

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

type noPendingExtensions struct{}

func (noPendingExtensions) HasPendingExtension(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func (noPendingExtensions) ClosePending(context.Context, string, time.Time, string) error {
	return nil
}

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
	sweepBatchSize      = 100
	aggregateType       = "contract"
)

var (
	numberPattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/_.-]*$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Service は雇用契約の状態機械を操作するユースケースです。
type Service struct {
	repo       Repository
	employees  EmployeeDirectory
	extensions ExtensionLookup
	clock      Clock
	tx         TransactionManager
	events     event.Publisher
}

// UseCase は雇用契約ユースケースの公開インターフェースです。
type UseCase interface {
	CreateContract(ctx context.Context, in CreateContractInput) (*Contract, error)
	ActivateContract(ctx context.Context, in ActivateContractInput) (*Contract, error)
	GetContract(ctx context.Context, in GetContractInput) (*Contract, error)
	GetCurrentContract(ctx context.Context, in GetCurrentContractInput) (*Contract, error)
	ListContracts(ctx context.Context, in ListContractsInput) (*ListContractsResult, error)
	TerminateContract(ctx context.Context, in TerminateContractInput) (*Contract, error)
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithExtensionLookup は期限切れ判定に使う延長の参照先を設定します。
func WithExtensionLookup(lookup ExtensionLookup) Option {
	return func(s *Service) {
		if lookup != nil {
			s.extensions = lookup
		}
	}
}

// WithEventPublisher はイベントの配送先を設定します。
func WithEventPublisher(p event.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, employees EmployeeDirectory, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:       repo,
		employees:  employees,
		extensions: noPendingExtensions{},
		clock:      clock,
		tx:         tx,
		events:     event.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateContractInput は契約作成時の入力です。
type CreateContractInput struct {
	Actor            actor.Actor
	Number           string
	EmployeeID       string
	PositionTitle    string
	Location         string
	Type             ContractType
	StartDate        time.Time
	EndDate          time.Time
	MonthlySalary    decimal.Decimal
	Currency         string
	NoticePeriodDays int
	SignedDate       *time.Time
	Status           Status
}

// ActivateContractInput は下書き契約の有効化入力です。
type ActivateContractInput struct {
	Actor  actor.Actor
	Number string
}

// GetContractInput は契約取得時の入力です。
type GetContractInput struct {
	Number string
}

// GetCurrentContractInput は社員の現在契約取得時の入力です。
type GetCurrentContractInput struct {
	EmployeeID string
}

// ListContractsInput は一覧取得時の入力です。
type ListContractsInput struct {
	EmployeeID *string
	Status     *Status
	PageSize   int
	PageToken  string
}

// ListContractsResult は一覧取得結果を表します。
type ListContractsResult struct {
	Contracts     []*Contract
	NextPageToken string
}

// TerminateContractInput は契約解除時の入力です。
type TerminateContractInput struct {
	Actor  actor.Actor
	Number string
	Reason string
}

// CreateContract は DRAFT または ACTIVE の契約を作成します。
func (s *Service) CreateContract(ctx context.Context, in CreateContractInput) (*Contract, error) {
	if !in.Actor.HasAny(actor.RoleHR, actor.RoleCEO) {
		return nil, ErrForbidden
	}

	c, err := buildContract(in)
	if err != nil {
		return nil, err
	}

	var created *Contract
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.employees.Ensure(txCtx, c.EmployeeID); err != nil {
			return err
		}

		if c.Status == StatusActive {
			if err := s.ensureNoCurrentContract(txCtx, c.EmployeeID); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		c.CreatedAt = now
		c.UpdatedAt = now

		result, err := s.repo.Create(txCtx, c)
		if err != nil {
			return err
		}

		created = result
		return s.events.Publish(txCtx, event.New(event.ContractCreated, aggregateType, result.Number, now, map[string]any{
			"employee_id": result.EmployeeID,
			"status":      string(result.Status),
			"start_date":  result.StartDate.Format(time.DateOnly),
			"end_date":    result.EndDate.Format(time.DateOnly),
		}))
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// ActivateContract は DRAFT の契約を ACTIVE にします。
func (s *Service) ActivateContract(ctx context.Context, in ActivateContractInput) (*Contract, error) {
	if !in.Actor.HasAny(actor.RoleHR, actor.RoleCEO) {
		return nil, ErrForbidden
	}
	number, err := normalizeNumber(in.Number)
	if err != nil {
		return nil, err
	}

	var activated *Contract
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByNumber(txCtx, number)
		if err != nil {
			return err
		}
		if existing.Status != StatusDraft {
			return fmt.Errorf("%s -> %s: %w", existing.Status, StatusActive, ErrInvalidTransition)
		}
		if err := s.ensureNoCurrentContract(txCtx, existing.EmployeeID); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := existing.transition(StatusActive); err != nil {
			return err
		}
		existing.UpdatedAt = now

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		activated = result
		return s.events.Publish(txCtx, event.New(event.ContractActivated, aggregateType, result.Number, now, nil))
	}); err != nil {
		return nil, err
	}

	return activated, nil
}

// GetContract は契約を取得します。終了日を過ぎていれば EXPIRED として返します。
func (s *Service) GetContract(ctx context.Context, in GetContractInput) (*Contract, error) {
	number, err := normalizeNumber(in.Number)
	if err != nil {
		return nil, err
	}

	var result *Contract
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByNumber(txCtx, number)
		if err != nil {
			return err
		}
		refreshed, err := s.refresh(txCtx, found)
		if err != nil {
			return err
		}
		result = refreshed
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// GetCurrentContract は社員の現在契約 (ACTIVE または EXTENDED) を取得します。
func (s *Service) GetCurrentContract(ctx context.Context, in GetCurrentContractInput) (*Contract, error) {
	employeeID := strings.TrimSpace(in.EmployeeID)
	if employeeID == "" {
		return nil, ErrInvalidEmployeeID
	}

	var result *Contract
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.currentContract(txCtx, employeeID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrCurrentContractNotFound
		}
		result = current
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListContracts は契約の一覧を取得します。
func (s *Service) ListContracts(ctx context.Context, in ListContractsInput) (*ListContractsResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	filter := ListContractsFilter{EmployeeID: in.EmployeeID, Limit: limit, Offset: offset}
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		filter.Statuses = []Status{*in.Status}
	}

	var result ListContractsResult
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		contracts, token, err := s.repo.List(txCtx, filter)
		if err != nil {
			return err
		}
		result.Contracts = contracts
		result.NextPageToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

// TerminateContract は契約を明示的に解除します。
func (s *Service) TerminateContract(ctx context.Context, in TerminateContractInput) (*Contract, error) {
	if !in.Actor.HasAny(actor.RoleHR, actor.RoleCEO) {
		return nil, ErrForbidden
	}
	number, err := normalizeNumber(in.Number)
	if err != nil {
		return nil, err
	}

	var terminated *Contract
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByNumber(txCtx, number)
		if err != nil {
			return err
		}
		result, err := s.terminate(txCtx, existing, strings.TrimSpace(in.Reason))
		if err != nil {
			return err
		}
		terminated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return terminated, nil
}

// TerminateCurrent は社員の現在契約を解除します。現在契約がなければ nil を返します。
// 退職確定の処理から呼び出され、呼び出し元のトランザクションに参加します。
func (s *Service) TerminateCurrent(ctx context.Context, employeeID, reason string) (*Contract, error) {
	var terminated *Contract
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		current, err := s.currentContract(txCtx, employeeID)
		if err != nil || current == nil {
			return err
		}
		result, err := s.terminate(txCtx, current, reason)
		if err != nil {
			return err
		}
		terminated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return terminated, nil
}

// AdoptExtensionTerms は承諾された延長の条件を契約に反映し EXTENDED にします。
// 延長ワークフローからのみ呼び出され、呼び出し元のトランザクションに参加します。
func (s *Service) AdoptExtensionTerms(ctx context.Context, number string, amendment Amendment) (*Contract, error) {
	var extended *Contract
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByNumber(txCtx, number)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		previous, err := existing.AdoptExtensionTerms(amendment, now)
		if err != nil {
			return err
		}

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		extended = result

		return s.events.Publish(txCtx, event.New(event.ContractExtended, aggregateType, result.Number, now, map[string]any{
			"extension_id":            amendment.ExtensionID,
			"previous_start_date":     previous.StartDate.Format(time.DateOnly),
			"previous_end_date":       previous.EndDate.Format(time.DateOnly),
			"previous_monthly_salary": previous.MonthlySalary.String(),
			"previous_position_title": previous.PositionTitle,
			"previous_location":       previous.Location,
			"end_date":                result.EndDate.Format(time.DateOnly),
			"monthly_salary":          result.MonthlySalary.String(),
		}))
	}); err != nil {
		return nil, err
	}

	return extended, nil
}

// ExpireOverdue は終了日を過ぎた現在契約をまとめて EXPIRED にし、件数を返します。
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	today := dateOnly(now)

	var candidates []string
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		offset := 0
		for {
			page, token, err := s.repo.List(txCtx, ListContractsFilter{
				Statuses:  []Status{StatusActive, StatusExtended},
				EndBefore: &today,
				Limit:     sweepBatchSize,
				Offset:    offset,
			})
			if err != nil {
				return err
			}
			for _, c := range page {
				candidates = append(candidates, c.Number)
			}
			if token == "" {
				return nil
			}
			offset += len(page)
		}
	}); err != nil {
		return 0, err
	}

	expired := 0
	for _, number := range candidates {
		if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
			found, err := s.repo.FindByNumber(txCtx, number)
			if err != nil {
				return err
			}
			before := found.Status
			refreshed, err := s.refresh(txCtx, found)
			if err != nil {
				return err
			}
			if refreshed.Status == StatusExpired && before != StatusExpired {
				expired++
			}
			return nil
		}); err != nil {
			if errors.Is(err, ErrConcurrentModification) {
				continue
			}
			return expired, err
		}
	}

	return expired, nil
}

// refresh は契約に期限切れ判定を適用し、遷移した場合は永続化します。
func (s *Service) refresh(ctx context.Context, c *Contract) (*Contract, error) {
	now := s.clock.Now()
	if !c.IsOverdue(now) {
		return c, nil
	}

	pending, err := s.extensions.HasPendingExtension(ctx, c.Number, now)
	if err != nil {
		return nil, err
	}
	if !c.ExpireIfPastEndDate(now, pending) {
		return c, nil
	}

	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := s.events.Publish(ctx, event.New(event.ContractExpired, aggregateType, updated.Number, now, map[string]any{
		"end_date": updated.EndDate.Format(time.DateOnly),
	})); err != nil {
		return nil, err
	}
	return updated, nil
}

// currentContract は期限切れ判定を適用したうえで社員の現在契約を返します。存在しなければ nil です。
func (s *Service) currentContract(ctx context.Context, employeeID string) (*Contract, error) {
	found, err := s.repo.FindCurrentByEmployee(ctx, employeeID)
	if err != nil {
		if errors.Is(err, ErrContractNotFound) {
			return nil, nil
		}
		return nil, err
	}

	refreshed, err := s.refresh(ctx, found)
	if err != nil {
		return nil, err
	}
	if !refreshed.Status.IsCurrent() {
		return nil, nil
	}
	return refreshed, nil
}

func (s *Service) ensureNoCurrentContract(ctx context.Context, employeeID string) error {
	current, err := s.currentContract(ctx, employeeID)
	if err != nil {
		return err
	}
	if current != nil {
		return fmt.Errorf("%s: %w", current.Number, ErrEmployeeHasCurrent)
	}
	return nil
}

func (s *Service) terminate(ctx context.Context, c *Contract, reason string) (*Contract, error) {
	now := s.clock.Now()
	if err := c.Terminate(now, reason); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return nil, err
	}

	// 終了した契約への延長は応答できないため同じトランザクションで閉じる。
	if err := s.extensions.ClosePending(ctx, updated.Number, now, terminationRejectionReason(reason)); err != nil {
		return nil, err
	}

	if err := s.events.Publish(ctx, event.New(event.ContractTerminated, aggregateType, updated.Number, now, map[string]any{
		"employee_id": updated.EmployeeID,
		"reason":      reason,
	})); err != nil {
		return nil, err
	}
	return updated, nil
}

func terminationRejectionReason(reason string) string {
	if reason == "" {
		return "contract terminated"
	}
	return "contract terminated: " + reason
}

func buildContract(in CreateContractInput) (*Contract, error) {
	number, err := normalizeNumber(in.Number)
	if err != nil {
		return nil, err
	}

	employeeID := strings.TrimSpace(in.EmployeeID)
	if employeeID == "" {
		return nil, ErrInvalidEmployeeID
	}

	title := strings.TrimSpace(in.PositionTitle)
	if title == "" {
		return nil, ErrInvalidPositionTitle
	}

	contractType := in.Type
	if contractType == "" {
		contractType = TypeFixedTerm
	}
	if !isValidType(contractType) {
		return nil, ErrInvalidType
	}

	start := dateOnly(in.StartDate)
	end := dateOnly(in.EndDate)
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return nil, ErrInvalidDateRange
	}

	if !in.MonthlySalary.IsPositive() {
		return nil, ErrInvalidSalary
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if !currencyPattern.MatchString(currency) {
		return nil, ErrInvalidCurrency
	}

	if in.NoticePeriodDays < 0 {
		return nil, ErrInvalidNoticePeriod
	}

	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	if status != StatusDraft && status != StatusActive {
		return nil, ErrInvalidInitialStatus
	}

	var signed *time.Time
	if in.SignedDate != nil {
		d := dateOnly(*in.SignedDate)
		signed = &d
	}

	return &Contract{
		Number:           number,
		EmployeeID:       employeeID,
		PositionTitle:    title,
		Location:         strings.TrimSpace(in.Location),
		Type:             contractType,
		StartDate:        start,
		EndDate:          end,
		MonthlySalary:    in.MonthlySalary,
		Currency:         currency,
		NoticePeriodDays: in.NoticePeriodDays,
		SignedDate:       signed,
		Status:           status,
	}, nil
}

func normalizeNumber(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !numberPattern.MatchString(trimmed) {
		return "", ErrInvalidNumber
	}
	return trimmed, nil
}

func isValidType(t ContractType) bool {
	switch t {
	case TypeFixedTerm, TypePermanent, TypeProbation, TypeConsultancy:
		return true
	default:
		return false
	}
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusDraft, StatusActive, StatusExtended, StatusExpired, StatusTerminated:
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
