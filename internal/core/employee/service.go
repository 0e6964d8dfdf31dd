package employee

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

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
)

var employeeCodePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Service は社員に関するユースケースをまとめます。
type Service struct {
	repo   Repository
	clock  Clock
	tx     TransactionManager
	events event.Publisher
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error)
	ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, events event.Publisher) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if events == nil {
		events = event.Noop()
	}
	return &Service{repo: repo, clock: clock, tx: tx, events: events}
}

// CreateEmployeeInput は社員作成時の入力です。
type CreateEmployeeInput struct {
	Actor        actor.Actor
	EmployeeCode string
	Name         string
	SupervisorID *string
	HiredAt      *time.Time
}

// GetEmployeeInput は社員取得時の入力です。
type GetEmployeeInput struct {
	ID string
}

// ListEmployeesInput は一覧取得時の入力です。
type ListEmployeesInput struct {
	SupervisorID *string
	PageSize     int
	PageToken    string
	Status       *Status
}

// ListEmployeesResult は一覧取得結果を表します。
type ListEmployeesResult struct {
	Employees     []*Employee
	NextPageToken string
}

// CreateEmployee は新しい社員を登録します。人事または CEO のみが実行できます。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error) {
	if !in.Actor.HasAny(actor.RoleHR, actor.RoleCEO) {
		return nil, ErrForbidden
	}

	code, err := normalizeEmployeeCode(in.EmployeeCode)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	var supervisorID *string
	if in.SupervisorID != nil {
		trimmed := strings.TrimSpace(*in.SupervisorID)
		if trimmed != "" {
			supervisorID = &trimmed
		}
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureEmployeeCodeNotExists(txCtx, code); err != nil {
			return err
		}

		if supervisorID != nil {
			if _, err := s.repo.FindByID(txCtx, *supervisorID); err != nil {
				if errors.Is(err, ErrEmployeeNotFound) {
					return ErrSupervisorNotFound
				}
				return err
			}
		}

		now := s.clock.Now()
		result, err := s.repo.Create(txCtx, &Employee{
			EmployeeCode: code,
			Name:         name,
			SupervisorID: supervisorID,
			Status:       StatusActive,
			HiredAt:      normalizeDate(in.HiredAt),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

// GetEmployee は社員を取得します。
func (s *Service) GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, in.ID)
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

// ListEmployees は社員の一覧を取得します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error) {
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

	var result ListEmployeesResult
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		employees, token, err := s.repo.List(txCtx, ListEmployeesFilter{
			SupervisorID: in.SupervisorID,
			Status:       in.Status,
			Limit:        limit,
			Offset:       offset,
		})
		if err != nil {
			return err
		}
		result.Employees = employees
		result.NextPageToken = token
		return nil
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

// Ensure は社員が存在し在籍中であることを確認して返します。
func (s *Service) Ensure(ctx context.Context, id string) (*Employee, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("employee_id: %w", ErrInvalidID)
	}

	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !found.IsActive() {
			return ErrEmployeeInactive
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// MarkSeparated は退職確定に伴い社員を非在籍にします。呼び出し元のトランザクションに参加します。
func (s *Service) MarkSeparated(ctx context.Context, id string, lastWorkingDay time.Time) error {
	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}

		terminatedAt := normalizeDate(&lastWorkingDay)
		if err := validateEmploymentPeriod(existing.HiredAt, terminatedAt); err != nil {
			return err
		}

		now := s.clock.Now()
		existing.Status = StatusInactive
		existing.TerminatedAt = terminatedAt
		existing.UpdatedAt = now

		if _, err := s.repo.Update(txCtx, existing); err != nil {
			return err
		}

		return s.events.Publish(txCtx, event.New(event.EmployeeSeparated, "employee", existing.ID, now, map[string]any{
			"last_working_day": terminatedAt.Format(time.DateOnly),
		}))
	})
}

func (s *Service) ensureEmployeeCodeNotExists(ctx context.Context, code string) error {
	emp, err := s.repo.FindByCode(ctx, code)
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return err
	}
	if emp != nil {
		return ErrEmployeeCodeAlreadyExists
	}
	return nil
}

func normalizeEmployeeCode(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmployeeCode
	}

	lower := strings.ToLower(trimmed)
	if !employeeCodePattern.MatchString(lower) {
		return "", ErrInvalidEmployeeCode
	}
	return lower, nil
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	normalized := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &normalized
}

func validateEmploymentPeriod(hiredAt, terminatedAt *time.Time) error {
	if hiredAt == nil || terminatedAt == nil {
		return nil
	}
	if terminatedAt.Before(*hiredAt) {
		return ErrInvalidDateRange
	}
	return nil
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusActive, StatusInactive:
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
