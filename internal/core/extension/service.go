package extension

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/actor"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
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
	sweepBatchSize = 100
	aggregateType  = "extension"
)

// Service は契約延長ワークフローのユースケースです。
type Service struct {
	repo      Repository
	contracts ContractGateway
	clock     Clock
	tx        TransactionManager
	events    event.Publisher
}

// UseCase は契約延長ユースケースの公開インターフェースです。
type UseCase interface {
	ProposeExtension(ctx context.Context, in ProposeExtensionInput) (*Extension, error)
	AcceptExtension(ctx context.Context, in AcceptExtensionInput) (*Extension, error)
	RejectExtension(ctx context.Context, in RejectExtensionInput) (*Extension, error)
	GetExtension(ctx context.Context, in GetExtensionInput) (*Extension, error)
	ListExtensions(ctx context.Context, in ListExtensionsInput) ([]*Extension, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, contracts ContractGateway, clock Clock, tx TransactionManager, events event.Publisher) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if events == nil {
		events = event.Noop()
	}
	return &Service{repo: repo, contracts: contracts, clock: clock, tx: tx, events: events}
}

// ProposeExtensionInput は延長提案の入力です。NewStartDate を省略した場合は契約終了日を使います。
type ProposeExtensionInput struct {
	Actor              actor.Actor
	ContractNumber     string
	NewStartDate       *time.Time
	NewEndDate         time.Time
	NewMonthlySalary   *decimal.Decimal
	SalaryChangeReason string
	NewPositionTitle   *string
	NewLocation        *string
	TermsChanges       string
}

// AcceptExtensionInput は延長承諾の入力です。
type AcceptExtensionInput struct {
	Actor       actor.Actor
	ExtensionID string
}

// RejectExtensionInput は延長辞退の入力です。
type RejectExtensionInput struct {
	Actor       actor.Actor
	ExtensionID string
	Reason      string
}

// GetExtensionInput は延長取得の入力です。
type GetExtensionInput struct {
	ID string
}

// ListExtensionsInput は契約ごとの延長一覧取得の入力です。
type ListExtensionsInput struct {
	ContractNumber string
}

// ProposeExtension は ACTIVE な契約に対して PENDING の延長を作成します。
func (s *Service) ProposeExtension(ctx context.Context, in ProposeExtensionInput) (*Extension, error) {
	if !in.Actor.HasAny(actor.RoleHR, actor.RoleCEO) {
		return nil, ErrForbidden
	}

	contractNumber := strings.TrimSpace(in.ContractNumber)
	if contractNumber == "" {
		return nil, ErrInvalidContractNumber
	}

	if in.NewMonthlySalary != nil && !in.NewMonthlySalary.IsPositive() {
		return nil, ErrInvalidSalary
	}

	var proposed *Extension
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		c, err := s.contracts.GetContract(txCtx, contract.GetContractInput{Number: contractNumber})
		if err != nil {
			return err
		}
		if c.Status != contract.StatusActive {
			return fmt.Errorf("%s is %s: %w", c.Number, c.Status, ErrContractNotActive)
		}

		newStart := c.EndDate
		if in.NewStartDate != nil {
			newStart = dateOnly(*in.NewStartDate)
		}
		newEnd := dateOnly(in.NewEndDate)
		if newEnd.IsZero() || !newEnd.After(newStart) {
			return ErrInvalidDateRange
		}

		reason := strings.TrimSpace(in.SalaryChangeReason)
		salaryChanged := in.NewMonthlySalary != nil && !in.NewMonthlySalary.Equal(c.MonthlySalary)
		if salaryChanged && reason == "" {
			return ErrSalaryReasonRequired
		}

		now := s.clock.Now()
		if err := s.ensureNoPending(txCtx, c.Number, now); err != nil {
			return err
		}

		seq, err := s.repo.NextSequence(txCtx, c.Number)
		if err != nil {
			return err
		}

		ext := &Extension{
			ID:               uuid.NewString(),
			Number:           fmt.Sprintf("%s-EXT-%02d", c.Number, seq),
			Sequence:         seq,
			ContractNumber:   c.Number,
			EmployeeID:       c.EmployeeID,
			NewStartDate:     newStart,
			NewEndDate:       newEnd,
			NewMonthlySalary: in.NewMonthlySalary,
			NewPositionTitle: trimmedOrNil(in.NewPositionTitle),
			NewLocation:      trimmedOrNil(in.NewLocation),
			TermsChanges:     strings.TrimSpace(in.TermsChanges),
			Status:           StatusPending,
			ProposedBy:       in.Actor.ID,
			CreatedAt:        now,
			ExpiresAt:        now.Add(ValidityPeriod),
			UpdatedAt:        now,
		}
		if reason != "" {
			ext.SalaryChangeReason = &reason
		}

		created, err := s.repo.Create(txCtx, ext)
		if err != nil {
			return err
		}
		proposed = created

		return s.events.Publish(txCtx, event.New(event.ExtensionProposed, aggregateType, created.ID, now, map[string]any{
			"number":          created.Number,
			"contract_number": created.ContractNumber,
			"employee_id":     created.EmployeeID,
			"expires_at":      created.ExpiresAt.Format(time.RFC3339),
		}))
	}); err != nil {
		return nil, err
	}

	return proposed, nil
}

// AcceptExtension は社員本人による延長承諾です。期限内であれば契約に新条件を採用させます。
func (s *Service) AcceptExtension(ctx context.Context, in AcceptExtensionInput) (*Extension, error) {
	return s.respond(ctx, in.Actor, in.ExtensionID, func(txCtx context.Context, ext *Extension, now time.Time) error {
		c, err := s.contracts.GetContract(txCtx, contract.GetContractInput{Number: ext.ContractNumber})
		if err != nil {
			return err
		}
		if c.Status != contract.StatusActive {
			// 同じ延長への別の応答が先に確定していれば、契約の状態ではなく競合として返す。
			if current, err := s.repo.FindByID(txCtx, ext.ID); err == nil && current.Version != ext.Version {
				return fmt.Errorf("%s: %w", ext.Number, ErrConcurrentModification)
			}
			return fmt.Errorf("%s is %s: %w", c.Number, c.Status, ErrContractNotActive)
		}

		acceptedAt := now
		ext.Status = StatusAccepted
		ext.EmployeeAcceptedAt = &acceptedAt
		return nil
	}, func(txCtx context.Context, ext *Extension, now time.Time) error {
		if _, err := s.contracts.AdoptExtensionTerms(txCtx, ext.ContractNumber, ext.Amendment()); err != nil {
			return err
		}
		return s.events.Publish(txCtx, event.New(event.ExtensionAccepted, aggregateType, ext.ID, now, map[string]any{
			"number":          ext.Number,
			"contract_number": ext.ContractNumber,
		}))
	})
}

// RejectExtension は社員本人による延長辞退です。契約は変更しません。
func (s *Service) RejectExtension(ctx context.Context, in RejectExtensionInput) (*Extension, error) {
	reason := strings.TrimSpace(in.Reason)
	return s.respond(ctx, in.Actor, in.ExtensionID, func(_ context.Context, ext *Extension, now time.Time) error {
		rejectedAt := now
		ext.Status = StatusRejected
		ext.RejectedAt = &rejectedAt
		if reason != "" {
			ext.RejectionReason = &reason
		}
		return nil
	}, func(txCtx context.Context, ext *Extension, now time.Time) error {
		return s.events.Publish(txCtx, event.New(event.ExtensionRejected, aggregateType, ext.ID, now, map[string]any{
			"number":          ext.Number,
			"contract_number": ext.ContractNumber,
			"reason":          reason,
		}))
	})
}

// respond は承諾・辞退に共通する検証と compare-and-set を行います。
// 期限切れの場合は EXPIRED を確定させたうえで ErrExtensionExpired を返します。
func (s *Service) respond(
	ctx context.Context,
	who actor.Actor,
	id string,
	mutate func(context.Context, *Extension, time.Time) error,
	after func(context.Context, *Extension, time.Time) error,
) (*Extension, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidID
	}

	var (
		result  *Extension
		expired bool
	)
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		ext, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !who.IsEmployee(ext.EmployeeID) {
			return ErrNotOwner
		}

		now := s.clock.Now()
		ext, err = s.sweep(txCtx, ext, now)
		if err != nil {
			return err
		}

		switch ext.Status {
		case StatusPending:
		case StatusExpired:
			expired = true
			return nil
		default:
			return fmt.Errorf("%s is %s: %w", ext.Number, ext.Status, ErrNotPending)
		}

		if err := mutate(txCtx, ext, now); err != nil {
			return err
		}
		ext.UpdatedAt = now

		updated, err := s.repo.Update(txCtx, ext)
		if err != nil {
			return err
		}
		if err := after(txCtx, updated, now); err != nil {
			return err
		}
		result = updated
		return nil
	}); err != nil {
		return nil, err
	}

	if expired {
		return nil, ErrExtensionExpired
	}
	return result, nil
}

// GetExtension は延長を取得します。期限切れ判定を適用した状態を返します。
func (s *Service) GetExtension(ctx context.Context, in GetExtensionInput) (*Extension, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, ErrInvalidID
	}

	var result *Extension
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		swept, err := s.sweep(txCtx, found, s.clock.Now())
		if err != nil {
			return err
		}
		result = swept
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListExtensions は契約の延長履歴を番号順に返します。
func (s *Service) ListExtensions(ctx context.Context, in ListExtensionsInput) ([]*Extension, error) {
	contractNumber := strings.TrimSpace(in.ContractNumber)
	if contractNumber == "" {
		return nil, ErrInvalidContractNumber
	}

	var result []*Extension
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListByContract(txCtx, contractNumber)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		result = make([]*Extension, 0, len(found))
		for _, ext := range found {
			swept, err := s.sweep(txCtx, ext, now)
			if err != nil {
				return err
			}
			result = append(result, swept)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// SweepExpired は期限を過ぎた PENDING の延長をまとめて EXPIRED にし、件数を返します。
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	total := 0
	for {
		var batch []*Extension
		if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
			found, err := s.repo.ListPendingDueBefore(txCtx, now, sweepBatchSize)
			if err != nil {
				return err
			}
			batch = found
			return nil
		}); err != nil {
			return total, err
		}

		for _, ext := range batch {
			if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
				swept, err := s.sweep(txCtx, ext, now)
				if err != nil {
					return err
				}
				if swept.Status == StatusExpired {
					total++
				}
				return nil
			}); err != nil {
				return total, err
			}
		}

		if len(batch) < sweepBatchSize {
			return total, nil
		}
	}
}

// HasPendingExtension は期限切れ判定を適用したうえで契約に PENDING の延長があるかを返します。
func (s *Service) HasPendingExtension(ctx context.Context, contractNumber string, now time.Time) (bool, error) {
	return NewPendingLookup(s.repo, s.events).HasPendingExtension(ctx, contractNumber, now)
}

// ClosePending は契約の終了に合わせて保留中の延長を閉じます。
func (s *Service) ClosePending(ctx context.Context, contractNumber string, now time.Time, reason string) error {
	return NewPendingLookup(s.repo, s.events).ClosePending(ctx, contractNumber, now, reason)
}

func (s *Service) ensureNoPending(ctx context.Context, contractNumber string, now time.Time) error {
	pending, err := s.HasPendingExtension(ctx, contractNumber, now)
	if err != nil {
		return err
	}
	if pending {
		return ErrPendingExtensionExists
	}
	return nil
}

func (s *Service) sweep(ctx context.Context, ext *Extension, now time.Time) (*Extension, error) {
	return expire(ctx, s.repo, s.events, ext, now)
}

// PendingLookup は契約側の期限切れ判定に使う延長参照です。延長サービスに依存せず構築できます。
type PendingLookup struct {
	repo   Repository
	events event.Publisher
}

// NewPendingLookup は PendingLookup を生成します。
func NewPendingLookup(repo Repository, events event.Publisher) *PendingLookup {
	if events == nil {
		events = event.Noop()
	}
	return &PendingLookup{repo: repo, events: events}
}

// HasPendingExtension は契約に期限内の PENDING の延長があるかを返します。期限切れのものは EXPIRED に確定させます。
func (l *PendingLookup) HasPendingExtension(ctx context.Context, contractNumber string, now time.Time) (bool, error) {
	found, err := l.repo.FindPendingByContract(ctx, contractNumber)
	if err != nil {
		if errors.Is(err, ErrExtensionNotFound) {
			return false, nil
		}
		return false, err
	}

	swept, err := expire(ctx, l.repo, l.events, found, now)
	if err != nil {
		return false, err
	}
	return swept.Status == StatusPending, nil
}

// ClosePending は契約の終了に伴い、期限内の PENDING の延長を REJECTED で閉じます。
// 期限切れのものは EXPIRED に確定させ、延長が無ければ何もしません。
func (l *PendingLookup) ClosePending(ctx context.Context, contractNumber string, now time.Time, reason string) error {
	found, err := l.repo.FindPendingByContract(ctx, contractNumber)
	if err != nil {
		if errors.Is(err, ErrExtensionNotFound) {
			return nil
		}
		return err
	}

	swept, err := expire(ctx, l.repo, l.events, found, now)
	if err != nil {
		return err
	}
	if swept.Status != StatusPending {
		return nil
	}

	rejectedAt := now
	swept.Status = StatusRejected
	swept.RejectedAt = &rejectedAt
	swept.RejectionReason = &reason
	swept.UpdatedAt = now

	updated, err := l.repo.Update(ctx, swept)
	if err != nil {
		return err
	}

	return l.events.Publish(ctx, event.New(event.ExtensionRejected, aggregateType, updated.ID, now, map[string]any{
		"number":          updated.Number,
		"contract_number": updated.ContractNumber,
		"reason":          reason,
	}))
}

// expire は Sweep の結果を永続化します。競合した場合は最新の状態を読み直して判定します。
func expire(ctx context.Context, repo Repository, events event.Publisher, ext *Extension, now time.Time) (*Extension, error) {
	swept, changed := Sweep(*ext, now)
	if !changed {
		return ext, nil
	}

	updated, err := repo.Update(ctx, &swept)
	if err != nil {
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
		latest, err := repo.FindByID(ctx, ext.ID)
		if err != nil {
			return nil, err
		}
		resolved, _ := Sweep(*latest, now)
		return &resolved, nil
	}

	if err := events.Publish(ctx, event.New(event.ExtensionExpired, aggregateType, updated.ID, now, map[string]any{
		"number":          updated.Number,
		"contract_number": updated.ContractNumber,
		"expires_at":      updated.ExpiresAt.Format(time.RFC3339),
	})); err != nil {
		return nil, err
	}
	return updated, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
