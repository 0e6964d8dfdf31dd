package contract

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status は雇用契約の状態を表します。
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusActive     Status = "ACTIVE"
	StatusExtended   Status = "EXTENDED"
	StatusExpired    Status = "EXPIRED"
	StatusTerminated Status = "TERMINATED"
)

// transitions は契約状態の唯一の遷移表です。ここにない遷移はすべて拒否されます。
var transitions = map[Status][]Status{
	StatusDraft:    {StatusActive, StatusTerminated},
	StatusActive:   {StatusExtended, StatusExpired, StatusTerminated},
	StatusExtended: {StatusExtended, StatusExpired, StatusTerminated},
}

// CanTransitionTo は next への遷移が許可されているかを返します。
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsCurrent は「現在の契約」として扱われる状態かを返します。
func (s Status) IsCurrent() bool {
	return s == StatusActive || s == StatusExtended
}

// ContractType は契約形態です。
type ContractType string

const (
	TypeFixedTerm   ContractType = "FIXED_TERM"
	TypePermanent   ContractType = "PERMANENT"
	TypeProbation   ContractType = "PROBATION"
	TypeConsultancy ContractType = "CONSULTANCY"
)

// Contract は雇用契約エンティティです。契約番号が識別子です。
type Contract struct {
	Number            string
	EmployeeID        string
	PositionTitle     string
	Location          string
	Type              ContractType
	StartDate         time.Time
	EndDate           time.Time
	MonthlySalary     decimal.Decimal
	Currency          string
	NoticePeriodDays  int
	SignedDate        *time.Time
	Status            Status
	TerminatedAt      *time.Time
	TerminationReason *string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Terms は契約条件のスナップショットです。
type Terms struct {
	StartDate     time.Time
	EndDate       time.Time
	MonthlySalary decimal.Decimal
	Currency      string
	PositionTitle string
	Location      string
}

// Amendment は承諾済み延長によって採用される新条件です。nil の項目は変更しません。
type Amendment struct {
	ExtensionID   string
	StartDate     time.Time
	EndDate       time.Time
	MonthlySalary *decimal.Decimal
	PositionTitle *string
	Location      *string
}

// Terms は現在の契約条件を返します。
func (c *Contract) Terms() Terms {
	return Terms{
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		MonthlySalary: c.MonthlySalary,
		Currency:      c.Currency,
		PositionTitle: c.PositionTitle,
		Location:      c.Location,
	}
}

func (c *Contract) transition(next Status) error {
	if !c.Status.CanTransitionTo(next) {
		return fmt.Errorf("%s -> %s: %w", c.Status, next, ErrInvalidTransition)
	}
	c.Status = next
	return nil
}

// AdoptExtensionTerms は延長条件を自身の条件として採用し EXTENDED に遷移します。
// 遷移前の条件を返します。
func (c *Contract) AdoptExtensionTerms(a Amendment, now time.Time) (Terms, error) {
	previous := c.Terms()

	if !a.EndDate.After(a.StartDate) {
		return previous, ErrInvalidDateRange
	}
	if err := c.transition(StatusExtended); err != nil {
		return previous, err
	}

	c.StartDate = dateOnly(a.StartDate)
	c.EndDate = dateOnly(a.EndDate)
	if a.MonthlySalary != nil {
		c.MonthlySalary = *a.MonthlySalary
	}
	if a.PositionTitle != nil {
		c.PositionTitle = *a.PositionTitle
	}
	if a.Location != nil {
		c.Location = *a.Location
	}
	c.UpdatedAt = now
	return previous, nil
}

// ExpireIfPastEndDate は終了日を過ぎた現在契約を EXPIRED にします。
// superseded が true の場合 (保留中の延長がある場合) は遷移しません。
func (c *Contract) ExpireIfPastEndDate(now time.Time, superseded bool) bool {
	if !c.IsOverdue(now) || superseded {
		return false
	}
	c.Status = StatusExpired
	c.UpdatedAt = now
	return true
}

// IsOverdue は現在契約で、now の日付が終了日を過ぎているかを返します。
func (c *Contract) IsOverdue(now time.Time) bool {
	return c.Status.IsCurrent() && dateOnly(now).After(c.EndDate)
}

// Terminate は契約を TERMINATED にします。
func (c *Contract) Terminate(now time.Time, reason string) error {
	if err := c.transition(StatusTerminated); err != nil {
		return err
	}
	terminatedAt := now
	c.TerminatedAt = &terminatedAt
	if reason != "" {
		c.TerminationReason = &reason
	}
	c.UpdatedAt = now
	return nil
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
