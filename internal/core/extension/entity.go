package extension

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
)

// ValidityPeriod は延長提案に社員が回答できる固定期間です。
const ValidityPeriod = 7 * 24 * time.Hour

// Status は契約延長の状態を表します。
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusExpired  Status = "EXPIRED"
	StatusRejected Status = "REJECTED"
)

// IsTerminal は以降の遷移が存在しない状態かを返します。
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusExpired || s == StatusRejected
}

// Extension は契約延長の提案です。
type Extension struct {
	ID                 string
	Number             string
	Sequence           int
	ContractNumber     string
	EmployeeID         string
	NewStartDate       time.Time
	NewEndDate         time.Time
	NewMonthlySalary   *decimal.Decimal
	SalaryChangeReason *string
	NewPositionTitle   *string
	NewLocation        *string
	TermsChanges       string
	Status             Status
	ProposedBy         string
	CreatedAt          time.Time
	ExpiresAt          time.Time
	EmployeeAcceptedAt *time.Time
	RejectedAt         *time.Time
	RejectionReason    *string
	Version            int64
	UpdatedAt          time.Time
}

// Amendment は契約に採用させる新条件を返します。
func (e *Extension) Amendment() contract.Amendment {
	return contract.Amendment{
		ExtensionID:   e.ID,
		StartDate:     e.NewStartDate,
		EndDate:       e.NewEndDate,
		MonthlySalary: e.NewMonthlySalary,
		PositionTitle: e.NewPositionTitle,
		Location:      e.NewLocation,
	}
}
