package handler

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/extension"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/resignation"
)

const dateLayout = time.DateOnly

// request は Struct リクエストのフィールドを型付きで読み出します。
type request struct {
	fields map[string]*structpb.Value
}

func newRequest(req *structpb.Struct) request {
	if req == nil {
		return request{}
	}
	return request{fields: req.GetFields()}
}

func invalidField(key string, err error) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf("%s: %v", key, err))
}

func (r request) present(key string) bool {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func (r request) str(key string) string {
	if !r.present(key) {
		return ""
	}
	v := r.fields[key]
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	default:
		return ""
	}
}

func (r request) optStr(key string) *string {
	if !r.present(key) {
		return nil
	}
	s := r.str(key)
	return &s
}

func (r request) boolean(key string) (bool, error) {
	if !r.present(key) {
		return false, nil
	}
	b, ok := r.fields[key].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, invalidField(key, fmt.Errorf("must be a boolean"))
	}
	return b.BoolValue, nil
}

func (r request) integer(key string) (int, error) {
	if !r.present(key) {
		return 0, nil
	}
	switch kind := r.fields[key].GetKind().(type) {
	case *structpb.Value_NumberValue:
		if kind.NumberValue != math.Trunc(kind.NumberValue) {
			return 0, invalidField(key, fmt.Errorf("must be an integer"))
		}
		// int32 の範囲外と Inf は拒否する。
		if kind.NumberValue < math.MinInt32 || kind.NumberValue > math.MaxInt32 {
			return 0, invalidField(key, fmt.Errorf("out of range"))
		}
		return int(kind.NumberValue), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(strings.TrimSpace(kind.StringValue), 10, 32)
		if err != nil {
			return 0, invalidField(key, fmt.Errorf("must be a 32-bit integer"))
		}
		return int(n), nil
	default:
		return 0, invalidField(key, fmt.Errorf("must be an integer"))
	}
}

func (r request) optDate(key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.str(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, invalidField(key, fmt.Errorf("must be YYYY-MM-DD"))
	}
	return &t, nil
}

func (r request) date(key string) (time.Time, error) {
	t, err := r.optDate(key)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, invalidField(key, fmt.Errorf("is required"))
	}
	return *t, nil
}

// optDecimal は文字列または数値の金額を読み出します。精度を保つため文字列を推奨します。
func (r request) optDecimal(key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(r.str(key))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, invalidField(key, fmt.Errorf("must be a decimal amount"))
	}
	return &d, nil
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return s, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optionalDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func employeeToMap(e *employee.Employee) map[string]any {
	return map[string]any{
		"id":            e.ID,
		"employee_code": e.EmployeeCode,
		"name":          e.Name,
		"supervisor_id": optionalString(e.SupervisorID),
		"status":        string(e.Status),
		"hired_at":      optionalDate(e.HiredAt),
		"terminated_at": optionalDate(e.TerminatedAt),
		"created_at":    formatTime(e.CreatedAt),
		"updated_at":    formatTime(e.UpdatedAt),
	}
}

func contractToMap(c *contract.Contract) map[string]any {
	return map[string]any{
		"number":             c.Number,
		"employee_id":        c.EmployeeID,
		"position_title":     c.PositionTitle,
		"location":           c.Location,
		"contract_type":      string(c.Type),
		"start_date":         formatDate(c.StartDate),
		"end_date":           formatDate(c.EndDate),
		"monthly_salary":     c.MonthlySalary.StringFixed(2),
		"currency":           c.Currency,
		"notice_period_days": c.NoticePeriodDays,
		"signed_date":        optionalDate(c.SignedDate),
		"status":             string(c.Status),
		"terminated_at":      optionalTime(c.TerminatedAt),
		"termination_reason": optionalString(c.TerminationReason),
		"version":            c.Version,
		"created_at":         formatTime(c.CreatedAt),
		"updated_at":         formatTime(c.UpdatedAt),
	}
}

func extensionToMap(e *extension.Extension) map[string]any {
	var salary any
	if e.NewMonthlySalary != nil {
		salary = e.NewMonthlySalary.StringFixed(2)
	}
	return map[string]any{
		"id":                   e.ID,
		"number":               e.Number,
		"contract_number":      e.ContractNumber,
		"employee_id":          e.EmployeeID,
		"new_start_date":       formatDate(e.NewStartDate),
		"new_end_date":         formatDate(e.NewEndDate),
		"new_monthly_salary":   salary,
		"salary_change_reason": optionalString(e.SalaryChangeReason),
		"new_position_title":   optionalString(e.NewPositionTitle),
		"new_location":         optionalString(e.NewLocation),
		"terms_changes":        e.TermsChanges,
		"status":               string(e.Status),
		"proposed_by":          e.ProposedBy,
		"expires_at":           formatTime(e.ExpiresAt),
		"employee_accepted_at": optionalTime(e.EmployeeAcceptedAt),
		"rejected_at":          optionalTime(e.RejectedAt),
		"rejection_reason":     optionalString(e.RejectionReason),
		"version":              e.Version,
		"created_at":           formatTime(e.CreatedAt),
		"updated_at":           formatTime(e.UpdatedAt),
	}
}

func approvalToMap(a resignation.Approval) map[string]any {
	return map[string]any{
		"accepted_at": optionalTime(a.AcceptedAt),
		"approved_by": a.ApprovedBy,
		"comments":    a.Comments,
	}
}

func resignationToMap(r *resignation.Resignation) map[string]any {
	return map[string]any{
		"id":                        r.ID,
		"number":                    r.Number,
		"employee_id":               r.EmployeeID,
		"resignation_date":          formatDate(r.ResignationDate),
		"intended_last_working_day": formatDate(r.IntendedLastWorkingDay),
		"notice_period_days":        r.NoticePeriodDays,
		"short_notice":              r.ShortNotice(),
		"reason":                    r.Reason,
		"approved_last_working_day": optionalDate(r.ApprovedLastWorkingDay),
		"supervisor":                approvalToMap(r.Supervisor),
		"hr":                        approvalToMap(r.HR),
		"ceo":                       approvalToMap(r.CEO),
		"exit_interview_completed":  r.ExitInterviewCompleted,
		"status":                    string(r.Status),
		"completed_at":              optionalTime(r.CompletedAt),
		"withdrawn_at":              optionalTime(r.WithdrawnAt),
		"withdrawn_by":              optionalString(r.WithdrawnBy),
		"version":                   r.Version,
		"created_at":                formatTime(r.CreatedAt),
		"updated_at":                formatTime(r.UpdatedAt),
	}
}
