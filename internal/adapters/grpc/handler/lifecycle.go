package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/extension"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/resignation"
)

// LifecycleGrpcHandler は LifecycleService の gRPC 実装です。
type LifecycleGrpcHandler struct {
	employees    employee.UseCase
	contracts    contract.UseCase
	extensions   extension.UseCase
	resignations resignation.UseCase
}

var _ LifecycleServer = (*LifecycleGrpcHandler)(nil)

// NewLifecycleGrpcHandler は LifecycleGrpcHandler を生成します。
func NewLifecycleGrpcHandler(employees employee.UseCase, contracts contract.UseCase, extensions extension.UseCase, resignations resignation.UseCase) *LifecycleGrpcHandler {
	return &LifecycleGrpcHandler{
		employees:    employees,
		contracts:    contracts,
		extensions:   extensions,
		resignations: resignations,
	}
}

func single(key string, value map[string]any) (*structpb.Struct, error) {
	return toStruct(map[string]any{key: value})
}

// CreateEmployee は社員を登録します。
func (h *LifecycleGrpcHandler) CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(req)

	hiredAt, err := r.optDate("hired_at")
	if err != nil {
		return nil, err
	}

	created, err := h.employees.CreateEmployee(ctx, employee.CreateEmployeeInput{
		Actor:        who,
		EmployeeCode: r.str("employee_code"),
		Name:         r.str("name"),
		SupervisorID: r.optStr("supervisor_id"),
		HiredAt:      hiredAt,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("employee", employeeToMap(created))
}

// GetEmployee は社員を取得します。
func (h *LifecycleGrpcHandler) GetEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	found, err := h.employees.GetEmployee(ctx, employee.GetEmployeeInput{ID: newRequest(req).str("id")})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("employee", employeeToMap(found))
}

// ListEmployees は社員を一覧で返します。
func (h *LifecycleGrpcHandler) ListEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	pageSize, err := r.integer("page_size")
	if err != nil {
		return nil, err
	}

	in := employee.ListEmployeesInput{
		SupervisorID: r.optStr("supervisor_id"),
		PageSize:     pageSize,
		PageToken:    r.str("page_token"),
	}
	if raw := r.optStr("status"); raw != nil {
		st := employee.Status(*raw)
		in.Status = &st
	}

	result, err := h.employees.ListEmployees(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	items := make([]any, 0, len(result.Employees))
	for _, e := range result.Employees {
		items = append(items, employeeToMap(e))
	}
	return toStruct(map[string]any{"employees": items, "next_page_token": result.NextPageToken})
}

// CreateContract は雇用契約を作成します。
func (h *LifecycleGrpcHandler) CreateContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(req)

	startDate, err := r.date("start_date")
	if err != nil {
		return nil, err
	}
	endDate, err := r.date("end_date")
	if err != nil {
		return nil, err
	}
	salary, err := r.optDecimal("monthly_salary")
	if err != nil {
		return nil, err
	}
	if salary == nil {
		salary = &decimal.Zero
	}
	notice, err := r.integer("notice_period_days")
	if err != nil {
		return nil, err
	}
	signedDate, err := r.optDate("signed_date")
	if err != nil {
		return nil, err
	}

	created, err := h.contracts.CreateContract(ctx, contract.CreateContractInput{
		Actor:            who,
		Number:           r.str("number"),
		EmployeeID:       r.str("employee_id"),
		PositionTitle:    r.str("position_title"),
		Location:         r.str("location"),
		Type:             contract.ContractType(r.str("contract_type")),
		StartDate:        startDate,
		EndDate:          endDate,
		MonthlySalary:    *salary,
		Currency:         r.str("currency"),
		NoticePeriodDays: notice,
		SignedDate:       signedDate,
		Status:           contract.Status(r.str("status")),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("contract", contractToMap(created))
}

// ActivateContract は DRAFT の契約を ACTIVE にします。
func (h *LifecycleGrpcHandler) ActivateContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	activated, err := h.contracts.ActivateContract(ctx, contract.ActivateContractInput{Actor: who, Number: newRequest(req).str("number")})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("contract", contractToMap(activated))
}

// GetContract は契約を取得します。期限切れ判定は取得時に適用されます。
func (h *LifecycleGrpcHandler) GetContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	found, err := h.contracts.GetContract(ctx, contract.GetContractInput{Number: newRequest(req).str("number")})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("contract", contractToMap(found))
}

// GetCurrentContract は社員の現在契約を取得します。
func (h *LifecycleGrpcHandler) GetCurrentContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	found, err := h.contracts.GetCurrentContract(ctx, contract.GetCurrentContractInput{EmployeeID: newRequest(req).str("employee_id")})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("contract", contractToMap(found))
}

// ListContracts は契約の一覧を取得します。
func (h *LifecycleGrpcHandler) ListContracts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	pageSize, err := r.integer("page_size")
	if err != nil {
		return nil, err
	}

	in := contract.ListContractsInput{
		EmployeeID: r.optStr("employee_id"),
		PageSize:   pageSize,
		PageToken:  r.str("page_token"),
	}
	if raw := r.optStr("status"); raw != nil {
		st := contract.Status(*raw)
		in.Status = &st
	}

	result, err := h.contracts.ListContracts(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	items := make([]any, 0, len(result.Contracts))
	for _, c := range result.Contracts {
		items = append(items, contractToMap(c))
	}
	return toStruct(map[string]any{"contracts": items, "next_page_token": result.NextPageToken})
}

// TerminateContract は契約を解除します。
func (h *LifecycleGrpcHandler) TerminateContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(req)
	terminated, err := h.contracts.TerminateContract(ctx, contract.TerminateContractInput{
		Actor:  who,
		Number: r.str("number"),
		Reason: r.str("reason"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("contract", contractToMap(terminated))
}

// ProposeExtension は契約延長を提案します。
func (h *LifecycleGrpcHandler) ProposeExtension(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(req)

	startDate, err := r.optDate("new_start_date")
	if err != nil {
		return nil, err
	}
	endDate, err := r.date("new_end_date")
	if err != nil {
		return nil, err
	}
	salary, err := r.optDecimal("new_monthly_salary")
	if err != nil {
		return nil, err
	}

	proposed, err := h.extensions.ProposeExtension(ctx, extension.ProposeExtensionInput{
		Actor:              who,
		ContractNumber:     r.str("contract_number"),
		NewStartDate:       startDate,
		NewEndDate:         endDate,
		NewMonthlySalary:   salary,
		SalaryChangeReason: r.str("salary_change_reason"),
		NewPositionTitle:   r.optStr("new_position_title"),
		NewLocation:        r.optStr("new_location"),
		TermsChanges:       r.str("terms_changes"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("extension", extensionToMap(proposed))
}

// AcceptExtension は延長を承諾します。
func (h *LifecycleGrpcHandler) AcceptExtension(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	accepted, err := h.extensions.AcceptExtension(ctx, extension.AcceptExtensionInput{Actor: who, ExtensionID: newRequest(req).str("extension_id")})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("extension", extensionToMap(accepted))
}

// RejectExtension は延長を辞退します。
func (h *LifecycleGrpcHandler) RejectExtension(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(req)
	rejected, err := h.extensions.RejectExtension(ctx, extension.RejectExtensionInput{
		Actor:       who,
		ExtensionID: r.str("extension_id"),
		Reason:      r.str("reason"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("extension", extensionToMap(rejected))
}

// GetExtension は延長を取得します。
func (h *LifecycleGrpcHandler) GetExtension(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	found, err := h.extensions.GetExtension(ctx, extension.GetExtensionInput{ID: newRequest(req).str("id")})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("extension", extensionToMap(found))
}

// ListExtensions は契約の延長履歴を取得します。
func (h *LifecycleGrpcHandler) ListExtensions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	found, err := h.extensions.ListExtensions(ctx, extension.ListExtensionsInput{ContractNumber: newRequest(req).str("contract_number")})
	if err != nil {
		return nil, toStatusError(err)
	}

	items := make([]any, 0, len(found))
	for _, e := range found {
		items = append(items, extensionToMap(e))
	}
	return toStruct(map[string]any{"extensions": items})
}

// SubmitResignation は退職届を提出します。
func (h *LifecycleGrpcHandler) SubmitResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(req)

	resignationDate, err := r.optDate("resignation_date")
	if err != nil {
		return nil, err
	}
	lastDay, err := r.date("intended_last_working_day")
	if err != nil {
		return nil, err
	}
	notice, err := r.integer("notice_period_days")
	if err != nil {
		return nil, err
	}

	submitted, err := h.resignations.SubmitResignation(ctx, resignation.SubmitResignationInput{
		Actor:                  who,
		EmployeeID:             r.str("employee_id"),
		ResignationDate:        resignationDate,
		IntendedLastWorkingDay: lastDay,
		NoticePeriodDays:       notice,
		Reason:                 r.str("reason"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("resignation", resignationToMap(submitted))
}

// ApproveResignation は指定段階の承認を記録します。
func (h *LifecycleGrpcHandler) ApproveResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(req)
	approved, err := h.resignations.ApproveResignation(ctx, resignation.ApproveResignationInput{
		Actor:         who,
		ResignationID: r.str("resignation_id"),
		Stage:         r.str("stage"),
		Comments:      r.str("comments"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("resignation", resignationToMap(approved))
}

// FinalizeResignation は最終出社日を確定し退職を完了します。
func (h *LifecycleGrpcHandler) FinalizeResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r := newRequest(req)

	lastDay, err := r.date("approved_last_working_day")
	if err != nil {
		return nil, err
	}
	exitDone, err := r.boolean("exit_interview_completed")
	if err != nil {
		return nil, err
	}

	completed, err := h.resignations.FinalizeResignation(ctx, resignation.FinalizeResignationInput{
		Actor:                  who,
		ResignationID:          r.str("resignation_id"),
		ApprovedLastWorkingDay: lastDay,
		ExitInterviewCompleted: exitDone,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("resignation", resignationToMap(completed))
}

// WithdrawResignation は退職届を取り下げます。
func (h *LifecycleGrpcHandler) WithdrawResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	withdrawn, err := h.resignations.WithdrawResignation(ctx, resignation.WithdrawResignationInput{Actor: who, ResignationID: newRequest(req).str("resignation_id")})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("resignation", resignationToMap(withdrawn))
}

// GetResignation は退職届を取得します。
func (h *LifecycleGrpcHandler) GetResignation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	found, err := h.resignations.GetResignation(ctx, resignation.GetResignationInput{ID: newRequest(req).str("id")})
	if err != nil {
		return nil, toStatusError(err)
	}
	return single("resignation", resignationToMap(found))
}

// ListResignations は退職届の一覧を取得します。
func (h *LifecycleGrpcHandler) ListResignations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := newRequest(req)
	pageSize, err := r.integer("page_size")
	if err != nil {
		return nil, err
	}

	in := resignation.ListResignationsInput{
		EmployeeID: r.optStr("employee_id"),
		PageSize:   pageSize,
		PageToken:  r.str("page_token"),
	}
	if raw := r.optStr("status"); raw != nil {
		st := resignation.Status(*raw)
		in.Status = &st
	}

	result, err := h.resignations.ListResignations(ctx, in)
	if err != nil {
		return nil, toStatusError(err)
	}

	items := make([]any, 0, len(result.Resignations))
	for _, res := range result.Resignations {
		items = append(items, resignationToMap(res))
	}
	return toStruct(map[string]any{"resignations": items, "next_page_token": result.NextPageToken})
}
