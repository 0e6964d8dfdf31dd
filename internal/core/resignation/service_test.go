package resignation

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/actor"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/event"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/failure"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeResignationRepo struct {
	mu           sync.Mutex
	resignations map[string]*Resignation
}

func newFakeResignationRepo() *fakeResignationRepo {
	return &fakeResignationRepo{resignations: make(map[string]*Resignation)}
}

func (r *fakeResignationRepo) Create(_ context.Context, res *Resignation) (*Resignation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.resignations {
		if existing.EmployeeID == res.EmployeeID && !existing.Status.IsTerminal() {
			return nil, ErrOpenResignationExists
		}
	}
	clone := *res
	clone.Version = 1
	r.resignations[res.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeResignationRepo) Update(_ context.Context, res *Resignation) (*Resignation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.resignations[res.ID]
	if !ok {
		return nil, ErrResignationNotFound
	}
	if existing.Version != res.Version {
		return nil, ErrConcurrentModification
	}
	clone := *res
	clone.Version++
	r.resignations[res.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeResignationRepo) FindByID(_ context.Context, id string) (*Resignation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resignations[id]
	if !ok {
		return nil, ErrResignationNotFound
	}
	out := *res
	return &out, nil
}

func (r *fakeResignationRepo) FindOpenByEmployee(_ context.Context, employeeID string) (*Resignation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range r.resignations {
		if res.EmployeeID == employeeID && !res.Status.IsTerminal() {
			out := *res
			return &out, nil
		}
	}
	return nil, ErrResignationNotFound
}

func (r *fakeResignationRepo) List(_ context.Context, filter ListResignationsFilter) ([]*Resignation, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var filtered []*Resignation
	for _, res := range r.resignations {
		if filter.EmployeeID != nil && res.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && res.Status != *filter.Status {
			continue
		}
		out := *res
		filtered = append(filtered, &out)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Number < filtered[j].Number })

	if filter.Offset > len(filtered) {
		return []*Resignation{}, "", nil
	}
	end := filter.Offset + filter.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	next := ""
	if end < len(filtered) {
		next = strconv.Itoa(end)
	}
	return filtered[filter.Offset:end], next, nil
}

type fakeEmployees struct {
	mu        sync.Mutex
	employees map[string]*employee.Employee
	separated map[string]time.Time
}

func (f *fakeEmployees) Ensure(_ context.Context, id string) (*employee.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	emp, ok := f.employees[id]
	if !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	if !emp.IsActive() {
		return nil, employee.ErrEmployeeInactive
	}
	out := *emp
	return &out, nil
}

func (f *fakeEmployees) MarkSeparated(_ context.Context, id string, lastWorkingDay time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	emp, ok := f.employees[id]
	if !ok {
		return employee.ErrEmployeeNotFound
	}
	emp.Status = employee.StatusInactive
	f.separated[id] = lastWorkingDay
	return nil
}

type fakeTerminator struct {
	terminated []string
	err        error
}

func (f *fakeTerminator) TerminateCurrent(_ context.Context, employeeID, reason string) (*contract.Contract, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.terminated = append(f.terminated, employeeID)
	return &contract.Contract{EmployeeID: employeeID, Status: contract.StatusTerminated, TerminationReason: &reason}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(_ context.Context, events ...event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) count(typ event.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

var (
	resigning  = actor.Actor{ID: "u-1", EmployeeID: "emp-1", Roles: []actor.Role{actor.RoleEmployee}}
	supervisor = actor.Actor{ID: "u-boss", EmployeeID: "emp-boss", Roles: []actor.Role{actor.RoleEmployee, actor.RoleSupervisor}}
	otherBoss  = actor.Actor{ID: "u-other", EmployeeID: "emp-other", Roles: []actor.Role{actor.RoleSupervisor}}
	hr         = actor.Actor{ID: "u-hr", EmployeeID: "emp-hr", Roles: []actor.Role{actor.RoleHR}}
	ceo        = actor.Actor{ID: "u-ceo", EmployeeID: "emp-ceo", Roles: []actor.Role{actor.RoleCEO}}
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc       *Service
	repo      *fakeResignationRepo
	employees *fakeEmployees
	contracts *fakeTerminator
	clock     *stubClock
	events    *recorder
}

func newFixture(opts ...Option) *fixture {
	boss := "emp-boss"
	employees := &fakeEmployees{
		employees: map[string]*employee.Employee{
			"emp-1":    {ID: "emp-1", SupervisorID: &boss, Status: employee.StatusActive},
			"emp-boss": {ID: "emp-boss", Status: employee.StatusActive},
		},
		separated: make(map[string]time.Time),
	}
	repo := newFakeResignationRepo()
	contracts := &fakeTerminator{}
	clk := &stubClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	opts = append([]Option{WithEventPublisher(rec)}, opts...)
	return &fixture{
		svc:       NewService(repo, employees, contracts, clk, nil, opts...),
		repo:      repo,
		employees: employees,
		contracts: contracts,
		clock:     clk,
		events:    rec,
	}
}

func (f *fixture) submit(t *testing.T) *Resignation {
	t.Helper()

	res, err := f.svc.SubmitResignation(context.Background(), SubmitResignationInput{
		Actor:                  resigning,
		IntendedLastWorkingDay: date(2025, 2, 1),
		NoticePeriodDays:       30,
		Reason:                 "relocation",
	})
	if err != nil {
		t.Fatalf("SubmitResignation returned error: %v", err)
	}
	return res
}

func (f *fixture) approve(t *testing.T, id string, who actor.Actor, stage Stage) *Resignation {
	t.Helper()

	res, err := f.svc.ApproveResignation(context.Background(), ApproveResignationInput{
		Actor:         who,
		ResignationID: id,
		Stage:         string(stage),
		Comments:      "ok",
	})
	if err != nil {
		t.Fatalf("approve %s returned error: %v", stage, err)
	}
	return res
}

func TestService_SubmitResignation_Success(t *testing.T) {
	t.Parallel()

	f := newFixture()
	res := f.submit(t)

	if res.Status != StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", res.Status)
	}
	if !res.ResignationDate.Equal(date(2025, 1, 1)) {
		t.Fatalf("expected resignation date from clock, got %s", res.ResignationDate)
	}
	if len(res.Number) != len("RSG-20250101-")+8 || res.Number[:13] != "RSG-20250101-" {
		t.Fatalf("unexpected number %q", res.Number)
	}
	if !res.EarliestLastWorkingDay().Equal(date(2025, 1, 31)) {
		t.Fatalf("unexpected earliest last working day %s", res.EarliestLastWorkingDay())
	}
	if res.ShortNotice() {
		t.Fatalf("expected notice to be satisfied")
	}
	if f.events.count(event.ResignationSubmitted) != 1 {
		t.Fatalf("expected resignation.submitted event")
	}
}

func TestService_SubmitResignation_ShortNoticeIsAdvisory(t *testing.T) {
	t.Parallel()

	f := newFixture()
	res, err := f.svc.SubmitResignation(context.Background(), SubmitResignationInput{
		Actor:                  resigning,
		IntendedLastWorkingDay: date(2025, 1, 10),
		NoticePeriodDays:       30,
	})
	if err != nil {
		t.Fatalf("expected short notice to be accepted, got %v", err)
	}
	if !res.ShortNotice() {
		t.Fatalf("expected short notice flag")
	}
}

func TestService_SubmitResignation_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   SubmitResignationInput
		want error
		kind error
	}{
		{
			name: "intended before resignation date",
			in:   SubmitResignationInput{Actor: resigning, IntendedLastWorkingDay: date(2024, 12, 31)},
			want: ErrInvalidDateRange,
			kind: failure.ErrValidation,
		},
		{
			name: "negative notice",
			in:   SubmitResignationInput{Actor: resigning, IntendedLastWorkingDay: date(2025, 2, 1), NoticePeriodDays: -1},
			want: ErrInvalidNoticePeriod,
			kind: failure.ErrValidation,
		},
		{
			name: "someone else",
			in:   SubmitResignationInput{Actor: hr, EmployeeID: "emp-1", IntendedLastWorkingDay: date(2025, 2, 1)},
			want: ErrNotResigningEmployee,
			kind: failure.ErrForbidden,
		},
		{
			name: "unknown employee",
			in: SubmitResignationInput{
				Actor:                  actor.Actor{ID: "u-x", EmployeeID: "emp-x"},
				IntendedLastWorkingDay: date(2025, 2, 1),
			},
			want: employee.ErrEmployeeNotFound,
			kind: failure.ErrNotFound,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			_, err := f.svc.SubmitResignation(context.Background(), tc.in)
			if !errors.Is(err, tc.want) || !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v (%v), got %v", tc.want, tc.kind, err)
			}
		})
	}
}

func TestService_SubmitResignation_SingleOpen(t *testing.T) {
	t.Parallel()

	f := newFixture()
	first := f.submit(t)

	_, err := f.svc.SubmitResignation(context.Background(), SubmitResignationInput{
		Actor:                  resigning,
		IntendedLastWorkingDay: date(2025, 3, 1),
	})
	if !errors.Is(err, ErrOpenResignationExists) || !errors.Is(err, failure.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := f.svc.WithdrawResignation(context.Background(), WithdrawResignationInput{Actor: resigning, ResignationID: first.ID}); err != nil {
		t.Fatalf("WithdrawResignation returned error: %v", err)
	}
	if _, err := f.svc.SubmitResignation(context.Background(), SubmitResignationInput{
		Actor:                  resigning,
		IntendedLastWorkingDay: date(2025, 3, 1),
	}); err != nil {
		t.Fatalf("expected resubmission after withdrawal, got %v", err)
	}
}

func TestService_Resignation_FullApprovalScenario(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	res := f.submit(t)

	_, err := f.svc.ApproveResignation(ctx, ApproveResignationInput{Actor: ceo, ResignationID: res.ID, Stage: "ceo"})
	if !errors.Is(err, ErrOutOfOrder) || !errors.Is(err, failure.ErrState) {
		t.Fatalf("expected state error for early CEO approval, got %v", err)
	}

	_, err = f.svc.ApproveResignation(ctx, ApproveResignationInput{Actor: hr, ResignationID: res.ID, Stage: "hr"})
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected state error for early HR approval, got %v", err)
	}

	f.clock.now = f.clock.now.Add(time.Hour)
	afterSupervisor := f.approve(t, res.ID, supervisor, StageSupervisor)
	if afterSupervisor.Status != StatusAcceptedBySupervisor || !afterSupervisor.Supervisor.Done() {
		t.Fatalf("unexpected state after supervisor: %+v", afterSupervisor)
	}
	if afterSupervisor.Supervisor.Comments != "ok" || afterSupervisor.Supervisor.ApprovedBy != "u-boss" {
		t.Fatalf("unexpected supervisor record: %+v", afterSupervisor.Supervisor)
	}

	f.approve(t, res.ID, hr, StageHR)
	afterCEO := f.approve(t, res.ID, ceo, StageCEO)
	if afterCEO.Status != StatusAcceptedByCEO {
		t.Fatalf("expected ACCEPTED_BY_CEO, got %s", afterCEO.Status)
	}

	completed, err := f.svc.FinalizeResignation(ctx, FinalizeResignationInput{
		Actor:                  hr,
		ResignationID:          res.ID,
		ApprovedLastWorkingDay: date(2025, 2, 1),
	})
	if err != nil {
		t.Fatalf("FinalizeResignation returned error: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", completed.Status)
	}
	if completed.ApprovedLastWorkingDay == nil || !completed.ApprovedLastWorkingDay.Equal(date(2025, 2, 1)) {
		t.Fatalf("unexpected approved last working day")
	}
	if len(f.contracts.terminated) != 1 || f.contracts.terminated[0] != "emp-1" {
		t.Fatalf("expected current contract to be terminated, got %v", f.contracts.terminated)
	}
	if day, ok := f.employees.separated["emp-1"]; !ok || !day.Equal(date(2025, 2, 1)) {
		t.Fatalf("expected employee to be separated on the approved day")
	}
	if f.events.count(event.ResignationApproved) != 3 || f.events.count(event.ResignationCompleted) != 1 {
		t.Fatalf("unexpected events: %+v", f.events.events)
	}

	_, err = f.svc.WithdrawResignation(ctx, WithdrawResignationInput{Actor: resigning, ResignationID: res.ID})
	if !errors.Is(err, ErrNotWithdrawable) {
		t.Fatalf("expected completed resignation not to be withdrawable, got %v", err)
	}
}

func TestService_ApproveResignation_Authorization(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		who   actor.Actor
		stage string
		want  error
	}{
		{"unknown stage", supervisor, "board", ErrInvalidStage},
		{"self approval", actor.Actor{ID: "u-1", EmployeeID: "emp-1", Roles: []actor.Role{actor.RoleSupervisor, actor.RoleHR}}, "supervisor", ErrSelfApproval},
		{"supervisor of someone else", otherBoss, "supervisor", ErrStageRoleRequired},
		{"hr standing in for supervisor", hr, "supervisor", ErrStageRoleRequired},
		{"ceo standing in for supervisor", ceo, "supervisor", ErrStageRoleRequired},
		{"supervisor approving hr stage", supervisor, "hr", ErrStageRoleRequired},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			res := f.submit(t)
			_, err := f.svc.ApproveResignation(context.Background(), ApproveResignationInput{
				Actor:         tc.who,
				ResignationID: res.ID,
				Stage:         tc.stage,
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestService_ApproveResignation_ConcurrentSupervisorApprovals(t *testing.T) {
	t.Parallel()

	f := newFixture()
	res := f.submit(t)

	const attempts = 2
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.ApproveResignation(context.Background(), ApproveResignationInput{
				Actor:         supervisor,
				ResignationID: res.ID,
				Stage:         "supervisor",
			})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, failure.ErrState):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one approval to succeed, got %d", succeeded)
	}

	stored, err := f.repo.FindByID(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if stored.Status != StatusAcceptedBySupervisor || stored.Version != 2 {
		t.Fatalf("expected a single advance, got %s v%d", stored.Status, stored.Version)
	}
	if f.events.count(event.ResignationApproved) != 1 {
		t.Fatalf("expected a single approval event")
	}
}

func TestService_FinalizeResignation_Guards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	approvedByCEO := func(t *testing.T, f *fixture) *Resignation {
		t.Helper()
		res := f.submit(t)
		f.approve(t, res.ID, supervisor, StageSupervisor)
		f.approve(t, res.ID, hr, StageHR)
		return f.approve(t, res.ID, ceo, StageCEO)
	}

	t.Run("not yet approved by ceo", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		res := f.submit(t)
		f.approve(t, res.ID, supervisor, StageSupervisor)
		_, err := f.svc.FinalizeResignation(ctx, FinalizeResignationInput{Actor: hr, ResignationID: res.ID, ApprovedLastWorkingDay: date(2025, 2, 1)})
		if !errors.Is(err, ErrNotAwaitingFinalization) || !errors.Is(err, failure.ErrState) {
			t.Fatalf("expected state error, got %v", err)
		}
	})

	t.Run("employee cannot finalize", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		res := approvedByCEO(t, f)
		_, err := f.svc.FinalizeResignation(ctx, FinalizeResignationInput{Actor: resigning, ResignationID: res.ID, ApprovedLastWorkingDay: date(2025, 2, 1)})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("approved day before resignation date", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		res := approvedByCEO(t, f)
		_, err := f.svc.FinalizeResignation(ctx, FinalizeResignationInput{Actor: ceo, ResignationID: res.ID, ApprovedLastWorkingDay: date(2024, 12, 1)})
		if !errors.Is(err, ErrInvalidApprovedDate) || !errors.Is(err, failure.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("exit interview required", func(t *testing.T) {
		t.Parallel()

		f := newFixture(WithExitInterviewRequired(true))
		res := approvedByCEO(t, f)
		_, err := f.svc.FinalizeResignation(ctx, FinalizeResignationInput{Actor: hr, ResignationID: res.ID, ApprovedLastWorkingDay: date(2025, 2, 1)})
		if !errors.Is(err, ErrExitInterviewRequired) || !errors.Is(err, failure.ErrPrecondition) {
			t.Fatalf("expected precondition error, got %v", err)
		}

		completed, err := f.svc.FinalizeResignation(ctx, FinalizeResignationInput{
			Actor:                  hr,
			ResignationID:          res.ID,
			ApprovedLastWorkingDay: date(2025, 2, 1),
			ExitInterviewCompleted: true,
		})
		if err != nil {
			t.Fatalf("expected finalize with interview to succeed, got %v", err)
		}
		if !completed.ExitInterviewCompleted {
			t.Fatalf("expected exit interview flag to be recorded")
		}
	})

	t.Run("contract termination failure aborts", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		res := approvedByCEO(t, f)
		f.contracts.err = contract.ErrConcurrentModification
		_, err := f.svc.FinalizeResignation(ctx, FinalizeResignationInput{Actor: hr, ResignationID: res.ID, ApprovedLastWorkingDay: date(2025, 2, 1)})
		if !errors.Is(err, contract.ErrConcurrentModification) {
			t.Fatalf("expected contract error to propagate, got %v", err)
		}
		if _, ok := f.employees.separated["emp-1"]; ok {
			t.Fatalf("expected employee not to be separated")
		}
	})
}

func TestService_WithdrawResignation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("by hr after supervisor approval", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		res := f.submit(t)
		f.approve(t, res.ID, supervisor, StageSupervisor)

		withdrawn, err := f.svc.WithdrawResignation(ctx, WithdrawResignationInput{Actor: hr, ResignationID: res.ID})
		if err != nil {
			t.Fatalf("WithdrawResignation returned error: %v", err)
		}
		if withdrawn.Status != StatusWithdrawn || withdrawn.WithdrawnBy == nil || *withdrawn.WithdrawnBy != "u-hr" {
			t.Fatalf("unexpected withdrawn resignation: %+v", withdrawn)
		}
	})

	t.Run("by unrelated supervisor", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		res := f.submit(t)
		_, err := f.svc.WithdrawResignation(ctx, WithdrawResignationInput{Actor: supervisor, ResignationID: res.ID})
		if !errors.Is(err, ErrNotResigningEmployee) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("after ceo approval", func(t *testing.T) {
		t.Parallel()

		f := newFixture()
		res := f.submit(t)
		f.approve(t, res.ID, supervisor, StageSupervisor)
		f.approve(t, res.ID, hr, StageHR)
		f.approve(t, res.ID, ceo, StageCEO)
		_, err := f.svc.WithdrawResignation(ctx, WithdrawResignationInput{Actor: resigning, ResignationID: res.ID})
		if !errors.Is(err, ErrNotWithdrawable) {
			t.Fatalf("expected state error, got %v", err)
		}
	})
}

func TestService_ListResignations(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	res := f.submit(t)

	status := StatusSubmitted
	employeeID := "emp-1"
	got, err := f.svc.ListResignations(ctx, ListResignationsInput{EmployeeID: &employeeID, Status: &status})
	if err != nil {
		t.Fatalf("ListResignations returned error: %v", err)
	}
	if len(got.Resignations) != 1 || got.Resignations[0].ID != res.ID || got.NextPageToken != "" {
		t.Fatalf("unexpected list result: %+v", got)
	}

	bad := Status("UNKNOWN")
	if _, err := f.svc.ListResignations(ctx, ListResignationsInput{Status: &bad}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := f.svc.ListResignations(ctx, ListResignationsInput{PageToken: "x"}); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected invalid page token, got %v", err)
	}
	if _, err := f.svc.GetResignation(ctx, GetResignationInput{ID: "missing"}); !errors.Is(err, ErrResignationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
