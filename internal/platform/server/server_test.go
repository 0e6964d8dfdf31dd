package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/adapters/grpc/handler"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/adapters/repository/memory"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/app"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/actor"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	client *handler.LifecycleClient
	health healthpb.HealthClient
	clock  *stubClock
}

func startServer(t *testing.T) *harness {
	t.Helper()

	store := memory.NewStore()
	clk := &stubClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	services := app.NewServices(app.Deps{
		Repos: app.Repositories{
			Employees:    memory.NewEmployeeRepository(store),
			Contracts:    memory.NewContractRepository(store),
			Extensions:   memory.NewExtensionRepository(store),
			Resignations: memory.NewResignationRepository(store),
		},
		Tx:     store,
		Events: store,
		Clock:  clk,
	})

	lis := bufconn.Listen(1 << 20)
	srv := New("bufnet", handler.NewLifecycleGrpcHandler(services.Employees, services.Contracts, services.Extensions, services.Resignations), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})

	return &harness{
		client: handler.NewLifecycleClient(conn),
		health: healthpb.NewHealthClient(conn),
		clock:  clk,
	}
}

func (h *harness) call(t *testing.T, who actor.Actor, method string, fields map[string]any) (map[string]*structpb.Value, error) {
	t.Helper()

	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(handler.ActorMetadata(context.Background(), who), 5*time.Second)
	defer cancel()

	resp, err := h.client.Call(ctx, method, req)
	if err != nil {
		return nil, err
	}
	return resp.GetFields(), nil
}

func field(resp map[string]*structpb.Value, object, key string) string {
	return resp[object].GetStructValue().GetFields()[key].GetStringValue()
}

var (
	hrActor = actor.Actor{ID: "u-hr", EmployeeID: "emp-hr", Roles: []actor.Role{actor.RoleHR}}
)

func (h *harness) hireWithContract(t *testing.T, code, number string) (actor.Actor, string) {
	t.Helper()

	emp, err := h.call(t, hrActor, "CreateEmployee", map[string]any{"employee_code": code, "name": code, "hired_at": "2024-07-01"})
	require.NoError(t, err)
	employeeID := field(emp, "employee", "id")

	_, err = h.call(t, hrActor, "CreateContract", map[string]any{
		"number":         number,
		"employee_id":    employeeID,
		"position_title": "Engineer",
		"contract_type":  "FIXED_TERM",
		"start_date":     "2024-07-01",
		"end_date":       "2025-06-30",
		"monthly_salary": "2000.00",
		"currency":       "USD",
		"status":         "ACTIVE",
	})
	require.NoError(t, err)

	return actor.Actor{ID: "u-" + code, EmployeeID: employeeID, Roles: []actor.Role{actor.RoleEmployee}}, employeeID
}

func TestServer_ExtensionRoundTrip(t *testing.T) {
	t.Parallel()

	h := startServer(t)
	worker, _ := h.hireWithContract(t, "E001", "C-001")

	proposed, err := h.call(t, hrActor, "ProposeExtension", map[string]any{
		"contract_number":      "C-001",
		"new_end_date":         "2026-06-30",
		"new_monthly_salary":   "2200",
		"salary_change_reason": "COLA",
	})
	require.NoError(t, err)
	extensionID := field(proposed, "extension", "id")
	assert.Equal(t, "C-001-EXT-01", field(proposed, "extension", "number"))

	_, err = h.call(t, hrActor, "AcceptExtension", map[string]any{"extension_id": extensionID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	accepted, err := h.call(t, worker, "AcceptExtension", map[string]any{"extension_id": extensionID})
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", field(accepted, "extension", "status"))

	c, err := h.call(t, worker, "GetContract", map[string]any{"number": "C-001"})
	require.NoError(t, err)
	assert.Equal(t, "EXTENDED", field(c, "contract", "status"))
	assert.Equal(t, "2026-06-30", field(c, "contract", "end_date"))
	assert.Equal(t, "2200.00", field(c, "contract", "monthly_salary"))

	_, err = h.call(t, worker, "AcceptExtension", map[string]any{"extension_id": extensionID})
	assert.Equal(t, codes.Aborted, status.Code(err))

	_, err = h.call(t, hrActor, "ProposeExtension", map[string]any{"contract_number": "C-001", "new_end_date": "2027-06-30"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	list, err := h.call(t, worker, "ListExtensions", map[string]any{"contract_number": "C-001"})
	require.NoError(t, err)
	assert.Len(t, list["extensions"].GetListValue().GetValues(), 1)
}

func TestServer_ExpiredAcceptance(t *testing.T) {
	t.Parallel()

	h := startServer(t)
	worker, _ := h.hireWithContract(t, "E002", "C-002")

	proposed, err := h.call(t, hrActor, "ProposeExtension", map[string]any{"contract_number": "C-002", "new_end_date": "2026-06-30"})
	require.NoError(t, err)
	extensionID := field(proposed, "extension", "id")

	h.clock.Advance(8 * 24 * time.Hour)

	_, err = h.call(t, worker, "AcceptExtension", map[string]any{"extension_id": extensionID})
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))

	ext, err := h.call(t, worker, "GetExtension", map[string]any{"id": extensionID})
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", field(ext, "extension", "status"))

	c, err := h.call(t, worker, "GetContract", map[string]any{"number": "C-002"})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-30", field(c, "contract", "end_date"))
}

func TestServer_ResignationRoundTrip(t *testing.T) {
	t.Parallel()

	h := startServer(t)
	_, err := h.call(t, hrActor, "CreateEmployee", map[string]any{"employee_code": "BOSS", "name": "Boss"})
	require.NoError(t, err)

	worker, employeeID := h.hireWithContract(t, "E003", "C-003")

	submitted, err := h.call(t, worker, "SubmitResignation", map[string]any{
		"resignation_date":          "2025-05-01",
		"intended_last_working_day": "2025-05-15",
		"notice_period_days":        30,
		"reason":                    "relocation",
	})
	require.NoError(t, err)
	resignationID := field(submitted, "resignation", "id")
	assert.True(t, submitted["resignation"].GetStructValue().GetFields()["short_notice"].GetBoolValue())

	_, err = h.call(t, hrActor, "ApproveResignation", map[string]any{"resignation_id": resignationID, "stage": "hr"})
	assert.Equal(t, codes.Aborted, status.Code(err))

	_, err = h.call(t, worker, "ApproveResignation", map[string]any{"resignation_id": resignationID, "stage": "supervisor"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	withdrawn, err := h.call(t, worker, "WithdrawResignation", map[string]any{"resignation_id": resignationID})
	require.NoError(t, err)
	assert.Equal(t, "WITHDRAWN", field(withdrawn, "resignation", "status"))

	list, err := h.call(t, hrActor, "ListResignations", map[string]any{"employee_id": employeeID, "page_size": 10})
	require.NoError(t, err)
	assert.Len(t, list["resignations"].GetListValue().GetValues(), 1)
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	h := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: handler.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServer_UnknownRole(t *testing.T) {
	t.Parallel()

	h := startServer(t)
	_, err := h.call(t, actor.Actor{ID: "x", Roles: []actor.Role{"JANITOR"}}, "TerminateContract", map[string]any{"number": "C-404"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
