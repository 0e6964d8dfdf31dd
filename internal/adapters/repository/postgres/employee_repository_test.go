package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/failure"
)

type stubRow struct {
	scanFn func(dest ...any) error
}

func (s stubRow) Scan(dest ...any) error {
	return s.scanFn(dest...)
}

var employeeColumnNames = []string{"id", "employee_code", "name", "supervisor_id", "status", "hired_at", "terminated_at", "created_at", "updated_at"}

func TestScanEmployee_Success(t *testing.T) {
	t.Parallel()

	hired := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	createdAt := time.Now().UTC()

	row := stubRow{scanFn: func(dest ...any) error {
		if len(dest) != 9 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "emp-1"
		*(dest[1].(*string)) = "E001"
		*(dest[2].(*string)) = "Yamada Taro"

		supervisor := dest[3].(*sql.NullString)
		supervisor.String = "emp-boss"
		supervisor.Valid = true

		*(dest[4].(*string)) = string(employee.StatusActive)

		hiredDest := dest[5].(*sql.NullTime)
		hiredDest.Time = hired
		hiredDest.Valid = true

		*(dest[7].(*time.Time)) = createdAt
		*(dest[8].(*time.Time)) = createdAt
		return nil
	}}

	emp, err := scanEmployee(row)
	if err != nil {
		t.Fatalf("scanEmployee returned error: %v", err)
	}

	if !emp.IsSupervisedBy("emp-boss") {
		t.Fatalf("expected supervisor emp-boss, got %+v", emp.SupervisorID)
	}
	if emp.HiredAt == nil || !emp.HiredAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected hired date truncated to day, got %+v", emp.HiredAt)
	}
	if emp.TerminatedAt != nil {
		t.Fatalf("expected no termination date, got %+v", emp.TerminatedAt)
	}
}

func TestScanEmployee_NoRows(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...any) error {
		return pgx.ErrNoRows
	}}

	_, err := scanEmployee(row)
	if !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestTranslateEmployeePgError(t *testing.T) {
	t.Parallel()

	if !errors.Is(translateEmployeePgError(&pgconn.PgError{Code: uniqueViolationCode}), employee.ErrEmployeeCodeAlreadyExists) {
		t.Fatalf("expected unique violation to map to ErrEmployeeCodeAlreadyExists")
	}
	if !errors.Is(translateEmployeePgError(&pgconn.PgError{Code: foreignKeyViolationCode}), employee.ErrSupervisorNotFound) {
		t.Fatalf("expected fk violation to map to ErrSupervisorNotFound")
	}
	if !errors.Is(translateEmployeePgError(&pgconn.PgError{Code: checkViolationCode}), employee.ErrInvalidDateRange) {
		t.Fatalf("expected check violation to map to ErrInvalidDateRange")
	}
	if !errors.Is(translateEmployeePgError(&pgconn.PgError{Code: invalidTextRepresentationCode}), employee.ErrEmployeeNotFound) {
		t.Fatalf("expected malformed uuid to map to ErrEmployeeNotFound")
	}

	other := errors.New("other")
	if translateEmployeePgError(other) != other {
		t.Fatalf("unexpected translation for generic error")
	}
}

func TestEmployeeRepository_List_WithFilters(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	status := employee.StatusActive
	supervisor := "emp-boss"

	now := time.Now().UTC()
	rows := pgxmock.NewRows(employeeColumnNames).
		AddRow("emp-1", "E001", "Yamada", supervisor, string(employee.StatusActive), nil, nil, now, now).
		AddRow("emp-2", "E002", "Sato", supervisor, string(employee.StatusActive), nil, nil, now, now).
		AddRow("emp-3", "E003", "Suzuki", supervisor, string(employee.StatusActive), nil, nil, now, now)

	mock.ExpectQuery(`FROM employees WHERE supervisor_id = \$1 AND status = \$2 ORDER BY employee_code LIMIT \$3 OFFSET \$4`).
		WithArgs(supervisor, string(status), 3, 0).
		WillReturnRows(rows)

	employees, nextToken, err := repo.List(context.Background(), employee.ListEmployeesFilter{
		SupervisorID: &supervisor,
		Status:       &status,
		Limit:        2,
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(employees) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(employees))
	}
	if nextToken != "2" {
		t.Fatalf("expected next token '2', got %s", nextToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_List_InvalidPaging(t *testing.T) {
	t.Parallel()

	repo := NewEmployeeRepository(nil)

	if _, _, err := repo.List(context.Background(), employee.ListEmployeesFilter{Limit: 0}); !errors.Is(err, employee.ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, _, err := repo.List(context.Background(), employee.ListEmployeesFilter{Limit: 1, Offset: -1}); !errors.Is(err, employee.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestEmployeeRepository_Create_DuplicateCode(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO employees`).
		WithArgs("E001", "Yamada", nil, string(employee.StatusActive), nil, nil, now, now).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "employees_employee_code_key"})

	_, err = repo.Create(context.Background(), &employee.Employee{
		EmployeeCode: "E001",
		Name:         "Yamada",
		Status:       employee.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if !errors.Is(err, employee.ErrEmployeeCodeAlreadyExists) {
		t.Fatalf("expected ErrEmployeeCodeAlreadyExists, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_FindByID_MalformedID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)

	mock.ExpectQuery(`FROM employees WHERE id = \$1`).
		WithArgs("not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: invalidTextRepresentationCode, Message: "invalid input syntax for type uuid"})

	_, err = repo.FindByID(context.Background(), "not-a-uuid")
	if !errors.Is(err, employee.ErrEmployeeNotFound) || !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
