package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/resignation"
	pgdb "github.com/ogurasousui/codex-hr-lifecycle/internal/platform/db/postgres"
)

const resignationColumns = `id, number, employee_id, resignation_date, intended_last_working_day, notice_period_days, reason,
               approved_last_working_day,
               supervisor_accepted_at, supervisor_approved_by, supervisor_comments,
               hr_accepted_at, hr_approved_by, hr_comments,
               ceo_accepted_at, ceo_approved_by, ceo_comments,
               exit_interview_completed, status, completed_at, withdrawn_at, withdrawn_by,
               version, created_at, updated_at`

// ResignationRepository は PostgreSQL を利用した退職届永続化の実装です。
type ResignationRepository struct {
	pool pgdb.Queryer
}

// NewResignationRepository は ResignationRepository を生成します。
func NewResignationRepository(pool pgdb.Queryer) *ResignationRepository {
	return &ResignationRepository{pool: pool}
}

// Create は退職届を新規作成します。
func (r *ResignationRepository) Create(ctx context.Context, res *resignation.Resignation) (*resignation.Resignation, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO resignations (id, number, employee_id, resignation_date, intended_last_working_day, notice_period_days, reason,
                                  status, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10)
        RETURNING `+resignationColumns,
		res.ID,
		res.Number,
		res.EmployeeID,
		dateOnly(res.ResignationDate),
		dateOnly(res.IntendedLastWorkingDay),
		res.NoticePeriodDays,
		res.Reason,
		string(res.Status),
		res.CreatedAt,
		res.UpdatedAt,
	)

	created, err := scanResignation(row)
	if err != nil {
		return nil, translateResignationPgError(err)
	}
	return created, nil
}

// Update は version が一致する場合のみ退職届を更新します。一致しなければ ErrConcurrentModification を返します。
func (r *ResignationRepository) Update(ctx context.Context, res *resignation.Resignation) (*resignation.Resignation, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE resignations
           SET approved_last_working_day = $1,
               supervisor_accepted_at = $2,
               supervisor_approved_by = $3,
               supervisor_comments = $4,
               hr_accepted_at = $5,
               hr_approved_by = $6,
               hr_comments = $7,
               ceo_accepted_at = $8,
               ceo_approved_by = $9,
               ceo_comments = $10,
               exit_interview_completed = $11,
               status = $12,
               completed_at = $13,
               withdrawn_at = $14,
               withdrawn_by = $15,
               updated_at = $16,
               version = version + 1
         WHERE id = $17 AND version = $18
        RETURNING `+resignationColumns,
		nullableDate(res.ApprovedLastWorkingDay),
		nullableTime(res.Supervisor.AcceptedAt),
		res.Supervisor.ApprovedBy,
		res.Supervisor.Comments,
		nullableTime(res.HR.AcceptedAt),
		res.HR.ApprovedBy,
		res.HR.Comments,
		nullableTime(res.CEO.AcceptedAt),
		res.CEO.ApprovedBy,
		res.CEO.Comments,
		res.ExitInterviewCompleted,
		string(res.Status),
		nullableTime(res.CompletedAt),
		nullableTime(res.WithdrawnAt),
		nullableString(res.WithdrawnBy),
		res.UpdatedAt,
		res.ID,
		res.Version,
	)

	updated, err := scanResignation(row)
	if err != nil {
		if errors.Is(err, resignation.ErrResignationNotFound) {
			return nil, resignation.ErrConcurrentModification
		}
		return nil, translateResignationPgError(err)
	}
	return updated, nil
}

// FindByID は ID で退職届を取得します。
func (r *ResignationRepository) FindByID(ctx context.Context, id string) (*resignation.Resignation, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+resignationColumns+` FROM resignations WHERE id = $1`, id)

	found, err := scanResignation(row)
	if err != nil {
		return nil, translateResignationPgError(err)
	}
	return found, nil
}

// FindOpenByEmployee は社員の未完了の退職届を取得します。
func (r *ResignationRepository) FindOpenByEmployee(ctx context.Context, employeeID string) (*resignation.Resignation, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+resignationColumns+`
          FROM resignations
         WHERE employee_id = $1 AND status NOT IN ('COMPLETED', 'WITHDRAWN')`, employeeID)

	found, err := scanResignation(row)
	if err != nil {
		return nil, translateResignationPgError(err)
	}
	return found, nil
}

// List は退職届の一覧を提出の新しい順に取得します。
func (r *ResignationRepository) List(ctx context.Context, filter resignation.ListResignationsFilter) ([]*resignation.Resignation, string, error) {
	if filter.Limit <= 0 {
		return nil, "", resignation.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", resignation.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 4)
	conditions := make([]string, 0, 2)

	if filter.EmployeeID != nil {
		args = append(args, *filter.EmployeeID)
		conditions = append(conditions, "employee_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, "status = $"+strconv.Itoa(len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, limitWithBuffer)
	limitPlaceholder := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetPlaceholder := "$" + strconv.Itoa(len(args))

	query := `
        SELECT ` + resignationColumns + `
          FROM resignations` + whereClause + `
         ORDER BY created_at DESC, number
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateResignationPgError(err)
	}
	defer rows.Close()

	resignations := make([]*resignation.Resignation, 0, filter.Limit)
	for rows.Next() {
		res, err := scanResignation(rows)
		if err != nil {
			return nil, "", translateResignationPgError(err)
		}
		resignations = append(resignations, res)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateResignationPgError(err)
	}

	var nextToken string
	if len(resignations) == limitWithBuffer {
		resignations = resignations[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return resignations, nextToken, nil
}

func scanResignation(row pgx.Row) (*resignation.Resignation, error) {
	var (
		res                  resignation.Resignation
		approvedDay          sql.NullTime
		supervisorAcceptedAt sql.NullTime
		hrAcceptedAt         sql.NullTime
		ceoAcceptedAt        sql.NullTime
		status               string
		completedAt          sql.NullTime
		withdrawnAt          sql.NullTime
		withdrawnBy          sql.NullString
	)

	if err := row.Scan(
		&res.ID,
		&res.Number,
		&res.EmployeeID,
		&res.ResignationDate,
		&res.IntendedLastWorkingDay,
		&res.NoticePeriodDays,
		&res.Reason,
		&approvedDay,
		&supervisorAcceptedAt,
		&res.Supervisor.ApprovedBy,
		&res.Supervisor.Comments,
		&hrAcceptedAt,
		&res.HR.ApprovedBy,
		&res.HR.Comments,
		&ceoAcceptedAt,
		&res.CEO.ApprovedBy,
		&res.CEO.Comments,
		&res.ExitInterviewCompleted,
		&status,
		&completedAt,
		&withdrawnAt,
		&withdrawnBy,
		&res.Version,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resignation.ErrResignationNotFound
		}
		return nil, err
	}

	res.Status = resignation.Status(status)
	res.ResignationDate = dateOnly(res.ResignationDate)
	res.IntendedLastWorkingDay = dateOnly(res.IntendedLastWorkingDay)
	res.ApprovedLastWorkingDay = datePtr(approvedDay)
	res.Supervisor.AcceptedAt = timePtr(supervisorAcceptedAt)
	res.HR.AcceptedAt = timePtr(hrAcceptedAt)
	res.CEO.AcceptedAt = timePtr(ceoAcceptedAt)
	res.CompletedAt = timePtr(completedAt)
	res.WithdrawnAt = timePtr(withdrawnAt)
	res.WithdrawnBy = stringPtr(withdrawnBy)
	return &res, nil
}

func translateResignationPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return resignation.ErrResignationNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			if pgErr.ConstraintName == "resignations_one_open_per_employee" {
				return resignation.ErrOpenResignationExists
			}
			return resignation.ErrNumberAlreadyExists
		case foreignKeyViolationCode:
			return employee.ErrEmployeeNotFound
		case checkViolationCode:
			if pgErr.ConstraintName == "resignations_approved_date_check" {
				return resignation.ErrInvalidApprovedDate
			}
			return resignation.ErrInvalidDateRange
		case invalidTextRepresentationCode:
			return resignation.ErrResignationNotFound
		}
	}

	return err
}
