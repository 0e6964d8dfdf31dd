package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
	pgdb "github.com/ogurasousui/codex-hr-lifecycle/internal/platform/db/postgres"
)

const contractColumns = `number, employee_id, position_title, location, contract_type, start_date, end_date,
               monthly_salary::text, currency, notice_period_days, signed_date, status,
               terminated_at, termination_reason, version, created_at, updated_at`

// ContractRepository は PostgreSQL を利用した雇用契約永続化の実装です。
type ContractRepository struct {
	pool pgdb.Queryer
}

// NewContractRepository は ContractRepository を生成します。
func NewContractRepository(pool pgdb.Queryer) *ContractRepository {
	return &ContractRepository{pool: pool}
}

// Create は契約を新規作成します。
func (r *ContractRepository) Create(ctx context.Context, c *contract.Contract) (*contract.Contract, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO contracts (number, employee_id, position_title, location, contract_type, start_date, end_date,
                               monthly_salary, currency, notice_period_days, signed_date, status,
                               terminated_at, termination_reason, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13, $14, 1, $15, $16)
        RETURNING `+contractColumns,
		c.Number,
		c.EmployeeID,
		c.PositionTitle,
		c.Location,
		string(c.Type),
		dateOnly(c.StartDate),
		dateOnly(c.EndDate),
		c.MonthlySalary.String(),
		c.Currency,
		c.NoticePeriodDays,
		nullableDate(c.SignedDate),
		string(c.Status),
		nullableTime(c.TerminatedAt),
		nullableString(c.TerminationReason),
		c.CreatedAt,
		c.UpdatedAt,
	)

	created, err := scanContract(row)
	if err != nil {
		return nil, translateContractPgError(err)
	}
	return created, nil
}

// Update は version が一致する場合のみ契約を更新します。一致しなければ ErrConcurrentModification を返します。
func (r *ContractRepository) Update(ctx context.Context, c *contract.Contract) (*contract.Contract, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE contracts
           SET position_title = $1,
               location = $2,
               start_date = $3,
               end_date = $4,
               monthly_salary = $5::numeric,
               status = $6,
               terminated_at = $7,
               termination_reason = $8,
               updated_at = $9,
               version = version + 1
         WHERE number = $10 AND version = $11
        RETURNING `+contractColumns,
		c.PositionTitle,
		c.Location,
		dateOnly(c.StartDate),
		dateOnly(c.EndDate),
		c.MonthlySalary.String(),
		string(c.Status),
		nullableTime(c.TerminatedAt),
		nullableString(c.TerminationReason),
		c.UpdatedAt,
		c.Number,
		c.Version,
	)

	updated, err := scanContract(row)
	if err != nil {
		// 読み込み済みの契約に対する更新なので、0 行は version の不一致を意味する。
		if errors.Is(err, contract.ErrContractNotFound) {
			return nil, contract.ErrConcurrentModification
		}
		return nil, translateContractPgError(err)
	}
	return updated, nil
}

// FindByNumber は契約番号で契約を取得します。
func (r *ContractRepository) FindByNumber(ctx context.Context, number string) (*contract.Contract, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE number = $1`, number)

	found, err := scanContract(row)
	if err != nil {
		return nil, translateContractPgError(err)
	}
	return found, nil
}

// FindCurrentByEmployee は社員の ACTIVE または EXTENDED の契約を取得します。
func (r *ContractRepository) FindCurrentByEmployee(ctx context.Context, employeeID string) (*contract.Contract, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+contractColumns+`
          FROM contracts
         WHERE employee_id = $1 AND status IN ('ACTIVE', 'EXTENDED')`, employeeID)

	found, err := scanContract(row)
	if err != nil {
		return nil, translateContractPgError(err)
	}
	return found, nil
}

// List は契約の一覧を契約番号順に取得します。
func (r *ContractRepository) List(ctx context.Context, filter contract.ListContractsFilter) ([]*contract.Contract, string, error) {
	if filter.Limit <= 0 {
		return nil, "", contract.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, "", contract.ErrInvalidPageToken
	}

	limitWithBuffer := filter.Limit + 1

	args := make([]any, 0, 5)
	conditions := make([]string, 0, 3)

	if filter.EmployeeID != nil {
		args = append(args, *filter.EmployeeID)
		conditions = append(conditions, "employee_id = $"+strconv.Itoa(len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		conditions = append(conditions, "status = ANY($"+strconv.Itoa(len(args))+")")
	}
	if filter.EndBefore != nil {
		args = append(args, dateOnly(*filter.EndBefore))
		conditions = append(conditions, "end_date < $"+strconv.Itoa(len(args)))
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
        SELECT ` + contractColumns + `
          FROM contracts` + whereClause + `
         ORDER BY number
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, "", translateContractPgError(err)
	}
	defer rows.Close()

	contracts := make([]*contract.Contract, 0, filter.Limit)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, "", translateContractPgError(err)
		}
		contracts = append(contracts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, "", translateContractPgError(err)
	}

	var nextToken string
	if len(contracts) == limitWithBuffer {
		contracts = contracts[:filter.Limit]
		nextToken = strconv.Itoa(filter.Offset + filter.Limit)
	}

	return contracts, nextToken, nil
}

func scanContract(row pgx.Row) (*contract.Contract, error) {
	var (
		c                 contract.Contract
		contractType      string
		salary            string
		status            string
		signedDate        sql.NullTime
		terminatedAt      sql.NullTime
		terminationReason sql.NullString
	)

	if err := row.Scan(
		&c.Number,
		&c.EmployeeID,
		&c.PositionTitle,
		&c.Location,
		&contractType,
		&c.StartDate,
		&c.EndDate,
		&salary,
		&c.Currency,
		&c.NoticePeriodDays,
		&signedDate,
		&status,
		&terminatedAt,
		&terminationReason,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contract.ErrContractNotFound
		}
		return nil, err
	}

	amount, err := decimal.NewFromString(salary)
	if err != nil {
		return nil, fmt.Errorf("contract %s: monthly_salary %q: %w", c.Number, salary, err)
	}

	c.Type = contract.ContractType(contractType)
	c.Status = contract.Status(status)
	c.MonthlySalary = amount
	c.StartDate = dateOnly(c.StartDate)
	c.EndDate = dateOnly(c.EndDate)
	c.SignedDate = datePtr(signedDate)
	c.TerminatedAt = timePtr(terminatedAt)
	c.TerminationReason = stringPtr(terminationReason)
	return &c, nil
}

func translateContractPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.ErrContractNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			if pgErr.ConstraintName == "contracts_one_current_per_employee" {
				return contract.ErrEmployeeHasCurrent
			}
			return contract.ErrNumberAlreadyExists
		case foreignKeyViolationCode:
			return employee.ErrEmployeeNotFound
		case checkViolationCode:
			return contract.ErrInvalidDateRange
		case invalidTextRepresentationCode:
			return contract.ErrContractNotFound
		}
	}

	return err
}
