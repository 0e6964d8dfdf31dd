package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/extension"
	pgdb "github.com/ogurasousui/codex-hr-lifecycle/internal/platform/db/postgres"
)

const extensionColumns = `id, number, sequence, contract_number, employee_id, new_start_date, new_end_date,
               new_monthly_salary::text, salary_change_reason, new_position_title, new_location, terms_changes,
               status, proposed_by, expires_at, employee_accepted_at, rejected_at, rejection_reason,
               version, created_at, updated_at`

// ExtensionRepository は PostgreSQL を利用した契約延長永続化の実装です。
type ExtensionRepository struct {
	pool pgdb.Queryer
}

// NewExtensionRepository は ExtensionRepository を生成します。
func NewExtensionRepository(pool pgdb.Queryer) *ExtensionRepository {
	return &ExtensionRepository{pool: pool}
}

// Create は延長を新規作成します。
func (r *ExtensionRepository) Create(ctx context.Context, ext *extension.Extension) (*extension.Extension, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO contract_extensions (id, number, sequence, contract_number, employee_id, new_start_date, new_end_date,
                                         new_monthly_salary, salary_change_reason, new_position_title, new_location, terms_changes,
                                         status, proposed_by, expires_at, employee_accepted_at, rejected_at, rejection_reason,
                                         version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1, $19, $20)
        RETURNING `+extensionColumns,
		ext.ID,
		ext.Number,
		ext.Sequence,
		ext.ContractNumber,
		ext.EmployeeID,
		dateOnly(ext.NewStartDate),
		dateOnly(ext.NewEndDate),
		nullableDecimal(ext.NewMonthlySalary),
		nullableString(ext.SalaryChangeReason),
		nullableString(ext.NewPositionTitle),
		nullableString(ext.NewLocation),
		ext.TermsChanges,
		string(ext.Status),
		ext.ProposedBy,
		ext.ExpiresAt,
		nullableTime(ext.EmployeeAcceptedAt),
		nullableTime(ext.RejectedAt),
		nullableString(ext.RejectionReason),
		ext.CreatedAt,
		ext.UpdatedAt,
	)

	created, err := scanExtension(row)
	if err != nil {
		return nil, translateExtensionPgError(err)
	}
	return created, nil
}

// Update は version が一致する場合のみ延長の状態を更新します。提案内容と期限は変更しません。
func (r *ExtensionRepository) Update(ctx context.Context, ext *extension.Extension) (*extension.Extension, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE contract_extensions
           SET status = $1,
               employee_accepted_at = $2,
               rejected_at = $3,
               rejection_reason = $4,
               updated_at = $5,
               version = version + 1
         WHERE id = $6 AND version = $7
        RETURNING `+extensionColumns,
		string(ext.Status),
		nullableTime(ext.EmployeeAcceptedAt),
		nullableTime(ext.RejectedAt),
		nullableString(ext.RejectionReason),
		ext.UpdatedAt,
		ext.ID,
		ext.Version,
	)

	updated, err := scanExtension(row)
	if err != nil {
		if errors.Is(err, extension.ErrExtensionNotFound) {
			return nil, extension.ErrConcurrentModification
		}
		return nil, translateExtensionPgError(err)
	}
	return updated, nil
}

// FindByID は ID で延長を取得します。
func (r *ExtensionRepository) FindByID(ctx context.Context, id string) (*extension.Extension, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+extensionColumns+` FROM contract_extensions WHERE id = $1`, id)

	found, err := scanExtension(row)
	if err != nil {
		return nil, translateExtensionPgError(err)
	}
	return found, nil
}

// FindPendingByContract は契約の PENDING の延長を取得します。
func (r *ExtensionRepository) FindPendingByContract(ctx context.Context, contractNumber string) (*extension.Extension, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+extensionColumns+`
          FROM contract_extensions
         WHERE contract_number = $1 AND status = 'PENDING'`, contractNumber)

	found, err := scanExtension(row)
	if err != nil {
		return nil, translateExtensionPgError(err)
	}
	return found, nil
}

// ListByContract は契約の延長を連番順に取得します。
func (r *ExtensionRepository) ListByContract(ctx context.Context, contractNumber string) ([]*extension.Extension, error) {
	return r.query(ctx, `
        SELECT `+extensionColumns+`
          FROM contract_extensions
         WHERE contract_number = $1
         ORDER BY sequence`, contractNumber)
}

// ListPendingDueBefore は期限が before より前の PENDING の延長を期限順に取得します。
func (r *ExtensionRepository) ListPendingDueBefore(ctx context.Context, before time.Time, limit int) ([]*extension.Extension, error) {
	return r.query(ctx, `
        SELECT `+extensionColumns+`
          FROM contract_extensions
         WHERE status = 'PENDING' AND expires_at < $1
         ORDER BY expires_at
         LIMIT $2`, before, limit)
}

// NextSequence は契約内の次の延長連番を返します。
func (r *ExtensionRepository) NextSequence(ctx context.Context, contractNumber string) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var next int
	if err := exec.QueryRow(ctx, `
        SELECT COALESCE(MAX(sequence), 0) + 1
          FROM contract_extensions
         WHERE contract_number = $1`, contractNumber).Scan(&next); err != nil {
		return 0, translateExtensionPgError(err)
	}
	return next, nil
}

func (r *ExtensionRepository) query(ctx context.Context, query string, args ...any) ([]*extension.Extension, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translateExtensionPgError(err)
	}
	defer rows.Close()

	var extensions []*extension.Extension
	for rows.Next() {
		ext, err := scanExtension(rows)
		if err != nil {
			return nil, translateExtensionPgError(err)
		}
		extensions = append(extensions, ext)
	}
	if err := rows.Err(); err != nil {
		return nil, translateExtensionPgError(err)
	}
	return extensions, nil
}

func scanExtension(row pgx.Row) (*extension.Extension, error) {
	var (
		ext                extension.Extension
		salary             sql.NullString
		salaryChangeReason sql.NullString
		positionTitle      sql.NullString
		location           sql.NullString
		status             string
		acceptedAt         sql.NullTime
		rejectedAt         sql.NullTime
		rejectionReason    sql.NullString
	)

	if err := row.Scan(
		&ext.ID,
		&ext.Number,
		&ext.Sequence,
		&ext.ContractNumber,
		&ext.EmployeeID,
		&ext.NewStartDate,
		&ext.NewEndDate,
		&salary,
		&salaryChangeReason,
		&positionTitle,
		&location,
		&ext.TermsChanges,
		&status,
		&ext.ProposedBy,
		&ext.ExpiresAt,
		&acceptedAt,
		&rejectedAt,
		&rejectionReason,
		&ext.Version,
		&ext.CreatedAt,
		&ext.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, extension.ErrExtensionNotFound
		}
		return nil, err
	}

	if salary.Valid {
		amount, err := decimal.NewFromString(salary.String)
		if err != nil {
			return nil, fmt.Errorf("extension %s: new_monthly_salary %q: %w", ext.Number, salary.String, err)
		}
		ext.NewMonthlySalary = &amount
	}

	ext.Status = extension.Status(status)
	ext.NewStartDate = dateOnly(ext.NewStartDate)
	ext.NewEndDate = dateOnly(ext.NewEndDate)
	ext.ExpiresAt = ext.ExpiresAt.UTC()
	ext.SalaryChangeReason = stringPtr(salaryChangeReason)
	ext.NewPositionTitle = stringPtr(positionTitle)
	ext.NewLocation = stringPtr(location)
	ext.EmployeeAcceptedAt = timePtr(acceptedAt)
	ext.RejectedAt = timePtr(rejectedAt)
	ext.RejectionReason = stringPtr(rejectionReason)
	return &ext, nil
}

func translateExtensionPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return extension.ErrExtensionNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			if pgErr.ConstraintName == "contract_extensions_one_pending_per_contract" {
				return extension.ErrPendingExtensionExists
			}
			return extension.ErrConcurrentModification
		case foreignKeyViolationCode:
			return contract.ErrContractNotFound
		case checkViolationCode:
			return extension.ErrInvalidDateRange
		case invalidTextRepresentationCode:
			return extension.ErrExtensionNotFound
		}
	}

	return err
}

func nullableDecimal(value *decimal.Decimal) any {
	if value == nil {
		return nil
	}
	return value.String()
}
