package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

const reconciliationColumns = `id, entity_id, fiscal_year, period_id, prepaid_account,
	opening_balance, additions, amortization, expected_closing, begin_in_year,
	total_subsystem, subsystem_divergence, gl_balance, difference, recon_entries,
	final_difference, expected_closing_adjusted, variance, tolerance_used, status,
	version, created_at, updated_at, deleted_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReconciliation(row rowScanner) (*models.Reconciliation, error) {
	var (
		rec       models.Reconciliation
		beginJSON string
		created   int64
		updated   int64
		deletedAt sql.NullInt64
	)
	err := row.Scan(
		&rec.ID, &rec.EntityID, &rec.FiscalYear, &rec.PeriodID, &rec.PrepaidAccount,
		&rec.OpeningBalance, &rec.Additions, &rec.Amortization, &rec.ExpectedClosing, &beginJSON,
		&rec.TotalSubsystem, &rec.SubsystemDivergence, &rec.GLBalance, &rec.Difference, &rec.ReconEntries,
		&rec.FinalDifference, &rec.ExpectedClosingAdjusted, &rec.Variance, &rec.ToleranceUsed, &rec.Status,
		&rec.Version, &created, &updated, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(beginJSON), &rec.BeginInYear); err != nil {
		return nil, fmt.Errorf("failed to decode begin_in_year: %w", err)
	}
	rec.CreatedAt = fromNanos(created)
	rec.UpdatedAt = fromNanos(updated)
	rec.DeletedAt = timePtr(deletedAt)
	return &rec, nil
}

func encodeBeginInYear(m map[string]decimal.Decimal) (string, error) {
	if m == nil {
		m = map[string]decimal.Decimal{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode begin_in_year: %w", err)
	}
	return string(b), nil
}

// GetReconciliation implements storage.ReconciliationStore.
func (s *SQLiteStore) GetReconciliation(ctx context.Context, id string) (*models.Reconciliation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reconciliationColumns+` FROM reconciliations WHERE id = ?`, id)
	rec, err := scanReconciliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation: %w", err)
	}
	return rec, nil
}

// FindReconciliation implements storage.ReconciliationStore.
func (s *SQLiteStore) FindReconciliation(ctx context.Context, key models.LineKey) (*models.Reconciliation, error) {
	key = key.Normalize()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reconciliationColumns+` FROM reconciliations
		 WHERE entity_id = ? AND period_id = ? AND prepaid_account = ? AND deleted_at IS NULL`,
		key.EntityID, key.PeriodID, key.Account,
	)
	rec, err := scanReconciliation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reconciliation: %w", err)
	}
	return rec, nil
}

// ListReconciliations implements storage.ReconciliationStore.
func (s *SQLiteStore) ListReconciliations(ctx context.Context, f storage.ReconciliationFilter) ([]*models.Reconciliation, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if !f.IncludeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	if f.EntityID != "" {
		add("entity_id = ?", f.EntityID)
	}
	if f.PeriodID != "" {
		add("period_id = ?", f.PeriodID)
	}
	if f.FiscalYear != "" {
		add("fiscal_year = ?", f.FiscalYear)
	}
	if f.Account != "" {
		add("prepaid_account = ?", f.Account)
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.EntityIDs != nil {
		cond, inArgs := inClause("entity_id", f.EntityIDs)
		conds = append(conds, cond)
		args = append(args, inArgs...)
	}

	query := `SELECT ` + reconciliationColumns + ` FROM reconciliations`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY entity_id, period_id, prepaid_account, created_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliations: %w", err)
	}
	defer rows.Close()

	var recs []*models.Reconciliation
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reconciliations: %w", err)
	}
	return recs, nil
}

// InsertReconciliation implements storage.ReconciliationStore.
// The partial unique index on the live triple turns a concurrent insert
// into ErrVersionConflict.
func (s *SQLiteStore) InsertReconciliation(ctx context.Context, rec *models.Reconciliation) error {
	ensureID(&rec.ID)
	begin, err := encodeBeginInYear(rec.BeginInYear)
	if err != nil {
		return err
	}
	key := rec.Key()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reconciliations (`+reconciliationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, key.EntityID, strings.TrimSpace(rec.FiscalYear), key.PeriodID, key.Account,
		rec.OpeningBalance, rec.Additions, rec.Amortization, rec.ExpectedClosing, begin,
		rec.TotalSubsystem, rec.SubsystemDivergence, rec.GLBalance, rec.Difference, rec.ReconEntries,
		rec.FinalDifference, rec.ExpectedClosingAdjusted, rec.Variance, rec.ToleranceUsed, string(rec.Status),
		rec.Version, toNanos(rec.CreatedAt), toNanos(rec.UpdatedAt), nullNanos(rec.DeletedAt),
	)
	if isUniqueViolation(err) {
		return storage.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert reconciliation: %w", err)
	}
	return nil
}

// ReplaceReconciliation implements storage.ReconciliationStore.
func (s *SQLiteStore) ReplaceReconciliation(ctx context.Context, rec *models.Reconciliation, expectedVersion int64) error {
	begin, err := encodeBeginInYear(rec.BeginInYear)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	key := rec.Key()
	result, err := tx.ExecContext(ctx,
		`UPDATE reconciliations SET
		     entity_id = ?, fiscal_year = ?, period_id = ?, prepaid_account = ?,
		     opening_balance = ?, additions = ?, amortization = ?, expected_closing = ?, begin_in_year = ?,
		     total_subsystem = ?, subsystem_divergence = ?, gl_balance = ?, difference = ?, recon_entries = ?,
		     final_difference = ?, expected_closing_adjusted = ?, variance = ?, tolerance_used = ?, status = ?,
		     version = ?, created_at = ?, updated_at = ?, deleted_at = ?
		 WHERE id = ? AND version = ?`,
		key.EntityID, strings.TrimSpace(rec.FiscalYear), key.PeriodID, key.Account,
		rec.OpeningBalance, rec.Additions, rec.Amortization, rec.ExpectedClosing, begin,
		rec.TotalSubsystem, rec.SubsystemDivergence, rec.GLBalance, rec.Difference, rec.ReconEntries,
		rec.FinalDifference, rec.ExpectedClosingAdjusted, rec.Variance, rec.ToleranceUsed, string(rec.Status),
		rec.Version, toNanos(rec.CreatedAt), toNanos(rec.UpdatedAt), nullNanos(rec.DeletedAt),
		rec.ID, expectedVersion,
	)
	if isUniqueViolation(err) {
		return storage.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update reconciliation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM reconciliations WHERE id = ?`, rec.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check reconciliation: %w", err)
		}
		return storage.ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
