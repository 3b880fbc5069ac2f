package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

const adjustmentColumns = `id, reconciliation_id, entity_id, period_id, debit_account, credit_account,
	amount, impact_on_prepaid, explanation, status, maker_id, maker_comment,
	checker_id, checker_comment, decided_at, created_at, updated_at, deleted_at`

func scanAdjustment(row rowScanner) (*models.AdjustmentEntry, error) {
	var (
		adj            models.AdjustmentEntry
		checkerID      sql.NullString
		checkerComment sql.NullString
		decidedAt      sql.NullInt64
		created        int64
		updated        int64
		deletedAt      sql.NullInt64
	)
	err := row.Scan(
		&adj.ID, &adj.ReconciliationID, &adj.EntityID, &adj.PeriodID, &adj.DebitAccount, &adj.CreditAccount,
		&adj.Amount, &adj.ImpactOnPrepaid, &adj.Explanation, &adj.Status, &adj.MakerID, &adj.MakerComment,
		&checkerID, &checkerComment, &decidedAt, &created, &updated, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	adj.CheckerID = stringPtr(checkerID)
	adj.CheckerComment = stringPtr(checkerComment)
	adj.DecidedAt = timePtr(decidedAt)
	adj.CreatedAt = fromNanos(created)
	adj.UpdatedAt = fromNanos(updated)
	adj.DeletedAt = timePtr(deletedAt)
	return &adj, nil
}

// GetAdjustment implements storage.AdjustmentStore.
func (s *SQLiteStore) GetAdjustment(ctx context.Context, id string) (*models.AdjustmentEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adjustmentColumns+` FROM adjustments WHERE id = ?`, id)
	adj, err := scanAdjustment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get adjustment: %w", err)
	}
	return adj, nil
}

// ListAdjustments implements storage.AdjustmentStore.
func (s *SQLiteStore) ListAdjustments(ctx context.Context, f storage.AdjustmentFilter) ([]*models.AdjustmentEntry, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []any
	if f.ReconciliationID != "" {
		conds = append(conds, "reconciliation_id = ?")
		args = append(args, f.ReconciliationID)
	}
	if f.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MakerID != "" {
		conds = append(conds, "maker_id = ?")
		args = append(args, f.MakerID)
	}
	if f.EntityIDs != nil {
		cond, inArgs := inClause("entity_id", f.EntityIDs)
		conds = append(conds, cond)
		args = append(args, inArgs...)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+adjustmentColumns+` FROM adjustments
		 WHERE `+strings.Join(conds, " AND ")+`
		 ORDER BY created_at, rowid`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var entries []*models.AdjustmentEntry
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		entries = append(entries, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate adjustments: %w", err)
	}
	return entries, nil
}

// InsertAdjustment implements storage.AdjustmentStore.
func (s *SQLiteStore) InsertAdjustment(ctx context.Context, adj *models.AdjustmentEntry) error {
	ensureID(&adj.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO adjustments (`+adjustmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		adj.ID, adj.ReconciliationID, adj.EntityID, adj.PeriodID, adj.DebitAccount, adj.CreditAccount,
		adj.Amount, adj.ImpactOnPrepaid, adj.Explanation, string(adj.Status), adj.MakerID, adj.MakerComment,
		nullString(adj.CheckerID), nullString(adj.CheckerComment), nullNanos(adj.DecidedAt),
		toNanos(adj.CreatedAt), toNanos(adj.UpdatedAt), nullNanos(adj.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert adjustment: %w", err)
	}
	return nil
}

// ReplaceAdjustment implements storage.AdjustmentStore.
func (s *SQLiteStore) ReplaceAdjustment(ctx context.Context, adj *models.AdjustmentEntry, expected models.AdjustmentStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE adjustments SET
		     debit_account = ?, credit_account = ?, amount = ?, impact_on_prepaid = ?, explanation = ?,
		     status = ?, maker_comment = ?, checker_id = ?, checker_comment = ?, decided_at = ?,
		     updated_at = ?, deleted_at = ?
		 WHERE id = ? AND status = ?`,
		adj.DebitAccount, adj.CreditAccount, adj.Amount, adj.ImpactOnPrepaid, adj.Explanation,
		string(adj.Status), adj.MakerComment, nullString(adj.CheckerID), nullString(adj.CheckerComment), nullNanos(adj.DecidedAt),
		toNanos(adj.UpdatedAt), nullNanos(adj.DeletedAt),
		adj.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to update adjustment: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM adjustments WHERE id = ?`, adj.ID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("adjustment %s: %w", adj.ID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check adjustment: %w", err)
		}
		return fmt.Errorf("adjustment %s is %s, expected %s: %w", adj.ID, status, expected, storage.ErrStatusConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendApproval implements storage.AdjustmentStore.
func (s *SQLiteStore) AppendApproval(ctx context.Context, ev *models.ApprovalEvent) error {
	ensureID(&ev.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals (id, adjustment_id, action, user_id, comment, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.AdjustmentID, string(ev.Action), ev.UserID, ev.Comment, toNanos(ev.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append approval: %w", err)
	}
	return nil
}

// ListApprovals implements storage.AdjustmentStore.
func (s *SQLiteStore) ListApprovals(ctx context.Context, adjustmentID string) ([]*models.ApprovalEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, adjustment_id, action, user_id, comment, timestamp
		 FROM approvals WHERE adjustment_id = ? ORDER BY seq`,
		adjustmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	events := []*models.ApprovalEvent{}
	for rows.Next() {
		var (
			ev models.ApprovalEvent
			ts int64
		)
		if err := rows.Scan(&ev.ID, &ev.AdjustmentID, &ev.Action, &ev.UserID, &ev.Comment, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		ev.Timestamp = fromNanos(ts)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approvals: %w", err)
	}
	return events, nil
}
