package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

// ListToleranceRules implements storage.SettingsStore.
func (s *SQLiteStore) ListToleranceRules(ctx context.Context) ([]models.ToleranceRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, period_id, amount FROM tolerance_rules
		 WHERE deleted_at IS NULL ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tolerance rules: %w", err)
	}
	defer rows.Close()

	var rules []models.ToleranceRule
	for rows.Next() {
		var r models.ToleranceRule
		if err := rows.Scan(&r.ID, &r.EntityID, &r.PeriodID, &r.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan tolerance rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tolerance rules: %w", err)
	}
	return rules, nil
}

// PutToleranceRule implements storage.SettingsStore. A replaced rule keeps
// its original position.
func (s *SQLiteStore) PutToleranceRule(ctx context.Context, rule models.ToleranceRule) error {
	ensureID(&rule.ID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tolerance_rules (id, entity_id, period_id, amount, deleted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     entity_id = excluded.entity_id,
		     period_id = excluded.period_id,
		     amount = excluded.amount,
		     deleted_at = excluded.deleted_at`,
		rule.ID, rule.EntityID, rule.PeriodID, rule.Amount, nullNanos(rule.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put tolerance rule: %w", err)
	}
	return nil
}

// GetPeriod implements storage.SettingsStore.
func (s *SQLiteStore) GetPeriod(ctx context.Context, id string) (*models.FiscalPeriod, error) {
	var p models.FiscalPeriod
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, name, fiscal_year, end_date FROM fiscal_periods WHERE id = ?`, id,
	).Scan(&p.ID, &p.Code, &p.Name, &p.FiscalYear, &p.EndDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("period %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	return &p, nil
}

// PutPeriod implements storage.SettingsStore.
func (s *SQLiteStore) PutPeriod(ctx context.Context, p models.FiscalPeriod) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fiscal_periods (id, code, name, fiscal_year, end_date)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     code = excluded.code,
		     name = excluded.name,
		     fiscal_year = excluded.fiscal_year,
		     end_date = excluded.end_date`,
		p.ID, p.Code, p.Name, p.FiscalYear, p.EndDate,
	)
	if err != nil {
		return fmt.Errorf("failed to put period: %w", err)
	}
	return nil
}
