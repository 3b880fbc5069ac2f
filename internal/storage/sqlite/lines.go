package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/prepaidrecon/internal/models"
)

// lineWhere builds the WHERE clause for a line filter. Key columns are
// stored trimmed, so plain equality applies. A fiscal year only narrows
// lines that carry one.
func lineWhere(f models.LineKey, accountCol string) (string, []any) {
	f = f.Normalize()
	var (
		conds []string
		args  []any
	)
	if f.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.PeriodID != "" {
		conds = append(conds, "fiscal_period = ?")
		args = append(args, f.PeriodID)
	}
	if f.FiscalYear != "" {
		conds = append(conds, "(fiscal_year = '' OR fiscal_year = ?)")
		args = append(args, f.FiscalYear)
	}
	if f.Account != "" {
		conds = append(conds, accountCol+" = ?")
		args = append(args, f.Account)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ScheduleLines implements storage.LineStore.
func (s *SQLiteStore) ScheduleLines(ctx context.Context, filter models.LineKey) ([]models.ScheduleLine, error) {
	where, args := lineWhere(filter, "account")
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, upload_id, entity_id, fiscal_year, fiscal_period, apply_date, account, expense_account,
		        debit_amount, credit_amount, prepaid_start_year, description
		 FROM schedule_lines`+where+` ORDER BY row_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule lines: %w", err)
	}
	defer rows.Close()

	var lines []models.ScheduleLine
	for rows.Next() {
		var l models.ScheduleLine
		if err := rows.Scan(&l.ID, &l.UploadID, &l.EntityID, &l.FiscalYear, &l.FiscalPeriod, &l.ApplyDate,
			&l.Account, &l.ExpenseAccount, &l.DebitAmount, &l.CreditAmount, &l.PrepaidStartYear, &l.Description); err != nil {
			return nil, fmt.Errorf("failed to scan schedule line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedule lines: %w", err)
	}
	return lines, nil
}

// TrialBalanceLines implements storage.LineStore.
func (s *SQLiteStore) TrialBalanceLines(ctx context.Context, filter models.LineKey) ([]models.TrialBalanceLine, error) {
	where, args := lineWhere(filter, "account")
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, upload_id, entity_id, fiscal_year, fiscal_period, account, account_desc, closing_balance
		 FROM trial_balance_lines`+where+` ORDER BY row_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trial balance lines: %w", err)
	}
	defer rows.Close()

	var lines []models.TrialBalanceLine
	for rows.Next() {
		var l models.TrialBalanceLine
		if err := rows.Scan(&l.ID, &l.UploadID, &l.EntityID, &l.FiscalYear, &l.FiscalPeriod,
			&l.Account, &l.AccountDesc, &l.ClosingBalance); err != nil {
			return nil, fmt.Errorf("failed to scan trial balance line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trial balance lines: %w", err)
	}
	return lines, nil
}

// WorkingLines implements storage.LineStore.
func (s *SQLiteStore) WorkingLines(ctx context.Context, filter models.LineKey) ([]models.WorkingLine, error) {
	where, args := lineWhere(filter, "prepaid_account")
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, upload_id, entity_id, fiscal_year, fiscal_period, prepaid_account,
		        opening_balance, additions, amortization
		 FROM working_lines`+where+` ORDER BY row_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query working lines: %w", err)
	}
	defer rows.Close()

	var lines []models.WorkingLine
	for rows.Next() {
		var l models.WorkingLine
		if err := rows.Scan(&l.ID, &l.UploadID, &l.EntityID, &l.FiscalYear, &l.FiscalPeriod, &l.PrepaidAccount,
			&l.OpeningBalance, &l.Additions, &l.Amortization); err != nil {
			return nil, fmt.Errorf("failed to scan working line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate working lines: %w", err)
	}
	return lines, nil
}

// AddScheduleLines implements storage.LineStore.
func (s *SQLiteStore) AddScheduleLines(ctx context.Context, lines []models.ScheduleLine) error {
	return s.insertLines(ctx, "schedule", len(lines),
		`INSERT INTO schedule_lines (id, upload_id, entity_id, fiscal_year, fiscal_period, apply_date, account,
		     expense_account, debit_amount, credit_amount, prepaid_start_year, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(i int) []any {
			l := &lines[i]
			ensureID(&l.ID)
			k := l.LineKey()
			return []any{l.ID, l.UploadID, k.EntityID, k.FiscalYear, k.PeriodID, strings.TrimSpace(l.ApplyDate), k.Account,
				strings.TrimSpace(l.ExpenseAccount), l.DebitAmount, l.CreditAmount, strings.TrimSpace(l.PrepaidStartYear), l.Description}
		},
	)
}

// AddTrialBalanceLines implements storage.LineStore.
func (s *SQLiteStore) AddTrialBalanceLines(ctx context.Context, lines []models.TrialBalanceLine) error {
	return s.insertLines(ctx, "trial balance", len(lines),
		`INSERT INTO trial_balance_lines (id, upload_id, entity_id, fiscal_year, fiscal_period, account, account_desc, closing_balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		func(i int) []any {
			l := &lines[i]
			ensureID(&l.ID)
			k := l.LineKey()
			return []any{l.ID, l.UploadID, k.EntityID, k.FiscalYear, k.PeriodID, k.Account, l.AccountDesc, l.ClosingBalance}
		},
	)
}

// AddWorkingLines implements storage.LineStore.
func (s *SQLiteStore) AddWorkingLines(ctx context.Context, lines []models.WorkingLine) error {
	return s.insertLines(ctx, "working", len(lines),
		`INSERT INTO working_lines (id, upload_id, entity_id, fiscal_year, fiscal_period, prepaid_account,
		     opening_balance, additions, amortization)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(i int) []any {
			l := &lines[i]
			ensureID(&l.ID)
			k := l.LineKey()
			return []any{l.ID, l.UploadID, k.EntityID, k.FiscalYear, k.PeriodID, k.Account,
				l.OpeningBalance, l.Additions, l.Amortization}
		},
	)
}

// insertLines inserts n rows in one transaction using a prepared statement.
func (s *SQLiteStore) insertLines(ctx context.Context, kind string, n int, query string, argsFor func(i int) []any) error {
	if n == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s line insert: %w", kind, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, argsFor(i)...); err != nil {
			return fmt.Errorf("failed to insert %s line: %w", kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

