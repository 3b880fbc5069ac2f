package sqlite

import "database/sql"

// schema sets up the database. It runs on startup and is idempotent.
// Monetary columns are TEXT holding decimal strings; timestamps are unix nanoseconds.
// IMPORTANT: reconciliations must be created BEFORE adjustments due to the foreign key.
const schema = `
CREATE TABLE IF NOT EXISTS schedule_lines (
    row_id INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    upload_id TEXT NOT NULL DEFAULT '',
    entity_id TEXT NOT NULL,
    fiscal_year TEXT NOT NULL DEFAULT '',
    fiscal_period TEXT NOT NULL DEFAULT '',
    apply_date TEXT NOT NULL DEFAULT '',
    account TEXT NOT NULL DEFAULT '',
    expense_account TEXT NOT NULL DEFAULT '',
    debit_amount TEXT NOT NULL DEFAULT '0',
    credit_amount TEXT NOT NULL DEFAULT '0',
    prepaid_start_year TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trial_balance_lines (
    row_id INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    upload_id TEXT NOT NULL DEFAULT '',
    entity_id TEXT NOT NULL,
    fiscal_year TEXT NOT NULL DEFAULT '',
    fiscal_period TEXT NOT NULL DEFAULT '',
    account TEXT NOT NULL DEFAULT '',
    account_desc TEXT NOT NULL DEFAULT '',
    closing_balance TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS working_lines (
    row_id INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    upload_id TEXT NOT NULL DEFAULT '',
    entity_id TEXT NOT NULL,
    fiscal_year TEXT NOT NULL DEFAULT '',
    fiscal_period TEXT NOT NULL DEFAULT '',
    prepaid_account TEXT NOT NULL DEFAULT '',
    opening_balance TEXT NOT NULL DEFAULT '0',
    additions TEXT NOT NULL DEFAULT '0',
    amortization TEXT
);

CREATE TABLE IF NOT EXISTS reconciliations (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    fiscal_year TEXT NOT NULL DEFAULT '',
    period_id TEXT NOT NULL,
    prepaid_account TEXT NOT NULL,
    opening_balance TEXT NOT NULL,
    additions TEXT NOT NULL,
    amortization TEXT NOT NULL,
    expected_closing TEXT NOT NULL,
    begin_in_year TEXT NOT NULL,
    total_subsystem TEXT NOT NULL,
    subsystem_divergence TEXT NOT NULL,
    gl_balance TEXT,
    difference TEXT,
    recon_entries TEXT NOT NULL,
    final_difference TEXT,
    expected_closing_adjusted TEXT NOT NULL,
    variance TEXT,
    tolerance_used TEXT NOT NULL,
    status TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS adjustments (
    id TEXT PRIMARY KEY,
    reconciliation_id TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    period_id TEXT NOT NULL,
    debit_account TEXT NOT NULL DEFAULT '',
    credit_account TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    impact_on_prepaid TEXT NOT NULL,
    explanation TEXT NOT NULL,
    status TEXT NOT NULL,
    maker_id TEXT NOT NULL,
    maker_comment TEXT NOT NULL DEFAULT '',
    checker_id TEXT,
    checker_comment TEXT,
    decided_at INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER,
    FOREIGN KEY (reconciliation_id) REFERENCES reconciliations(id)
);

CREATE TABLE IF NOT EXISTS approvals (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    adjustment_id TEXT NOT NULL,
    action TEXT NOT NULL,
    user_id TEXT NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    timestamp INTEGER NOT NULL,
    FOREIGN KEY (adjustment_id) REFERENCES adjustments(id)
);

CREATE TABLE IF NOT EXISTS tolerance_rules (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    entity_id TEXT NOT NULL DEFAULT '',
    period_id TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS fiscal_periods (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    fiscal_year TEXT NOT NULL DEFAULT '',
    end_date TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL,
    entity_ids TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_logs (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL,
    resource TEXT NOT NULL,
    resource_id TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_schedule_entity_account ON schedule_lines(entity_id, account);
CREATE INDEX IF NOT EXISTS idx_tb_entity_account ON trial_balance_lines(entity_id, account);
CREATE INDEX IF NOT EXISTS idx_working_entity_account ON working_lines(entity_id, prepaid_account);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reconciliations_live_triple
    ON reconciliations(entity_id, period_id, prepaid_account) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_adjustments_reconciliation_id ON adjustments(reconciliation_id);
CREATE INDEX IF NOT EXISTS idx_approvals_adjustment_id ON approvals(adjustment_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource, resource_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
