// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/prepaidrecon/internal/models"
)

var (
	// ErrNotFound is returned when a record, entry or period does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by ReplaceReconciliation when the stored
	// version no longer matches, and by InsertReconciliation when a live
	// record already exists for the same triple.
	ErrVersionConflict = errors.New("version conflict")

	// ErrStatusConflict is returned by ReplaceAdjustment when the stored
	// entry is no longer in the expected status.
	ErrStatusConflict = errors.New("status conflict")
)

// ReconciliationFilter narrows ListReconciliations. Empty fields match all.
type ReconciliationFilter struct {
	EntityID   string
	PeriodID   string
	FiscalYear string
	Account    string
	Status     models.ReconciliationStatus

	// EntityIDs restricts the result to these entities when non-nil.
	EntityIDs []string

	IncludeDeleted bool
}

// AdjustmentFilter narrows ListAdjustments. Empty fields match all.
// Soft-deleted entries are never listed.
type AdjustmentFilter struct {
	ReconciliationID string
	EntityID         string
	Status           models.AdjustmentStatus
	MakerID          string

	// EntityIDs restricts the result to these entities when non-nil.
	EntityIDs []string
}

// LineStore holds the three ingested source line collections.
// Lines are immutable once added; duplicates are kept as delivered.
type LineStore interface {
	// ScheduleLines returns the schedule lines matching filter, in ingestion order.
	// Filtering follows matcher.MatchesAccount.
	ScheduleLines(ctx context.Context, filter models.LineKey) ([]models.ScheduleLine, error)

	// TrialBalanceLines returns the TB lines matching filter, in ingestion order.
	TrialBalanceLines(ctx context.Context, filter models.LineKey) ([]models.TrialBalanceLine, error)

	// WorkingLines returns the PPREC lines matching filter, in ingestion order.
	WorkingLines(ctx context.Context, filter models.LineKey) ([]models.WorkingLine, error)

	AddScheduleLines(ctx context.Context, lines []models.ScheduleLine) error
	AddTrialBalanceLines(ctx context.Context, lines []models.TrialBalanceLine) error
	AddWorkingLines(ctx context.Context, lines []models.WorkingLine) error
}

// ReconciliationStore persists Reconciliation records.
// Implementations return copies; callers may mutate what they get back.
type ReconciliationStore interface {
	// GetReconciliation returns the record with id, soft-deleted or not.
	// Returns ErrNotFound if it never existed.
	GetReconciliation(ctx context.Context, id string) (*models.Reconciliation, error)

	// FindReconciliation returns the live record for the (entity, period,
	// account) triple of key. Returns ErrNotFound if there is none.
	FindReconciliation(ctx context.Context, key models.LineKey) (*models.Reconciliation, error)

	// ListReconciliations returns records ordered by entity, period and account.
	ListReconciliations(ctx context.Context, filter ReconciliationFilter) ([]*models.Reconciliation, error)

	// InsertReconciliation stores a new record. Returns ErrVersionConflict
	// if a live record already exists for its triple.
	InsertReconciliation(ctx context.Context, rec *models.Reconciliation) error

	// ReplaceReconciliation overwrites the record with rec.ID if the stored
	// version equals expectedVersion. Returns ErrVersionConflict otherwise.
	ReplaceReconciliation(ctx context.Context, rec *models.Reconciliation, expectedVersion int64) error
}

// AdjustmentStore persists adjustment entries and their approval history.
type AdjustmentStore interface {
	// GetAdjustment returns the entry with id, soft-deleted or not.
	// Returns ErrNotFound if it never existed.
	GetAdjustment(ctx context.Context, id string) (*models.AdjustmentEntry, error)

	// ListAdjustments returns entries ordered by creation time.
	ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]*models.AdjustmentEntry, error)

	InsertAdjustment(ctx context.Context, adj *models.AdjustmentEntry) error

	// ReplaceAdjustment overwrites the entry with adj.ID if its stored status
	// equals expected. Returns ErrStatusConflict otherwise.
	ReplaceAdjustment(ctx context.Context, adj *models.AdjustmentEntry, expected models.AdjustmentStatus) error

	// AppendApproval adds an event to the append-only approval history.
	AppendApproval(ctx context.Context, ev *models.ApprovalEvent) error

	// ListApprovals returns the history of one entry, oldest first.
	ListApprovals(ctx context.Context, adjustmentID string) ([]*models.ApprovalEvent, error)
}

// SettingsStore holds tolerance rules and fiscal period master data.
type SettingsStore interface {
	// ListToleranceRules returns live rules in insertion order.
	ListToleranceRules(ctx context.Context) ([]models.ToleranceRule, error)

	// PutToleranceRule inserts or replaces the rule with rule.ID.
	PutToleranceRule(ctx context.Context, rule models.ToleranceRule) error

	// GetPeriod returns ErrNotFound when the period is unknown.
	GetPeriod(ctx context.Context, id string) (*models.FiscalPeriod, error)

	// PutPeriod inserts or replaces the period with p.ID.
	PutPeriod(ctx context.Context, p models.FiscalPeriod) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail returns nil, nil when no user has that email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns nil, nil when no user has that ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// AuditStore persists audit log entries.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error

	// ListAuditEntries returns the entries for one resource, oldest first.
	ListAuditEntries(ctx context.Context, resource, resourceID string) ([]*models.AuditEntry, error)
}

// Store aggregates every repository the engine and services depend on.
// This abstraction allows swapping storage backends (memory, SQLite, etc.)
// without changing the engine or the service layer.
type Store interface {
	LineStore
	ReconciliationStore
	AdjustmentStore
	SettingsStore
	UserStore
	AuditStore

	// Close releases any resources held by the store.
	Close() error
}

// InScope reports whether entityID is visible under an entity restriction.
// A nil scope is unrestricted.
func InScope(scope []string, entityID string) bool {
	if scope == nil {
		return true
	}
	for _, e := range scope {
		if e == entityID {
			return true
		}
	}
	return false
}
