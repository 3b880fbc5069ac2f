package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ToleranceRule is the allowed absolute variance for a scope.
// An empty EntityID or PeriodID matches every entity or period.
type ToleranceRule struct {
	ID        string          `json:"id"`
	EntityID  string          `json:"entityId"`
	PeriodID  string          `json:"periodId"`
	Amount    decimal.Decimal `json:"amount"`
	DeletedAt *time.Time      `json:"deletedAt"`
}

// Specificity ranks how narrowly the rule is scoped.
// Entity and period beats entity, entity beats period, period beats global.
func (t ToleranceRule) Specificity() int {
	s := 0
	if t.EntityID != "" {
		s += 2
	}
	if t.PeriodID != "" {
		s++
	}
	return s
}

// FiscalPeriod is the master-data view of a period that the engine needs:
// its identifier and, when known, its end date (the report date).
type FiscalPeriod struct {
	ID         string `json:"id" yaml:"id"`
	Code       string `json:"code" yaml:"code"`
	Name       string `json:"name" yaml:"name"`
	FiscalYear string `json:"fiscalYear" yaml:"fiscalYear"`

	// EndDate is YYYY-MM-DD. Empty when the period has no explicit end date.
	EndDate string `json:"endDate" yaml:"endDate"`
}

// Warning is a non-fatal data-quality annotation attached to evidence.
type Warning struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Detail  []string `json:"detail,omitempty"`
}

// Warning codes.
const (
	WarnMissingTBRow                = "MISSING_TB_ROW"
	WarnMissingScheduleAmortization = "MISSING_SCHEDULE_AMORTIZATION"
	WarnDuplicateScheduleLines      = "DUPLICATE_SCHEDULE_LINES"
	WarnSubsystemDivergence         = "SUBSYSTEM_DIVERGENCE"
	WarnLinesUnavailable            = "LINES_UNAVAILABLE"
	WarnAdjustmentsUnavailable      = "ADJUSTMENTS_UNAVAILABLE"
)

// AuditEntry is one externally visible audit log row.
type AuditEntry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId"`
	Metadata   map[string]any `json:"metadata"`
	Timestamp  time.Time      `json:"timestamp"`
}
