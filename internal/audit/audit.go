// Package audit records who changed what. Every state-changing RPC writes
// one entry through a Recorder.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

// Action tags.
const (
	ActionCompute           = "RECON_COMPUTE"
	ActionDelete            = "RECON_DELETE"
	ActionAdjustmentPropose = "ADJUSTMENT_PROPOSE"
	ActionAdjustmentApprove = "ADJUSTMENT_APPROVE"
	ActionAdjustmentReject  = "ADJUSTMENT_REJECT"
	ActionUploadSchedule    = "UPLOAD_SCHEDULE"
	ActionUploadTB          = "UPLOAD_TB"
	ActionUploadWorking     = "UPLOAD_PPREC"
	ActionMasterCRUD        = "MASTER_CRUD"
	ActionLogin             = "LOGIN"
)

// Resource types.
const (
	ResourceReconciliation = "reconciliation"
	ResourceAdjustment     = "adjustment"
	ResourceUpload         = "upload"
	ResourceTolerance      = "tolerance_rule"
	ResourcePeriod         = "fiscal_period"
	ResourceUser           = "user"
)

// Recorder is the audit sink.
type Recorder interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// StoreRecorder persists entries and mirrors them to slog. A failed write is
// logged and never fails the caller's operation.
type StoreRecorder struct {
	store storage.AuditStore
	now   func() time.Time
}

var _ Recorder = (*StoreRecorder)(nil)

// NewStoreRecorder returns a Recorder backed by store.
func NewStoreRecorder(store storage.AuditStore) *StoreRecorder {
	return &StoreRecorder{store: store, now: time.Now}
}

// Record implements Recorder.
func (r *StoreRecorder) Record(ctx context.Context, entry models.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	slog.Info("Audit",
		"action", entry.Action,
		"resource", entry.Resource,
		"resource_id", entry.ResourceID,
		"user_id", entry.UserID,
	)

	if err := r.store.AppendAuditEntry(ctx, &entry); err != nil {
		slog.Error("Failed to persist audit entry", "id", entry.ID, "action", entry.Action, "error", err)
	}
}

// Discard drops every entry.
type Discard struct{}

// Record implements Recorder.
func (Discard) Record(context.Context, models.AuditEntry) {}
