package audit

import (
	"context"
	"testing"
	"time"

	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage/memory"
)

func TestStoreRecorder_FillsDefaults(t *testing.T) {
	store := memory.New()
	rec := NewStoreRecorder(store)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	ctx := context.Background()
	rec.Record(ctx, models.AuditEntry{UserID: "u1", Action: ActionAdjustmentPropose, Resource: ResourceAdjustment, ResourceID: "a1"})
	rec.Record(ctx, models.AuditEntry{UserID: "u2", Action: ActionAdjustmentApprove, Resource: ResourceAdjustment, ResourceID: "a1",
		Metadata: map[string]any{"comment": "ok"}})

	entries, err := store.ListAuditEntries(ctx, ResourceAdjustment, "a1")
	if err != nil {
		t.Fatalf("ListAuditEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.ID == "" || !first.Timestamp.Equal(fixed) || first.Metadata == nil {
		t.Errorf("defaults not filled: %+v", first)
	}
	if entries[1].Action != ActionAdjustmentApprove || entries[1].Metadata["comment"] != "ok" {
		t.Errorf("second entry = %+v", entries[1])
	}
}
