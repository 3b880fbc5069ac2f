package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/prepaidrecon/internal/audit"
	"github.com/mmynk/prepaidrecon/internal/middleware"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/recon"
	"github.com/mmynk/prepaidrecon/internal/storage"
	"github.com/mmynk/prepaidrecon/pkg/api"
	"github.com/mmynk/prepaidrecon/pkg/api/apiconnect"
)

// RecordStore is the storage the read paths of the services use.
type RecordStore interface {
	storage.ReconciliationStore
	storage.AdjustmentStore
}

// ReconciliationService implements the Connect ReconciliationService.
type ReconciliationService struct {
	engine   *recon.Engine
	store    RecordStore
	recorder audit.Recorder
}

var _ apiconnect.ReconciliationServiceHandler = (*ReconciliationService)(nil)

// NewReconciliationService creates a ReconciliationService.
func NewReconciliationService(engine *recon.Engine, store RecordStore, recorder audit.Recorder) *ReconciliationService {
	return &ReconciliationService{engine: engine, store: store, recorder: recorder}
}

// RunReconciliations computes one account when Account is set and every
// discovered account of the entity and period otherwise.
func (s *ReconciliationService) RunReconciliations(ctx context.Context, req *connect.Request[api.RunReconciliationsRequest]) (*connect.Response[api.RunReconciliationsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	if err := validateMsg(msg); err != nil {
		return nil, err
	}
	if !storage.InScope(middleware.GetScope(ctx), msg.EntityID) {
		return nil, connect.NewError(connect.CodePermissionDenied, fmt.Errorf("entity %s is outside your scope", msg.EntityID))
	}

	resp := &api.RunReconciliationsResponse{Reconciliations: []*models.Reconciliation{}}
	if msg.Account != "" {
		rec, err := s.engine.ComputeOne(ctx, models.LineKey{
			EntityID:   msg.EntityID,
			PeriodID:   msg.PeriodID,
			FiscalYear: msg.FiscalYear,
			Account:    msg.Account,
		})
		if err != nil {
			slog.Error("RunReconciliations failed", "entity", msg.EntityID, "period", msg.PeriodID, "account", msg.Account, "error", err)
			return nil, toConnectError(err)
		}
		resp.Reconciliations = append(resp.Reconciliations, rec)
	} else {
		recs, err := s.engine.ComputeAll(ctx, msg.EntityID, msg.FiscalYear, msg.PeriodID)
		if err != nil && len(recs) == 0 {
			return nil, toConnectError(err)
		}
		resp.Reconciliations = append(resp.Reconciliations, recs...)
		resp.Errors = splitJoined(err)
	}

	for _, rec := range resp.Reconciliations {
		s.recorder.Record(ctx, models.AuditEntry{
			UserID:     userID,
			Action:     audit.ActionCompute,
			Resource:   audit.ResourceReconciliation,
			ResourceID: rec.ID,
			Metadata:   map[string]any{"status": rec.Status, "version": rec.Version},
		})
	}
	return connect.NewResponse(resp), nil
}

// GetReconciliation returns one live record with its adjustments and,
// on request, its evidence trail.
func (s *ReconciliationService) GetReconciliation(ctx context.Context, req *connect.Request[api.GetReconciliationRequest]) (*connect.Response[api.GetReconciliationResponse], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}

	rec, err := liveRecord(ctx, s.store, req.Msg.ID)
	if err != nil {
		return nil, err
	}

	adjustments, err := s.store.ListAdjustments(ctx, storage.AdjustmentFilter{ReconciliationID: rec.ID})
	if err != nil {
		slog.Error("GetReconciliation: failed to list adjustments", "id", rec.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &api.GetReconciliationResponse{Reconciliation: rec, Adjustments: adjustments}
	if req.Msg.WithEvidence {
		ev, err := s.engine.BuildEvidence(ctx, rec.ID)
		if err != nil {
			slog.Error("GetReconciliation: failed to build evidence", "id", rec.ID, "error", err)
			return nil, toConnectError(err)
		}
		resp.Evidence = ev
	}
	return connect.NewResponse(resp), nil
}

// ListReconciliations lists live records visible to the caller.
func (s *ReconciliationService) ListReconciliations(ctx context.Context, req *connect.Request[api.ListReconciliationsRequest]) (*connect.Response[api.ListReconciliationsResponse], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	msg := req.Msg
	if msg.Status != "" && !msg.Status.Valid() {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown status %q", msg.Status))
	}

	recs, err := s.store.ListReconciliations(ctx, storage.ReconciliationFilter{
		EntityID:   msg.EntityID,
		PeriodID:   msg.PeriodID,
		FiscalYear: msg.FiscalYear,
		Account:    msg.Account,
		Status:     msg.Status,
		EntityIDs:  middleware.GetScope(ctx),
	})
	if err != nil {
		slog.Error("ListReconciliations failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if recs == nil {
		recs = []*models.Reconciliation{}
	}
	return connect.NewResponse(&api.ListReconciliationsResponse{Reconciliations: recs}), nil
}

// DeleteReconciliation soft-deletes a record. Administrators only.
func (s *ReconciliationService) DeleteReconciliation(ctx context.Context, req *connect.Request[api.DeleteReconciliationRequest]) (*connect.Response[api.DeleteReconciliationResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRole(ctx, adminRoles); err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}
	if _, err := liveRecord(ctx, s.store, req.Msg.ID); err != nil {
		return nil, err
	}

	rec, err := s.engine.Delete(ctx, req.Msg.ID)
	if err != nil {
		slog.Error("DeleteReconciliation failed", "id", req.Msg.ID, "error", err)
		return nil, toConnectError(err)
	}

	s.recorder.Record(ctx, models.AuditEntry{
		UserID:     userID,
		Action:     audit.ActionDelete,
		Resource:   audit.ResourceReconciliation,
		ResourceID: rec.ID,
		Metadata:   map[string]any{"version": rec.Version},
	})
	return connect.NewResponse(&api.DeleteReconciliationResponse{Reconciliation: rec}), nil
}

// liveRecord returns the live record with id if the caller may see it.
// Records outside the caller's scope read as not found.
func liveRecord(ctx context.Context, store storage.ReconciliationStore, id string) (*models.Reconciliation, error) {
	rec, err := store.GetReconciliation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound("reconciliation", id)
	}
	if err != nil {
		slog.Error("Failed to get reconciliation", "id", id, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if rec.IsDeleted() || !storage.InScope(middleware.GetScope(ctx), rec.EntityID) {
		return nil, notFound("reconciliation", id)
	}
	return rec, nil
}

// splitJoined flattens an errors.Join result into messages.
func splitJoined(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
