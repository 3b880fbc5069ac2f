package service

import (
	"context"
	"errors"
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

// AdjustmentService implements the Connect AdjustmentService: the
// maker/checker workflow over adjustment entries.
type AdjustmentService struct {
	workflow *recon.Workflow
	store    RecordStore
	recorder audit.Recorder
}

var _ apiconnect.AdjustmentServiceHandler = (*AdjustmentService)(nil)

// NewAdjustmentService creates an AdjustmentService.
func NewAdjustmentService(workflow *recon.Workflow, store RecordStore, recorder audit.Recorder) *AdjustmentService {
	return &AdjustmentService{workflow: workflow, store: store, recorder: recorder}
}

// ProposeAdjustment records a pending entry made by the caller.
func (s *AdjustmentService) ProposeAdjustment(ctx context.Context, req *connect.Request[api.ProposeAdjustmentRequest]) (*connect.Response[api.ProposeAdjustmentResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRole(ctx, proposerRoles); err != nil {
		return nil, err
	}
	msg := req.Msg
	if err := validateMsg(msg); err != nil {
		return nil, err
	}
	if _, err := liveRecord(ctx, s.store, msg.ReconciliationID); err != nil {
		return nil, err
	}

	adj, err := s.workflow.Propose(ctx, recon.Proposal{
		ReconciliationID: msg.ReconciliationID,
		MakerID:          userID,
		EntityID:         msg.EntityID,
		PeriodID:         msg.PeriodID,
		DebitAccount:     msg.DebitAccount,
		CreditAccount:    msg.CreditAccount,
		Amount:           msg.Amount,
		DebitAmount:      msg.DebitAmount,
		CreditAmount:     msg.CreditAmount,
		Explanation:      msg.Explanation,
	})
	if err != nil {
		slog.Warn("ProposeAdjustment failed", "reconciliation_id", msg.ReconciliationID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	s.recorder.Record(ctx, models.AuditEntry{
		UserID:     userID,
		Action:     audit.ActionAdjustmentPropose,
		Resource:   audit.ResourceAdjustment,
		ResourceID: adj.ID,
		Metadata: map[string]any{
			"reconciliationId": adj.ReconciliationID,
			"amount":           adj.Amount.String(),
			"impactOnPrepaid":  adj.ImpactOnPrepaid.String(),
		},
	})
	return connect.NewResponse(&api.ProposeAdjustmentResponse{Adjustment: adj}), nil
}

// ApproveAdjustment approves a pending entry and recomputes its record.
func (s *AdjustmentService) ApproveAdjustment(ctx context.Context, req *connect.Request[api.ApproveAdjustmentRequest]) (*connect.Response[api.ApproveAdjustmentResponse], error) {
	userID, err := s.checker(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleAdjustment(ctx, req.Msg.ID); err != nil {
		return nil, err
	}

	d, err := s.workflow.Approve(ctx, req.Msg.ID, userID, req.Msg.Comment)
	if err != nil {
		slog.Warn("ApproveAdjustment failed", "id", req.Msg.ID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	s.recordDecision(ctx, userID, audit.ActionAdjustmentApprove, d)
	return connect.NewResponse(&api.ApproveAdjustmentResponse{Adjustment: d.Adjustment, Reconciliation: d.Reconciliation}), nil
}

// RejectAdjustment rejects a pending entry and reopens its record.
func (s *AdjustmentService) RejectAdjustment(ctx context.Context, req *connect.Request[api.RejectAdjustmentRequest]) (*connect.Response[api.RejectAdjustmentResponse], error) {
	userID, err := s.checker(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleAdjustment(ctx, req.Msg.ID); err != nil {
		return nil, err
	}

	d, err := s.workflow.Reject(ctx, req.Msg.ID, userID, req.Msg.Comment)
	if err != nil {
		slog.Warn("RejectAdjustment failed", "id", req.Msg.ID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	s.recordDecision(ctx, userID, audit.ActionAdjustmentReject, d)
	return connect.NewResponse(&api.RejectAdjustmentResponse{Adjustment: d.Adjustment, Reconciliation: d.Reconciliation}), nil
}

// GetAdjustment returns an entry with its approval history.
func (s *AdjustmentService) GetAdjustment(ctx context.Context, req *connect.Request[api.GetAdjustmentRequest]) (*connect.Response[api.GetAdjustmentResponse], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}
	adj, err := s.visibleAdjustment(ctx, req.Msg.ID)
	if err != nil {
		return nil, err
	}
	approvals, err := s.store.ListApprovals(ctx, adj.ID)
	if err != nil {
		slog.Error("GetAdjustment: failed to list approvals", "id", adj.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&api.GetAdjustmentResponse{Adjustment: adj, Approvals: approvals}), nil
}

// ListAdjustments lists live entries visible to the caller.
func (s *AdjustmentService) ListAdjustments(ctx context.Context, req *connect.Request[api.ListAdjustmentsRequest]) (*connect.Response[api.ListAdjustmentsResponse], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	msg := req.Msg
	list, err := s.store.ListAdjustments(ctx, storage.AdjustmentFilter{
		ReconciliationID: msg.ReconciliationID,
		EntityID:         msg.EntityID,
		Status:           msg.Status,
		MakerID:          msg.MakerID,
		EntityIDs:        middleware.GetScope(ctx),
	})
	if err != nil {
		slog.Error("ListAdjustments failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if list == nil {
		list = []*models.AdjustmentEntry{}
	}
	return connect.NewResponse(&api.ListAdjustmentsResponse{Adjustments: list}), nil
}

// ListApprovals returns the approval history of one entry, oldest first.
func (s *AdjustmentService) ListApprovals(ctx context.Context, req *connect.Request[api.ListApprovalsRequest]) (*connect.Response[api.ListApprovalsResponse], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}
	if _, err := s.visibleAdjustment(ctx, req.Msg.AdjustmentID); err != nil {
		return nil, err
	}
	approvals, err := s.store.ListApprovals(ctx, req.Msg.AdjustmentID)
	if err != nil {
		slog.Error("ListApprovals failed", "id", req.Msg.AdjustmentID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&api.ListApprovalsResponse{Approvals: approvals}), nil
}

// checker authenticates a checker-only call and validates its message.
func (s *AdjustmentService) checker(ctx context.Context, msg any) (string, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return "", err
	}
	if err := requireRole(ctx, checkerRoles); err != nil {
		return "", err
	}
	if err := validateMsg(msg); err != nil {
		return "", err
	}
	return userID, nil
}

// visibleAdjustment returns the live entry with id if the caller may see
// both the entry and the reconciliation that owns it.
func (s *AdjustmentService) visibleAdjustment(ctx context.Context, id string) (*models.AdjustmentEntry, error) {
	adj, err := s.store.GetAdjustment(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound("adjustment", id)
	}
	if err != nil {
		slog.Error("Failed to get adjustment", "id", id, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	scope := middleware.GetScope(ctx)
	if adj.IsDeleted() || !storage.InScope(scope, adj.EntityID) {
		return nil, notFound("adjustment", id)
	}

	// Soft-deleted records still carry their entity.
	rec, err := s.store.GetReconciliation(ctx, adj.ReconciliationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound("adjustment", id)
	}
	if err != nil {
		slog.Error("Failed to get reconciliation of adjustment", "id", id, "reconciliation_id", adj.ReconciliationID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !storage.InScope(scope, rec.EntityID) {
		return nil, notFound("adjustment", id)
	}
	return adj, nil
}

func (s *AdjustmentService) recordDecision(ctx context.Context, userID, action string, d *recon.Decision) {
	meta := map[string]any{"reconciliationId": d.Adjustment.ReconciliationID}
	if d.Reconciliation != nil {
		meta["status"] = d.Reconciliation.Status
		meta["version"] = d.Reconciliation.Version
	}
	s.recorder.Record(ctx, models.AuditEntry{
		UserID:     userID,
		Action:     action,
		Resource:   audit.ResourceAdjustment,
		ResourceID: d.Adjustment.ID,
		Metadata:   meta,
	})
}
