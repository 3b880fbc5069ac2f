package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/prepaidrecon/internal/audit"
	"github.com/mmynk/prepaidrecon/internal/calculator"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
	"github.com/mmynk/prepaidrecon/pkg/api"
	"github.com/mmynk/prepaidrecon/pkg/api/apiconnect"
)

// SettingsStore is the storage the SettingsService needs.
type SettingsStore interface {
	storage.SettingsStore
	storage.AuditStore
}

// SettingsService implements the Connect SettingsService: tolerance rules,
// fiscal periods and the audit trail.
type SettingsService struct {
	store    SettingsStore
	recorder audit.Recorder
}

var _ apiconnect.SettingsServiceHandler = (*SettingsService)(nil)

// NewSettingsService creates a SettingsService.
func NewSettingsService(store SettingsStore, recorder audit.Recorder) *SettingsService {
	return &SettingsService{store: store, recorder: recorder}
}

func (s *SettingsService) ListToleranceRules(ctx context.Context, req *connect.Request[api.ListToleranceRulesRequest]) (*connect.Response[api.ListToleranceRulesResponse], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	rules, err := s.store.ListToleranceRules(ctx)
	if err != nil {
		slog.Error("ListToleranceRules failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if rules == nil {
		rules = []models.ToleranceRule{}
	}
	return connect.NewResponse(&api.ListToleranceRulesResponse{Rules: rules}), nil
}

// PutToleranceRule creates or replaces a rule. A missing ID creates a new
// rule; a set DeletedAt retires it.
func (s *SettingsService) PutToleranceRule(ctx context.Context, req *connect.Request[api.PutToleranceRuleRequest]) (*connect.Response[api.PutToleranceRuleResponse], error) {
	userID, err := s.admin(ctx)
	if err != nil {
		return nil, err
	}
	rule := req.Msg.Rule
	rule.ID = strings.TrimSpace(rule.ID)
	rule.EntityID = strings.TrimSpace(rule.EntityID)
	rule.PeriodID = strings.TrimSpace(rule.PeriodID)
	if rule.Amount.IsNegative() {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("tolerance amount must not be negative"))
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	if err := s.store.PutToleranceRule(ctx, rule); err != nil {
		slog.Error("PutToleranceRule failed", "id", rule.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.recorder.Record(ctx, models.AuditEntry{
		UserID:     userID,
		Action:     audit.ActionMasterCRUD,
		Resource:   audit.ResourceTolerance,
		ResourceID: rule.ID,
		Metadata:   map[string]any{"entityId": rule.EntityID, "periodId": rule.PeriodID, "amount": rule.Amount.String(), "deleted": rule.DeletedAt != nil},
	})
	return connect.NewResponse(&api.PutToleranceRuleResponse{Rule: rule}), nil
}

// PutPeriod creates or replaces fiscal period master data.
func (s *SettingsService) PutPeriod(ctx context.Context, req *connect.Request[api.PutPeriodRequest]) (*connect.Response[api.PutPeriodResponse], error) {
	userID, err := s.admin(ctx)
	if err != nil {
		return nil, err
	}
	p := req.Msg.Period
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("period id required"))
	}
	if p.EndDate != "" {
		d, ok := calculator.ParseDate(p.EndDate)
		if !ok {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid end date %q", p.EndDate))
		}
		p.EndDate = d
	}

	if err := s.store.PutPeriod(ctx, p); err != nil {
		slog.Error("PutPeriod failed", "id", p.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.recorder.Record(ctx, models.AuditEntry{
		UserID:     userID,
		Action:     audit.ActionMasterCRUD,
		Resource:   audit.ResourcePeriod,
		ResourceID: p.ID,
		Metadata:   map[string]any{"endDate": p.EndDate},
	})
	return connect.NewResponse(&api.PutPeriodResponse{Period: p}), nil
}

// ListAuditEntries returns the audit trail of one resource.
func (s *SettingsService) ListAuditEntries(ctx context.Context, req *connect.Request[api.ListAuditEntriesRequest]) (*connect.Response[api.ListAuditEntriesResponse], error) {
	if _, err := s.admin(ctx); err != nil {
		return nil, err
	}
	if err := validateMsg(req.Msg); err != nil {
		return nil, err
	}
	entries, err := s.store.ListAuditEntries(ctx, req.Msg.Resource, req.Msg.ResourceID)
	if err != nil {
		slog.Error("ListAuditEntries failed", "resource", req.Msg.Resource, "id", req.Msg.ResourceID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}
	return connect.NewResponse(&api.ListAuditEntriesResponse{Entries: entries}), nil
}

func (s *SettingsService) admin(ctx context.Context) (string, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return "", err
	}
	if err := requireRole(ctx, adminRoles); err != nil {
		return "", err
	}
	return userID, nil
}
