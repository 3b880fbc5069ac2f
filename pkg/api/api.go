// Package api defines the request and response messages of the
// prepaidrecon.v1 services. Messages travel as JSON; monetary values are
// decimal strings.
package api

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/recon"
)

// RunReconciliationsRequest computes one triple when Account is set and
// every account of the entity and period otherwise.
type RunReconciliationsRequest struct {
	EntityID   string `json:"entityId" validate:"required"`
	PeriodID   string `json:"periodId" validate:"required"`
	FiscalYear string `json:"fiscalYear"`
	Account    string `json:"account,omitempty"`
}

type RunReconciliationsResponse struct {
	Reconciliations []*models.Reconciliation `json:"reconciliations"`

	// Errors lists per-account failures of a partial run.
	Errors []string `json:"errors,omitempty"`
}

type GetReconciliationRequest struct {
	ID           string `json:"id" validate:"required"`
	WithEvidence bool   `json:"withEvidence"`
}

type GetReconciliationResponse struct {
	Reconciliation *models.Reconciliation   `json:"reconciliation"`
	Adjustments    []*models.AdjustmentEntry `json:"adjustments"`
	Evidence       *recon.Evidence           `json:"evidence,omitempty"`
}

type ListReconciliationsRequest struct {
	EntityID   string                      `json:"entityId,omitempty"`
	PeriodID   string                      `json:"periodId,omitempty"`
	FiscalYear string                      `json:"fiscalYear,omitempty"`
	Account    string                      `json:"account,omitempty"`
	Status     models.ReconciliationStatus `json:"status,omitempty"`
}

type ListReconciliationsResponse struct {
	Reconciliations []*models.Reconciliation `json:"reconciliations"`
}

type DeleteReconciliationRequest struct {
	ID string `json:"id" validate:"required"`
}

type DeleteReconciliationResponse struct {
	Reconciliation *models.Reconciliation `json:"reconciliation"`
}

// ProposeAdjustmentRequest carries a maker's proposal. The maker is the
// authenticated caller. Amount falls back to DebitAmount, then CreditAmount.
type ProposeAdjustmentRequest struct {
	ReconciliationID string              `json:"reconciliationId" validate:"required"`
	EntityID         string              `json:"entityId,omitempty"`
	PeriodID         string              `json:"periodId,omitempty"`
	DebitAccount     string              `json:"debitAccount"`
	CreditAccount    string              `json:"creditAccount"`
	Amount           decimal.NullDecimal `json:"amount"`
	DebitAmount      decimal.NullDecimal `json:"debitAmount"`
	CreditAmount     decimal.NullDecimal `json:"creditAmount"`
	Explanation      string              `json:"explanation"`
}

type ProposeAdjustmentResponse struct {
	Adjustment *models.AdjustmentEntry `json:"adjustment"`
}

type ApproveAdjustmentRequest struct {
	ID      string `json:"id" validate:"required"`
	Comment string `json:"comment,omitempty"`
}

type ApproveAdjustmentResponse struct {
	Adjustment     *models.AdjustmentEntry `json:"adjustment"`
	Reconciliation *models.Reconciliation  `json:"reconciliation"`
}

// RejectAdjustmentRequest requires a comment.
type RejectAdjustmentRequest struct {
	ID      string `json:"id" validate:"required"`
	Comment string `json:"comment"`
}

type RejectAdjustmentResponse struct {
	Adjustment     *models.AdjustmentEntry `json:"adjustment"`
	Reconciliation *models.Reconciliation  `json:"reconciliation"`
}

type GetAdjustmentRequest struct {
	ID string `json:"id" validate:"required"`
}

type GetAdjustmentResponse struct {
	Adjustment *models.AdjustmentEntry `json:"adjustment"`
	Approvals  []*models.ApprovalEvent `json:"approvals"`
}

type ListAdjustmentsRequest struct {
	ReconciliationID string                  `json:"reconciliationId,omitempty"`
	EntityID         string                  `json:"entityId,omitempty"`
	Status           models.AdjustmentStatus `json:"status,omitempty"`
	MakerID          string                  `json:"makerId,omitempty"`
}

type ListAdjustmentsResponse struct {
	Adjustments []*models.AdjustmentEntry `json:"adjustments"`
}

type ListApprovalsRequest struct {
	AdjustmentID string `json:"adjustmentId" validate:"required"`
}

type ListApprovalsResponse struct {
	Approvals []*models.ApprovalEvent `json:"approvals"`
}

// ImportLinesRequest uploads lines of one kind, either already normalized
// or as an xlsx workbook (base64 in JSON). EntityID and PeriodID fill rows
// that leave them blank.
type ImportLinesRequest struct {
	Kind     string `json:"kind" validate:"required"`
	UploadID string `json:"uploadId,omitempty"`
	EntityID string `json:"entityId,omitempty"`
	PeriodID string `json:"periodId,omitempty"`

	ScheduleLines     []models.ScheduleLine     `json:"scheduleLines,omitempty"`
	TrialBalanceLines []models.TrialBalanceLine `json:"trialBalanceLines,omitempty"`
	WorkingLines      []models.WorkingLine      `json:"pprecLines,omitempty"`

	Workbook []byte `json:"workbook,omitempty"`
	Sheet    string `json:"sheet,omitempty"`
}

type ImportLinesResponse struct {
	UploadID string `json:"uploadId"`
	Kind     string `json:"kind"`
	Lines    int    `json:"lines"`
}

type ListToleranceRulesRequest struct{}

type ListToleranceRulesResponse struct {
	Rules []models.ToleranceRule `json:"rules"`
}

type PutToleranceRuleRequest struct {
	Rule models.ToleranceRule `json:"rule"`
}

type PutToleranceRuleResponse struct {
	Rule models.ToleranceRule `json:"rule"`
}

type PutPeriodRequest struct {
	Period models.FiscalPeriod `json:"period"`
}

type PutPeriodResponse struct {
	Period models.FiscalPeriod `json:"period"`
}

type ListAuditEntriesRequest struct {
	Resource   string `json:"resource" validate:"required"`
	ResourceID string `json:"resourceId" validate:"required"`
}

type ListAuditEntriesResponse struct {
	Entries []*models.AuditEntry `json:"entries"`
}

// User is the public view of an account.
type User struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName"`
	Role        models.Role `json:"role"`
	EntityIDs   []string    `json:"entityIds,omitempty"`
	CreatedAt   int64       `json:"createdAt"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// RegisterRequest creates an account. Only administrators may call it.
type RegisterRequest struct {
	Email       string      `json:"email" validate:"required,email"`
	DisplayName string      `json:"displayName" validate:"required"`
	Password    string      `json:"password"`
	Role        models.Role `json:"role" validate:"required"`
	EntityIDs   []string    `json:"entityIds,omitempty"`
}

type RegisterResponse struct {
	User *User `json:"user"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}
