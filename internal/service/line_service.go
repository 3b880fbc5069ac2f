package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/prepaidrecon/internal/audit"
	"github.com/mmynk/prepaidrecon/internal/ingest"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/pkg/api"
	"github.com/mmynk/prepaidrecon/pkg/api/apiconnect"
)

var uploadActions = map[ingest.Kind]string{
	ingest.KindSchedule:     audit.ActionUploadSchedule,
	ingest.KindTrialBalance: audit.ActionUploadTB,
	ingest.KindWorking:      audit.ActionUploadWorking,
}

// LineService implements the Connect LineService.
type LineService struct {
	importer *ingest.Importer
	recorder audit.Recorder
}

var _ apiconnect.LineServiceHandler = (*LineService)(nil)

// NewLineService creates a LineService.
func NewLineService(importer *ingest.Importer, recorder audit.Recorder) *LineService {
	return &LineService{importer: importer, recorder: recorder}
}

// ImportLines stores one batch of source lines, either a workbook sheet or
// lines already in canonical form. Administrators only.
func (s *LineService) ImportLines(ctx context.Context, req *connect.Request[api.ImportLinesRequest]) (*connect.Response[api.ImportLinesResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRole(ctx, adminRoles); err != nil {
		return nil, err
	}
	msg := req.Msg
	if err := validateMsg(msg); err != nil {
		return nil, err
	}
	kind, err := ingest.ParseKind(msg.Kind)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	batch := ingest.Batch{UploadID: msg.UploadID, EntityID: msg.EntityID, PeriodID: msg.PeriodID}
	var res *ingest.Result
	if len(msg.Workbook) > 0 {
		res, err = s.importer.ImportSheet(ctx, kind, bytes.NewReader(msg.Workbook), msg.Sheet, batch)
	} else {
		lines := ingest.Lines{
			Schedule:     msg.ScheduleLines,
			TrialBalance: msg.TrialBalanceLines,
			Working:      msg.WorkingLines,
		}
		if err := requireLines(kind, lines); err != nil {
			return nil, err
		}
		res, err = s.importer.ImportLines(ctx, kind, lines, batch)
	}
	if err != nil {
		slog.Error("ImportLines failed", "kind", kind, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	s.recorder.Record(ctx, models.AuditEntry{
		UserID:     userID,
		Action:     uploadActions[kind],
		Resource:   audit.ResourceUpload,
		ResourceID: res.UploadID,
		Metadata:   map[string]any{"kind": string(kind), "lines": res.Lines, "entityId": msg.EntityID, "periodId": msg.PeriodID},
	})
	return connect.NewResponse(&api.ImportLinesResponse{UploadID: res.UploadID, Kind: string(res.Kind), Lines: res.Lines}), nil
}

func requireLines(kind ingest.Kind, lines ingest.Lines) error {
	var n int
	switch kind {
	case ingest.KindSchedule:
		n = len(lines.Schedule)
	case ingest.KindTrialBalance:
		n = len(lines.TrialBalance)
	case ingest.KindWorking:
		n = len(lines.Working)
	}
	if n == 0 {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("no %s lines or workbook supplied", kind))
	}
	return nil
}
