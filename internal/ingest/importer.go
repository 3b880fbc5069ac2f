package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mmynk/prepaidrecon/internal/metrics"
	"github.com/mmynk/prepaidrecon/internal/models"
	"github.com/mmynk/prepaidrecon/internal/storage"
)

// Kind names a source line collection.
type Kind string

const (
	KindSchedule     Kind = "schedule"
	KindTrialBalance Kind = "tb"
	KindWorking      Kind = "pprec"
)

// ParseKind accepts the canonical names and a few long forms.
func ParseKind(s string) (Kind, error) {
	switch NormalizeHeader(s) {
	case "schedule", "prepayment_schedule":
		return KindSchedule, nil
	case "tb", "trial_balance":
		return KindTrialBalance, nil
	case "pprec", "working", "working_file":
		return KindWorking, nil
	}
	return "", fmt.Errorf("%w: unknown line kind %q", ErrMalformed, s)
}

// Importer loads spreadsheets into a line store.
type Importer struct {
	store storage.LineStore
}

// NewImporter returns an Importer writing to store.
func NewImporter(store storage.LineStore) *Importer {
	return &Importer{store: store}
}

// Result summarizes one import.
type Result struct {
	UploadID string
	Kind     Kind
	Lines    int
}

// ImportSheet reads one sheet of an xlsx workbook and stores its rows as
// lines of kind. A missing batch upload ID is generated.
func (im *Importer) ImportSheet(ctx context.Context, kind Kind, r io.Reader, sheet string, b Batch) (*Result, error) {
	rows, err := ReadSheet(r, sheet)
	if err != nil {
		return nil, err
	}
	return im.ImportRows(ctx, kind, rows, b)
}

// ImportRows converts and stores already-read rows.
func (im *Importer) ImportRows(ctx context.Context, kind Kind, rows []Row, b Batch) (*Result, error) {
	var (
		lines Lines
		err   error
	)
	switch kind {
	case KindSchedule:
		lines.Schedule, err = ScheduleLines(rows, b)
	case KindTrialBalance:
		lines.TrialBalance, err = TrialBalanceLines(rows, b)
	case KindWorking:
		lines.Working, err = WorkingLines(rows, b)
	default:
		return nil, fmt.Errorf("%w: unknown line kind %q", ErrMalformed, kind)
	}
	if err != nil {
		return nil, err
	}
	return im.ImportLines(ctx, kind, lines, b)
}

// Lines holds already-normalized lines. Only the slice matching the import
// kind is stored.
type Lines struct {
	Schedule     []models.ScheduleLine
	TrialBalance []models.TrialBalanceLine
	Working      []models.WorkingLine
}

// ImportLines stores lines of kind. Every line is stamped with the batch
// upload ID, and blank entity or period keys take the batch defaults.
func (im *Importer) ImportLines(ctx context.Context, kind Kind, lines Lines, b Batch) (*Result, error) {
	if b.UploadID == "" {
		b.UploadID = uuid.New().String()
	}

	var (
		n   int
		err error
	)
	switch kind {
	case KindSchedule:
		for i := range lines.Schedule {
			l := &lines.Schedule[i]
			l.UploadID = b.UploadID
			l.EntityID, l.FiscalPeriod = b.fill(l.EntityID, l.FiscalPeriod)
		}
		n, err = len(lines.Schedule), im.store.AddScheduleLines(ctx, lines.Schedule)
	case KindTrialBalance:
		for i := range lines.TrialBalance {
			l := &lines.TrialBalance[i]
			l.UploadID = b.UploadID
			l.EntityID, l.FiscalPeriod = b.fill(l.EntityID, l.FiscalPeriod)
		}
		n, err = len(lines.TrialBalance), im.store.AddTrialBalanceLines(ctx, lines.TrialBalance)
	case KindWorking:
		for i := range lines.Working {
			l := &lines.Working[i]
			l.UploadID = b.UploadID
			l.EntityID, l.FiscalPeriod = b.fill(l.EntityID, l.FiscalPeriod)
		}
		n, err = len(lines.Working), im.store.AddWorkingLines(ctx, lines.Working)
	default:
		return nil, fmt.Errorf("%w: unknown line kind %q", ErrMalformed, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to import %s lines: %w", kind, err)
	}

	metrics.LinesImported.WithLabelValues(string(kind)).Add(float64(n))
	slog.Info("Lines imported", "kind", kind, "upload_id", b.UploadID, "lines", n)
	return &Result{UploadID: b.UploadID, Kind: kind, Lines: n}, nil
}
