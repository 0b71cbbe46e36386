package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/merchant-review-api/internal/models"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
	"github.com/noah-isme/merchant-review-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered export ready to be streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
	Rows        int
}

// ExportService renders a session snapshot as a downloadable file.
type ExportService struct {
	csv      csvRenderer
	pdf      pdfRenderer
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers use the
// pkg/export defaults.
func NewExportService(csv csvRenderer, pdf pdfRenderer, loc *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = &export.CSVExporter{BOM: true}
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{csv: csv, pdf: pdf, location: loc, now: time.Now, logger: logger}
}

// Render exports the snapshot of session in format. Columns keep the table
// order.
func (s *ExportService) Render(session *models.ReviewSession, table models.ReviewTable, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	dataset := snapshotDataset(session.Snapshot, table)
	stamp := s.now().In(s.location)

	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		title := table.Label
		if title == "" {
			title = table.Name
		}
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("%s (%s)", title, models.FormatReviewTimestamp(stamp, s.location)))
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s_%s.%s", table.Key, stamp.Format("20060102_150405"), format)
	s.logger.Info("snapshot exported",
		zap.String("session_id", session.ID),
		zap.String("table", table.Key),
		zap.String("format", format),
		zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{Filename: filename, ContentType: contentType, Payload: payload, Rows: len(dataset.Rows)}, nil
}

func snapshotDataset(records []models.ReviewRecord, table models.ReviewTable) export.Dataset {
	var headers []string
	if len(records) > 0 {
		headers = append(headers, records[0].Row.Columns...)
	} else {
		headers = append([]string{table.IdentityColumn}, table.Columns.All()...)
	}
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		row := make(map[string]string, len(headers))
		for _, h := range headers {
			row[h] = record.Row.String(h)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
