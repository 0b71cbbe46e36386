package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merchant-review-api/internal/models"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
	"github.com/noah-isme/merchant-review-api/pkg/export"
)

func exportSession() *models.ReviewSession {
	return &models.ReviewSession{
		ID: "s-1",
		Snapshot: []models.ReviewRecord{
			snapshotRecord("M-1", models.ReviewStatusPending, smallFemale, none),
			snapshotRecord("M-2", models.ReviewStatusUntouched, none, none),
		},
	}
}

func newTestExportService() *ExportService {
	svc := NewExportService(export.NewCSVExporter(), nil, manila, nil)
	svc.now = fixedClock()
	return svc
}

func TestExportServiceCSV(t *testing.T) {
	svc := newTestExportService()
	table := testTable()

	result, err := svc.Render(exportSession(), table, "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "merchants_20240301_103000.csv", result.Filename)
	assert.Equal(t, 2, result.Rows)

	lines := strings.Split(strings.TrimSpace(string(result.Payload)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "merchant_id,name,pending_size"))
	assert.Contains(t, lines[1], "SMALL,FEMALE")
}

func TestExportServicePDF(t *testing.T) {
	svc := newTestExportService()
	result, err := svc.Render(exportSession(), testTable(), "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, bytes.HasPrefix(result.Payload, []byte("%PDF")))
}

func TestExportServiceEmptySnapshotUsesReviewColumns(t *testing.T) {
	svc := newTestExportService()
	result, err := svc.Render(&models.ReviewSession{ID: "s-2"}, testTable(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "merchant_id,pending_size,pending_gender,final_size,final_gender,review_status,submitted_by,submitted_at,reviewed_by,reviewed_at,review_comments\n", string(result.Payload))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	_, err := newTestExportService().Render(exportSession(), testTable(), "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
}
