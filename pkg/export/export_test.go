package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterKeepsHeaderOrder(t *testing.T) {
	data := Dataset{
		Headers: []string{"merchant_id", "name", "review_status"},
		Rows: []map[string]string{
			{"merchant_id": "1", "name": "Tindahan, Inc.", "review_status": "PENDING"},
			{"merchant_id": "2", "review_status": ""},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "merchant_id,name,review_status\n1,\"Tindahan, Inc.\",PENDING\n2,,\n", string(out))

	bom := &CSVExporter{BOM: true}
	out, err = bom.Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}))
	assert.Equal(t, "\uFEFFmerchant_id,name,review_status\n", strings.SplitAfterN(string(out), "\n", 2)[0])

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRendersWideTables(t *testing.T) {
	headers := make([]string, 12)
	row := make(map[string]string, 12)
	for i := range headers {
		headers[i] = fmt.Sprintf("column_with_a_long_name_%d", i)
		row[headers[i]] = strings.Repeat("value ", 10)
	}
	rows := make([]map[string]string, 80)
	for i := range rows {
		rows[i] = row
	}
	out, err := (&PDFExporter{Subtitle: "generated 2024-03-01 10:30:00"}).Render(Dataset{Headers: headers, Rows: rows}, "Merchants")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}
