package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() *Table {
	at := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	return &Table{
		Title: "Workflow audit",
		Columns: []Column{
			{Key: "timestamp", Label: "Timestamp"},
			{Key: "instance_type", Label: "Type"},
			{Key: "event_name", Label: "Event"},
			{Key: "notes"},
		},
		Rows: []Row{
			{"timestamp": at, "instance_type": "Payment", "event_name": "verify_payment_completed", "notes": "paid, in cash"},
			{"timestamp": at.Add(time.Hour), "instance_type": "Complaint", "event_name": "close_complaint"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{"excel", FormatXLSX, false},
		{"xlsx", FormatXLSX, false},
		{"pdf", FormatPDF, false},
		{"docx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleTable()))
	assert.Equal(t,
		"Timestamp,Type,Event,notes\n"+
			"2024-06-03T09:30:00Z,Payment,verify_payment_completed,\"paid, in cash\"\n"+
			"2024-06-03T10:30:00Z,Complaint,close_complaint,\n",
		buf.String())
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Audit")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Timestamp", "Type", "Event", "notes"}, rows[0])
	assert.Equal(t, "Payment", rows[1][1])
	assert.Equal(t, "close_complaint", rows[2][2])
}

func TestWritePDF(t *testing.T) {
	table := sampleTable()
	for i := 0; i < 120; i++ {
		table.Rows = append(table.Rows, Row{"instance_type": "MaintenanceRequest", "event_name": "assign_technician"})
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatPDF, table))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	buf.Reset()
	require.NoError(t, WritePDF(&buf, &Table{Title: "Empty", Columns: table.Columns}, DefaultPDFOptions()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
