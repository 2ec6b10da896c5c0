package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	Delimiter       rune
	UseCRLF         bool
	IncludeHeader   bool
	TimestampFormat string
}

func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:       ',',
		IncludeHeader:   true,
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	}
}

// WriteCSV writes t as CSV.
func WriteCSV(w io.Writer, t *Table, opts CSVOptions) error {
	writer := csv.NewWriter(w)
	writer.Comma = opts.Delimiter
	writer.UseCRLF = opts.UseCRLF

	if opts.IncludeHeader {
		if err := writer.Write(t.labels()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			record[i] = formatCell(row[c.Key], opts.TimestampFormat)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
