// Package export renders tabular audit data as CSV, Excel or PDF.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts the format names used on the API and CLI.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Column is one output column; Key indexes Row.
type Column struct {
	Key   string
	Label string
	Width float64 // PDF only, in mm; zero means auto
}

// Row maps column keys to values.
type Row map[string]any

// Table is a titled grid of rows.
type Table struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     []Row
}

func (t *Table) labels() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
		if out[i] == "" {
			out[i] = c.Key
		}
	}
	return out
}

// Write renders t in format f.
func Write(w io.Writer, f Format, t *Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t, DefaultCSVOptions())
	case FormatXLSX:
		return WriteExcel(w, t, DefaultExcelOptions())
	case FormatPDF:
		return WritePDF(w, t, DefaultPDFOptions())
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// formatCell renders a value as text. Times use layout.
func formatCell(v any, layout string) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.UTC().Format(layout)
	case *time.Time:
		if x == nil || x.IsZero() {
			return ""
		}
		return x.UTC().Format(layout)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
