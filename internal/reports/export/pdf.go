package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions configures PDF output.
type PDFOptions struct {
	PageSize       string
	Orientation    string // portrait or landscape
	FontFamily     string
	FontSize       float64
	TitleFontSize  float64
	DateFormat     string
	HeaderColor    [3]int
	AlternateColor [3]int
	Margin         float64
	Now            func() time.Time
}

func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "landscape",
		FontFamily:     "Arial",
		FontSize:       8,
		TitleFontSize:  14,
		DateFormat:     "2006-01-02 15:04",
		HeaderColor:    [3]int{68, 114, 196},
		AlternateColor: [3]int{242, 242, 242},
		Margin:         12,
		Now:            time.Now,
	}
}

const rowHeight = 6.0

// WritePDF writes t as a paginated table. The header row repeats on every
// page; long cells are truncated to the column width.
func WritePDF(w io.Writer, t *Table, opts PDFOptions) error {
	orientation := "P"
	if opts.Orientation == "landscape" {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", opts.PageSize, "")
	pdf.SetMargins(opts.Margin, opts.Margin, opts.Margin)
	pdf.SetAutoPageBreak(false, opts.Margin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-opts.Margin + 2)
		pdf.SetFont(opts.FontFamily, "I", opts.FontSize-1)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pageWidth, pageHeight := pdf.GetPageSize()
	widths := columnWidths(pdf, t, opts, pageWidth-2*opts.Margin)
	labels := t.labels()

	header := func() {
		pdf.SetFont(opts.FontFamily, "B", opts.FontSize)
		pdf.SetFillColor(opts.HeaderColor[0], opts.HeaderColor[1], opts.HeaderColor[2])
		pdf.SetTextColor(255, 255, 255)
		for i, label := range labels {
			pdf.CellFormat(widths[i], rowHeight+1, label, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(opts.FontFamily, "", opts.FontSize)
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.AddPage()
	pdf.SetFont(opts.FontFamily, "B", opts.TitleFontSize)
	pdf.CellFormat(0, 9, t.Title, "", 1, "C", false, 0, "")
	if t.Subtitle != "" {
		pdf.SetFont(opts.FontFamily, "", opts.FontSize+2)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 6, t.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.SetFont(opts.FontFamily, "", opts.FontSize)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 5, "Generated: "+opts.Now().UTC().Format(opts.DateFormat), "", 1, "R", false, 0, "")
	pdf.Ln(3)
	header()

	for r, row := range t.Rows {
		if pdf.GetY()+rowHeight > pageHeight-opts.Margin-4 {
			pdf.AddPage()
			header()
		}
		fill := r%2 == 1
		if fill {
			pdf.SetFillColor(opts.AlternateColor[0], opts.AlternateColor[1], opts.AlternateColor[2])
		}
		for i, c := range t.Columns {
			text := truncate(pdf, formatCell(row[c.Key], opts.DateFormat), widths[i]-2)
			pdf.CellFormat(widths[i], rowHeight, text, "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(t.Rows) == 0 {
		pdf.CellFormat(0, rowHeight, "No events in this period", "1", 1, "C", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

// columnWidths sizes columns to content from the first 100 rows and scales
// them down to fit the page.
func columnWidths(pdf *gofpdf.Fpdf, t *Table, opts PDFOptions, available float64) []float64 {
	widths := make([]float64, len(t.Columns))
	pdf.SetFont(opts.FontFamily, "B", opts.FontSize)
	for i, label := range t.labels() {
		if t.Columns[i].Width > 0 {
			widths[i] = t.Columns[i].Width
			continue
		}
		widths[i] = pdf.GetStringWidth(label) + 4
	}
	pdf.SetFont(opts.FontFamily, "", opts.FontSize)
	sample := t.Rows
	if len(sample) > 100 {
		sample = sample[:100]
	}
	for _, row := range sample {
		for i, c := range t.Columns {
			if c.Width > 0 {
				continue
			}
			widths[i] = max(widths[i], pdf.GetStringWidth(formatCell(row[c.Key], opts.DateFormat))+4)
		}
	}

	var total float64
	for _, width := range widths {
		total += width
	}
	if total > available {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func truncate(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
