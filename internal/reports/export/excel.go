package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelOptions configures workbook output.
type ExcelOptions struct {
	SheetName       string
	FreezeHeader    bool
	AutoFilter      bool
	TimestampFormat string
	HeaderFill      string
	HeaderFont      string
	MaxColumnWidth  float64
}

func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:       "Audit",
		FreezeHeader:    true,
		AutoFilter:      true,
		TimestampFormat: "yyyy-mm-dd hh:mm:ss",
		HeaderFill:      "4472C4",
		HeaderFont:      "FFFFFF",
		MaxColumnWidth:  60,
	}
}

// WriteExcel writes t as a single-sheet workbook. Timestamps stay native
// date cells so they sort and filter in a spreadsheet.
func WriteExcel(w io.Writer, t *Table, opts ExcelOptions) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := opts.SheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: opts.HeaderFont},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{opts.HeaderFill}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &opts.TimestampFormat})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	widths := make([]float64, len(t.Columns))
	for i, label := range t.labels() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, label); err != nil {
			return err
		}
		widths[i] = float64(len(label)) + 2
	}
	last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for r, row := range t.Rows {
		for i, c := range t.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			value := row[c.Key]
			switch v := value.(type) {
			case time.Time:
				if err := f.SetCellValue(sheet, cell, v.UTC()); err != nil {
					return err
				}
				if err := f.SetCellStyle(sheet, cell, cell, dateStyle); err != nil {
					return err
				}
				widths[i] = max(widths[i], 20)
				continue
			case nil:
				continue
			}
			text := formatCell(value, time.RFC3339)
			if err := f.SetCellValue(sheet, cell, text); err != nil {
				return err
			}
			widths[i] = max(widths[i], float64(len(text))+2)
		}
	}

	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if opts.MaxColumnWidth > 0 && width > opts.MaxColumnWidth {
			width = opts.MaxColumnWidth
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}

	if opts.FreezeHeader {
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return fmt.Errorf("failed to freeze header: %w", err)
		}
	}
	if opts.AutoFilter && len(t.Rows) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(t.Columns), len(t.Rows)+1)
		if err := f.AutoFilter(sheet, "A1:"+end, nil); err != nil {
			return fmt.Errorf("failed to add filter: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
