package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the statement.
const SheetName = "Statement"

// XLSXWriter writes a statement as a single-sheet workbook. Amount and Balance
// are numeric cells.
type XLSXWriter struct {
	IncludeHeader bool
}

// Write writes the workbook to out.
func (w *XLSXWriter) Write(out io.Writer, s Statement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	// Built-in number format 4 is "#,##0.00".
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	r := 1
	setRow := func(values ...any) error {
		cell, _ := excelize.CoordinatesToCellName(1, r)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("xlsx: row %d: %w", r, err)
		}
		r++
		return nil
	}

	if w.IncludeHeader {
		for _, kv := range summary(s) {
			if err := setRow(kv[0], kv[1]); err != nil {
				return err
			}
		}
		if r > 1 {
			r++ // blank separator row
		}
	}

	headerRow := r
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := setRow(header...); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(columns), headerRow)
	if err := f.SetCellStyle(SheetName, first, last, bold); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	for _, row := range rows(s) {
		if err := setRow(row.Date, row.Description, row.Type, row.amount.InexactFloat64(), row.balance.InexactFloat64(), row.Page, row.Line); err != nil {
			return err
		}
		d, _ := excelize.CoordinatesToCellName(4, r-1)
		e, _ := excelize.CoordinatesToCellName(5, r-1)
		if err := f.SetCellStyle(SheetName, d, e, amount); err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "B", "B", 48)
	_ = f.SetColWidth(SheetName, "C", "E", 14)

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}
