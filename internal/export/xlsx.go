package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the post rows.
const SheetName = "Insights"

// XLSXFormatter writes an Excel workbook.
type XLSXFormatter struct{}

// NewXLSX creates an XLSX formatter.
func NewXLSX() *XLSXFormatter {
	return &XLSXFormatter{}
}

// Format writes one header row and one row per post. Views stay blank until fetched.
func (f *XLSXFormatter) Format(w io.Writer, input Input) error {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetName(book.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := book.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := book.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, p := range input.Posts {
		r := toRow(p)
		values := []any{r.ID, r.Created, r.Message, r.Status, r.PromotionStatus, r.Scheduled, nil}
		if r.HasViews {
			values[6] = r.Views
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := book.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := book.SetColWidth(SheetName, "C", "C", 60); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := book.SetColWidth(SheetName, "A", "B", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
