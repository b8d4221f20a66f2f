package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "集計"

// WriteXLSX writes the same table as WriteCSV to a single-sheet workbook,
// keeping value cells numeric.
func WriteXLSX(w io.Writer, p *Pivot, m Mode) error {
	if p.Empty() {
		return ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, 0, len(fixedHeader)+len(p.Products)+1)
	for _, h := range fixedHeader {
		header = append(header, h)
	}
	for _, product := range p.Products {
		header = append(header, product)
	}
	header = append(header, m.totalLabel())
	if err := setRow(f, 1, header); err != nil {
		return err
	}

	rowNum := 2
	for _, child := range p.Rows {
		meta := p.Meta[child]
		row := []interface{}{
			meta.OrderDate.Format(dateTimeLayout),
			meta.ClassLabel,
			string(child),
			meta.Kana,
			meta.Handedness,
		}
		for _, product := range p.Products {
			row = append(row, p.Value(child, product).Round(0).IntPart())
		}
		row = append(row, p.RowTotal(child).Round(0).IntPart())
		if err := setRow(f, rowNum, row); err != nil {
			return err
		}
		rowNum++
	}

	footer := []interface{}{"", "", "", "", totalRowLabel}
	for _, product := range p.Products {
		footer = append(footer, p.ColumnTotal(product).Round(0).IntPart())
	}
	footer = append(footer, p.GrandTotal().Round(0).IntPart())
	if err := setRow(f, rowNum, footer); err != nil {
		return err
	}

	if m == ModeAmount {
		if err := applyYenFormat(f, len(header), rowNum); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

// applyYenFormat groups thousands in every value cell below the header.
func applyYenFormat(f *excelize.File, cols, lastRow int) error {
	style, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	from, err := excelize.CoordinatesToCellName(len(fixedHeader)+1, 2)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(cols, lastRow)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheetName, from, to, style)
}
