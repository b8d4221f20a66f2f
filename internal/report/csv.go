package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	utf8BOM        = "\xEF\xBB\xBF"
	dateTimeLayout = "2006/01/02 15:04"
	totalRowLabel  = "合計"
)

var fixedHeader = []string{"注文日時", "クラス", "園児名", "フリガナ", "利き手"}

// WriteCSV writes p as a BOM-prefixed UTF-8 CSV: one row per child with a
// trailing row total, then a grand-total row.
func WriteCSV(w io.Writer, p *Pivot, m Mode) error {
	if p.Empty() {
		return ErrNoData
	}
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	for _, record := range records(p, m) {
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func records(p *Pivot, m Mode) [][]string {
	out := make([][]string, 0, len(p.Rows)+2)

	header := append([]string{}, fixedHeader...)
	header = append(header, p.Products...)
	header = append(header, m.totalLabel())
	out = append(out, header)

	for _, child := range p.Rows {
		meta := p.Meta[child]
		row := []string{
			meta.OrderDate.Format(dateTimeLayout),
			meta.ClassLabel,
			string(child),
			meta.Kana,
			meta.Handedness,
		}
		for _, product := range p.Products {
			row = append(row, formatCell(p.Value(child, product), m))
		}
		row = append(row, formatCell(p.RowTotal(child), m))
		out = append(out, row)
	}

	footer := []string{"", "", "", "", totalRowLabel}
	for _, product := range p.Products {
		footer = append(footer, formatCell(p.ColumnTotal(product), m))
	}
	footer = append(footer, formatCell(p.GrandTotal(), m))
	return append(out, footer)
}

func formatCell(v decimal.Decimal, m Mode) string {
	n := v.Round(0).IntPart()
	if m == ModeAmount {
		return yen.Sprintf("%d", n)
	}
	return strconv.FormatInt(n, 10)
}
