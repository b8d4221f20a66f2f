// Package report reshapes flat order-line rows into child × product pivot
// tables and serializes them for download.
package report

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNoData = errors.New("no data")

// ChildKey identifies a pivot row. It is the child's display name, so two
// children with identical names share one row.
type ChildKey string

// ChildMeta labels a pivot row. The first tuple seen for a child wins.
type ChildMeta struct {
	OrderDate  time.Time
	ClassLabel string
	Kana       string
	Handedness string
}

type Tuple struct {
	Child   ChildKey
	Product string
	Value   decimal.Decimal
	Meta    ChildMeta
}

type Pivot struct {
	// Products are the column headers, sorted.
	Products []string
	// Rows are the children in first-seen input order.
	Rows  []ChildKey
	Meta  map[ChildKey]ChildMeta
	Cells map[ChildKey]map[string]decimal.Decimal
}

// BuildPivot accumulates tuples into a pivot. It is pure and deterministic
// for a given input order.
func BuildPivot(tuples []Tuple) *Pivot {
	p := &Pivot{
		Meta:  map[ChildKey]ChildMeta{},
		Cells: map[ChildKey]map[string]decimal.Decimal{},
	}
	products := map[string]bool{}

	for _, t := range tuples {
		if !products[t.Product] {
			products[t.Product] = true
			p.Products = append(p.Products, t.Product)
		}
		row, ok := p.Cells[t.Child]
		if !ok {
			row = map[string]decimal.Decimal{}
			p.Cells[t.Child] = row
			p.Meta[t.Child] = t.Meta
			p.Rows = append(p.Rows, t.Child)
		}
		row[t.Product] = row[t.Product].Add(t.Value)
	}

	sort.Strings(p.Products)
	return p
}

func (p *Pivot) Empty() bool {
	return len(p.Rows) == 0
}

// Value returns the cell for child and product; absent cells are zero.
func (p *Pivot) Value(child ChildKey, product string) decimal.Decimal {
	return p.Cells[child][product]
}

func (p *Pivot) RowTotal(child ChildKey) decimal.Decimal {
	total := decimal.Zero
	for _, v := range p.Cells[child] {
		total = total.Add(v)
	}
	return total
}

func (p *Pivot) ColumnTotal(product string) decimal.Decimal {
	total := decimal.Zero
	for _, child := range p.Rows {
		total = total.Add(p.Value(child, product))
	}
	return total
}

func (p *Pivot) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, child := range p.Rows {
		total = total.Add(p.RowTotal(child))
	}
	return total
}
