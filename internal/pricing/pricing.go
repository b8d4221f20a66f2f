// Package pricing recomputes order lines against the live catalog. The
// result is a read-time view only; stored order totals are never rewritten.
package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceSource resolves the current catalog price of a product.
// ok is false when the product no longer exists.
type PriceSource interface {
	CurrentPrice(id uuid.UUID) (price decimal.Decimal, ok bool)
}

// Line is an order line as stored: the product reference may be null once
// the product has been deleted from the catalog.
type Line struct {
	ProductID       uuid.NullUUID
	Quantity        int32
	FrozenUnitPrice decimal.Decimal
}

type Reconciled struct {
	Line
	EffectivePrice decimal.Decimal
	Subtotal       decimal.Decimal
	// Drifted is set when the catalog price differs from the frozen one.
	Drifted bool
}

type Result struct {
	Lines    []Reconciled
	Amount   decimal.Decimal
	Quantity int64
}

// Reconcile prices every line at the current catalog price, falling back to
// the frozen price when the product cannot be resolved.
func Reconcile(lines []Line, prices PriceSource) Result {
	res := Result{
		Lines:  make([]Reconciled, 0, len(lines)),
		Amount: decimal.Zero,
	}
	for _, l := range lines {
		r := ReconcileLine(l, prices)
		res.Lines = append(res.Lines, r)
		res.Amount = res.Amount.Add(r.Subtotal)
		res.Quantity += int64(l.Quantity)
	}
	return res
}

func ReconcileLine(l Line, prices PriceSource) Reconciled {
	price := l.FrozenUnitPrice
	if l.ProductID.Valid && prices != nil {
		if current, ok := prices.CurrentPrice(l.ProductID.UUID); ok {
			price = current
		}
	}
	return Reconciled{
		Line:           l,
		EffectivePrice: price,
		Subtotal:       price.Mul(decimal.NewFromInt32(l.Quantity)),
		Drifted:        !price.Equal(l.FrozenUnitPrice),
	}
}

// ProductIDs returns the distinct non-null product references of lines.
func ProductIDs(lines []Line) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, l := range lines {
		if l.ProductID.Valid && !seen[l.ProductID.UUID] {
			seen[l.ProductID.UUID] = true
			ids = append(ids, l.ProductID.UUID)
		}
	}
	return ids
}
