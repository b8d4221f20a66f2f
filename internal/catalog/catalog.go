// Package catalog is the read-only view of the products offered to each age
// group, plus the current-price lookups used when reconciling old orders.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/shopspring/decimal"
)

var ErrInvalidAgeGroup = errors.New("invalid age group")

// Product is an active catalog entry as offered to one age group.
type Product struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"product_code"`
	Name          string          `json:"product_name"`
	Specification string          `json:"specification"`
	Price         decimal.Decimal `json:"price"`
	Remarks       string          `json:"remarks"`
}

// Store defines the DB methods needed for catalog lookups.
// Satisfied by *database.Queries; narrow interface for testability.
type Store interface {
	ListActiveProductsForAgeGroup(ctx context.Context, ageGroup int16) ([]database.ListActiveProductsForAgeGroupRow, error)
	GetProductPrice(ctx context.Context, id uuid.UUID) (pgtype.Numeric, error)
	ListProductPrices(ctx context.Context, ids []uuid.UUID) ([]database.ListProductPricesRow, error)
}

type Lookup struct {
	store Store
}

func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

// ActiveProductsForAgeGroup returns the products a guardian may order for the
// given age group, in catalog display order.
func (l *Lookup) ActiveProductsForAgeGroup(ctx context.Context, ageGroup int16) ([]Product, error) {
	if !enum.IsValidAgeGroup(ageGroup) {
		return nil, ErrInvalidAgeGroup
	}
	rows, err := l.store.ListActiveProductsForAgeGroup(ctx, ageGroup)
	if err != nil {
		return nil, fmt.Errorf("list products for age group %d: %w", ageGroup, err)
	}
	products := make([]Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, Product{
			ID:            r.ID,
			Code:          r.ProductCode,
			Name:          r.ProductName,
			Specification: r.Specification,
			Price:         database.NumericToDecimal(r.Price),
			Remarks:       r.Remarks,
		})
	}
	return products, nil
}

// CurrentPrice returns the live catalog price. ok is false when the product
// no longer exists.
func (l *Lookup) CurrentPrice(ctx context.Context, id uuid.UUID) (price decimal.Decimal, ok bool, err error) {
	n, err := l.store.GetProductPrice(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("get product price: %w", err)
	}
	return database.NumericToDecimal(n), true, nil
}

// CurrentPrices resolves many products in one round trip. Products that no
// longer exist are absent from the map.
func (l *Lookup) CurrentPrices(ctx context.Context, ids []uuid.UUID) (PriceMap, error) {
	prices := PriceMap{}
	if len(ids) == 0 {
		return prices, nil
	}
	rows, err := l.store.ListProductPrices(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("list product prices: %w", err)
	}
	for _, r := range rows {
		if r.Price.Valid {
			prices[r.ID] = database.NumericToDecimal(r.Price)
		}
	}
	return prices, nil
}

// PriceMap is a snapshot of current prices keyed by product id.
type PriceMap map[uuid.UUID]decimal.Decimal

func (m PriceMap) CurrentPrice(id uuid.UUID) (decimal.Decimal, bool) {
	p, ok := m[id]
	return p, ok
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

