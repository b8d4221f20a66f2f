package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kinder-supplies/api/internal/catalog"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/kinder-supplies/api/internal/metrics"
	"github.com/kinder-supplies/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// ErrNoData is returned when a report or print request matches no orders.
var ErrNoData = errors.New("no data")

const envelopeNotice = "つり銭のいらないようにお願い致します"

// EnvelopeSize is the 長形3号 envelope used for collection.
type EnvelopeSize struct {
	Name     string `json:"name"`
	WidthMM  int    `json:"width_mm"`
	HeightMM int    `json:"height_mm"`
}

var LongEnvelope = EnvelopeSize{Name: "長形3号", WidthMM: 120, HeightMM: 235}

// PriceLookup resolves current catalog prices in bulk.
// Satisfied by *catalog.Lookup.
type PriceLookup interface {
	CurrentPrices(ctx context.Context, ids []uuid.UUID) (catalog.PriceMap, error)
}

// PrintStore defines the DB methods needed to print envelopes.
// Satisfied by *database.Queries; narrow interface for testability.
type PrintStore interface {
	ListOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	UpsertPrintHistory(ctx context.Context, arg database.UpsertPrintHistoryParams) (database.PrintHistory, error)
}

type PrintRequest struct {
	OrderIDs     []uuid.UUID
	DeliveryDate time.Time // date only; zero means unset
	PrintedBy    string
}

type EnvelopeItem struct {
	ProductCode     string
	ProductName     string
	Specification   string
	Quantity        int32
	FrozenUnitPrice decimal.Decimal
	UnitPrice       decimal.Decimal
	Subtotal        decimal.Decimal
	Drifted         bool
}

// Envelope is the printable view of one order. Amounts are reconciled
// against the current catalog; StoredTotal is the amount recorded at order
// time.
type Envelope struct {
	Order           database.Order
	ClassLabel      string
	Items           []EnvelopeItem
	ReconciledTotal decimal.Decimal
	StoredTotal     decimal.Decimal
	TotalQuantity   int64
	DeliveryDate    time.Time
	Size            EnvelopeSize
	Notice          string
	// PrintCount is the count after this print, or 0 if recording failed.
	PrintCount int32
}

type PrintService struct {
	store   PrintStore
	prices  PriceLookup
	metrics *metrics.Registry
	now     func() time.Time
}

func NewPrintService(store PrintStore, prices PriceLookup, m *metrics.Registry) *PrintService {
	return &PrintService{store: store, prices: prices, metrics: m, now: time.Now}
}

// PrintEnvelopes renders envelopes for the requested orders and records
// each print. Recording failures are logged and never fail the print.
func (s *PrintService) PrintEnvelopes(ctx context.Context, req PrintRequest) ([]Envelope, error) {
	if len(req.OrderIDs) == 0 {
		return nil, ErrNoData
	}

	orders, err := s.store.ListOrdersByIDs(ctx, req.OrderIDs)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNoData
	}

	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := s.store.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	byOrder := map[uuid.UUID][]pricing.Line{}
	itemsByOrder := map[uuid.UUID][]database.OrderItem{}
	var all []pricing.Line
	for _, it := range items {
		l := pricing.Line{
			ProductID:       nullUUID(it.ProductID),
			Quantity:        it.Quantity,
			FrozenUnitPrice: database.NumericToDecimal(it.UnitPrice),
		}
		byOrder[it.OrderID] = append(byOrder[it.OrderID], l)
		itemsByOrder[it.OrderID] = append(itemsByOrder[it.OrderID], it)
		all = append(all, l)
	}

	prices, err := s.prices.CurrentPrices(ctx, pricing.ProductIDs(all))
	if err != nil {
		return nil, fmt.Errorf("current prices: %w", err)
	}

	envelopes := make([]Envelope, 0, len(orders))
	for _, o := range orders {
		rec := pricing.Reconcile(byOrder[o.ID], prices)
		env := Envelope{
			Order:           o,
			ClassLabel:      enum.AgeGroupLabel(o.AgeGroup),
			ReconciledTotal: rec.Amount,
			StoredTotal:     database.NumericToDecimal(o.TotalAmount),
			TotalQuantity:   rec.Quantity,
			DeliveryDate:    req.DeliveryDate,
			Size:            LongEnvelope,
			Notice:          envelopeNotice,
		}
		for i, it := range itemsByOrder[o.ID] {
			r := rec.Lines[i]
			env.Items = append(env.Items, EnvelopeItem{
				ProductCode:     it.ProductCode,
				ProductName:     it.ProductName,
				Specification:   it.Specification,
				Quantity:        it.Quantity,
				FrozenUnitPrice: r.FrozenUnitPrice,
				UnitPrice:       r.EffectivePrice,
				Subtotal:        r.Subtotal,
				Drifted:         r.Drifted,
			})
		}
		envelopes = append(envelopes, env)
	}

	s.recordHistory(ctx, envelopes, req)
	s.metrics.EnvelopesPrinted.Add(float64(len(envelopes)))
	return envelopes, nil
}

func (s *PrintService) recordHistory(ctx context.Context, envelopes []Envelope, req PrintRequest) {
	delivery := pgtype.Date{}
	if !req.DeliveryDate.IsZero() {
		delivery = pgtype.Date{Time: req.DeliveryDate, Valid: true}
	}
	printedAt := s.now()

	for i := range envelopes {
		o := envelopes[i].Order
		h, err := s.store.UpsertPrintHistory(ctx, database.UpsertPrintHistoryParams{
			OrderID:      o.ID,
			OrderNumber:  o.OrderNumber,
			PrintedBy:    req.PrintedBy,
			DeliveryDate: delivery,
			PrintDate:    printedAt,
		})
		if err != nil {
			s.metrics.PrintHistoryFailures.Inc()
			log.Printf("WARN: record print history for order %s: %v", o.OrderNumber, err)
			continue
		}
		envelopes[i].PrintCount = h.PrintCount
	}
}
