package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/kinder-supplies/api/internal/intake"
	"github.com/kinder-supplies/api/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	orderNumberPrefix     = "ORD"
	orderNumberConstraint = "orders_order_number_key"
	maxOrderNumberSuffix  = 9999
)

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be between 1 and 99")
	ErrInvalidAgeGroup      = errors.New("invalid age_group")
	ErrSubtotalMismatch     = errors.New("subtotal does not match unit_price * quantity")
	ErrProductMismatch      = errors.New("product is not offered for this age group")
	ErrOrderNumberExhausted = errors.New("could not assign a unique order number")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	ListActiveProductsForAgeGroup(ctx context.Context, ageGroup int16) ([]database.ListActiveProductsForAgeGroupRow, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is a staged order plus the request metadata recorded
// with it.
type CreateOrderRequest struct {
	Pending   intake.PendingOrder
	IPAddress string
	UserAgent string
}

// CreateOrderResult is the full created order with items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService persists confirmed orders.
type OrderService struct {
	pool        TxBeginner
	newStore    NewOrderStore
	metrics     *metrics.Registry
	loc         *time.Location
	maxAttempts int

	now    func() time.Time
	suffix func() int
}

// NewOrderService creates a new OrderService. Order numbers carry the date
// in loc; maxAttempts bounds regeneration after a number collision.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, loc *time.Location, maxAttempts int, m *metrics.Registry) *OrderService {
	return &OrderService{
		pool:        pool,
		newStore:    newStore,
		metrics:     m,
		loc:         loc,
		maxAttempts: maxAttempts,
		now:         time.Now,
		suffix:      func() int { return rand.IntN(maxOrderNumberSuffix) + 1 },
	}
}

// CreateOrder writes the order header and all its lines in one transaction.
// A collision on the order number rolls the attempt back and retries with a
// fresh number, up to maxAttempts times.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := checkPending(req.Pending); err != nil {
		return nil, err
	}

	start := time.Now()
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		now := s.now()
		number := FormatOrderNumber(now.In(s.loc), s.suffix())

		result, err := s.createOrderTx(ctx, req, number, now)
		if err == nil {
			s.metrics.OrdersCommitted.Inc()
			s.metrics.OrderCommitLatencySec.Observe(time.Since(start).Seconds())
			return result, nil
		}
		if isOrderNumberConflict(err) {
			s.metrics.OrderNumberConflicts.Inc()
			continue
		}
		return nil, err
	}

	s.metrics.OrderNumberExhausted.Inc()
	return nil, fmt.Errorf("%w after %d attempts", ErrOrderNumberExhausted, s.maxAttempts)
}

// FormatOrderNumber renders ORD + YYYYMMDD + 4-digit suffix.
func FormatOrderNumber(day time.Time, suffix int) string {
	return fmt.Sprintf("%s%s%04d", orderNumberPrefix, day.Format("20060102"), suffix)
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == orderNumberConstraint
	}
	return false
}

// checkPending re-checks the invariants intake already established. Staged
// data is trusted, so a failure here means a bug rather than bad input.
func checkPending(p intake.PendingOrder) error {
	if !enum.IsValidAgeGroup(p.AgeGroup) {
		return ErrInvalidAgeGroup
	}
	if len(p.Lines) == 0 {
		return ErrEmptyItems
	}
	for i, l := range p.Lines {
		if l.Quantity < intake.MinQuantity || l.Quantity > intake.MaxQuantity {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if !l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)).Equal(l.Subtotal) {
			return fmt.Errorf("item[%d]: %w", i, ErrSubtotalMismatch)
		}
	}
	return nil
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, orderNumber string, orderDate time.Time) (*CreateOrderResult, error) {
	p := req.Pending

	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Re-check catalog membership ---
	active, err := store.ListActiveProductsForAgeGroup(ctx, p.AgeGroup)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	offered := make(map[uuid.UUID]bool, len(active))
	for _, a := range active {
		offered[a.ID] = true
	}
	for i, l := range p.Lines {
		if !offered[l.ProductID] {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrProductMismatch)
		}
	}

	// --- Insert order ---
	notes := pgtype.Text{}
	if p.Notes != "" {
		notes = pgtype.Text{String: p.Notes, Valid: true}
	}
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:   orderNumber,
		ParentName:    p.GuardianName,
		ChildName:     p.ChildName,
		ChildNameKana: p.ChildNameKana,
		AgeGroup:      p.AgeGroup,
		Handedness:    p.Handedness,
		TotalAmount:   database.DecimalToNumeric(p.TotalAmount()),
		TotalQuantity: p.TotalQuantity(),
		Status:        enum.OrderStatusCompleted,
		Notes:         notes,
		IpAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		OrderDate:     orderDate,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	items := make([]database.OrderItem, 0, len(p.Lines))
	for i, l := range p.Lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:       order.ID,
			LineNo:        int16(i + 1),
			ProductID:     pgtype.UUID{Bytes: l.ProductID, Valid: true},
			ProductCode:   l.ProductCode,
			ProductName:   l.ProductName,
			Specification: l.Specification,
			UnitPrice:     database.DecimalToNumeric(l.UnitPrice),
			Quantity:      l.Quantity,
			Subtotal:      database.DecimalToNumeric(l.Subtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{
		Order: order,
		Items: items,
	}, nil
}

// --- Helpers ---

func nullUUID(id pgtype.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: uuid.UUID(id.Bytes), Valid: id.Valid}
}
