package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/kinder-supplies/api/internal/pricing"
	"github.com/kinder-supplies/api/internal/service"
)

// AdminOrderStore defines the database methods needed by staff order views.
// Satisfied by *database.Queries; narrow interface for testability.
type AdminOrderStore interface {
	SearchOrders(ctx context.Context, arg database.SearchOrdersParams) ([]database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetPrintHistoryByOrder(ctx context.Context, orderID uuid.UUID) (database.PrintHistory, error)
}

// AdminOrderHandler serves order search and detail for staff.
type AdminOrderHandler struct {
	store  AdminOrderStore
	prices service.PriceLookup
	loc    *time.Location
}

func NewAdminOrderHandler(store AdminOrderStore, prices service.PriceLookup, loc *time.Location) *AdminOrderHandler {
	return &AdminOrderHandler{store: store, prices: prices, loc: loc}
}

// RegisterRoutes registers order endpoints. Expected to be mounted at /admin.
func (h *AdminOrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
}

// --- Response types ---

type orderResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderNumber   string    `json:"order_number"`
	ParentName    string    `json:"parent_name"`
	ChildName     string    `json:"child_name"`
	ChildNameKana string    `json:"child_name_kana"`
	AgeGroup      int16     `json:"age_group"`
	ClassLabel    string    `json:"class_label"`
	Handedness    string    `json:"handedness"`
	TotalAmount   string    `json:"total_amount"`
	TotalQuantity int32     `json:"total_quantity"`
	Status        string    `json:"status"`
	Notes         *string   `json:"notes"`
	OrderDate     time.Time `json:"order_date"`
}

type orderItemResponse struct {
	ID              uuid.UUID `json:"id"`
	LineNo          int16     `json:"line_no"`
	ProductID       *string   `json:"product_id"`
	ProductCode     string    `json:"product_code"`
	ProductName     string    `json:"product_name"`
	Specification   string    `json:"specification"`
	Quantity        int32     `json:"quantity"`
	UnitPrice       string    `json:"unit_price"`
	Subtotal        string    `json:"subtotal"`
	CurrentPrice    string    `json:"current_price"`
	CurrentSubtotal string    `json:"current_subtotal"`
	PriceChanged    bool      `json:"price_changed"`
}

type printHistoryResponse struct {
	PrintCount   int32      `json:"print_count"`
	PrintedBy    string     `json:"printed_by"`
	DeliveryDate *string    `json:"delivery_date"`
	PrintDate    *time.Time `json:"print_date"`
}

type orderDetailResponse struct {
	orderResponse
	IPAddress       string               `json:"ip_address"`
	UserAgent       string               `json:"user_agent"`
	Items           []orderItemResponse  `json:"items"`
	ReconciledTotal string               `json:"reconciled_total"`
	PrintHistory    printHistoryResponse `json:"print_history"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// List handles GET /admin/orders.
func (h *AdminOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Parse pagination
	limit := 50
	if s := q.Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}
	offset := 0
	if s := q.Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.SearchOrdersParams{
		Keyword: q.Get("keyword"),
		Limit:   int32(limit),
		Offset:  int32(offset),
	}
	if s := q.Get("age_group"); s != "" {
		ag, err := strconv.ParseInt(s, 10, 16)
		if err != nil || !enum.IsValidAgeGroup(int16(ag)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid age_group"})
			return
		}
		params.AgeGroup = int16(ag)
	}
	if s := q.Get("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, h.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, h.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}

	orders, err := h.store.SearchOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: search orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// Get handles GET /admin/orders/{id}. Amounts are shown both as stored and
// reconciled against the current catalog.
func (h *AdminOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		lines[i] = pricing.Line{
			ProductID:       uuid.NullUUID{UUID: it.ProductID.Bytes, Valid: it.ProductID.Valid},
			Quantity:        it.Quantity,
			FrozenUnitPrice: database.NumericToDecimal(it.UnitPrice),
		}
	}
	prices, err := h.prices.CurrentPrices(r.Context(), pricing.ProductIDs(lines))
	if err != nil {
		log.Printf("ERROR: current prices: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	rec := pricing.Reconcile(lines, prices)

	resp := orderDetailResponse{
		orderResponse:   dbOrderToResponse(order),
		IPAddress:       order.IpAddress,
		UserAgent:       order.UserAgent,
		Items:           make([]orderItemResponse, len(items)),
		ReconciledTotal: rec.Amount.StringFixed(0),
	}
	for i, it := range items {
		resp.Items[i] = dbOrderItemToResponse(it, rec.Lines[i])
	}

	hist, err := h.store.GetPrintHistoryByOrder(r.Context(), orderID)
	switch {
	case err == nil:
		resp.PrintHistory = printHistoryResponse{
			PrintCount: hist.PrintCount,
			PrintedBy:  hist.PrintedBy,
			PrintDate:  &hist.PrintDate,
		}
		if hist.DeliveryDate.Valid {
			s := hist.DeliveryDate.Time.Format(dateLayout)
			resp.PrintHistory.DeliveryDate = &s
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		log.Printf("ERROR: get print history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		ParentName:    o.ParentName,
		ChildName:     o.ChildName,
		ChildNameKana: o.ChildNameKana,
		AgeGroup:      o.AgeGroup,
		ClassLabel:    enum.AgeGroupLabel(o.AgeGroup),
		Handedness:    o.Handedness,
		TotalAmount:   numericToString(o.TotalAmount),
		TotalQuantity: o.TotalQuantity,
		Status:        o.Status,
		OrderDate:     o.OrderDate,
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	return resp
}

func dbOrderItemToResponse(it database.OrderItem, rec pricing.Reconciled) orderItemResponse {
	resp := orderItemResponse{
		ID:              it.ID,
		LineNo:          it.LineNo,
		ProductCode:     it.ProductCode,
		ProductName:     it.ProductName,
		Specification:   it.Specification,
		Quantity:        it.Quantity,
		UnitPrice:       numericToString(it.UnitPrice),
		Subtotal:        numericToString(it.Subtotal),
		CurrentPrice:    rec.EffectivePrice.StringFixed(0),
		CurrentSubtotal: rec.Subtotal.StringFixed(0),
		PriceChanged:    rec.Drifted,
	}
	if it.ProductID.Valid {
		s := uuid.UUID(it.ProductID.Bytes).String()
		resp.ProductID = &s
	}
	return resp
}

