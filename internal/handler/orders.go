package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kinder-supplies/api/internal/catalog"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/kinder-supplies/api/internal/intake"
	"github.com/kinder-supplies/api/internal/metrics"
	"github.com/kinder-supplies/api/internal/middleware"
	"github.com/kinder-supplies/api/internal/service"
	"github.com/kinder-supplies/api/internal/staging"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// OrderLookupStore defines the database methods needed by the thanks page.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderLookupStore interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error)
}

// OrderPeriod reports whether guardians may currently order.
// Satisfied by *config.Config.
type OrderPeriod interface {
	OrderPeriodOpen(t time.Time) bool
}

// OrderHandler serves the guardian input → confirm → complete flow.
type OrderHandler struct {
	svc     OrderServicer
	catalog CatalogLookup
	staging *staging.Store
	store   OrderLookupStore
	period  OrderPeriod
	metrics *metrics.Registry
	now     func() time.Time
}

func NewOrderHandler(svc OrderServicer, lookup CatalogLookup, stage *staging.Store, store OrderLookupStore, period OrderPeriod, m *metrics.Registry) *OrderHandler {
	return &OrderHandler{
		svc:     svc,
		catalog: lookup,
		staging: stage,
		store:   store,
		period:  period,
		metrics: m,
		now:     time.Now,
	}
}

// RegisterRoutes registers guardian order endpoints. Must be mounted behind
// middleware.Session.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Submit)
	r.Get("/orders/pending", h.Pending)
	r.Delete("/orders/pending", h.Cancel)
	r.Post("/orders/confirm", h.Confirm)
	r.Get("/orders/number/{number}", h.GetByNumber)
}

// --- Request / Response types ---

type confirmRequest struct {
	ConfirmationToken string `json:"confirmation_token"`
}

type pendingLineResponse struct {
	ProductID     uuid.UUID       `json:"product_id"`
	ProductCode   string          `json:"product_code"`
	ProductName   string          `json:"product_name"`
	Specification string          `json:"specification"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int32           `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

type pendingOrderResponse struct {
	GuardianName  string                `json:"guardian_name"`
	ChildName     string                `json:"child_name"`
	ChildNameKana string                `json:"child_name_kana"`
	AgeGroup      int16                 `json:"age_group"`
	ClassLabel    string                `json:"class_label"`
	Handedness    string                `json:"handedness"`
	Notes         string                `json:"notes"`
	Items         []pendingLineResponse `json:"items"`
	TotalAmount   decimal.Decimal       `json:"total_amount"`
	TotalQuantity int32                 `json:"total_quantity"`
}

type stagedResponse struct {
	ConfirmationToken string               `json:"confirmation_token"`
	ExpiresAt         time.Time            `json:"expires_at"`
	Order             pendingOrderResponse `json:"order"`
}

type confirmedResponse struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	TotalAmount   string    `json:"total_amount"`
	TotalQuantity int32     `json:"total_quantity"`
}

type orderNumberResponse struct {
	OrderNumber   string    `json:"order_number"`
	ChildName     string    `json:"child_name"`
	ClassLabel    string    `json:"class_label"`
	TotalAmount   string    `json:"total_amount"`
	TotalQuantity int32     `json:"total_quantity"`
	OrderDate     time.Time `json:"order_date"`
}

// --- Handlers ---

// Submit handles POST /orders: validates the form and stages it for
// confirmation. Nothing is written to the database.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if !h.period.OrderPeriodOpen(h.now()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "ordering is closed"})
		return
	}

	var sub intake.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var products []catalog.Product
	if enum.IsValidAgeGroup(sub.AgeGroup) {
		var err error
		products, err = h.catalog.ActiveProductsForAgeGroup(r.Context(), sub.AgeGroup)
		if err != nil {
			log.Printf("ERROR: list catalog: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	pending, fieldErrs := intake.Validate(sub, products)
	if len(fieldErrs) > 0 {
		reason := "validation"
		if fieldErrs.Incompatible() {
			reason = intake.CodeIncompatible
			log.Printf("WARN: order submission names a product outside age group %d", sub.AgeGroup)
		}
		h.metrics.IntakeRejected.WithLabelValues(reason).Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"errors": fieldErrs,
		})
		return
	}

	st, err := h.session(r).Stage(r.Context(), pending)
	if err != nil {
		log.Printf("ERROR: stage order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toStagedResponse(st))
}

// Pending handles GET /orders/pending: the confirm screen, or the input
// screen restoring a previous entry.
func (h *OrderHandler) Pending(w http.ResponseWriter, r *http.Request) {
	st, err := h.session(r).Peek(r.Context())
	if err != nil {
		if errors.Is(err, staging.ErrNotStaged) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending order"})
			return
		}
		log.Printf("ERROR: peek staged order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toStagedResponse(st))
}

// Cancel handles DELETE /orders/pending.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.session(r).Clear(r.Context()); err != nil {
		log.Printf("ERROR: clear staged order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Confirm handles POST /orders/confirm: persists the staged order exactly
// as the guardian saw it.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Take removes the staged order, so a second concurrent confirm finds
	// nothing to commit.
	sess := h.session(r)
	st, err := sess.Take(r.Context(), req.ConfirmationToken)
	if err != nil {
		switch {
		case errors.Is(err, staging.ErrNotStaged):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending order"})
		case errors.Is(err, staging.ErrTokenMismatch):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "confirmation token does not match the pending order"})
		default:
			log.Printf("ERROR: take staged order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Pending:   st.Order,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductMismatch):
			log.Printf("WARN: confirm order: %v", err)
			writeJSON(w, http.StatusConflict, map[string]string{"error": "the catalog has changed, please enter the order again"})
		case isValidationError(err):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: create order: %v", err)
			// The guardian may retry with the same token.
			if rerr := sess.Restore(context.WithoutCancel(r.Context()), st); rerr != nil {
				log.Printf("ERROR: restore staged order: %v", rerr)
			}
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "could not save the order, please try again"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, confirmedResponse{
		OrderID:       result.Order.ID,
		OrderNumber:   result.Order.OrderNumber,
		TotalAmount:   numericToString(result.Order.TotalAmount),
		TotalQuantity: result.Order.TotalQuantity,
	})
}

// GetByNumber handles GET /orders/number/{number} for the thanks page.
func (h *OrderHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	o, err := h.store.GetOrderByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order by number: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, orderNumberResponse{
		OrderNumber:   o.OrderNumber,
		ChildName:     o.ChildName,
		ClassLabel:    enum.AgeGroupLabel(o.AgeGroup),
		TotalAmount:   numericToString(o.TotalAmount),
		TotalQuantity: o.TotalQuantity,
		OrderDate:     o.OrderDate,
	})
}

// --- Helpers ---

func (h *OrderHandler) session(r *http.Request) *staging.Session {
	return h.staging.Session(middleware.SessionIDFromContext(r.Context()))
}

// isValidationError checks if the error is a known validation error
// from the service layer.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidAgeGroup) ||
		errors.Is(err, service.ErrSubtotalMismatch)
}

func toStagedResponse(st staging.Staged) stagedResponse {
	o := st.Order
	items := make([]pendingLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = pendingLineResponse(l)
	}
	return stagedResponse{
		ConfirmationToken: st.Token,
		ExpiresAt:         st.ExpiresAt,
		Order: pendingOrderResponse{
			GuardianName:  o.GuardianName,
			ChildName:     o.ChildName,
			ChildNameKana: o.ChildNameKana,
			AgeGroup:      o.AgeGroup,
			ClassLabel:    enum.AgeGroupLabel(o.AgeGroup),
			Handedness:    o.Handedness,
			Notes:         o.Notes,
			Items:         items,
			TotalAmount:   o.TotalAmount(),
			TotalQuantity: o.TotalQuantity(),
		},
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func numericToString(n pgtype.Numeric) string {
	return database.NumericToDecimal(n).StringFixed(0)
}
