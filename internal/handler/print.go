package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kinder-supplies/api/internal/middleware"
	"github.com/kinder-supplies/api/internal/service"
)

// PrintServicer defines the service methods needed by print handlers.
// Satisfied by *service.PrintService; narrow interface for testability.
type PrintServicer interface {
	PrintEnvelopes(ctx context.Context, req service.PrintRequest) ([]service.Envelope, error)
}

// PrintHandler renders collection envelopes.
type PrintHandler struct {
	svc PrintServicer
	loc *time.Location
}

func NewPrintHandler(svc PrintServicer, loc *time.Location) *PrintHandler {
	return &PrintHandler{svc: svc, loc: loc}
}

// RegisterRoutes registers print endpoints. Expected to be mounted at /admin.
func (h *PrintHandler) RegisterRoutes(r chi.Router) {
	r.Post("/print/envelopes", h.Envelopes)
}

// --- Request / Response types ---

type printRequest struct {
	OrderIDs     []string `json:"order_ids"`
	DeliveryDate string   `json:"delivery_date"`
}

type envelopeItemResponse struct {
	ProductCode   string `json:"product_code"`
	ProductName   string `json:"product_name"`
	Specification string `json:"specification"`
	Quantity      int32  `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	Subtotal      string `json:"subtotal"`
	PriceChanged  bool   `json:"price_changed"`
}

type envelopeResponse struct {
	OrderID       uuid.UUID              `json:"order_id"`
	OrderNumber   string                 `json:"order_number"`
	ParentName    string                 `json:"parent_name"`
	ChildName     string                 `json:"child_name"`
	ChildNameKana string                 `json:"child_name_kana"`
	ClassLabel    string                 `json:"class_label"`
	Handedness    string                 `json:"handedness"`
	Items         []envelopeItemResponse `json:"items"`
	TotalAmount   string                 `json:"total_amount"`
	StoredAmount  string                 `json:"stored_amount"`
	TotalQuantity int64                  `json:"total_quantity"`
	DeliveryDate  *string                `json:"delivery_date"`
	Size          service.EnvelopeSize   `json:"size"`
	Notice        string                 `json:"notice"`
	PrintCount    int32                  `json:"print_count"`
}

// --- Handlers ---

// Envelopes handles POST /admin/print/envelopes. Every rendered order is
// recorded in the print history with the caller as printer.
func (h *PrintHandler) Envelopes(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req printRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.OrderIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_ids is required"})
		return
	}

	ids := make([]uuid.UUID, len(req.OrderIDs))
	for i, s := range req.OrderIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID: " + s})
			return
		}
		ids[i] = id
	}

	var delivery time.Time
	if req.DeliveryDate != "" {
		t, err := time.ParseInLocation(dateLayout, req.DeliveryDate, h.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery_date format, use YYYY-MM-DD"})
			return
		}
		delivery = t
	}

	envelopes, err := h.svc.PrintEnvelopes(r.Context(), service.PrintRequest{
		OrderIDs:     ids,
		DeliveryDate: delivery,
		PrintedBy:    claims.Username,
	})
	if err != nil {
		if errors.Is(err, service.ErrNoData) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data"})
			return
		}
		log.Printf("ERROR: print envelopes: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]envelopeResponse, len(envelopes))
	for i, env := range envelopes {
		resp[i] = toEnvelopeResponse(env)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toEnvelopeResponse(env service.Envelope) envelopeResponse {
	o := env.Order
	resp := envelopeResponse{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		ParentName:    o.ParentName,
		ChildName:     o.ChildName,
		ChildNameKana: o.ChildNameKana,
		ClassLabel:    env.ClassLabel,
		Handedness:    o.Handedness,
		Items:         make([]envelopeItemResponse, len(env.Items)),
		TotalAmount:   env.ReconciledTotal.StringFixed(0),
		StoredAmount:  env.StoredTotal.StringFixed(0),
		TotalQuantity: env.TotalQuantity,
		Size:          env.Size,
		Notice:        env.Notice,
		PrintCount:    env.PrintCount,
	}
	if !env.DeliveryDate.IsZero() {
		s := env.DeliveryDate.Format(dateLayout)
		resp.DeliveryDate = &s
	}
	for i, it := range env.Items {
		resp.Items[i] = envelopeItemResponse{
			ProductCode:   it.ProductCode,
			ProductName:   it.ProductName,
			Specification: it.Specification,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice.StringFixed(0),
			Subtotal:      it.Subtotal.StringFixed(0),
			PriceChanged:  it.Drifted,
		}
	}
	return resp
}
