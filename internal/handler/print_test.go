package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kinder-supplies/api/internal/auth"
	"github.com/kinder-supplies/api/internal/handler"
	"github.com/kinder-supplies/api/internal/middleware"
	"github.com/kinder-supplies/api/internal/service"
	"github.com/shopspring/decimal"
)

type mockPrintService struct {
	printFn func(ctx context.Context, req service.PrintRequest) ([]service.Envelope, error)
}

func (m *mockPrintService) PrintEnvelopes(ctx context.Context, req service.PrintRequest) ([]service.Envelope, error) {
	return m.printFn(ctx, req)
}

func newPrintRouter(svc handler.PrintServicer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	handler.NewPrintHandler(svc, tokyo).RegisterRoutes(r)
	return r
}

func authedPost(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, uuid.New(), "staff1", "STAFF")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	b, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestPrintEnvelopes(t *testing.T) {
	o, _ := yamadaStored()
	var got service.PrintRequest
	svc := &mockPrintService{printFn: func(ctx context.Context, req service.PrintRequest) ([]service.Envelope, error) {
		got = req
		return []service.Envelope{{
			Order:           o,
			ClassLabel:      "3歳児(年少)",
			Items:           []service.EnvelopeItem{{ProductName: "クレヨン", Quantity: 2, UnitPrice: decimal.NewFromInt(600), Subtotal: decimal.NewFromInt(1200), Drifted: true}},
			ReconciledTotal: decimal.NewFromInt(2400),
			StoredTotal:     decimal.NewFromInt(2200),
			TotalQuantity:   3,
			DeliveryDate:    req.DeliveryDate,
			Size:            service.LongEnvelope,
			Notice:          "つり銭のいらないようにお願い致します",
			PrintCount:      1,
		}}, nil
	}}

	rr := authedPost(t, newPrintRouter(svc), "/print/envelopes", map[string]interface{}{
		"order_ids":     []string{o.ID.String()},
		"delivery_date": "2025-02-01",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if got.PrintedBy != "staff1" {
		t.Errorf("printed by: got %q, want staff1", got.PrintedBy)
	}
	if !got.DeliveryDate.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, tokyo)) {
		t.Errorf("delivery date: got %v", got.DeliveryDate)
	}
	if len(got.OrderIDs) != 1 || got.OrderIDs[0] != o.ID {
		t.Errorf("order ids: got %v", got.OrderIDs)
	}

	var resp []map[string]interface{}
	decodeInto(t, rr, &resp)
	if len(resp) != 1 {
		t.Fatalf("envelopes: got %d", len(resp))
	}
	env := resp[0]
	if env["total_amount"] != "2400" || env["stored_amount"] != "2200" {
		t.Errorf("amounts: %v / %v", env["total_amount"], env["stored_amount"])
	}
	if env["delivery_date"] != "2025-02-01" || env["print_count"] != float64(1) {
		t.Errorf("envelope: %v", env)
	}
	size := env["size"].(map[string]interface{})
	if size["width_mm"] != float64(120) || size["height_mm"] != float64(235) {
		t.Errorf("size: %v", size)
	}
}

func TestPrintEnvelopes_NoData(t *testing.T) {
	svc := &mockPrintService{printFn: func(ctx context.Context, req service.PrintRequest) ([]service.Envelope, error) {
		return nil, service.ErrNoData
	}}

	rr := authedPost(t, newPrintRouter(svc), "/print/envelopes", map[string]interface{}{
		"order_ids": []string{uuid.NewString()},
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestPrintEnvelopes_BadRequest(t *testing.T) {
	svc := &mockPrintService{printFn: func(ctx context.Context, req service.PrintRequest) ([]service.Envelope, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}

	for name, body := range map[string]interface{}{
		"empty":        map[string]interface{}{"order_ids": []string{}},
		"invalid id":   map[string]interface{}{"order_ids": []string{"nope"}},
		"invalid date": map[string]interface{}{"order_ids": []string{uuid.NewString()}, "delivery_date": "2/1"},
	} {
		rr := authedPost(t, newPrintRouter(svc), "/print/envelopes", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", name, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestPrintEnvelopes_Unauthenticated(t *testing.T) {
	svc := &mockPrintService{}
	req := httptest.NewRequest("POST", "/print/envelopes", bytes.NewBufferString(`{"order_ids":[]}`))
	rr := httptest.NewRecorder()
	newPrintRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

