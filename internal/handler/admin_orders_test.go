package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kinder-supplies/api/internal/catalog"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/handler"
	"github.com/shopspring/decimal"
)

var tokyo = time.FixedZone("JST", 9*3600)

type mockAdminOrderStore struct {
	searchFn  func(ctx context.Context, arg database.SearchOrdersParams) ([]database.Order, error)
	orders    map[uuid.UUID]database.Order
	items     map[uuid.UUID][]database.OrderItem
	histories map[uuid.UUID]database.PrintHistory
}

func (m *mockAdminOrderStore) SearchOrders(ctx context.Context, arg database.SearchOrdersParams) ([]database.Order, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockAdminOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockAdminOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockAdminOrderStore) GetPrintHistoryByOrder(ctx context.Context, orderID uuid.UUID) (database.PrintHistory, error) {
	h, ok := m.histories[orderID]
	if !ok {
		return database.PrintHistory{}, pgx.ErrNoRows
	}
	return h, nil
}

type mockPrices struct {
	prices catalog.PriceMap
}

func (m *mockPrices) CurrentPrices(ctx context.Context, ids []uuid.UUID) (catalog.PriceMap, error) {
	return m.prices, nil
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func yamadaStored() (database.Order, []database.OrderItem) {
	o := database.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD202501230042",
		ParentName:    "山田 太郎",
		ChildName:     "山田 花子",
		ChildNameKana: "ヤマダ ハナコ",
		AgeGroup:      3,
		Handedness:    "右",
		TotalAmount:   makeNumeric("2200"),
		TotalQuantity: 3,
		Status:        "COMPLETED",
	}
	items := []database.OrderItem{
		{ID: uuid.New(), OrderID: o.ID, LineNo: 1, ProductID: pgtype.UUID{Bytes: crayonID, Valid: true}, ProductName: "クレヨン", UnitPrice: makeNumeric("500"), Quantity: 2, Subtotal: makeNumeric("1000")},
		{ID: uuid.New(), OrderID: o.ID, LineNo: 2, ProductID: pgtype.UUID{Bytes: clayID, Valid: true}, ProductName: "粘土セット", UnitPrice: makeNumeric("1200"), Quantity: 1, Subtotal: makeNumeric("1200")},
	}
	return o, items
}

func newAdminOrderRouter(store *mockAdminOrderStore, prices catalog.PriceMap) *chi.Mux {
	r := chi.NewRouter()
	handler.NewAdminOrderHandler(store, &mockPrices{prices: prices}, tokyo).RegisterRoutes(r)
	return r
}

func TestAdminOrders_ListFilters(t *testing.T) {
	var got database.SearchOrdersParams
	store := &mockAdminOrderStore{searchFn: func(ctx context.Context, arg database.SearchOrdersParams) ([]database.Order, error) {
		got = arg
		o, _ := yamadaStored()
		return []database.Order{o}, nil
	}}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/orders?keyword=%E5%B1%B1%E7%94%B0&age_group=3&start_date=2025-01-01&end_date=2025-01-31&limit=10", nil)
	newAdminOrderRouter(store, nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if got.Keyword != "山田" || got.AgeGroup != 3 || got.Limit != 10 {
		t.Errorf("params: %+v", got)
	}
	wantEnd := time.Date(2025, 2, 1, 0, 0, 0, 0, tokyo)
	if !got.EndDate.Valid || !got.EndDate.Time.Equal(wantEnd) {
		t.Errorf("end date should be exclusive next midnight: %v", got.EndDate.Time)
	}

	resp := decodeResponse(t, rr)
	orders := resp["orders"].([]interface{})
	if len(orders) != 1 {
		t.Fatalf("orders: got %d", len(orders))
	}
}

func TestAdminOrders_ListInvalidAgeGroup(t *testing.T) {
	rr := httptest.NewRecorder()
	newAdminOrderRouter(&mockAdminOrderStore{}, nil).ServeHTTP(rr, httptest.NewRequest("GET", "/orders?age_group=9", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAdminOrders_DetailShowsStoredAndReconciled(t *testing.T) {
	o, items := yamadaStored()
	store := &mockAdminOrderStore{
		orders: map[uuid.UUID]database.Order{o.ID: o},
		items:  map[uuid.UUID][]database.OrderItem{o.ID: items},
		histories: map[uuid.UUID]database.PrintHistory{o.ID: {
			OrderID:      o.ID,
			PrintCount:   2,
			PrintedBy:    "staff1",
			DeliveryDate: pgtype.Date{Time: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Valid: true},
		}},
	}
	prices := catalog.PriceMap{crayonID: decimal.NewFromInt(600), clayID: decimal.NewFromInt(1200)}

	rr := httptest.NewRecorder()
	newAdminOrderRouter(store, prices).ServeHTTP(rr, httptest.NewRequest("GET", "/orders/"+o.ID.String(), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["total_amount"] != "2200" {
		t.Errorf("stored total: got %v", resp["total_amount"])
	}
	if resp["reconciled_total"] != "2400" {
		t.Errorf("reconciled total: got %v", resp["reconciled_total"])
	}
	first := resp["items"].([]interface{})[0].(map[string]interface{})
	if first["current_price"] != "600" || first["price_changed"] != true {
		t.Errorf("first item: %v", first)
	}
	hist := resp["print_history"].(map[string]interface{})
	if hist["print_count"] != float64(2) || hist["delivery_date"] != "2025-02-01" {
		t.Errorf("print history: %v", hist)
	}
}

func TestAdminOrders_DetailNeverPrinted(t *testing.T) {
	o, items := yamadaStored()
	store := &mockAdminOrderStore{
		orders: map[uuid.UUID]database.Order{o.ID: o},
		items:  map[uuid.UUID][]database.OrderItem{o.ID: items},
	}

	rr := httptest.NewRecorder()
	newAdminOrderRouter(store, catalog.PriceMap{}).ServeHTTP(rr, httptest.NewRequest("GET", "/orders/"+o.ID.String(), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["reconciled_total"] != "2200" {
		t.Errorf("reconciled total without drift: got %v", resp["reconciled_total"])
	}
	if resp["print_history"].(map[string]interface{})["print_count"] != float64(0) {
		t.Errorf("print count: %v", resp["print_history"])
	}
}

func TestAdminOrders_DetailNotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	newAdminOrderRouter(&mockAdminOrderStore{}, nil).ServeHTTP(rr, httptest.NewRequest("GET", "/orders/"+uuid.NewString(), nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestAdminOrders_DetailInvalidID(t *testing.T) {
	rr := httptest.NewRecorder()
	newAdminOrderRouter(&mockAdminOrderStore{}, nil).ServeHTTP(rr, httptest.NewRequest("GET", "/orders/not-a-uuid", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
