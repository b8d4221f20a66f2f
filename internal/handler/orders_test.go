package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kinder-supplies/api/internal/catalog"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/handler"
	"github.com/kinder-supplies/api/internal/metrics"
	"github.com/kinder-supplies/api/internal/middleware"
	"github.com/kinder-supplies/api/internal/service"
	"github.com/kinder-supplies/api/internal/staging"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

// --- Mocks ---

type mockOrderService struct {
	createFn func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	calls    atomic.Int32
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
	m.calls.Add(1)
	return m.createFn(ctx, req)
}

type mockCatalog struct {
	byAgeGroup map[int16][]catalog.Product
	err        error
}

func (m *mockCatalog) ActiveProductsForAgeGroup(ctx context.Context, ageGroup int16) ([]catalog.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	if ageGroup < 2 || ageGroup > 5 {
		return nil, catalog.ErrInvalidAgeGroup
	}
	return m.byAgeGroup[ageGroup], nil
}

type mockOrderLookup struct {
	orders map[string]database.Order
}

func (m *mockOrderLookup) GetOrderByNumber(ctx context.Context, number string) (database.Order, error) {
	o, ok := m.orders[number]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

type periodFunc func(time.Time) bool

func (f periodFunc) OrderPeriodOpen(t time.Time) bool { return f(t) }

var alwaysOpen = periodFunc(func(time.Time) bool { return true })

// --- Fixtures ---

var (
	crayonID  = uuid.New()
	clayID    = uuid.New()
	scissorID = uuid.New()
)

func testCatalog() *mockCatalog {
	return &mockCatalog{byAgeGroup: map[int16][]catalog.Product{
		3: {
			{ID: crayonID, Code: "A001", Name: "クレヨン", Price: decimal.NewFromInt(500)},
			{ID: clayID, Code: "B001", Name: "粘土セット", Price: decimal.NewFromInt(1200)},
		},
		5: {
			{ID: scissorID, Code: "C001", Name: "はさみ", Price: decimal.NewFromInt(800)},
		},
	}}
}

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

type orderEnv struct {
	router  http.Handler
	svc     *mockOrderService
	metrics *metrics.Registry
	lookup  *mockOrderLookup
}

func newOrderEnv(t *testing.T, period handler.OrderPeriod) *orderEnv {
	t.Helper()
	store, err := staging.Open(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("open staging: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	env := &orderEnv{
		svc: &mockOrderService{createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			return &service.CreateOrderResult{Order: database.Order{
				ID:            uuid.New(),
				OrderNumber:   "ORD202501230042",
				TotalAmount:   makeNumeric(req.Pending.TotalAmount().String()),
				TotalQuantity: req.Pending.TotalQuantity(),
			}}, nil
		}},
		metrics: metrics.NewRegistry(),
		lookup:  &mockOrderLookup{orders: map[string]database.Order{}},
	}
	h := handler.NewOrderHandler(env.svc, testCatalog(), store, env.lookup, period, env.metrics)

	r := chi.NewRouter()
	r.Use(middleware.Session(false))
	h.RegisterRoutes(r)
	env.router = r
	return env
}

func (e *orderEnv) do(t *testing.T, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: session})
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func yamadaSubmission() map[string]interface{} {
	return map[string]interface{}{
		"guardian_name":   "山田 太郎",
		"child_name":      "山田 花子",
		"child_name_kana": "ﾔﾏﾀﾞ ﾊﾅｺ",
		"age_group":       3,
		"handedness":      "右",
		"items": []map[string]interface{}{
			{"product_id": crayonID.String(), "quantity": 2},
			{"product_id": clayID.String(), "quantity": 1},
		},
	}
}

func stage(t *testing.T, e *orderEnv, session string) string {
	t.Helper()
	rr := e.do(t, "POST", "/orders", session, yamadaSubmission())
	if rr.Code != http.StatusOK {
		t.Fatalf("submit: got %d; body: %s", rr.Code, rr.Body.String())
	}
	token, _ := decodeResponse(t, rr)["confirmation_token"].(string)
	if token == "" {
		t.Fatal("expected confirmation_token")
	}
	return token
}

// --- Submit ---

func TestSubmit_StagesOrder(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()

	rr := e.do(t, "POST", "/orders", session, yamadaSubmission())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	order, ok := resp["order"].(map[string]interface{})
	if !ok {
		t.Fatal("expected order object")
	}
	if order["total_amount"] != "2200" {
		t.Errorf("total_amount: got %v, want 2200", order["total_amount"])
	}
	if order["total_quantity"] != float64(3) {
		t.Errorf("total_quantity: got %v, want 3", order["total_quantity"])
	}
	if order["child_name_kana"] != "ヤマダ ハナコ" {
		t.Errorf("kana should be widened: got %v", order["child_name_kana"])
	}
	if order["class_label"] != "3歳児(年少)" {
		t.Errorf("class_label: got %v", order["class_label"])
	}
	if e.svc.calls.Load() != 0 {
		t.Error("submit must not persist")
	}
}

func TestSubmit_ValidationErrors(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	sub := yamadaSubmission()
	sub["child_name_kana"] = "やまだ"
	sub["items"] = []map[string]interface{}{{"product_id": crayonID.String(), "quantity": 100}}

	rr := e.do(t, "POST", "/orders", uuid.NewString(), sub)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}

	resp := decodeResponse(t, rr)
	errs, ok := resp["errors"].(map[string]interface{})
	if !ok {
		t.Fatal("expected errors map")
	}
	if errs["child_name_kana"] != "katakana" {
		t.Errorf("kana error: got %v", errs["child_name_kana"])
	}
	if errs["items[0].quantity"] != "out_of_range" {
		t.Errorf("quantity error: got %v", errs["items[0].quantity"])
	}
	if got := testutil.ToFloat64(e.metrics.IntakeRejected.WithLabelValues("validation")); got != 1 {
		t.Errorf("rejected metric: got %v", got)
	}
}

func TestSubmit_IncompatibleProduct(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	sub := yamadaSubmission()
	sub["items"] = []map[string]interface{}{{"product_id": scissorID.String(), "quantity": 1}}

	rr := e.do(t, "POST", "/orders", uuid.NewString(), sub)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	errs := decodeResponse(t, rr)["errors"].(map[string]interface{})
	if errs["items"] != "incompatible_product" {
		t.Errorf("items error: got %v", errs["items"])
	}
	if got := testutil.ToFloat64(e.metrics.IntakeRejected.WithLabelValues("incompatible_product")); got != 1 {
		t.Errorf("rejected metric: got %v", got)
	}
}

func TestSubmit_PeriodClosed(t *testing.T) {
	e := newOrderEnv(t, periodFunc(func(time.Time) bool { return false }))

	rr := e.do(t, "POST", "/orders", uuid.NewString(), yamadaSubmission())
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestSubmit_InvalidBody(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	req := httptest.NewRequest("POST", "/orders", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Pending / Cancel ---

func TestPending_RestoresStagedOrder(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	token := stage(t, e, session)

	rr := e.do(t, "GET", "/orders/pending", session, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["confirmation_token"] != token {
		t.Errorf("token: got %v, want %v", resp["confirmation_token"], token)
	}
	items := resp["order"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 2 {
		t.Errorf("items: got %d, want 2", len(items))
	}
}

func TestPending_SessionsAreIsolated(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	stage(t, e, uuid.NewString())

	rr := e.do(t, "GET", "/orders/pending", uuid.NewString(), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCancel_ClearsStaging(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	stage(t, e, session)

	if rr := e.do(t, "DELETE", "/orders/pending", session, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("cancel: got %d", rr.Code)
	}
	if rr := e.do(t, "GET", "/orders/pending", session, nil); rr.Code != http.StatusNotFound {
		t.Errorf("pending after cancel: got %d, want 404", rr.Code)
	}
}

// --- Confirm ---

func TestConfirm_PersistsStagedOrder(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	token := stage(t, e, session)

	var got service.CreateOrderRequest
	inner := e.svc.createFn
	e.svc.createFn = func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
		got = req
		return inner(ctx, req)
	}

	rr := e.do(t, "POST", "/orders/confirm", session, map[string]string{"confirmation_token": token})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["order_number"] != "ORD202501230042" {
		t.Errorf("order_number: got %v", resp["order_number"])
	}
	if resp["total_amount"] != "2200" || resp["total_quantity"] != float64(3) {
		t.Errorf("totals: got %v / %v", resp["total_amount"], resp["total_quantity"])
	}

	if len(got.Pending.Lines) != 2 || got.Pending.Lines[0].ProductID != crayonID {
		t.Errorf("service received %+v", got.Pending.Lines)
	}
	if got.UserAgent != "test-agent" || got.IPAddress == "" {
		t.Errorf("metadata: ip=%q ua=%q", got.IPAddress, got.UserAgent)
	}

	if rr := e.do(t, "GET", "/orders/pending", session, nil); rr.Code != http.StatusNotFound {
		t.Errorf("staging should be cleared after commit, got %d", rr.Code)
	}
}

func TestConfirm_NothingStaged(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)

	rr := e.do(t, "POST", "/orders/confirm", uuid.NewString(), map[string]string{"confirmation_token": "x"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if e.svc.calls.Load() != 0 {
		t.Error("service must not be called")
	}
}

func TestConfirm_TokenMismatch(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	stage(t, e, session)

	rr := e.do(t, "POST", "/orders/confirm", session, map[string]string{"confirmation_token": "stale"})
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
	if e.svc.calls.Load() != 0 {
		t.Error("service must not be called")
	}
	if rr := e.do(t, "GET", "/orders/pending", session, nil); rr.Code != http.StatusOK {
		t.Errorf("staged order should survive a mismatch, got %d", rr.Code)
	}
}

func TestConfirm_ResubmitIssuesNewToken(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	first := stage(t, e, session)
	second := stage(t, e, session)

	if first == second {
		t.Fatal("restaging should issue a new token")
	}
	rr := e.do(t, "POST", "/orders/confirm", session, map[string]string{"confirmation_token": first})
	if rr.Code != http.StatusConflict {
		t.Errorf("old token: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestConfirm_PersistenceFailure(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	token := stage(t, e, session)
	e.svc.createFn = func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
		return nil, errors.New("connection reset")
	}

	rr := e.do(t, "POST", "/orders/confirm", session, map[string]string{"confirmation_token": token})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	if rr := e.do(t, "GET", "/orders/pending", session, nil); rr.Code != http.StatusOK {
		t.Errorf("staged order should remain for retry, got %d", rr.Code)
	}
}

func TestConfirm_RetryAfterPersistenceFailure(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	token := stage(t, e, session)
	ok := e.svc.createFn
	e.svc.createFn = func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
		return nil, errors.New("connection reset")
	}

	if rr := e.do(t, "POST", "/orders/confirm", session, map[string]string{"confirmation_token": token}); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("first attempt: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	e.svc.createFn = ok
	rr := e.do(t, "POST", "/orders/confirm", session, map[string]string{"confirmation_token": token})
	if rr.Code != http.StatusCreated {
		t.Fatalf("retry with the same token: got %d; body: %s", rr.Code, rr.Body.String())
	}
}

func TestConfirm_ConcurrentConfirmsCommitOnce(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	token := stage(t, e, session)
	inner := e.svc.createFn
	e.svc.createFn = func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
		time.Sleep(50 * time.Millisecond)
		return inner(ctx, req)
	}

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]string{"confirmation_token": token})
			req := httptest.NewRequest("POST", "/orders/confirm", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: session})
			rr := httptest.NewRecorder()
			e.router.ServeHTTP(rr, req)
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	sort.Ints(codes)
	if codes[0] != http.StatusCreated || codes[1] != http.StatusNotFound {
		t.Errorf("codes: got %v, want [201 404]", codes)
	}
	if n := e.svc.calls.Load(); n != 1 {
		t.Errorf("orders persisted: got %d, want 1", n)
	}
}

func TestConfirm_OrderNumberExhausted(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	token := stage(t, e, session)
	e.svc.createFn = func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
		return nil, service.ErrOrderNumberExhausted
	}

	rr := e.do(t, "POST", "/orders/confirm", session, map[string]string{"confirmation_token": token})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestConfirm_CatalogChanged(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	session := uuid.NewString()
	token := stage(t, e, session)
	e.svc.createFn = func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
		return nil, service.ErrProductMismatch
	}

	rr := e.do(t, "POST", "/orders/confirm", session, map[string]string{"confirmation_token": token})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
	if rr := e.do(t, "GET", "/orders/pending", session, nil); rr.Code != http.StatusNotFound {
		t.Errorf("staging should be cleared, got %d", rr.Code)
	}
}

// --- Thanks page ---

func TestGetByNumber(t *testing.T) {
	e := newOrderEnv(t, alwaysOpen)
	e.lookup.orders["ORD202501230042"] = database.Order{
		OrderNumber:   "ORD202501230042",
		ChildName:     "山田 花子",
		AgeGroup:      3,
		TotalAmount:   makeNumeric("2200"),
		TotalQuantity: 3,
	}

	rr := e.do(t, "GET", "/orders/number/ORD202501230042", uuid.NewString(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["class_label"] != "3歳児(年少)" || resp["total_amount"] != "2200" {
		t.Errorf("unexpected response: %v", resp)
	}

	if rr := e.do(t, "GET", "/orders/number/ORD209901010001", uuid.NewString(), nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown number: got %d, want 404", rr.Code)
	}
}
