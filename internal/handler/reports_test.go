package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kinder-supplies/api/internal/handler"
	"github.com/kinder-supplies/api/internal/report"
	"github.com/kinder-supplies/api/internal/service"
	"github.com/shopspring/decimal"
)

type mockReportService struct {
	summaryFn func(ctx context.Context, rng service.DateRange) (*service.ReportSummary, error)
	exportFn  func(ctx context.Context, rng service.DateRange, mode report.Mode, format string) (*service.ExportFile, error)
}

func (m *mockReportService) Summary(ctx context.Context, rng service.DateRange) (*service.ReportSummary, error) {
	return m.summaryFn(ctx, rng)
}

func (m *mockReportService) Export(ctx context.Context, rng service.DateRange, mode report.Mode, format string) (*service.ExportFile, error) {
	return m.exportFn(ctx, rng, mode, format)
}

func newReportsRouter(svc handler.ReportServicer) *chi.Mux {
	r := chi.NewRouter()
	handler.NewReportsHandler(svc, tokyo).RegisterRoutes(r)
	return r
}

func TestExport_CSVDownload(t *testing.T) {
	var gotRange service.DateRange
	var gotMode report.Mode
	svc := &mockReportService{exportFn: func(ctx context.Context, rng service.DateRange, mode report.Mode, format string) (*service.ExportFile, error) {
		gotRange, gotMode = rng, mode
		return &service.ExportFile{
			Filename:    "syukeikin_20250101_20250131.csv",
			ContentType: "text/csv; charset=UTF-8",
			Data:        []byte("\xEF\xBB\xBFa,b\n"),
		}, nil
	}}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/reports/export?type=amount&start_date=2025-01-01&end_date=2025-01-31", nil)
	newReportsRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="syukeikin_20250101_20250131.csv"` {
		t.Errorf("content disposition: got %s", cd)
	}
	if rr.Header().Get("Content-Type") != "text/csv; charset=UTF-8" {
		t.Errorf("content type: got %s", rr.Header().Get("Content-Type"))
	}
	if rr.Body.String() != "\xEF\xBB\xBFa,b\n" {
		t.Errorf("body: got %q", rr.Body.String())
	}
	if gotMode != report.ModeAmount {
		t.Errorf("mode: got %v", gotMode)
	}
	wantFrom := time.Date(2025, 1, 1, 0, 0, 0, 0, tokyo)
	wantTo := time.Date(2025, 2, 1, 0, 0, 0, 0, tokyo)
	if !gotRange.From.Equal(wantFrom) || !gotRange.To.Equal(wantTo) {
		t.Errorf("range: got %v – %v", gotRange.From, gotRange.To)
	}
}

func TestExport_NoData(t *testing.T) {
	svc := &mockReportService{exportFn: func(ctx context.Context, rng service.DateRange, mode report.Mode, format string) (*service.ExportFile, error) {
		return nil, service.ErrNoData
	}}

	rr := httptest.NewRecorder()
	newReportsRouter(svc).ServeHTTP(rr, httptest.NewRequest("GET", "/reports/export?start_date=2030-01-01&end_date=2030-01-31", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if resp := decodeResponse(t, rr); resp["error"] != "no data" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestExport_BadParams(t *testing.T) {
	svc := &mockReportService{exportFn: func(ctx context.Context, rng service.DateRange, mode report.Mode, format string) (*service.ExportFile, error) {
		t.Fatal("service should not be called")
		return nil, nil
	}}

	for _, q := range []string{
		"type=weight",
		"format=pdf",
		"start_date=2025/01/01",
		"start_date=2025-02-01&end_date=2025-01-01",
	} {
		rr := httptest.NewRecorder()
		newReportsRouter(svc).ServeHTTP(rr, httptest.NewRequest("GET", "/reports/export?"+q, nil))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestExport_SingleDayRange(t *testing.T) {
	var gotRange service.DateRange
	svc := &mockReportService{exportFn: func(ctx context.Context, rng service.DateRange, mode report.Mode, format string) (*service.ExportFile, error) {
		gotRange = rng
		return &service.ExportFile{Filename: "x.xlsx", ContentType: "application/octet-stream"}, nil
	}}

	rr := httptest.NewRecorder()
	newReportsRouter(svc).ServeHTTP(rr, httptest.NewRequest("GET", "/reports/export?format=xlsx&start_date=2025-01-23&end_date=2025-01-23", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if gotRange.To.Sub(gotRange.From) != 24*time.Hour {
		t.Errorf("single day range: %v – %v", gotRange.From, gotRange.To)
	}
}

func TestExport_ServiceError(t *testing.T) {
	svc := &mockReportService{exportFn: func(ctx context.Context, rng service.DateRange, mode report.Mode, format string) (*service.ExportFile, error) {
		return nil, errors.New("db down")
	}}

	rr := httptest.NewRecorder()
	newReportsRouter(svc).ServeHTTP(rr, httptest.NewRequest("GET", "/reports/export", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestSummary(t *testing.T) {
	svc := &mockReportService{summaryFn: func(ctx context.Context, rng service.DateRange) (*service.ReportSummary, error) {
		return &service.ReportSummary{
			OrderCount:      1,
			StoredSales:     decimal.NewFromInt(2200),
			ReconciledSales: decimal.NewFromInt(2400),
			TotalQuantity:   3,
			AvgOrderAmount:  decimal.NewFromInt(2200),
			AgeGroups:       []service.AgeGroupStat{{AgeGroup: 3, ClassLabel: "3歳児(年少)", OrderCount: 1, StoredSales: decimal.NewFromInt(2200), TotalQuantity: 3}},
			Handedness:      []service.HandednessStat{{Handedness: "右", OrderCount: 1}},
			TopProducts:     []service.ProductStat{{ProductName: "クレヨン", Quantity: 2, ReconciledSales: decimal.NewFromInt(1200)}},
		}, nil
	}}

	rr := httptest.NewRecorder()
	newReportsRouter(svc).ServeHTTP(rr, httptest.NewRequest("GET", "/reports/summary?start_date=2025-01-01&end_date=2025-01-31", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["total_sales"] != "2200" || resp["reconciled_sales"] != "2400" {
		t.Errorf("sales: %v / %v", resp["total_sales"], resp["reconciled_sales"])
	}
	if resp["start_date"] != "2025-01-01" || resp["end_date"] != "2025-01-31" {
		t.Errorf("dates: %v – %v", resp["start_date"], resp["end_date"])
	}
	top := resp["top_products"].([]interface{})
	if len(top) != 1 || top[0].(map[string]interface{})["sales"] != "1200" {
		t.Errorf("top products: %v", top)
	}
}
