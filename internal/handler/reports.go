package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/kinder-supplies/api/internal/report"
	"github.com/kinder-supplies/api/internal/service"
)

const dateLayout = "2006-01-02"

// ReportServicer defines the service methods needed by report handlers.
// Satisfied by *service.ReportService; narrow interface for testability.
type ReportServicer interface {
	Summary(ctx context.Context, rng service.DateRange) (*service.ReportSummary, error)
	Export(ctx context.Context, rng service.DateRange, mode report.Mode, format string) (*service.ExportFile, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	svc ReportServicer
	loc *time.Location
	now func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. Date parameters are
// interpreted in loc.
func NewReportsHandler(svc ReportServicer, loc *time.Location) *ReportsHandler {
	return &ReportsHandler{svc: svc, loc: loc, now: time.Now}
}

// RegisterRoutes registers report endpoints. Expected to be mounted at /admin.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/summary", h.Summary)
	r.Get("/reports/export", h.Export)
}

// --- Response types ---

type ageGroupStatResponse struct {
	AgeGroup      int16  `json:"age_group"`
	ClassLabel    string `json:"class_label"`
	OrderCount    int64  `json:"order_count"`
	TotalSales    string `json:"total_sales"`
	TotalQuantity int64  `json:"total_quantity"`
}

type handednessStatResponse struct {
	Handedness string `json:"handedness"`
	OrderCount int64  `json:"order_count"`
}

type productStatResponse struct {
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	Sales       string `json:"sales"`
}

type summaryResponse struct {
	StartDate       string                   `json:"start_date"`
	EndDate         string                   `json:"end_date"`
	OrderCount      int64                    `json:"order_count"`
	TotalSales      string                   `json:"total_sales"`
	ReconciledSales string                   `json:"reconciled_sales"`
	TotalQuantity   int64                    `json:"total_quantity"`
	AvgOrderAmount  string                   `json:"avg_order_amount"`
	AgeGroups       []ageGroupStatResponse   `json:"age_groups"`
	Handedness      []handednessStatResponse `json:"handedness"`
	TopProducts     []productStatResponse    `json:"top_products"`
}

// --- Handlers ---

// Summary handles GET /admin/reports/summary.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	rng, err := parseDateRange(r, h.loc, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sum, err := h.svc.Summary(r.Context(), rng)
	if err != nil {
		log.Printf("ERROR: report summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := summaryResponse{
		StartDate:       rng.From.Format(dateLayout),
		EndDate:         rng.LastDay().Format(dateLayout),
		OrderCount:      sum.OrderCount,
		TotalSales:      sum.StoredSales.StringFixed(0),
		ReconciledSales: sum.ReconciledSales.StringFixed(0),
		TotalQuantity:   sum.TotalQuantity,
		AvgOrderAmount:  sum.AvgOrderAmount.StringFixed(0),
		AgeGroups:       make([]ageGroupStatResponse, len(sum.AgeGroups)),
		Handedness:      make([]handednessStatResponse, len(sum.Handedness)),
		TopProducts:     make([]productStatResponse, len(sum.TopProducts)),
	}
	for i, a := range sum.AgeGroups {
		resp.AgeGroups[i] = ageGroupStatResponse{
			AgeGroup:      a.AgeGroup,
			ClassLabel:    a.ClassLabel,
			OrderCount:    a.OrderCount,
			TotalSales:    a.StoredSales.StringFixed(0),
			TotalQuantity: a.TotalQuantity,
		}
	}
	for i, hs := range sum.Handedness {
		resp.Handedness[i] = handednessStatResponse{Handedness: hs.Handedness, OrderCount: hs.OrderCount}
	}
	for i, p := range sum.TopProducts {
		resp.TopProducts[i] = productStatResponse{
			ProductName: p.ProductName,
			Quantity:    p.Quantity,
			Sales:       p.ReconciledSales.StringFixed(0),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Export handles GET /admin/reports/export as a file download.
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	mode, err := report.ParseMode(r.URL.Query().Get("type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be quantity or amount"})
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "":
		format = enum.ExportFormatCSV
	case enum.ExportFormatCSV, enum.ExportFormatXLSX:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "format must be csv or xlsx"})
		return
	}

	rng, err := parseDateRange(r, h.loc, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	file, err := h.svc.Export(r.Context(), rng, mode, format)
	if err != nil {
		if errors.Is(err, service.ErrNoData) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no data"})
			return
		}
		log.Printf("ERROR: export report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		log.Printf("ERROR: write export: %v", err)
	}
}

// --- Helpers ---

// parseDateRange parses start_date and end_date query params in loc.
// Defaults to the last 30 days if not provided. The returned range ends at
// midnight after end_date.
func parseDateRange(r *http.Request, loc *time.Location, now time.Time) (service.DateRange, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	// Default: last 30 days (midnight to midnight in local time)
	start := today.AddDate(0, 0, -30)
	end := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return service.DateRange{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		start = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return service.DateRange{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		end = t.AddDate(0, 0, 1)
	}

	if !start.Before(end) {
		return service.DateRange{}, fmt.Errorf("start_date must not be after end_date")
	}

	return service.DateRange{From: start, To: end}, nil
}
