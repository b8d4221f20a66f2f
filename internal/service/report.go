package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/enum"
	"github.com/kinder-supplies/api/internal/metrics"
	"github.com/kinder-supplies/api/internal/pricing"
	"github.com/kinder-supplies/api/internal/report"
	"github.com/shopspring/decimal"
)

const topProductsLimit = 10

// ReportStore defines the DB methods needed for reports.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportStore interface {
	ListReportLines(ctx context.Context, arg database.ListReportLinesParams) ([]database.ListReportLinesRow, error)
	GetOrderSummary(ctx context.Context, arg database.GetOrderSummaryParams) (database.GetOrderSummaryRow, error)
	GetAgeGroupStats(ctx context.Context, arg database.GetAgeGroupStatsParams) ([]database.GetAgeGroupStatsRow, error)
	GetHandednessStats(ctx context.Context, arg database.GetHandednessStatsParams) ([]database.GetHandednessStatsRow, error)
}

// DateRange is a half-open interval [From, To).
type DateRange struct {
	From time.Time
	To   time.Time
}

// LastDay is the inclusive end date of the range.
func (r DateRange) LastDay() time.Time {
	return r.To.AddDate(0, 0, -1)
}

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type AgeGroupStat struct {
	AgeGroup      int16
	ClassLabel    string
	OrderCount    int64
	StoredSales   decimal.Decimal
	TotalQuantity int64
}

type HandednessStat struct {
	Handedness string
	OrderCount int64
}

type ProductStat struct {
	ProductName     string
	Quantity        int64
	ReconciledSales decimal.Decimal
}

type ReportSummary struct {
	OrderCount      int64
	StoredSales     decimal.Decimal
	ReconciledSales decimal.Decimal
	TotalQuantity   int64
	AvgOrderAmount  decimal.Decimal
	AgeGroups       []AgeGroupStat
	Handedness      []HandednessStat
	TopProducts     []ProductStat
}

type ReportService struct {
	store   ReportStore
	prices  PriceLookup
	metrics *metrics.Registry
	loc     *time.Location
}

func NewReportService(store ReportStore, prices PriceLookup, loc *time.Location, m *metrics.Registry) *ReportService {
	return &ReportService{store: store, prices: prices, loc: loc, metrics: m}
}

// Pivot builds the child × product table for the range. In amount mode the
// cells hold reconciled amounts.
func (s *ReportService) Pivot(ctx context.Context, rng DateRange, mode report.Mode) (*report.Pivot, error) {
	rows, err := s.store.ListReportLines(ctx, database.ListReportLinesParams{StartDate: rng.From, EndDate: rng.To})
	if err != nil {
		return nil, fmt.Errorf("list report lines: %w", err)
	}

	var rec pricing.Result
	if mode == report.ModeAmount {
		rec, err = s.reconcile(ctx, rows)
		if err != nil {
			return nil, err
		}
	}

	tuples := make([]report.Tuple, 0, len(rows))
	for i, r := range rows {
		value := decimal.NewFromInt32(r.Quantity)
		if mode == report.ModeAmount {
			value = rec.Lines[i].Subtotal
		}
		tuples = append(tuples, report.Tuple{
			Child:   report.ChildKey(r.ChildName),
			Product: r.ProductName,
			Value:   value,
			Meta: report.ChildMeta{
				OrderDate:  r.OrderDate.In(s.loc),
				ClassLabel: enum.AgeGroupLabel(r.AgeGroup),
				Kana:       r.ChildNameKana,
				Handedness: r.Handedness,
			},
		})
	}
	return report.BuildPivot(tuples), nil
}

// Export renders the pivot for the range as CSV or XLSX. A range with no
// orders returns ErrNoData rather than an empty file.
func (s *ReportService) Export(ctx context.Context, rng DateRange, mode report.Mode, format string) (*ExportFile, error) {
	p, err := s.Pivot(ctx, rng, mode)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return nil, ErrNoData
	}

	var buf bytes.Buffer
	out := &ExportFile{Filename: report.Filename(mode, rng.From, rng.LastDay(), format)}
	switch format {
	case enum.ExportFormatXLSX:
		out.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = report.WriteXLSX(&buf, p, mode)
	default:
		out.ContentType = "text/csv; charset=UTF-8"
		err = report.WriteCSV(&buf, p, mode)
	}
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", format, err)
	}
	out.Data = buf.Bytes()

	s.metrics.ReportExports.WithLabelValues(mode.String(), format).Inc()
	return out, nil
}

// Summary returns stored totals alongside sales reconciled against the
// current catalog.
func (s *ReportService) Summary(ctx context.Context, rng DateRange) (*ReportSummary, error) {
	sum, err := s.store.GetOrderSummary(ctx, database.GetOrderSummaryParams{StartDate: rng.From, EndDate: rng.To})
	if err != nil {
		return nil, fmt.Errorf("order summary: %w", err)
	}
	ages, err := s.store.GetAgeGroupStats(ctx, database.GetAgeGroupStatsParams{StartDate: rng.From, EndDate: rng.To})
	if err != nil {
		return nil, fmt.Errorf("age group stats: %w", err)
	}
	hands, err := s.store.GetHandednessStats(ctx, database.GetHandednessStatsParams{StartDate: rng.From, EndDate: rng.To})
	if err != nil {
		return nil, fmt.Errorf("handedness stats: %w", err)
	}
	rows, err := s.store.ListReportLines(ctx, database.ListReportLinesParams{StartDate: rng.From, EndDate: rng.To})
	if err != nil {
		return nil, fmt.Errorf("list report lines: %w", err)
	}
	rec, err := s.reconcile(ctx, rows)
	if err != nil {
		return nil, err
	}

	out := &ReportSummary{
		OrderCount:      sum.OrderCount,
		StoredSales:     database.NumericToDecimal(sum.TotalSales),
		ReconciledSales: rec.Amount,
		TotalQuantity:   sum.TotalQuantity,
		AvgOrderAmount:  database.NumericToDecimal(sum.AvgOrderAmount).Round(0),
	}
	for _, a := range ages {
		out.AgeGroups = append(out.AgeGroups, AgeGroupStat{
			AgeGroup:      a.AgeGroup,
			ClassLabel:    enum.AgeGroupLabel(a.AgeGroup),
			OrderCount:    a.OrderCount,
			StoredSales:   database.NumericToDecimal(a.TotalSales),
			TotalQuantity: a.TotalQuantity,
		})
	}
	for _, h := range hands {
		out.Handedness = append(out.Handedness, HandednessStat{Handedness: h.Handedness, OrderCount: h.OrderCount})
	}
	out.TopProducts = topProducts(rows, rec, topProductsLimit)
	return out, nil
}

func (s *ReportService) reconcile(ctx context.Context, rows []database.ListReportLinesRow) (pricing.Result, error) {
	lines := make([]pricing.Line, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, pricing.Line{
			ProductID:       nullUUID(r.ProductID),
			Quantity:        r.Quantity,
			FrozenUnitPrice: database.NumericToDecimal(r.UnitPrice),
		})
	}
	prices, err := s.prices.CurrentPrices(ctx, pricing.ProductIDs(lines))
	if err != nil {
		return pricing.Result{}, fmt.Errorf("current prices: %w", err)
	}
	return pricing.Reconcile(lines, prices), nil
}

// topProducts ranks product names by reconciled sales, then name.
func topProducts(rows []database.ListReportLinesRow, rec pricing.Result, limit int) []ProductStat {
	idx := map[string]int{}
	var stats []ProductStat
	for i, r := range rows {
		at, ok := idx[r.ProductName]
		if !ok {
			at = len(stats)
			idx[r.ProductName] = at
			stats = append(stats, ProductStat{ProductName: r.ProductName, ReconciledSales: decimal.Zero})
		}
		stats[at].Quantity += int64(r.Quantity)
		stats[at].ReconciledSales = stats[at].ReconciledSales.Add(rec.Lines[i].Subtotal)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if c := stats[i].ReconciledSales.Cmp(stats[j].ReconciledSales); c != 0 {
			return c > 0
		}
		return stats[i].ProductName < stats[j].ProductName
	})
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}
