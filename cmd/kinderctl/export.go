package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kinder-supplies/api/internal/catalog"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/metrics"
	"github.com/kinder-supplies/api/internal/report"
	"github.com/kinder-supplies/api/internal/service"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		reportType string
		start      string
		end        string
		format     string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a pivot export for an order-date range",
		Example: `  kinderctl export --type quantity --start 2025-01-01 --end 2025-01-31
  kinderctl export --type amount --format xlsx --out ./exports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := report.ParseMode(reportType)
			if err != nil {
				return err
			}
			rng, err := exportRange(start, end, cfg.Location)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()

			queries := database.New(pool)
			svc := service.NewReportService(queries, catalog.NewLookup(queries), cfg.Location, metrics.NewRegistry())
			file, err := svc.Export(ctx, rng, mode, format)
			if err != nil {
				return err
			}

			path := filepath.Join(outDir, file.Filename)
			if err := os.WriteFile(path, file.Data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(file.Data))
			return nil
		},
	}

	cmd.Flags().StringVar(&reportType, "type", "quantity", "report type: quantity or amount")
	cmd.Flags().StringVar(&start, "start", "", "first order date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&end, "end", "", "last order date, YYYY-MM-DD inclusive (required)")
	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or xlsx")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

// exportRange turns inclusive calendar dates into a half-open range.
func exportRange(start, end string, loc *time.Location) (service.DateRange, error) {
	from, err := time.ParseInLocation("2006-01-02", start, loc)
	if err != nil {
		return service.DateRange{}, fmt.Errorf("invalid --start: %w", err)
	}
	to, err := time.ParseInLocation("2006-01-02", end, loc)
	if err != nil {
		return service.DateRange{}, fmt.Errorf("invalid --end: %w", err)
	}
	if to.Before(from) {
		return service.DateRange{}, fmt.Errorf("--end must not be before --start")
	}
	return service.DateRange{From: from, To: to.AddDate(0, 0, 1)}, nil
}
