package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kinder-supplies/api/internal/config"
	"github.com/kinder-supplies/api/internal/database"
	"github.com/kinder-supplies/api/internal/metrics"
	"github.com/kinder-supplies/api/internal/router"
	"github.com/kinder-supplies/api/internal/staging"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.RunMigrations {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}

	stage, err := staging.Open(cfg.StagingDir, cfg.StagingTTL)
	if err != nil {
		log.Fatalf("Unable to open staging store: %v", err)
	}
	defer stage.Close()

	m := metrics.NewRegistry()
	go purgeStaging(ctx, stage, m, cfg.StagingTTL)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(cfg, database.New(pool), pool, stage, m),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
	log.Println("Server stopped gracefully")
}

// purgeStaging drops abandoned pending orders at startup and then once per
// TTL until ctx ends.
func purgeStaging(ctx context.Context, stage *staging.Store, m *metrics.Registry, ttl time.Duration) {
	purgeOnce(stage, m)

	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeOnce(stage, m)
		}
	}
}

func purgeOnce(stage *staging.Store, m *metrics.Registry) int {
	n, err := stage.PurgeExpired()
	if err != nil {
		log.Printf("ERROR: purge staging: %v", err)
		return 0
	}
	if n > 0 {
		m.StagingPurged.Add(float64(n))
		log.Printf("Purged %d expired pending orders", n)
	}
	return n
}
