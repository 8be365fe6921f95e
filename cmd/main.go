package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raceops/courseflow/internal/adapters/audit"
	app "github.com/raceops/courseflow/internal/app"
	"github.com/raceops/courseflow/internal/catalog"
	"github.com/raceops/courseflow/internal/config"
	"github.com/raceops/courseflow/internal/domain/rulebook"
	"github.com/raceops/courseflow/pkg/logger"
	"github.com/raceops/courseflow/pkg/metrics"
)

// HTTP server timeout constants for the optional metrics listener.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			logger.Error(err)
		}
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if cfg.CatalogFile == "" || cfg.PaceFile == "" || cfg.RulebookFile == "" {
		log.Fatal(ctx, "catalog_file, pace_file and rulebook_file are required")
	}

	// Optional Prometheus listener for long batch runs.
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	cat, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		log.Fatal(ctx, "loading segment catalog failed", logger.Error(err))
	}
	log.Info(ctx, "segment catalog loaded",
		logger.String("file", cfg.CatalogFile),
		logger.Int("segments", len(cat.Segments())))

	runners, err := catalog.NewPaceLoader(cat).LoadFile(ctx, cfg.PaceFile)
	if err != nil {
		log.Fatal(ctx, "loading pace curves failed", logger.Error(err))
	}

	rb, err := rulebook.LoadFile(cfg.RulebookFile)
	if err != nil {
		log.Fatal(ctx, "loading rulebook failed", logger.Error(err))
	}

	opts := []app.Option{app.WithLogger(log)}

	var auditStore *audit.Store
	if cfg.AuditDB != "" {
		auditStore, err = audit.Open(cfg.AuditDB, time.Now())
		if err != nil {
			log.Fatal(ctx, "opening audit store failed", logger.Error(err))
		}
		defer func() { _ = auditStore.Close() }()
		opts = append(opts, app.WithAuditStore(auditStore))
		log.Info(ctx, "audit store opened",
			logger.String("db", cfg.AuditDB),
			logger.String("run_id", auditStore.RunID()))
	}

	svc, err := app.New(cfg, cat, runners, rb, opts...)
	if err != nil {
		log.Fatal(ctx, "building engine failed", logger.Error(err))
	}

	report, err := svc.Run(ctx)
	if err != nil {
		log.Fatal(ctx, "engine run failed", logger.Error(err))
	}

	if err := writeReport(cfg.ReportFile, report); err != nil {
		log.Fatal(ctx, "writing report failed", logger.Error(err))
	}
}

// writeReport writes the report as indented JSON; "-" means stdout.
func writeReport(path string, report any) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// serveMetrics exposes the engine registry for the duration of the run.
func serveMetrics(ctx context.Context, addr string) {
	log := logger.Get()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "metrics listener starting", logger.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error(ctx, "metrics listener failed", logger.Error(err))
	}
}
