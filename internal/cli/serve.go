package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/iammorganparry/clive/apps/interviewer/internal/adapters"
	"github.com/iammorganparry/clive/apps/interviewer/internal/api"
	"github.com/iammorganparry/clive/apps/interviewer/internal/blobs"
	"github.com/iammorganparry/clive/apps/interviewer/internal/config"
	"github.com/iammorganparry/clive/apps/interviewer/internal/digest"
	"github.com/iammorganparry/clive/apps/interviewer/internal/events"
	"github.com/iammorganparry/clive/apps/interviewer/internal/interview"
	"github.com/iammorganparry/clive/apps/interviewer/internal/prompts"
	"github.com/iammorganparry/clive/apps/interviewer/internal/sessions"
	"github.com/iammorganparry/clive/apps/interviewer/internal/store"
)

const eventBuffer = 64

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interviewer HTTP server",
	Long: `Start the HTTP API. Configuration comes from .env, the YAML file named
by INTERVIEWER_CONFIG and environment variables, in that order.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Prompts
	tpl, err := prompts.Default()
	if cfg.PromptsPath != "" {
		tpl, err = prompts.LoadFile(cfg.PromptsPath)
	}
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	agg, err := digest.NewAggregator(cfg.Interview.KeywordLimit)
	if err != nil {
		return err
	}

	// External services
	set, err := adapters.New(ctx, cfg.Adapters, logger)
	if err != nil {
		return fmt.Errorf("init adapters: %w", err)
	}

	var blobStore blobs.Store = blobs.DigestStore{}
	var minioStore *blobs.MinioStore
	if cfg.Blobs.Endpoint != "" {
		minioStore, err = blobs.NewMinioStore(blobs.MinioConfig{
			Endpoint:  cfg.Blobs.Endpoint,
			Region:    cfg.Blobs.Region,
			AccessKey: cfg.Blobs.AccessKey,
			SecretKey: cfg.Blobs.SecretKey,
			Bucket:    cfg.Blobs.Bucket,
			UseSSL:    cfg.Blobs.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("init blob store: %w", err)
		}
		blobStore = minioStore
	}

	// Archive
	var (
		archive interview.Archive
		reports api.ReportReader
		db      *store.DB
	)
	if cfg.ArchiveDBPath != "" {
		db, err = store.Open(cfg.ArchiveDBPath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer db.Close()
		rs := store.NewReportStore(db)
		archive, reports = rs, rs
	}

	// Interview services
	hub := events.NewHub(eventBuffer, logger)
	deps := interview.Deps{
		Store:      sessions.NewSessionStore(),
		Aggregator: agg,
		Templates:  tpl,
		Completer:  set.Completer,
		Events:     hub,
		Logger:     logger,
	}
	svc := api.Services{
		Sessions:   interview.NewSessions(deps, blobStore),
		Capture:    interview.NewCapture(deps, set.Extractor, set.Transcriber, blobStore, cfg.Interview.AdapterTimeout),
		Controller: interview.NewController(deps, cfg.Interview),
		Evaluator:  interview.NewEvaluator(deps, archive, cfg.Interview),
		Hub:        hub,
		Reports:    reports,
		Health:     healthChecks(set, minioStore, db),
	}

	router := api.NewRouter(svc, api.Options{
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      h2c.NewHandler(router, &http2.Server{}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Interview.AdapterTimeout*2 + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("interviewer server starting",
			"addr", addr,
			"completion", set.CompletionProvider,
			"extractor", set.ExtractorProvider,
			"transcriber", set.TranscriberProvider,
			"archive", cfg.ArchiveDBPath != "",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// healthChecks lists every dependency /health reports on.
func healthChecks(set *adapters.Set, minioStore *blobs.MinioStore, db *store.DB) []api.HealthCheck {
	checks := []api.HealthCheck{
		{Name: "completion", Check: probe(set.Completer)},
		{Name: "extractor", Check: probe(set.Extractor)},
		{Name: "transcriber", Check: probe(set.Transcriber)},
		{Name: "blobs"},
		{Name: "archive"},
	}
	if minioStore != nil {
		checks[3].Check = minioStore.HealthCheck
	}
	if db != nil {
		checks[4].Check = func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			_, err := db.ReportCount()
			return err
		}
	}
	return checks
}

// probe returns a health check for an adapter, or nil when it is not configured.
func probe(adapter any) func(context.Context) error {
	if adapter == nil {
		return nil
	}
	if hc, ok := adapter.(adapters.HealthChecker); ok {
		return hc.HealthCheck
	}
	return func(context.Context) error { return nil }
}
