// Command hookline runs the webhook gateway as a standalone service: one
// HTTP listener carrying the public ingestion surface and the management API,
// backed by a configurable store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"github.com/topi314/tint"
	"github.com/xraph/go-utils/metrics"

	hookline "github.com/hookline/hookline"
	"github.com/hookline/hookline/api"
	"github.com/hookline/hookline/ingest"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("hookline exited", tint.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.GetString("log_level"))
	slog.SetDefault(logger)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}

	opts := []hookline.Option{
		hookline.WithStore(st),
		hookline.WithLogger(logger),
		hookline.WithMetrics(metrics.NewMetricsCollector("hookline")),
		hookline.WithTracing(),
	}
	if v := cfg.GetInt("engine.concurrency"); v > 0 {
		opts = append(opts, hookline.WithConcurrency(v))
	}
	if v := cfg.GetDuration("engine.poll_interval"); v > 0 {
		opts = append(opts, hookline.WithPollInterval(v))
	}
	if v := cfg.GetInt("engine.batch_size"); v > 0 {
		opts = append(opts, hookline.WithBatchSize(v))
	}
	if v := cfg.GetDuration("engine.request_timeout"); v > 0 {
		opts = append(opts, hookline.WithRequestTimeout(v))
	}
	if v := cfg.GetDuration("engine.shutdown_timeout"); v > 0 {
		opts = append(opts, hookline.WithShutdownTimeout(v))
	}
	if cfg.IsSet("engine.cache_ttl") {
		opts = append(opts, hookline.WithCacheTTL(cfg.GetDuration("engine.cache_ttl")))
	}

	gw, err := hookline.New(opts...)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	gw.Start(ctx)

	mux := http.NewServeMux()
	ingestHandler := ingest.NewHandler(gw, logger)
	mux.Handle("/webhook/", ingestHandler)
	mux.Handle("/w/", ingestHandler)
	mux.Handle("/api/", http.StripPrefix("/api", api.NewHandler(gw, logger)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.GetString("listen"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hookline listening",
			"addr", srv.Addr,
			"store", cfg.GetString("store.driver"),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-sigCtx.Done():
	}

	logger.Info("shutting down")

	shutdownTimeout := cfg.GetDuration("engine.shutdown_timeout")
	if shutdownTimeout <= 0 {
		shutdownTimeout = hookline.DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", tint.Err(err))
	}
	gw.Stop(shutdownCtx)

	return nil
}

// loadConfig reads hookline.yaml (working directory or /etc/hookline) with
// HOOKLINE_* environment overrides.
func loadConfig() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("hookline")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hookline")

	v.SetEnvPrefix("hookline")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("store.driver", "memory")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return v, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: lvl,
	}))
}
