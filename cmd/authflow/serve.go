package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/httpapi"
	promexport "github.com/MrEthical07/authflow/metrics/export/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

// NewServeCmd starts the API server, the metrics server and the sweeper.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the account API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config, logger *slog.Logger) error {
	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret is required to serve (set JWT_SECRET or AUTHFLOW_JWT__SECRET)")
	}

	tp := newTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.mongo != nil {
		if err := b.mongo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("create mongo indexes: %w", err)
		}
	}

	engine, err := buildEngine(cfg, b, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("security posture",
		"production", report.ProductionMode,
		"secure_cookies", report.SecureCookies,
		"password_algorithm", report.Password.Algorithm,
		"rate_limiting", report.RateLimitingActive,
		"sweep", report.SweepActive,
	)
	for _, w := range report.Warnings() {
		logger.Warn("security warning", "detail", w)
	}

	reg := prometheus.NewRegistry()
	requestMetrics := httpapi.NewRequestMetrics(reg)

	api := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.NewHandler(engine, httpapi.Options{
			Logger:     logger,
			TrustProxy: cfg.HTTP.TrustProxy,
			Metrics:    requestMetrics,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", "addr", cfg.HTTP.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		return runServer(gctx, api, cfg.HTTP.ShutdownTimeout)
	})

	if cfg.Metrics.Addr != "" {
		handler, err := metricsHandler(engine, reg)
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", handler)
		metricsSrv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
			return runServer(gctx, metricsSrv, cfg.HTTP.ShutdownTimeout)
		})
	}

	g.Go(func() error {
		err := engine.RunSweeper(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// metricsHandler exposes the engine counters, the HTTP request series and
// the Go runtime collectors on one scrape endpoint.
func metricsHandler(engine *authflow.Engine, reg *prometheus.Registry) (http.Handler, error) {
	for _, c := range []prometheus.Collector{
		promexport.NewCollector(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), nil
}

// runServer serves until ctx is cancelled, then drains in-flight requests
// for at most timeout.
func runServer(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", srv.Addr, err)
	}
	return nil
}

// newTracerProvider samples every request so log lines carry trace and
// span ids. Spans are not exported.
func newTracerProvider() *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}
