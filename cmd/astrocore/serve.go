package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"time"

	"astrocore/internal/adapters/httpapi"
	"astrocore/internal/core"
	"astrocore/internal/platform/config"
	"astrocore/internal/platform/otel"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// listenHook observes the bound address once the server accepts connections.
var listenHook = func(net.Addr) {}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	shutdownTracing, err := otel.Setup(ctx, appName, version, a.cfg.OTel.Endpoint, a.cfg.OTel.Enabled)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.logger.Warn("shutdown tracing", "error", err)
		}
	}()

	metricsOpt, metricsHandler, err := a.metrics()
	if err != nil {
		return err
	}
	opts := []core.Option{core.WithTracer(core.NewOTelTracer(appName))}
	if metricsOpt != nil {
		opts = append(opts, metricsOpt)
	}
	svc, closeStore, err := a.openService(opts...)
	if err != nil {
		return err
	}
	defer closeStore()

	handlerOpts := []httpapi.Option{httpapi.WithLogger(a.logger)}
	if metricsHandler != nil {
		handlerOpts = append(handlerOpts, httpapi.WithMetricsHandler(metricsHandler))
	}
	srv := &http.Server{
		Handler:           httpapi.NewHandler(svc, handlerOpts...).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.HTTPAddr, err)
	}
	a.logger.Info("http server listening", "addr", ln.Addr().String(), "storage", string(a.cfg.Storage.Driver), "metrics", a.cfg.MetricsDriver)
	listenHook(ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", "timeout", a.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// metrics builds the recorder and exposition handler for the configured driver.
func (a *app) metrics() (core.Option, http.Handler, error) {
	switch a.cfg.MetricsDriver {
	case config.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, nil, fmt.Errorf("register metrics: %w", err)
		}
		return core.WithMetricsRecorder(rec), promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), nil
	case config.MetricsExpvar:
		return core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("")), expvar.Handler(), nil
	default:
		return nil, nil, nil
	}
}
