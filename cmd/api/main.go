package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/clinicore/medical-assistant/internal/adapters/http"
	"github.com/clinicore/medical-assistant/internal/bootstrap"
	"github.com/clinicore/medical-assistant/internal/config"
	"github.com/clinicore/medical-assistant/internal/observability/logging"
	"github.com/clinicore/medical-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	validator, err := httpadapter.NewRequestValidator()
	if err != nil {
		slog.Error("openapi_validator_failed", "error", err)
		os.Exit(1)
	}
	httpMetrics := metrics.NewHTTPServerMetrics("api")

	router := httpadapter.NewRouter(
		app.ChatUC,
		app.ChatUC,
		app.IngestUC,
		app.DocumentUC,
		app.PatientUC,
		httpMetrics,
		validator,
	)

	root := http.NewServeMux()
	root.Handle("/metrics", httpMetrics.Handler())
	root.Handle("/", router.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}
