package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"regsys/internal/codec"
	"regsys/internal/config"
	"regsys/internal/fingerprint"
	"regsys/internal/infrastructure"
	"regsys/internal/ledger"
	"regsys/internal/license"
	"regsys/internal/middleware"
	"regsys/internal/store"
	transport "regsys/internal/transport/http"
	"regsys/internal/websocket"
)

// Application is the wired license system.
type Application struct {
	Config       *config.Config
	Logger       *slog.Logger
	OTel         *infrastructure.OTelProviders
	Fingerprints *fingerprint.Provider
	Store        *store.FileStore
	Engine       *license.Engine
	Hub          *websocket.Hub
	// Ledger is nil unless Config.Ledger.Path is set.
	Ledger *ledger.Workbook
	Server *http.Server
}

// New wires an application from cfg. The caller owns Shutdown.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	otelProviders, err := infrastructure.InitializeOTel(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := license.NewMetrics(otelProviders.Meter)
	if err != nil {
		_ = otelProviders.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create license metrics: %w", err)
	}

	source := fingerprint.WithOverrides(fingerprint.SystemSource{}, cfg.Hardware.DiskID, cfg.Hardware.ProcessorID)
	provider := fingerprint.NewProvider(source, logger)
	fileStore := store.NewFileStore(cfg.Storage.Dir)
	hub := websocket.NewHub(logger)

	engine := license.NewEngine(codec.NewLegacy(), provider, fileStore,
		license.WithLogger(logger),
		license.WithMetrics(metrics),
		license.WithTracer(otelProviders.Tracer),
		license.WithObserver(hub),
	)

	a := &Application{
		Config:       cfg,
		Logger:       logger,
		OTel:         otelProviders,
		Fingerprints: provider,
		Store:        fileStore,
		Engine:       engine,
		Hub:          hub,
	}
	if cfg.Ledger.Path != "" {
		a.Ledger = ledger.Open(cfg.Ledger.Path, cfg.Ledger.Sheet)
	}
	a.Server = a.newServer()

	return a, nil
}

func (a *Application) newServer() *http.Server {
	var limiter *middleware.RateLimiter
	if a.Config.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(a.Config.RateLimit.RPS, a.Config.RateLimit.Burst, a.Logger)
	}

	var book transport.Ledger
	if a.Ledger != nil {
		book = a.Ledger
	}

	router := transport.NewRouter(transport.RouterConfig{
		License:     transport.NewLicenseHandler(a.Engine, book, nil, a.Logger),
		Hub:         a.Hub,
		Metrics:     a.OTel.PrometheusHTTP,
		RateLimiter: limiter,
		EnableIssue: a.Config.Server.EnableIssue,
		Logger:      a.Logger,
	})

	return &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run listens on Config.Server.Addr and serves until ctx is cancelled or an
// interrupt arrives.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the status hub and the HTTP server on ln until ctx is done.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	report := a.Engine.RefreshStatus(ctx)
	a.Logger.InfoContext(ctx, "Serving license API",
		slog.String("address", ln.Addr().String()),
		slog.String("version", infrastructure.ServiceVersion),
		slog.String("license_status", report.Status.String()),
		slog.String("storage_dir", a.Store.Dir()),
		slog.Bool("issue_enabled", a.Config.Server.EnableIssue))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Hub.Run(gctx)
	})

	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(ctx, "Shutting down license API")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown flushes telemetry.
func (a *Application) Shutdown(ctx context.Context) error {
	if a.OTel == nil {
		return nil
	}
	if err := a.OTel.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		return err
	}
	return nil
}
