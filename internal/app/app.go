package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/grocerly/checkout/internal/barcode"
	"github.com/grocerly/checkout/internal/gateway"
	"github.com/grocerly/checkout/internal/handler"
	"github.com/grocerly/checkout/internal/session"
	"github.com/grocerly/checkout/internal/storage/memory"
	"github.com/grocerly/checkout/internal/storage/postgres"
	"github.com/grocerly/checkout/pkg/health"
	"github.com/grocerly/checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("upstream", cfg.UpstreamURL),
	)

	// Upstream REST clients share one transport.
	clientCfg := gateway.ClientConfig{
		BaseURL: cfg.UpstreamURL,
		Token:   gateway.ContextToken,
		Timeout: cfg.Upstream.Timeout,
	}
	if m != nil {
		clientCfg.TracerProvider = m.TracerProvider()
		clientCfg.MeterProvider = m.MeterProvider()
	}
	client, err := gateway.NewClient(clientCfg)
	if err != nil {
		return errors.Wrap(err, "create upstream client")
	}
	invoices := gateway.NewInvoiceClient(client)
	payments := gateway.NewPaymentClient(client)
	products := gateway.NewProductClient(client)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Cart snapshot store: PostgreSQL when configured, in-memory otherwise.
	// The barcode screen only exists when the barcode table is available.
	var (
		carts  session.CartStore
		screen handler.BarcodeScreen
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
		carts = postgres.NewCartRepository(pool)

		idx := barcode.NewIndex(cfg.Barcode.Capacity, cfg.Barcode.FPR)
		n, err := idx.Load(ctx, postgres.NewBarcodeRepository(pool))
		if err != nil {
			return errors.Wrap(err, "load barcode index")
		}
		lg.Info("Barcode index loaded", zap.Int("barcodes", n))
		screen = idx
	} else {
		lg.Info("No database configured, keeping cart snapshots in memory")
		carts = memory.NewCartRepository()
	}

	// Checkout sessions.
	sessions := session.NewManager(invoices, payments, carts, cfg.Session.TTL)
	sessions.StartSweep(ctx, cfg.Session.SweepInterval)

	h := handler.New(sessions, products, screen)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes())

	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests,
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
