package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/boutique-checkout/internal/domain/auth"
	"github.com/xenking/boutique-checkout/internal/domain/cart"
	"github.com/xenking/boutique-checkout/internal/domain/coupon"
	"github.com/xenking/boutique-checkout/internal/domain/order"
	"github.com/xenking/boutique-checkout/internal/domain/pricing"
	"github.com/xenking/boutique-checkout/internal/handler"
	"github.com/xenking/boutique-checkout/internal/notify"
	"github.com/xenking/boutique-checkout/internal/storage/memory"
	"github.com/xenking/boutique-checkout/internal/storage/postgres"
	"github.com/xenking/boutique-checkout/internal/storage/redis"
	"github.com/xenking/boutique-checkout/pkg/health"
	"github.com/xenking/boutique-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the notification
// workers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.Add(health.Readiness, health.Check{
		Name:    "postgres",
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(pool),
	})
	healthSvc.Add(health.Liveness, health.Check{
		Name: "goroutines",
		Func: health.GoroutineCountCheck(10000),
	})

	// Carts live in Redis when configured so every replica sees them.
	var carts cart.Store
	if cfg.Redis.URL != "" {
		client, err := redis.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()

		store := redis.NewCartStore(client, cfg.Redis.CartTTL)
		healthSvc.Add(health.Readiness, health.Check{
			Name:    "redis",
			Timeout: 2 * time.Second,
			Func:    health.PingCheck(store),
		})
		carts = store
		lg.Info("Using Redis cart store", zap.Duration("ttl", cfg.Redis.CartTTL))
	} else {
		carts = memory.NewCartStore()
		lg.Warn("REDIS_URL not set, carts are kept in process memory")
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Notification delivery.
	var sender notify.Sender = notify.Nop{}
	if cfg.Notify.WebhookURL != "" {
		sender = notify.NewWebhook(notify.WebhookConfig{
			URL:     cfg.Notify.WebhookURL,
			Token:   cfg.Notify.WebhookToken,
			Timeout: cfg.Notify.Timeout,
		}, m.TracerProvider(), m.MeterProvider())
	} else {
		lg.Warn("Notify webhook URL not set, order notifications are dropped")
	}
	queue, err := notify.NewQueue(sender, notify.QueueConfig{
		Size:         cfg.Notify.QueueSize,
		Workers:      cfg.Notify.Workers,
		Attempts:     cfg.Notify.Attempts,
		Backoff:      cfg.Notify.Backoff,
		DrainTimeout: cfg.Graceful.ShutdownTimeout,
	}, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create notify queue")
	}

	// Domain services.
	cartService := cart.NewService(carts, productRepo)
	couponService := coupon.NewService(couponRepo)
	orderService, err := order.NewService(cartService, couponService, orderRepo, order.Options{
		Policy:         pricing.Policy{ClampDiscount: cfg.Pricing.ClampDiscount},
		Notifier:       queue,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL},
		productRepo,
		cartService,
		orderService,
		couponService,
		auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
	)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RouteContext(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.SessionHeader, handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("boutique-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// The queue outlives the server so notifications triggered by in-flight
	// requests are still drained.
	queueCtx, stopQueue := context.WithCancel(context.WithoutCancel(ctx))
	defer stopQueue()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(queueCtx)
	})
	g.Go(func() error {
		return healthSvc.Run(gctx, 10*time.Second)
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		stopQueue()
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
