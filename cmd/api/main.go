package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/locks"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	defer func() {
		if err := multierr.Combine(dbClient.Close(), redisClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewStorefrontMetrics(registry)

	services, err := buildServices(ctx, cfg, logg, dbClient, redisClient, recorder)
	requireResource(ctx, logg, "services", err)

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			redisClient,
			map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			services,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(groupCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(groupCtx, "api server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildServices(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	recorder *metrics.StorefrontMetrics,
) (routes.Services, error) {
	conn := dbClient.DB()
	ordersRepo := orders.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	locker, err := locks.NewRedisUserLocker(redisClient, cfg.Cart.LockTTL)
	if err != nil {
		return routes.Services{}, fmt.Errorf("user locker: %w", err)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(conn), cfg.Cart.CatalogPageSize)
	if err != nil {
		return routes.Services{}, fmt.Errorf("catalog service: %w", err)
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:    ordersRepo,
		Tx:      dbClient,
		Items:   catalogService,
		Locker:  locker,
		Metrics: recorder,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("cart service: %w", err)
	}

	couponService, err := coupons.NewService(coupons.NewRepository(conn), ordersRepo, locker)
	if err != nil {
		return routes.Services{}, fmt.Errorf("coupon service: %w", err)
	}

	processors, err := buildProcessors(ctx, cfg, logg)
	if err != nil {
		return routes.Services{}, err
	}
	gateway, err := payments.NewGateway(payments.GatewayParams{
		Processors: processors,
		Repo:       ordersRepo,
		Tx:         dbClient,
		Outbox:     outboxService,
		Logger:     logg,
		Metrics:    recorder,
		Config:     cfg.Payment,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("payment gateway: %w", err)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Repo:    ordersRepo,
		Tx:      dbClient,
		Locker:  locker,
		Gateway: gateway,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("checkout service: %w", err)
	}

	orderService, err := orders.NewService(ordersRepo)
	if err != nil {
		return routes.Services{}, fmt.Errorf("order service: %w", err)
	}

	refundService, err := refunds.NewService(refunds.NewRepository(conn), ordersRepo, dbClient, outboxService)
	if err != nil {
		return routes.Services{}, fmt.Errorf("refund service: %w", err)
	}

	return routes.Services{
		Catalog:  catalogService,
		Cart:     cartService,
		Coupons:  couponService,
		Checkout: checkoutService,
		Orders:   orderService,
		Refunds:  refundService,
	}, nil
}

// buildProcessors binds each checkout option to its processor. An option
// whose credentials are missing is left unbound and payments for it fail
// with "Invalid payment Option".
func buildProcessors(ctx context.Context, cfg *config.Config, logg *logger.Logger) (map[enums.PaymentOption]payments.Processor, error) {
	processors := make(map[enums.PaymentOption]payments.Processor, 2)

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Warn(ctx, fmt.Sprintf("stripe processor disabled: %v", err))
	} else {
		proc, err := payments.NewStripeProcessor(stripeClient)
		if err != nil {
			return nil, fmt.Errorf("stripe processor: %w", err)
		}
		processors[enums.PaymentOptionStripe] = proc
	}

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		logg.Warn(ctx, fmt.Sprintf("square processor disabled: %v", err))
	} else {
		proc, err := payments.NewSquareProcessor(squareClient)
		if err != nil {
			return nil, fmt.Errorf("square processor: %w", err)
		}
		processors[enums.PaymentOptionPaypal] = proc
	}

	if len(processors) == 0 {
		return nil, fmt.Errorf("no payment processor configured")
	}
	return processors, nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
