package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/storefront-backend/api/controllers/admin"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Store is the Redis surface the HTTP layer needs for idempotency replay and
// rate limiting.
type Store interface {
	middleware.ReplayStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Catalog  catalog.Service
	Cart     cart.Service
	Coupons  coupons.Service
	Checkout checkoutsvc.Service
	Orders   orders.Service
	Refunds  refunds.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	store Store,
	health map[string]controllers.Pinger,
	metricsHandler http.Handler,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	idempotent := middleware.Idempotency(store, logg)
	refundPolicy := middleware.NewRateLimitPolicy(
		"refunds",
		cfg.RateLimit.RefundWindow,
		cfg.RateLimit.RefundIPLimit,
		cfg.RateLimit.RefundEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, health))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/items", controllers.ItemList(svc.Catalog, logg))
		r.Get("/items/{slug}", controllers.ItemDetail(svc.Catalog, logg))
		r.With(middleware.RateLimit(refundPolicy, store, logg), idempotent).
			Post("/refunds", controllers.RefundRequest(svc.Refunds, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/ping", controllers.PrivatePing())

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
				r.Post("/items/{slug}", cartcontrollers.CartAddItem(svc.Cart, logg))
				r.Delete("/items/{slug}", cartcontrollers.CartRemoveItem(svc.Cart, logg))
				r.Patch("/items/{slug}", cartcontrollers.CartAdjustItem(svc.Cart, logg))
				r.With(idempotent).Post("/coupon", cartcontrollers.CartApplyCoupon(svc.Coupons, logg))
			})

			r.Get("/checkout", controllers.CheckoutView(svc.Checkout, logg))
			r.With(idempotent).Post("/checkout", controllers.CheckoutSubmit(svc.Checkout, logg))
			r.With(idempotent).Post("/payment/{option}", controllers.PaymentSubmit(svc.Checkout, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.UserRoleOperator, logg))
				r.Get("/ping", controllers.OperatorPing())
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", admincontrollers.Orders(svc.Orders, logg))
					r.With(idempotent).Post("/delivery", admincontrollers.MarkBeingDelivered(svc.Orders, logg))
					r.With(idempotent).Post("/received", admincontrollers.MarkReceived(svc.Orders, logg))
					r.With(idempotent).Post("/refunds/grant", admincontrollers.GrantRefunds(svc.Refunds, logg))
				})
				r.Get("/addresses", admincontrollers.Addresses(svc.Orders, logg))
				r.Route("/refunds", func(r chi.Router) {
					r.Get("/", admincontrollers.Refunds(svc.Refunds, logg))
					r.With(idempotent).Post("/{refundId}/accept", admincontrollers.AcceptRefund(svc.Refunds, logg))
				})
			})
		})
	})

	return r
}
