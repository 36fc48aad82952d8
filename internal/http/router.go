package http

import (
	"net/http"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	AuthRateLimit      float64
	AuthRateBurst      int
}

// NewRouter mounts the storefront API under /api/v1.
func NewRouter(sessions Sessions, products Catalog, cfg RouterConfig, log *zap.Logger) http.Handler {
	v := validator.New(validator.WithRequiredStructEnabled())

	authHandler := NewAuthHandler(sessions, v, log, cfg.RequestTimeout)
	productHandler := NewProductHandler(products, log, cfg.RequestTimeout)
	cartHandler := NewCartHandler(products, v, log, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(log, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(log, cfg.RequestTimeout)
	limiter := NewRateLimiter(rate.Limit(cfg.AuthRateLimit), cfg.AuthRateBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, log, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limiter.Middleware(log)).Post("/signup", authHandler.SignUp)
			r.With(limiter.Middleware(log)).Post("/signin", authHandler.SignIn)

			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(sessions, log))
				r.Post("/signout", authHandler.SignOut)
				r.Get("/session", authHandler.CurrentSession)
			})
		})

		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{product_id}", productHandler.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(sessions, log))

			r.Get("/cart", cartHandler.GetCart)
			r.Delete("/cart", cartHandler.ClearCart)
			r.Post("/cart/items", cartHandler.AddItem)
			r.Put("/cart/items/{item_id}", cartHandler.UpdateQuantity)
			r.Delete("/cart/items/{item_id}", cartHandler.RemoveItem)

			r.Post("/checkout", checkoutHandler.PlaceOrder)
			r.Get("/orders", ordersHandler.ListOrders)
			r.Get("/orders/{order_id}", ordersHandler.GetOrder)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
