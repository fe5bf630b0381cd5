package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Pesokrava/review_engine/internal/config"
	"github.com/Pesokrava/review_engine/internal/delivery/http/handler"
	"github.com/Pesokrava/review_engine/internal/delivery/http/middleware"
	"github.com/Pesokrava/review_engine/internal/delivery/http/response"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
)

const requestTimeout = 30 * time.Second

// Router holds HTTP handlers and router configuration
type Router struct {
	productHandler *handler.ProductHandler
	reviewHandler  *handler.ReviewHandler
	logger         *logger.Logger
	cfg            *config.Config
}

// NewRouter creates a new HTTP router
func NewRouter(
	productHandler *handler.ProductHandler,
	reviewHandler *handler.ReviewHandler,
	cfg *config.Config,
	log *logger.Logger,
) *Router {
	return &Router{
		productHandler: productHandler,
		reviewHandler:  reviewHandler,
		logger:         log,
		cfg:            cfg,
	}
}

// Setup configures and returns the HTTP router
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logger(rt.logger))
	r.Use(middleware.Metrics)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", rt.healthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.cfg.Auth.JWTSecret, rt.logger))

		// Public reads; an optional token widens review visibility
		r.Get("/products", rt.productHandler.List)
		r.Get("/products/{id}", rt.productHandler.GetByID)
		r.Get("/products/{id}/rating", rt.productHandler.GetRating)
		r.Get("/products/{id}/reviews", rt.reviewHandler.GetByProductID)
		r.Get("/reviews/{id}", rt.reviewHandler.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor)

			r.Post("/products", rt.productHandler.Create)
			r.Put("/products/{id}", rt.productHandler.Update)
			r.Delete("/products/{id}", rt.productHandler.Delete)

			r.Post("/reviews", rt.reviewHandler.Create)
			r.Get("/reviews/pending", rt.reviewHandler.ListPending)
			r.Put("/reviews/{id}", rt.reviewHandler.Update)
			r.Delete("/reviews/{id}", rt.reviewHandler.Delete)
			r.Put("/reviews/{id}/approval", rt.reviewHandler.SetApproval)
			r.Put("/reviews/{id}/response", rt.reviewHandler.AddResponse)
			r.Put("/reviews/{id}/verified-purchase", rt.reviewHandler.MarkVerifiedPurchase)
			r.Post("/reviews/{id}/like", rt.reviewHandler.Like)
			r.Post("/reviews/{id}/dislike", rt.reviewHandler.Dislike)

			r.Get("/users/me/reviews", rt.reviewHandler.ListMine)
		})
	})

	return r
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
