package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pesokrava/review_engine/internal/config"
	"github.com/Pesokrava/review_engine/internal/delivery/events"
	httpDelivery "github.com/Pesokrava/review_engine/internal/delivery/http"
	"github.com/Pesokrava/review_engine/internal/delivery/http/handler"
	"github.com/Pesokrava/review_engine/internal/pkg/cache"
	"github.com/Pesokrava/review_engine/internal/pkg/database"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
	cacheRepo "github.com/Pesokrava/review_engine/internal/repository/cache"
	"github.com/Pesokrava/review_engine/internal/repository/postgres"
	"github.com/Pesokrava/review_engine/internal/usecase/product"
	"github.com/Pesokrava/review_engine/internal/usecase/rating"
	"github.com/Pesokrava/review_engine/internal/usecase/review"

	_ "github.com/Pesokrava/review_engine/docs"
)

// @title Review Engine API
// @version 1.0
// @description Product reviews with moderation, helpfulness votes and consistent rating aggregates.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://github.com/Pesokrava/review_engine
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and a JWT.

// @tag.name Products
// @tag.description Product management endpoints

// @tag.name Reviews
// @tag.description Review management endpoints

// @tag.name Moderation
// @tag.description Moderator-only review actions

// @tag.name Votes
// @tag.description Helpfulness votes

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Env)
	logger.SetGlobalLogger(appLogger)
	appLogger.Info("Starting Review Engine API...")

	if cfg.Auth.JWTSecret == "" {
		appLogger.Fatal("AUTH_JWT_SECRET must be set", errors.New("missing JWT secret"))
	}

	ctx := context.Background()

	appLogger.Info("Connecting to PostgreSQL...")
	db, err := database.WaitForDB(ctx, cfg, 10, 2*time.Second)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", err)
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL successfully")

	if err := database.RunMigrations(ctx, db); err != nil {
		appLogger.Fatal("Failed to run migrations", err)
	}

	appLogger.Info("Connecting to Redis...")
	redisClient, err := cache.WaitForRedis(ctx, cfg, 10, 2*time.Second)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis successfully")

	appLogger.Info("Connecting to NATS...")
	natsPublisher, err := events.NewPublisher(cfg.NATS.URL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create NATS publisher", err)
	}
	defer natsPublisher.Close()

	// The stream must exist before the first publish or events are not retained
	streamConfig := events.NewStreamConfig(natsPublisher.JetStream(), cfg.NATS.Subject, appLogger)
	if err := streamConfig.EnsureStream(); err != nil {
		appLogger.Fatal("Failed to ensure stream", err)
	}

	publisher := events.NewBreakerPublisher(natsPublisher, events.DefaultBreakerConfig(), appLogger)

	productRepo := postgres.NewProductRepository(db)
	reviewRepo := postgres.NewReviewRepository(db)
	ratingRepo := postgres.NewRatingRepository(db)
	redisCache := cacheRepo.NewRedisCache(
		redisClient,
		cfg.Cache.ProductRatingTTL,
		cfg.Cache.ReviewsListTTL,
	)

	engine := rating.NewEngine(ratingRepo, redisCache, rating.Config{
		MaxRetries:     cfg.Rating.MaxRetries,
		InitialBackoff: cfg.Rating.InitialBackoff,
		RetryDelay:     cfg.Rating.RetryDelay,
	}, appLogger)

	productService := product.NewService(productRepo, redisCache, appLogger)
	reviewService := review.NewService(reviewRepo, engine, redisCache, publisher, review.Config{
		AutoApprove:  cfg.Reviews.AutoApprove,
		EventSubject: cfg.NATS.Subject,
	}, appLogger)

	productHandler := handler.NewProductHandler(productService, appLogger)
	reviewHandler := handler.NewReviewHandler(reviewService, appLogger)

	router := httpDelivery.NewRouter(productHandler, reviewHandler, cfg, appLogger)
	httpHandler := router.Setup()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", err)
	}

	// Pending publishes and background recompute retries finish before connections close
	reviewService.Wait()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		appLogger.Warnf("Rating retries still pending at shutdown: %v", err)
	}

	appLogger.Info("Server stopped gracefully")
}
