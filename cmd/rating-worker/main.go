package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Pesokrava/review_engine/internal/config"
	"github.com/Pesokrava/review_engine/internal/delivery/events"
	"github.com/Pesokrava/review_engine/internal/pkg/cache"
	"github.com/Pesokrava/review_engine/internal/pkg/database"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
	cacheRepo "github.com/Pesokrava/review_engine/internal/repository/cache"
	"github.com/Pesokrava/review_engine/internal/repository/postgres"
	"github.com/Pesokrava/review_engine/internal/usecase/rating"
	"github.com/Pesokrava/review_engine/internal/worker"
)

const fetchBatchSize = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Env)
	logger.SetGlobalLogger(appLogger)
	appLogger.Info("Starting rating worker...")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	appLogger.Info("Connecting to PostgreSQL...")
	db, err := database.WaitForDB(ctx, cfg, 10, 2*time.Second)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", err)
	}
	defer db.Close()
	appLogger.Info("Connected to database")

	// The worker keeps the rating cache warm when Redis is reachable, and works without it otherwise
	var summaryCache rating.SummaryCache
	redisClient, err := cache.WaitForRedis(ctx, cfg, 3, 2*time.Second)
	if err != nil {
		appLogger.Warnf("Redis unavailable, rating cache will not be refreshed: %v", err)
	} else {
		defer redisClient.Close()
		summaryCache = cacheRepo.NewRedisCache(redisClient, cfg.Cache.ProductRatingTTL, cfg.Cache.ReviewsListTTL)
	}

	ratingRepo := postgres.NewRatingRepository(db)
	engine := rating.NewEngine(ratingRepo, summaryCache, rating.Config{
		MaxRetries:     cfg.Rating.MaxRetries,
		InitialBackoff: cfg.Rating.InitialBackoff,
		RetryDelay:     cfg.Rating.RetryDelay,
	}, appLogger)

	ratingWorker := worker.NewRatingWorker(engine, cfg.Rating.DebounceWindow, appLogger)

	reconciler := worker.NewReconciler(ratingRepo, engine, worker.ReconcilerConfig{
		Schedule:    cfg.Rating.ReconcileSchedule,
		BatchSize:   cfg.Rating.ReconcileBatchSize,
		Concurrency: cfg.Rating.ReconcileConcurrency,
	}, appLogger)
	if err := reconciler.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start reconciler", err)
	}

	appLogger.Info("Connecting to NATS JetStream...")
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("review-engine-rating-worker"), nats.MaxReconnects(-1))
	if err != nil {
		appLogger.Fatal("Failed to connect to NATS", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		appLogger.Fatal("Failed to create JetStream context", err)
	}

	appLogger.WithFields(map[string]any{
		"url": cfg.NATS.URL,
	}).Info("Connected to NATS JetStream")

	streamConfig := events.NewStreamConfig(js, cfg.NATS.Subject, appLogger)
	if err := streamConfig.EnsureStream(); err != nil {
		appLogger.Fatal("Failed to ensure stream", err)
	}
	if err := streamConfig.EnsureConsumer(); err != nil {
		appLogger.Fatal("Failed to ensure consumer", err)
	}

	sub, err := js.PullSubscribe(cfg.NATS.Subject, events.ConsumerName, nats.ManualAck())
	if err != nil {
		appLogger.Fatal("Failed to subscribe to JetStream consumer", err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			appLogger.Error("Failed to unsubscribe from JetStream", err)
		}
	}()

	appLogger.WithFields(map[string]any{
		"stream":   events.StreamName,
		"consumer": events.ConsumerName,
	}).Info("Subscribed to JetStream consumer")

	done := make(chan struct{})
	go func() {
		defer close(done)
		consume(ctx, sub, ratingWorker, appLogger)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh
	appLogger.Info("Received shutdown signal")
	stop()
	<-done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := reconciler.Stop(shutdownCtx); err != nil {
		appLogger.Error("Reconciler did not stop in time", err)
	}
	if err := ratingWorker.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Error during worker shutdown", err)
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Error during engine shutdown", err)
	}

	appLogger.Info("Rating worker stopped")
}

// consume pulls review events until ctx is cancelled.
// Undecodable events are nacked and dropped after MaxDeliveryAttempts; the reconciler repairs what they missed.
func consume(ctx context.Context, sub *nats.Subscription, ratingWorker *worker.RatingWorker, log *logger.Logger) {
	for ctx.Err() == nil {
		msgs, err := sub.Fetch(fetchBatchSize, nats.MaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			log.Error("Failed to fetch messages from JetStream", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			if err := ratingWorker.HandleEvent(msg.Data); err != nil {
				log.Error("Failed to handle event", err)
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error("Failed to NAK message", nakErr)
				}
				continue
			}

			if ackErr := msg.Ack(); ackErr != nil {
				log.Error("Failed to ACK message", ackErr)
			}
		}
	}
}
