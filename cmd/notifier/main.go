package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Pesokrava/review_engine/internal/config"
	"github.com/Pesokrava/review_engine/internal/delivery/events"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Env)
	logger.SetGlobalLogger(appLogger)
	appLogger.Info("Starting notifier service...")

	consumer, err := events.NewConsumer(cfg.NATS.URL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create NATS consumer", err)
	}
	defer consumer.Close()

	// Delivery is logged; an email or push sender plugs in behind events.Sender
	handler := events.NotificationHandler(events.NewLogSender(appLogger), appLogger)
	if err := consumer.Subscribe(cfg.NATS.Subject, handler); err != nil {
		appLogger.Fatal("Failed to subscribe to review events", err)
	}

	appLogger.Info("Notifier service started and listening for events...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down notifier service...")
}
