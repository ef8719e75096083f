package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jogardn/xconnect/internal/agent"
	"github.com/jogardn/xconnect/internal/circuitbreaker"
	"github.com/jogardn/xconnect/internal/config"
	"github.com/jogardn/xconnect/internal/events"
	"github.com/jogardn/xconnect/internal/httpapi"
	"github.com/jogardn/xconnect/internal/ledger"
	"github.com/jogardn/xconnect/internal/logging"
	"github.com/jogardn/xconnect/internal/websocket"
	"github.com/jogardn/xconnect/pkg/transport"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := transport.New(ctx, cfg.Transport())
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to provider")
	}
	defer service.Close()
	logger.WithFields(logrus.Fields{
		"protocol": cfg.Transport().Protocol,
		"host":     cfg.Host,
	}).Info("Provider connection established")

	breaker := circuitbreaker.New(cfg.Breaker(), logger)
	guarded := transport.NewGuarded(service, breaker)

	store, closeStore, err := ledger.Open(ctx, cfg.DatabaseURL, 30, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open ledger")
	}
	defer closeStore()

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		publisher = producer
	} else {
		logger.Info("Kafka brokers not configured - events are not published")
	}

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	dispatcher := agent.New(guarded, store, publisher, hub, agent.Options{
		WorkDir:            cfg.WorkDir,
		OutputDir:          cfg.OutputDir,
		DeleteAfterReceive: cfg.DeleteAfterReceive,
		DryRun:             cfg.DryRun,
		PollInterval:       cfg.PollInterval,
		OrderDefaults:      cfg.OrderDefaults(),
	}, logger)

	api := httpapi.NewServer(dispatcher, store, logger,
		httpapi.WithBreaker(breaker),
		httpapi.WithWebSocket(hub.HandleWebSocket),
	)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("Starting xconnect agent")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		dispatcher.Run(ctx)
	}()

	<-ctx.Done()

	logger.Info("Shutting down agent...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	<-pollDone

	logger.Info("Agent gracefully stopped")
}
