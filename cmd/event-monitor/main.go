package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jogardn/xconnect/internal/config"
	"github.com/jogardn/xconnect/internal/events"
	"github.com/jogardn/xconnect/internal/logging"
	"github.com/sirupsen/logrus"
)

type printHandler struct {
	logger *logrus.Logger
}

func (h *printHandler) HandleOrderSent(event events.OrderSentEvent) error {
	h.logger.WithFields(logrus.Fields{
		"order_name":       event.OrderName,
		"reference":        event.Reference,
		"target_languages": event.TargetLanguages,
		"file_count":       event.FileCount,
	}).Info("Order sent")

	fmt.Printf("\n=== Order Sent ===\n")
	fmt.Printf("Time: %s\n", event.EventTime.Format(time.RFC3339))
	fmt.Printf("Order: %s\n", event.OrderName)
	fmt.Printf("Languages: %s -> %s\n", event.SourceLanguage, strings.Join(event.TargetLanguages, ", "))
	fmt.Printf("Due: %s\n", event.DueDate.Format(time.DateOnly))
	fmt.Printf("==================\n\n")
	return nil
}

func (h *printHandler) HandleDeliveryReceived(event events.DeliveryReceivedEvent) error {
	h.logger.WithFields(logrus.Fields{
		"delivery_id": event.DeliveryID,
		"reference":   event.Reference,
		"status":      event.Status,
		"file_count":  event.FileCount,
	}).Info("Delivery received")

	fmt.Printf("\n=== Delivery Received ===\n")
	fmt.Printf("Time: %s\n", event.EventTime.Format(time.RFC3339))
	fmt.Printf("Delivery: %s (%s)\n", event.DeliveryID, event.Status)
	fmt.Printf("Reference: %s\n", event.Reference)
	fmt.Printf("Files: %d in %s\n", event.FileCount, event.OutputDir)
	fmt.Printf("=========================\n\n")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("XCONNECT_KAFKA_BROKERS is required")
	}

	consumer, err := events.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, &printHandler{logger: logger}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"topics": []string{events.OrderSentTopic, events.DeliveryReceivedTopic},
		"group":  cfg.KafkaGroupID,
	}).Info("Event monitor started")

	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Error("Consumer stopped with error")
	}
	logger.Info("Event monitor stopped")
}
