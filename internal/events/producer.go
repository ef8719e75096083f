package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const (
	OrderSentTopic        = "xconnect.order.sent"
	DeliveryReceivedTopic = "xconnect.delivery.received"
)

type OrderSentEvent struct {
	OrderName       string    `json:"order_name"`
	ArchiveName     string    `json:"archive_name"`
	SourceLanguage  string    `json:"source_language"`
	TargetLanguages []string  `json:"target_languages"`
	Reference       string    `json:"reference"`
	FileCount       int       `json:"file_count"`
	DueDate         time.Time `json:"due_date"`
	EventTime       time.Time `json:"event_time"`
}

type DeliveryReceivedEvent struct {
	DeliveryID  string    `json:"delivery_id"`
	ArchiveName string    `json:"archive_name"`
	Reference   string    `json:"reference"`
	Status      string    `json:"status"`
	FileCount   int       `json:"file_count"`
	OutputDir   string    `json:"output_dir"`
	EventTime   time.Time `json:"event_time"`
}

// Publisher announces what the agent sent and received.
type Publisher interface {
	PublishOrderSent(ctx context.Context, event OrderSentEvent) error
	PublishDeliveryReceived(ctx context.Context, event DeliveryReceivedEvent) error
	Close() error
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
}

func ProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0
	return config
}

func NewKafkaProducer(brokers []string, logger *logrus.Logger) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, err
	}
	return NewKafkaProducerFrom(producer, logger), nil
}

func NewKafkaProducerFrom(producer sarama.SyncProducer, logger *logrus.Logger) *KafkaProducer {
	return &KafkaProducer{
		producer: producer,
		logger:   logger,
	}
}

func (p *KafkaProducer) PublishOrderSent(ctx context.Context, event OrderSentEvent) error {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}
	return p.publish(ctx, OrderSentTopic, event.OrderName, event)
}

func (p *KafkaProducer) PublishDeliveryReceived(ctx context.Context, event DeliveryReceivedEvent) error {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}
	return p.publish(ctx, DeliveryReceivedTopic, event.DeliveryID, event)
}

func (p *KafkaProducer) publish(ctx context.Context, topic, key string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("topic", topic).Error("Failed to send message to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"key":       key,
	}).Info("Event published to Kafka")

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderSent(context.Context, OrderSentEvent) error               { return nil }
func (NopPublisher) PublishDeliveryReceived(context.Context, DeliveryReceivedEvent) error { return nil }
func (NopPublisher) Close() error                                                         { return nil }
