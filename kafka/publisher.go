package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/mizizzi/inventory-engine/internal/checkout/domain"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// Publisher wraps Kafka producer
type Publisher struct {
	producer sarama.SyncProducer
	brokers  []string
}

// NewPublisher creates a new Kafka publisher
func NewPublisher(brokers []string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.MaxMessageBytes = 1000000

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Msg("Kafka publisher initialized")

	return &Publisher{
		producer: producer,
		brokers:  brokers,
	}, nil
}

// PublishOrderCommitted announces a finished checkout commit.
func (p *Publisher) PublishOrderCommitted(ctx context.Context, order *domain.Order) error {
	event := OrderInventoryEvent{
		EventType: EventTypeOrderCommitted,
		OrderRef:  order.OrderRef,
		UserID:    order.UserID,
		Items:     len(order.Items),
		Total:     order.Total.String(),
	}
	return p.publish(ctx, TopicInventoryEvents, event.EventType,
		fmt.Sprintf("order_%s", order.OrderRef), &event.EventID, &event.Timestamp, &event,
		attribute.String("order.ref", order.OrderRef.String()),
		attribute.Int("order.items", len(order.Items)),
	)
}

// PublishOrderRestored announces a restored order.
func (p *Publisher) PublishOrderRestored(ctx context.Context, order *domain.Order) error {
	event := OrderInventoryEvent{
		EventType: EventTypeOrderRestored,
		OrderRef:  order.OrderRef,
		UserID:    order.UserID,
		Items:     len(order.Items),
		Total:     order.Total.String(),
	}
	return p.publish(ctx, TopicInventoryEvents, event.EventType,
		fmt.Sprintf("order_%s", order.OrderRef), &event.EventID, &event.Timestamp, &event,
		attribute.String("order.ref", order.OrderRef.String()),
		attribute.Int("order.items", len(order.Items)),
	)
}

// PublishStockLow announces that a key dropped to its low stock threshold.
func (p *Publisher) PublishStockLow(ctx context.Context, rec *stockdomain.StockRecord) error {
	event := StockLowEvent{
		EventType: EventTypeStockLow,
		ProductID: rec.ProductID,
		VariantID: rec.VariantID,
		Available: rec.AvailableQuantity(),
		Threshold: rec.LowStockThreshold,
	}
	return p.publish(ctx, TopicInventoryEvents, event.EventType,
		rec.Key().String(), &event.EventID, &event.Timestamp, &event,
		attribute.Int64("product.id", int64(rec.ProductID)),
		attribute.Int("stock.available", rec.AvailableQuantity()),
	)
}

// publish marshals the event and sends it with trace context injected into
// the message headers.
func (p *Publisher) publish(ctx context.Context, topic, eventType, key string, eventID *string, timestamp *time.Time, event any, attrs ...attribute.KeyValue) error {
	tracer := otel.Tracer("kafka-publisher")
	spanAttrs := append([]attribute.KeyValue{
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", topic),
		attribute.String("messaging.destination_kind", "topic"),
		attribute.String("event.type", eventType),
	}, attrs...)
	ctx, span := tracer.Start(ctx, "kafka.publish."+eventType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(spanAttrs...),
	)
	defer span.End()

	if *eventID == "" {
		*eventID = fmt.Sprintf("evt_%d", time.Now().UnixNano())
	}
	*timestamp = time.Now()
	span.SetAttributes(attribute.String("event.id", *eventID))

	eventBytes, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(eventType)},
		{Key: []byte("event_id"), Value: []byte(*eventID)},
	}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(eventBytes),
		Headers: headers,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send message")
		logger.Logger.Error().
			Err(err).
			Str("topic", topic).
			Str("event_type", eventType).
			Str("trace_id", span.SpanContext().TraceID().String()).
			Msg("Failed to publish event")
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	span.SetStatus(codes.Ok, "Event published successfully")

	logger.Logger.Info().
		Str("event_id", *eventID).
		Str("event_type", eventType).
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Str("trace_id", span.SpanContext().TraceID().String()).
		Msg("Event published")

	return nil
}

// Close closes the Kafka producer
func (p *Publisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
