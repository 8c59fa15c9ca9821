package kafka

import (
	"context"
	"encoding/json"

	"ms-raffle/internal/config"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"

	"github.com/segmentio/kafka-go"
)

// Producer streams raffle lifecycle events. One writer is shared across
// topics; the topic is set per message.
type Producer struct {
	writer  *kafka.Writer
	topics  config.TopicConfig
	enabled bool
	log     *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{
		writer:  writer,
		topics:  cfg.Topics,
		enabled: cfg.Enabled,
		log:     log,
	}
}

func (p *Producer) publish(topic, key string, payload interface{}) error {
	if !p.enabled {
		return nil
	}
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.log.LogKafka("PUBLISH", topic, "Publishing: "+string(msgBytes))

	return p.writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

// PublishOrderCreated streams the order creation event.
func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publish(p.topics.OrderCreated, order.ID, order)
}

// PublishOrderPaid streams a settled order with its allocated serial numbers.
func (p *Producer) PublishOrderPaid(event models.PaymentEvent) error {
	return p.publish(p.topics.OrderPaid, event.OrderID, event)
}

// PublishOrderExpired streams an order that crossed its payment window unpaid.
func (p *Producer) PublishOrderExpired(order models.Order) error {
	return p.publish(p.topics.OrderExpired, order.ID, order)
}

// PublishPaymentUpdated streams a gateway status change that did not settle
// the order (rejections, cancellations).
func (p *Producer) PublishPaymentUpdated(event models.PaymentEvent) error {
	return p.publish(p.topics.PaymentUpdated, event.OrderID, event)
}

// PublishQuotaAwarded streams an instant-prize hit.
func (p *Producer) PublishQuotaAwarded(raffleID, orderID string, serialNumber int) error {
	event := map[string]interface{}{
		"raffle_id":     raffleID,
		"order_id":      orderID,
		"serial_number": serialNumber,
	}
	return p.publish(p.topics.QuotaAwarded, raffleID, event)
}

// Close flushes and shuts down the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
