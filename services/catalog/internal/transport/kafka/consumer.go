package kafka

import (
	"context"
	"encoding/json"

	"github.com/Arsyadam/bhawikarsu-store/pkg/events"
	"github.com/Arsyadam/bhawikarsu-store/pkg/kafka"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/variant"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/catalog/internal/service"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const consumerGroupID = "catalog-service"

type Consumer struct {
	service service.ProductService
	logger  *zap.Logger
}

func NewConsumer(service service.ProductService, logger *zap.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		consumerGroupID,
		[]string{events.TopicOrderEvents},
		c.ProcessMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

func (c *Consumer) ProcessMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Info(ctx, c.logger, "Processing message", zap.String("topic", msg.Topic))

	var envelope events.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling envelope", zap.Error(err))
		return kafka.Permanent(err)
	}

	switch envelope.Event {
	case events.OrderPaid:
		var event events.OrderPaidEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			mylogger.Warn(ctx, c.logger, "Error unmarshalling event structure", zap.Error(err))
			return kafka.Permanent(err)
		}

		if err := c.service.ApplyPaidOrder(ctx, envelope.EventID, toStockChanges(event.Items)); err != nil {
			mylogger.Warn(ctx, c.logger, "Error applying paid order", zap.String("order_id", event.OrderID), zap.Error(err))
			return err
		}
	case events.OrderRefunded:
		var event events.OrderRefundedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			mylogger.Warn(ctx, c.logger, "Error unmarshalling event structure", zap.Error(err))
			return kafka.Permanent(err)
		}

		if err := c.service.ReturnStock(ctx, envelope.EventID, toStockChanges(event.Items)); err != nil {
			mylogger.Warn(ctx, c.logger, "Error returning stock", zap.String("order_id", event.OrderID), zap.Error(err))
			return err
		}
	default:
		mylogger.Warn(ctx, c.logger, "Ignored event type", zap.String("event_type", envelope.Event))
	}

	return nil
}

func toStockChanges(lines []events.OrderLine) []domain.StockChange {
	changes := make([]domain.StockChange, 0, len(lines))
	for _, l := range lines {
		changes = append(changes, domain.StockChange{
			ProductID:  l.ProductID,
			VariantKey: variant.Key(l.VariantKey),
			Quantity:   l.Quantity,
		})
	}

	return changes
}
