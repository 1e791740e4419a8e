package kafka

import (
	"context"
	"encoding/json"

	"github.com/Arsyadam/bhawikarsu-store/pkg/events"
	"github.com/Arsyadam/bhawikarsu-store/pkg/kafka"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/service"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const consumerGroupID = "notification-service"

type Consumer struct {
	service *service.NotificationService
	logger  *zap.Logger
}

func NewConsumer(service *service.NotificationService, logger *zap.Logger) *Consumer {
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

		return c.service.HandleOrderPaid(ctx, envelope.EventID, event)
	case events.OrderExpired:
		var event events.OrderExpiredEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			mylogger.Warn(ctx, c.logger, "Error unmarshalling event structure", zap.Error(err))
			return kafka.Permanent(err)
		}

		return c.service.HandleOrderExpired(ctx, envelope.EventID, event)
	default:
		mylogger.Debug(ctx, c.logger, "Ignored event type", zap.String("event_type", envelope.Event))
	}

	return nil
}
