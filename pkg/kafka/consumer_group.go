package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type HandlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// Backoff bounds the wait between deliveries of a failing message. The wait
// doubles from Initial up to Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

var DefaultBackoff = Backoff{Initial: 500 * time.Millisecond, Max: 30 * time.Second}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that no redelivery can fix, such as an
// undecodable message. The message is logged and committed.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type ConsumerGroup struct {
	brokers     []string
	groupID     string
	topics      []string
	handlerFunc HandlerFunc
	backoff     Backoff
	logger      *zap.Logger
}

func NewConsumerGroup(
	brokers []string,
	groupID string,
	topics []string,
	handlerFunc HandlerFunc,
	logger *zap.Logger,
) *ConsumerGroup {
	return &ConsumerGroup{
		brokers:     brokers,
		groupID:     groupID,
		topics:      topics,
		handlerFunc: handlerFunc,
		backoff:     DefaultBackoff,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled. A failing message is delivered again,
// with backoff, until it succeeds; later messages of its partition wait
// behind it. Only Permanent errors let the consumer move past a message.
func (c *ConsumerGroup) Run(ctx context.Context) error {
	config := sarama.NewConfig()
	config.Version = sarama.V3_0_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	group, err := sarama.NewConsumerGroup(c.brokers, c.groupID, config)
	if err != nil {
		return fmt.Errorf("error creating consumer group %s: %w", c.groupID, err)
	}

	defer func() {
		if err := group.Close(); err != nil {
			c.logger.Error("error closing consumer group", zap.String("group", c.groupID), zap.Error(err))
		}
	}()

	go func() {
		for err := range group.Errors() {
			mylogger.Warn(ctx, c.logger, "consumer group error", zap.String("group", c.groupID), zap.Error(err))
		}
	}()

	consumer := &saramaHandler{
		handler: c.handlerFunc,
		backoff: c.backoff,
		logger:  c.logger,
		tracer:  otel.Tracer("pkg/kafka/consumer"),
	}

	for {
		err := group.Consume(ctx, c.topics, consumer)
		if err != nil && !errors.Is(err, sarama.ErrClosedConsumerGroup) {
			mylogger.Error(ctx, c.logger, "Error consuming in consumer loop", zap.Error(err))
		}

		if ctx.Err() != nil {
			mylogger.Info(ctx, c.logger, "Context cancelled, shutting down consumer", zap.String("group", c.groupID))
			return nil
		}
	}
}

type saramaHandler struct {
	handler HandlerFunc
	backoff Backoff
	logger  *zap.Logger
	tracer  trace.Tracer
}

func (h *saramaHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *saramaHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message only once it is handled or dropped as
// permanent. When the session ends mid-retry the claim stops with the
// message unmarked, so the next owner of the partition starts from it.
func (h *saramaHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			if !h.consume(session.Context(), msg) {
				return nil
			}

			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// consume reports whether msg may be marked.
func (h *saramaHandler) consume(sessionCtx context.Context, msg *sarama.ConsumerMessage) bool {
	ctx, span := h.startSpan(sessionCtx, msg)
	defer span.End()

	err := Redeliver(ctx, h.handler, msg, h.backoff, h.logger)
	if err == nil {
		return true
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if IsPermanent(err) {
		mylogger.Error(ctx, h.logger, "Dropping message",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)

		return true
	}

	return false
}

// Redeliver calls handler until it succeeds, returns a Permanent error, or ctx
// ends. It returns the last handler error or ctx's error.
func Redeliver(ctx context.Context, handler HandlerFunc, msg *sarama.ConsumerMessage, backoff Backoff, logger *zap.Logger) error {
	if backoff.Initial <= 0 || backoff.Max < backoff.Initial {
		backoff = DefaultBackoff
	}

	wait := backoff.Initial

	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil || IsPermanent(err) {
			return err
		}

		mylogger.Warn(ctx, logger, "Failed to process message",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("giving up on offset %d: %w", msg.Offset, errors.Join(ctx.Err(), err))
		case <-timer.C:
		}

		wait = min(wait*2, backoff.Max)
	}
}

func (h *saramaHandler) startSpan(ctx context.Context, msg *sarama.ConsumerMessage) (context.Context, trace.Span) {
	carrier := propagation.MapCarrier{}
	for _, header := range msg.Headers {
		carrier[string(header.Key)] = string(header.Value)
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	return h.tracer.Start(ctx, "kafka_process "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", int(msg.Partition)),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
}
