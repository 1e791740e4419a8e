package tests

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/events"
	"github.com/Arsyadam/bhawikarsu-store/pkg/kafka"
	"github.com/Arsyadam/bhawikarsu-store/pkg/variant"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *IntegrationTestSuite) message(event string, eventID int64, payload any) *sarama.ConsumerMessage {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)

	value, err := json.Marshal(events.Envelope{Event: event, EventID: eventID, Payload: raw})
	s.Require().NoError(err)

	return &sarama.ConsumerMessage{Topic: events.TopicOrderEvents, Value: value}
}

func (s *IntegrationTestSuite) TestOrderPaid_DecreasesVariantStockOnce() {
	id, err := s.CachedProductService.Create(s.Ctx, shirt())
	s.Require().NoError(err)

	// warm the cache so the test also covers invalidation
	_, err = s.CachedProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)

	blackM := variant.Selection{Color: "Black", Size: "M", Sleeve: "short"}.Key()
	msg := s.message(events.OrderPaid, 41, events.OrderPaidEvent{
		OrderID: "B96-test",
		Items:   []events.OrderLine{{ProductID: id, VariantKey: string(blackM), Quantity: 2}},
	})

	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, msg))
	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, msg))

	product, err := s.CachedProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), product.Variants.Matrix[blackM].Stock)
	s.Require().Equal(int64(3), product.Stock)
}

func (s *IntegrationTestSuite) TestOrderPaid_OversellClampsAtZero() {
	id, err := s.ProductService.Create(s.Ctx, shirt())
	s.Require().NoError(err)

	blackL := variant.Selection{Color: "Black", Size: "L", Sleeve: "short"}.Key()
	msg := s.message(events.OrderPaid, 42, events.OrderPaidEvent{
		OrderID: "B96-oversell",
		Items:   []events.OrderLine{{ProductID: id, VariantKey: string(blackL), Quantity: 5}},
	})

	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, msg))

	product, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Zero(product.Variants.Matrix[blackL].Stock)
	s.Require().Equal(int64(3), product.Stock)
}

func (s *IntegrationTestSuite) TestOrderPaid_UnlistedVariantKeepsStock() {
	id, err := s.ProductService.Create(s.Ctx, shirt())
	s.Require().NoError(err)

	whiteXL := variant.Selection{Color: "White", Size: "XL", Sleeve: "short"}.Key()
	msg := s.message(events.OrderPaid, 45, events.OrderPaidEvent{
		OrderID: "B96-phantom",
		Items: []events.OrderLine{
			{ProductID: id, VariantKey: string(whiteXL), Quantity: 2},
			{ProductID: id, Quantity: 1},
		},
	})

	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, msg))

	product, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(int64(5), product.Stock)
	s.Require().Equal(int64(3), product.Variants.Matrix[variant.Selection{Color: "Black", Size: "M", Sleeve: "short"}.Key()].Stock)
	s.Require().NotContains(product.Variants.Matrix, whiteXL)
}

func (s *IntegrationTestSuite) TestOrderPaid_FailedDeliveryIsRetried() {
	id, err := s.ProductService.Create(s.Ctx, shirt())
	s.Require().NoError(err)

	blackM := variant.Selection{Color: "Black", Size: "M", Sleeve: "short"}.Key()
	msg := s.message(events.OrderPaid, 46, events.OrderPaidEvent{
		OrderID: "B96-retry",
		Items:   []events.OrderLine{{ProductID: id, VariantKey: string(blackM), Quantity: 1}},
	})

	deliveries := 0
	handler := func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		deliveries++
		if deliveries == 1 {
			// the database call fails on a dead context
			dead, cancel := context.WithCancel(ctx)
			cancel()
			return s.Consumer.ProcessMessage(dead, msg)
		}

		return s.Consumer.ProcessMessage(ctx, msg)
	}

	backoff := kafka.Backoff{Initial: time.Millisecond, Max: 10 * time.Millisecond}
	s.Require().NoError(kafka.Redeliver(s.Ctx, handler, msg, backoff, zap.NewNop()))
	s.Require().Equal(2, deliveries)

	product, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(int64(2), product.Variants.Matrix[blackM].Stock)
	s.Require().Equal(int64(4), product.Stock)
}

func (s *IntegrationTestSuite) TestOrderRefunded_ReturnsStock() {
	id, err := s.ProductService.Create(s.Ctx, shirt())
	s.Require().NoError(err)

	blackM := variant.Selection{Color: "Black", Size: "M", Sleeve: "short"}.Key()

	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, s.message(events.OrderRefunded, 43, events.OrderRefundedEvent{
		OrderID: "B96-refund",
		Items:   []events.OrderLine{{ProductID: id, VariantKey: string(blackM), Quantity: 4}},
	})))

	product, err := s.ProductService.FindByID(s.Ctx, id)
	s.Require().NoError(err)
	s.Require().Equal(int64(7), product.Variants.Matrix[blackM].Stock)
	s.Require().Equal(int64(9), product.Stock)
}

func (s *IntegrationTestSuite) TestUnknownEventIgnored() {
	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, s.message(events.OrderExpired, 44, events.OrderExpiredEvent{OrderID: "B96-x"})))

	var count int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM processed_events`).Scan(&count))
	s.Require().Zero(count)
}

func (s *IntegrationTestSuite) TestMalformedMessageFails() {
	err := s.Consumer.ProcessMessage(s.Ctx, &sarama.ConsumerMessage{Value: []byte("not json")})
	s.Require().Error(err)
	s.Require().True(kafka.IsPermanent(err), "an undecodable message is not retried")
}
