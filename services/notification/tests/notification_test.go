package tests

import (
	"encoding/json"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/events"
	"github.com/IBM/sarama"
)

func (s *IntegrationTestSuite) message(eventID int64, name string, payload any) *sarama.ConsumerMessage {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)

	value, err := json.Marshal(events.Envelope{Event: name, EventID: eventID, Payload: raw})
	s.Require().NoError(err)

	return &sarama.ConsumerMessage{Topic: events.TopicOrderEvents, Value: value}
}

func paidEvent() events.OrderPaidEvent {
	return events.OrderPaidEvent{
		OrderID: "B96-1700000000000",
		Items: []events.OrderLine{
			{ProductID: 2, Name: "Stiker", Price: 15000, Quantity: 2},
		},
		Total:    30000,
		Customer: events.Customer{FirstName: "Budi", LastName: "Santoso", Email: "budi@example.com"},
		PaidAt:   time.Now(),
	}
}

func (s *IntegrationTestSuite) processed(eventID int64) bool {
	var exists bool
	err := s.DbPool.QueryRow(s.Ctx, `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`, eventID).Scan(&exists)
	s.Require().NoError(err)

	return exists
}

func (s *IntegrationTestSuite) TestOrderPaid_SendsConfirmationOnce() {
	msg := s.message(11, events.OrderPaid, paidEvent())

	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, msg))
	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, msg))

	sent := s.Sender.Sent()
	s.Require().Len(sent, 1)
	s.Equal("budi@example.com", sent[0].To)
	s.Contains(sent[0].Subject, "B96-1700000000000")
	s.Contains(sent[0].HTML, "Rp 30.000")
	s.True(s.processed(11))
}

func (s *IntegrationTestSuite) TestOrderExpired_SendsExpiryEmail() {
	event := events.OrderExpiredEvent{
		OrderID:   "B96-2",
		Total:     15000,
		Customer:  events.Customer{FirstName: "Sari", Email: "sari@example.com"},
		ExpiredAt: time.Now(),
	}

	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, s.message(12, events.OrderExpired, event)))

	sent := s.Sender.Sent()
	s.Require().Len(sent, 1)
	s.Equal("sari@example.com", sent[0].To)
	s.Contains(sent[0].Subject, "Waktu pembayaran habis")
	s.Contains(sent[0].HTML, "Halo Sari,")
}

func (s *IntegrationTestSuite) TestSendRetriesTransientFailures() {
	s.Sender.failures = 2

	s.Require().NoError(s.Service.HandleOrderPaid(s.Ctx, 13, paidEvent()))

	s.Equal(3, s.Sender.Calls())
	s.Len(s.Sender.Sent(), 1)
	s.True(s.processed(13))
}

func (s *IntegrationTestSuite) TestSendGivesUpAfterThreeAttempts() {
	s.Sender.failures = 3

	err := s.Service.HandleOrderPaid(s.Ctx, 14, paidEvent())

	s.Require().ErrorIs(err, errSMTPDown)
	s.Equal(3, s.Sender.Calls())
	s.False(s.processed(14), "failed event must stay redeliverable")

	s.Require().NoError(s.Service.HandleOrderPaid(s.Ctx, 14, paidEvent()))
	s.Len(s.Sender.Sent(), 1)
}

func (s *IntegrationTestSuite) TestOrderWithoutEmailIsMarkedProcessed() {
	event := paidEvent()
	event.Customer.Email = ""

	s.Require().NoError(s.Service.HandleOrderPaid(s.Ctx, 15, event))

	s.Zero(s.Sender.Calls())
	s.True(s.processed(15))
}

func (s *IntegrationTestSuite) TestOtherEventsAreIgnored() {
	cancelled := events.OrderCancelledEvent{OrderID: "B96-3", Reason: "admin", CancelledAt: time.Now()}

	s.Require().NoError(s.Consumer.ProcessMessage(s.Ctx, s.message(16, events.OrderCancelled, cancelled)))

	s.Zero(s.Sender.Calls())
	s.False(s.processed(16))
}

func (s *IntegrationTestSuite) TestMalformedEnvelopeIsRejected() {
	err := s.Consumer.ProcessMessage(s.Ctx, &sarama.ConsumerMessage{Value: []byte("not json")})

	s.Error(err)
}
