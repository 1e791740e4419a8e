package tests

import (
	"time"

	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
)

// initiatedAttempt stores an attempt as if the process died between the
// gateway charge and the order insert.
func (s *IntegrationTestSuite) initiatedAttempt(orderID string, expiresAt time.Time) {
	draft := &domain.Order{
		ID:              orderID,
		Customer:        checkoutRequest().Customer,
		ShippingAddress: checkoutRequest().Address,
		Items: []domain.OrderItem{
			{OrderID: orderID, ProductID: stickerID, Name: "Sticker Pack", Price: 15000, Quantity: 2},
		},
		ItemsTotal: 30000,
		Total:      30000,
		Status:     domain.OrderStatusPending,
		ExpiresAt:  expiresAt,
	}

	s.Require().NoError(s.Attempts.Create(s.Ctx, &domain.PaymentAttempt{
		OrderID:        orderID,
		IdempotencyKey: "key-" + orderID,
		Status:         domain.AttemptInitiated,
		Draft:          draft,
		ExpiresAt:      expiresAt,
	}))
}

func (s *IntegrationTestSuite) TestSweep_MaterializesChargedAttempt() {
	orderID := "B96-lost-insert"
	s.initiatedAttempt(orderID, time.Now().Add(10*time.Minute))
	s.Midtrans.SetStatus(orderID, "settlement")

	report, err := s.Reconcile.Sweep(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Materialized)

	order, err := s.Orders.GetByID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCompleted, order.Status)
	s.Equal("trx-"+orderID, order.TransactionID)
	s.Require().Len(order.Items, 1)
	s.Equal(int64(30000), order.Total)

	attempt, err := s.Attempts.GetByOrderID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.AttemptCharged, attempt.Status)

	s.Equal([]string{"OrderPaid"}, s.outboxEvents(orderID))
}

func (s *IntegrationTestSuite) TestSweep_FailsUnknownExpiredAttempt() {
	orderID := "B96-never-charged"
	s.initiatedAttempt(orderID, time.Now().Add(-time.Minute))

	report, err := s.Reconcile.Sweep(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, report.FailedAttempts)
	s.Equal(0, report.Materialized)

	attempt, err := s.Attempts.GetByOrderID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.AttemptFailed, attempt.Status)
	s.Equal(0, s.countRows(`SELECT COUNT(*) FROM orders`))
}

func (s *IntegrationTestSuite) TestSweep_KeepsUnknownAttemptWithinWindow() {
	orderID := "B96-in-flight"
	s.initiatedAttempt(orderID, time.Now().Add(10*time.Minute))

	report, err := s.Reconcile.Sweep(s.Ctx)
	s.Require().NoError(err)
	s.Zero(report.Materialized)
	s.Zero(report.FailedAttempts)

	attempt, err := s.Attempts.GetByOrderID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.AttemptInitiated, attempt.Status)
}

func (s *IntegrationTestSuite) TestSweep_ReconcilesPendingOrders() {
	paid := s.placeOrder()

	expiring, err := s.Checkout.Checkout(s.Ctx, checkoutRequest(domain.CheckoutItem{ProductID: hoodieID, Quantity: 1}))
	s.Require().NoError(err)
	s.Require().True(expiring.Success)

	s.Midtrans.SetStatus(paid, "settlement")
	s.Midtrans.SetStatus(expiring.OrderID, "expire")

	report, err := s.Reconcile.Sweep(s.Ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Checked)
	s.Equal(2, report.Transitioned)

	report, err = s.Reconcile.Sweep(s.Ctx)
	s.Require().NoError(err)
	s.Equal(0, report.Checked, "settled orders leave the pending set")

	s.Equal([]string{"OrderPaid"}, s.outboxEvents(paid))
	s.Equal([]string{"OrderExpired"}, s.outboxEvents(expiring.OrderID))
}

func (s *IntegrationTestSuite) TestOutbox_PublishesOrderEvents() {
	orderID := s.placeOrder()
	s.Midtrans.SetStatus(orderID, "settlement")

	_, err := s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)

	n, err := s.Outbox.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Equal(0, s.countRows(`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`))
}
