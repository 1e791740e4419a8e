package tests

import (
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/repository"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/service"
)

func (s *IntegrationTestSuite) TestCheckStatus_Pending() {
	orderID := s.placeOrder()

	res, err := s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)

	s.True(res.Success)
	s.False(res.Paid)
	s.Equal("pending", res.Status)
	s.Equal(domain.OrderStatusPending, res.OrderStatus)
	s.Empty(s.outboxEvents(orderID))
}

func (s *IntegrationTestSuite) TestCheckStatus_SettlementCompletesOnce() {
	orderID := s.placeOrder()
	s.Midtrans.SetStatus(orderID, "settlement")

	res, err := s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)
	s.True(res.Paid)
	s.Equal(domain.OrderStatusCompleted, res.OrderStatus)

	// a second poll finds nothing to change
	res, err = s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)
	s.True(res.Paid)

	s.Equal([]string{"OrderPaid"}, s.outboxEvents(orderID))

	order, err := s.Orders.GetByID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.NotNil(order.PaidAt)
	s.Equal("settlement", order.GatewayStatus)
}

func (s *IntegrationTestSuite) TestCheckStatus_GatewayExpiry() {
	orderID := s.placeOrder()
	s.Midtrans.SetStatus(orderID, "expire")

	res, err := s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)
	s.False(res.Paid)
	s.Equal(domain.OrderStatusExpired, res.OrderStatus)
	s.Equal([]string{"OrderExpired"}, s.outboxEvents(orderID))
}

func (s *IntegrationTestSuite) TestCheckStatus_LocalExpiryWhileGatewayPending() {
	orderID := s.placeOrder()

	_, err := s.DbPool.Exec(s.Ctx, `UPDATE orders SET expires_at = NOW() - INTERVAL '2 minutes' WHERE id = $1`, orderID)
	s.Require().NoError(err)

	res, err := s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusExpired, res.OrderStatus)
}

func (s *IntegrationTestSuite) TestCheckStatus_JustPastExpiryWaitsForGateway() {
	orderID := s.placeOrder()

	_, err := s.DbPool.Exec(s.Ctx, `UPDATE orders SET expires_at = NOW() - INTERVAL '20 seconds' WHERE id = $1`, orderID)
	s.Require().NoError(err)

	res, err := s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPending, res.OrderStatus)
	s.Empty(s.outboxEvents(orderID))

	// the settlement that was in flight still lands
	s.Midtrans.SetStatus(orderID, "settlement")
	res, err = s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)
	s.True(res.Paid)
	s.Equal([]string{"OrderPaid"}, s.outboxEvents(orderID))
}

func (s *IntegrationTestSuite) TestCheckStatus_LateSettlementAfterExpiryIsIgnored() {
	orderID := s.placeOrder()

	s.Midtrans.SetStatus(orderID, "expire")
	_, err := s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)

	s.Midtrans.SetStatus(orderID, "settlement")
	res, err := s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusExpired, res.OrderStatus)
	s.False(res.Paid)
	s.Equal([]string{"OrderExpired"}, s.outboxEvents(orderID))
}

func (s *IntegrationTestSuite) TestCheckStatus_UnknownOrder() {
	_, err := s.Status.CheckStatus(s.Ctx, "B96-missing")
	s.ErrorIs(err, repository.ErrOrderNotFound)
}

func (s *IntegrationTestSuite) TestCheckStatus_FailedAttempt() {
	s.Midtrans.SetFailCharge(true)

	_, err := s.Checkout.Checkout(s.Ctx, checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 1}))
	s.Require().NoError(err)

	var orderID string
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT order_id FROM payment_attempts`).Scan(&orderID))

	res, err := s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)
	s.False(res.Success)
	s.NotEmpty(res.Message)
}

func (s *IntegrationTestSuite) notification(orderID, status string) *midtrans.Notification {
	n := &midtrans.Notification{
		TransactionResponse: midtrans.TransactionResponse{
			StatusCode:        "200",
			OrderID:           orderID,
			TransactionID:     "trx-" + orderID,
			GrossAmount:       "30000.00",
			TransactionStatus: status,
			FraudStatus:       "accept",
		},
	}
	n.SignatureKey = midtrans.Sign(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)

	return n
}

func (s *IntegrationTestSuite) TestNotification_Settlement() {
	orderID := s.placeOrder()

	s.Require().NoError(s.Status.HandleNotification(s.Ctx, s.notification(orderID, "settlement")))
	// gateways resend notifications
	s.Require().NoError(s.Status.HandleNotification(s.Ctx, s.notification(orderID, "settlement")))

	order, err := s.Orders.GetByID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCompleted, order.Status)
	s.Equal([]string{"OrderPaid"}, s.outboxEvents(orderID))
}

func (s *IntegrationTestSuite) TestNotification_BadSignature() {
	orderID := s.placeOrder()

	n := s.notification(orderID, "settlement")
	n.GrossAmount = "1.00"

	s.ErrorIs(s.Status.HandleNotification(s.Ctx, n), midtrans.ErrInvalidSignature)

	order, err := s.Orders.GetByID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPending, order.Status)
}

func (s *IntegrationTestSuite) TestNotification_UnknownOrderIsDropped() {
	s.NoError(s.Status.HandleNotification(s.Ctx, s.notification("B96-unknown", "settlement")))
	s.Equal(0, s.countRows(`SELECT COUNT(*) FROM orders`))
}

func (s *IntegrationTestSuite) TestAdminUpdateStatus() {
	orderID := s.placeOrder()

	_, err := s.Admin.UpdateStatus(s.Ctx, orderID, domain.OrderStatusFulfilled)
	s.ErrorIs(err, domain.ErrInvalidTransition, "pending orders cannot be fulfilled")

	s.Midtrans.SetStatus(orderID, "settlement")
	_, err = s.Status.CheckStatus(s.Ctx, orderID)
	s.Require().NoError(err)

	order, err := s.Admin.UpdateStatus(s.Ctx, orderID, domain.OrderStatusFulfilled)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusFulfilled, order.Status)

	_, err = s.Admin.UpdateStatus(s.Ctx, orderID, domain.OrderStatusCompleted)
	s.ErrorIs(err, service.ErrStatusNotAllowed)

	s.Equal([]string{"OrderPaid"}, s.outboxEvents(orderID), "fulfilment emits no event")
}

func (s *IntegrationTestSuite) TestAdminCancel_VoidsGatewayCharge() {
	orderID := s.placeOrder()

	order, err := s.Admin.UpdateStatus(s.Ctx, orderID, domain.OrderStatusCancelled)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, order.Status)
	s.Equal("cancel", order.GatewayStatus)

	s.Equal([]string{orderID}, s.Midtrans.Cancels())
	s.Equal([]string{"OrderCancelled"}, s.outboxEvents(orderID))

	// a settlement arriving after the void does not revive the order
	s.Require().NoError(s.Status.HandleNotification(s.Ctx, s.notification(orderID, "settlement")))

	order, err = s.Orders.GetByID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, order.Status)
}

func (s *IntegrationTestSuite) TestAdminCancel_RefusedWhenGatewaySettled() {
	orderID := s.placeOrder()
	s.Midtrans.SetStatus(orderID, "settlement")

	_, err := s.Admin.UpdateStatus(s.Ctx, orderID, domain.OrderStatusCancelled)
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)

	order, err := s.Orders.GetByID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCompleted, order.Status, "the payment is recorded instead")
	s.Equal([]string{"OrderPaid"}, s.outboxEvents(orderID))
}
