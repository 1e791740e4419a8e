package tests

import (
	"context"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/variant"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/service"
)

func (s *IntegrationTestSuite) TestCheckout_ChargesServerTotal() {
	blackM := variant.Selection{Color: "Black", Size: "M", Sleeve: "Lengan Pendek"}

	req := checkoutRequest(
		domain.CheckoutItem{ProductID: shirtID, Variant: &blackM, Quantity: 2},
		domain.CheckoutItem{ProductID: stickerID, Quantity: 1},
	)
	req.Donation = 50000
	clientTotal := int64(1)
	req.ExpectedTotal = &clientTotal

	res, err := s.Checkout.Checkout(s.Ctx, req)
	s.Require().NoError(err)
	s.Require().True(res.Success, res.Error)

	expected := int64(2*160000 + 15000 + 50000)
	s.Equal(expected, res.Total, "server total wins over the client's")
	s.NotEmpty(res.QRURL)
	s.Require().NotNil(res.ExpiryTime)
	s.WithinDuration(time.Now().Add(15*time.Minute), *res.ExpiryTime, time.Minute)

	charges := s.Midtrans.Charges()
	s.Require().Len(charges, 1)
	s.Equal(res.OrderID, charges[0].OrderID)
	s.Equal(expected, charges[0].Gross)
	s.Equal(charges[0].Gross, charges[0].ItemsSum)
	s.Equal("gopay", charges[0].Acquirer)

	order, err := s.Orders.GetByID(s.Ctx, res.OrderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPending, order.Status)
	s.Equal(expected, order.Total)
	s.Equal(int64(50000), order.Donation)
	s.Equal("trx-"+res.OrderID, order.TransactionID)
	s.Require().Len(order.Items, 2)
	s.Equal(blackMKey, order.Items[0].VariantKey)
	s.Equal(int64(160000), order.Items[0].Price)

	attempt, err := s.Attempts.GetByOrderID(s.Ctx, res.OrderID)
	s.Require().NoError(err)
	s.Equal(domain.AttemptCharged, attempt.Status)
}

func (s *IntegrationTestSuite) TestCheckout_LegacyVariantLabel() {
	res, err := s.Checkout.Checkout(s.Ctx, checkoutRequest(
		domain.CheckoutItem{ProductID: shirtID, VariantKey: "Black - M - Lengan Pendek", Quantity: 1},
	))
	s.Require().NoError(err)
	s.Require().True(res.Success, res.Error)
	s.Equal(int64(160000), res.Total)
}

func (s *IntegrationTestSuite) TestCheckout_GatewayRejectionLeavesNoOrder() {
	s.Midtrans.SetFailCharge(true)

	res, err := s.Checkout.Checkout(s.Ctx, checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 1}))
	s.Require().NoError(err)
	s.False(res.Success)
	s.NotEmpty(res.Error)
	s.Empty(res.OrderID)

	s.Equal(0, s.countRows(`SELECT COUNT(*) FROM orders`))
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM payment_attempts WHERE status = 'failed'`))

	// the same cart can be retried once the gateway recovers
	s.Midtrans.SetFailCharge(false)

	res, err = s.Checkout.Checkout(s.Ctx, checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 1}))
	s.Require().NoError(err)
	s.True(res.Success, res.Error)
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM orders`))
}

func (s *IntegrationTestSuite) TestCheckout_IdempotentReplay() {
	req := checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 3})
	req.IdempotencyKey = "cart-7f3a"

	first, err := s.Checkout.Checkout(s.Ctx, req)
	s.Require().NoError(err)
	s.Require().True(first.Success)

	second, err := s.Checkout.Checkout(s.Ctx, req)
	s.Require().NoError(err)
	s.Require().True(second.Success)

	s.Equal(first.OrderID, second.OrderID)
	s.Equal(first.QRURL, second.QRURL)
	s.Len(s.Midtrans.Charges(), 1)
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM orders`))
}

func (s *IntegrationTestSuite) TestCheckout_ConcurrentKeyIsRejected() {
	held, err := s.Locker.Acquire(context.Background(), "checkout:busy-key", time.Minute)
	s.Require().NoError(err)
	defer func() { _ = held.Release(context.Background()) }()

	req := checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 1})
	req.IdempotencyKey = "busy-key"

	_, err = s.Checkout.Checkout(s.Ctx, req)
	s.ErrorIs(err, service.ErrCheckoutInProgress)
	s.Empty(s.Midtrans.Charges())
}

func (s *IntegrationTestSuite) TestCheckout_RejectsInvalidCarts() {
	cases := []struct {
		name string
		req  *domain.CheckoutRequest
		err  error
	}{
		{"unknown product", checkoutRequest(domain.CheckoutItem{ProductID: 404, Quantity: 1}), domain.ErrProductNotFound},
		{"over stock", checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 6}), domain.ErrInsufficientStock},
		{"variant over stock", checkoutRequest(domain.CheckoutItem{ProductID: shirtID, VariantKey: blackMKey, Quantity: 4}), domain.ErrInsufficientStock},
		{"empty cart", checkoutRequest(), domain.ErrEmptyCart},
	}

	small := checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 1})
	small.Donation = 10000
	cases = append(cases, struct {
		name string
		req  *domain.CheckoutRequest
		err  error
	}{"donation below minimum", small, domain.ErrInvalidDonation})

	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.Checkout.Checkout(s.Ctx, tc.req)
			s.ErrorIs(err, tc.err)
		})
	}

	s.Empty(s.Midtrans.Charges())
	s.Equal(0, s.countRows(`SELECT COUNT(*) FROM payment_attempts`))
}

func (s *IntegrationTestSuite) TestCheckout_PreorderIgnoresStock() {
	res, err := s.Checkout.Checkout(s.Ctx, checkoutRequest(domain.CheckoutItem{ProductID: hoodieID, Quantity: 2}))
	s.Require().NoError(err)
	s.Require().True(res.Success, res.Error)
	s.Equal(int64(600000), res.Total)
}

func (s *IntegrationTestSuite) TestCheckout_WithShipping() {
	req := checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 1})
	req.Shipping = &domain.ShippingRequest{
		DestinationAreaID: "IDNP6IDNC147IDND841",
		CourierCode:       "jne",
		ServiceCode:       "reg",
	}

	res, err := s.Checkout.Checkout(s.Ctx, req)
	s.Require().NoError(err)
	s.Require().True(res.Success, res.Error)
	s.Equal(int64(15000+18000), res.Total)

	order, err := s.Orders.GetByID(s.Ctx, res.OrderID)
	s.Require().NoError(err)
	s.Equal("jne:reg", order.ShippingCourier)
	s.Equal(int64(18000), order.ShippingCost)

	req.IdempotencyKey = "other-service"
	req.Shipping.ServiceCode = "same-day"

	_, err = s.Checkout.Checkout(s.Ctx, req)
	s.ErrorIs(err, domain.ErrShippingUnavailable)
}

func (s *IntegrationTestSuite) TestQuote() {
	q, err := s.Checkout.Quote(s.Ctx, &domain.QuoteRequest{
		Items: []domain.CheckoutItem{
			{ProductID: shirtID, VariantKey: blackMKey, Quantity: 1},
			{ProductID: shirtID, VariantKey: "Black - M - Short Sleeve", Quantity: 1},
		},
		Donation: 100000,
	})
	s.Require().NoError(err)

	s.Require().Len(q.Lines, 1, "both references resolve to one variant")
	s.Equal(int64(2), q.Lines[0].Quantity)
	s.Equal(int64(2*160000+100000), q.Total)
	s.Equal(0, s.countRows(`SELECT COUNT(*) FROM payment_attempts`))
}
