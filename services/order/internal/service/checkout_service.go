package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/lock"
	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	orderIDPrefix   = "B96-"
	checkoutLockTTL = 30 * time.Second
)

type ProductSource interface {
	Products(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

type CheckoutService interface {
	Quote(ctx context.Context, req *domain.QuoteRequest) (*domain.Quote, error)
	ShippingRates(ctx context.Context, destinationAreaID string, items []domain.CheckoutItem) ([]domain.Rate, error)
	Checkout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResult, error)
}

type CheckoutConfig struct {
	Acquirer      string
	ExpiryMinutes int
}

type checkoutService struct {
	products  ProductSource
	shipping  ShippingService
	gateway   Gateway
	attempts  repository.AttemptRepository
	lifecycle *Lifecycle
	locker    *lock.Locker
	metrics   *Metrics
	cfg       CheckoutConfig
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

func NewCheckoutService(
	products ProductSource,
	shipping ShippingService,
	gateway Gateway,
	attempts repository.AttemptRepository,
	lifecycle *Lifecycle,
	locker *lock.Locker,
	metrics *Metrics,
	cfg CheckoutConfig,
	logger *zap.Logger,
) CheckoutService {
	if cfg.ExpiryMinutes <= 0 {
		cfg.ExpiryMinutes = 15
	}

	return &checkoutService{
		products:  products,
		shipping:  shipping,
		gateway:   gateway,
		attempts:  attempts,
		lifecycle: lifecycle,
		locker:    locker,
		metrics:   metrics,
		cfg:       cfg,
		tracer:    otel.Tracer("order/checkout_service"),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *checkoutService) Quote(ctx context.Context, req *domain.QuoteRequest) (*domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.Quote")
	defer span.End()

	quote, err := s.quote(ctx, req.Items, req.Donation, req.Shipping)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("total", quote.Total))

	return quote, nil
}

func (s *checkoutService) ShippingRates(ctx context.Context, destinationAreaID string, items []domain.CheckoutItem) ([]domain.Rate, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.ShippingRates")
	defer span.End()

	lines, products, err := s.resolve(ctx, items)
	if err != nil {
		return nil, err
	}

	priced, _, err := domain.PriceLines(lines, products)
	if err != nil {
		return nil, err
	}

	return s.shipping.Rates(ctx, destinationAreaID, priced)
}

// Checkout prices the cart on the server and creates a QRIS charge for it.
// Gateway failures are reported in the result, not as an error; errors are
// reserved for invalid carts and local failures before the charge.
func (s *checkoutService) Checkout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.Checkout")
	defer span.End()

	key := req.IdempotencyKey
	if key == "" {
		key = s.deriveKey(req)
	}

	span.SetAttributes(attribute.String("idempotency_key", key))

	l, err := s.locker.Acquire(ctx, "checkout:"+key, checkoutLockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrCheckoutInProgress
		}

		return nil, fmt.Errorf("checkout lock: %w", err)
	}
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		if err := l.Release(releaseCtx); err != nil {
			mylogger.Warn(releaseCtx, s.logger, "Failed to release checkout lock", zap.Error(err))
		}
	}()

	existing, err := s.attempts.GetByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		if existing.Status == domain.AttemptCharged {
			mylogger.Info(ctx, s.logger, "Replaying checkout result", zap.String("order_id", existing.OrderID))
			return resultFromAttempt(existing), nil
		}

		return nil, ErrCheckoutInProgress
	case !errors.Is(err, repository.ErrAttemptNotFound):
		return nil, err
	}

	quote, err := s.quote(ctx, req.Items, req.Donation, req.Shipping)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	items := quote.GatewayItems()

	if req.ExpectedTotal != nil && *req.ExpectedTotal != quote.Total {
		mylogger.Warn(ctx, s.logger, "Client total differs from server total",
			zap.Int64("client_total", *req.ExpectedTotal),
			zap.Int64("server_total", quote.Total),
		)
	}

	if sum := domain.SumItems(items); sum != quote.Total {
		mylogger.Warn(ctx, s.logger, "Gateway item sum differs from gross amount",
			zap.Int64("items_sum", sum),
			zap.Int64("gross_amount", quote.Total),
		)
	}

	orderID := orderIDPrefix + uuid.NewString()
	expiresAt := s.now().Add(time.Duration(s.cfg.ExpiryMinutes) * time.Minute)

	draft := &domain.Order{
		ID:              orderID,
		Customer:        req.Customer,
		ShippingAddress: req.Address,
		Items:           quote.OrderItems(orderID),
		ItemsTotal:      quote.ItemsTotal,
		Donation:        quote.Donation,
		Total:           quote.Total,
		Status:          domain.OrderStatusPending,
		ExpiresAt:       expiresAt,
	}

	if quote.Shipping != nil {
		draft.ShippingCourier = quote.Shipping.CourierCode + ":" + quote.Shipping.ServiceCode
		draft.ShippingCost = quote.Shipping.Cost
	}

	attempt := &domain.PaymentAttempt{
		OrderID:        orderID,
		IdempotencyKey: key,
		Status:         domain.AttemptInitiated,
		Draft:          draft,
		ExpiresAt:      expiresAt,
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			return nil, ErrCheckoutInProgress
		}

		return nil, err
	}

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.Int64("total", quote.Total),
	)

	charge, err := s.gateway.Charge(ctx, s.chargeRequest(draft, items))
	if err != nil {
		span.RecordError(err)
		s.metrics.charge("failed")

		mylogger.Warn(ctx, s.logger, "QRIS charge failed", zap.String("order_id", orderID), zap.Error(err))

		if markErr := s.attempts.MarkFailed(context.WithoutCancel(ctx), orderID, err.Error()); markErr != nil {
			mylogger.Error(ctx, s.logger, "Failed to mark attempt failed", zap.String("order_id", orderID), zap.Error(markErr))
		}

		return &domain.CheckoutResult{Success: false, Error: chargeErrorMessage(err)}, nil
	}

	s.metrics.charge("success")

	draft.TransactionID = charge.TransactionID
	draft.QRURL = charge.QRURL
	draft.ExpiresAt = charge.ExpiresAt

	if _, err := s.lifecycle.persist(context.WithoutCancel(ctx), draft); err != nil {
		// the attempt row keeps the draft; the reconciler materialises it
		mylogger.Error(ctx, s.logger, "Failed to store order after successful charge",
			zap.String("order_id", orderID),
			zap.String("transaction_id", charge.TransactionID),
			zap.Error(err),
		)
	}

	mylogger.Info(ctx, s.logger, "QRIS charge created",
		zap.String("order_id", orderID),
		zap.Int64("total", quote.Total),
	)

	expiry := charge.ExpiresAt

	return &domain.CheckoutResult{
		Success:    true,
		OrderID:    orderID,
		QRURL:      charge.QRURL,
		ExpiryTime: &expiry,
		Total:      quote.Total,
	}, nil
}

func (s *checkoutService) quote(ctx context.Context, items []domain.CheckoutItem, donation int64, shipping *domain.ShippingRequest) (*domain.Quote, error) {
	lines, products, err := s.resolve(ctx, items)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateDonation(donation); err != nil {
		return nil, err
	}

	var choice *domain.ShippingChoice
	if shipping != nil {
		priced, _, err := domain.PriceLines(lines, products)
		if err != nil {
			return nil, err
		}

		choice, err = s.shipping.QuoteForCart(ctx, priced, shipping)
		if err != nil {
			return nil, err
		}
	}

	return domain.BuildQuote(lines, products, donation, choice)
}

// resolve loads the products of items and turns each item into a merged cart
// line with a structured selection.
func (s *checkoutService) resolve(ctx context.Context, items []domain.CheckoutItem) ([]domain.CartLine, map[int64]*domain.Product, error) {
	if len(items) == 0 {
		return nil, nil, domain.ErrEmptyCart
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	products, err := s.products.Products(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]domain.CartLine, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %d", domain.ErrProductNotFound, it.ProductID)
		}

		line := domain.CartLine{ProductID: it.ProductID, Quantity: it.Quantity}

		if it.Variant != nil {
			line.Selection = *it.Variant
		} else {
			line.Selection, err = p.ResolveSelection(it.VariantKey)
			if err != nil {
				return nil, nil, err
			}
		}

		lines = append(lines, line)
	}

	return domain.MergeLines(lines), products, nil
}

func (s *checkoutService) chargeRequest(order *domain.Order, items []domain.ChargeItem) midtrans.ChargeRequest {
	address := &midtrans.Address{
		FirstName:   order.Customer.FirstName,
		LastName:    order.Customer.LastName,
		Phone:       order.Customer.Phone,
		Address:     order.ShippingAddress.String(),
		PostalCode:  order.ShippingAddress.PostalCode,
		CountryCode: "IDN",
	}

	gatewayItems := make([]midtrans.Item, 0, len(items))
	for _, it := range items {
		gatewayItems = append(gatewayItems, midtrans.Item{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}

	return midtrans.ChargeRequest{
		OrderID:     order.ID,
		GrossAmount: order.Total,
		Items:       gatewayItems,
		Customer: midtrans.CustomerDetails{
			FirstName:       order.Customer.FirstName,
			LastName:        order.Customer.LastName,
			Email:           order.Customer.Email,
			Phone:           order.Customer.Phone,
			BillingAddress:  address,
			ShippingAddress: address,
		},
		Acquirer:      s.cfg.Acquirer,
		ExpiryMinutes: s.cfg.ExpiryMinutes,
	}
}

// deriveKey makes a key for clients that send no Idempotency-Key header. The
// same request within one expiry window maps to the same key, so a double
// submit replays the first charge while a later identical order does not.
func (s *checkoutService) deriveKey(req *domain.CheckoutRequest) string {
	body, err := json.Marshal(req)
	if err != nil {
		return uuid.NewString()
	}

	window := time.Duration(s.cfg.ExpiryMinutes) * time.Minute
	bucket := s.now().Truncate(window).Unix()

	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(body, "|%d", bucket)).String()
}

func resultFromAttempt(a *domain.PaymentAttempt) *domain.CheckoutResult {
	expiry := a.ExpiresAt

	res := &domain.CheckoutResult{
		Success:    true,
		OrderID:    a.OrderID,
		QRURL:      a.QRURL,
		ExpiryTime: &expiry,
	}

	if a.Draft != nil {
		res.Total = a.Draft.Total
	}

	return res
}

func chargeErrorMessage(err error) string {
	if errors.Is(err, midtrans.ErrChargeRejected) {
		return "Payment gateway rejected the charge: " + strings.TrimPrefix(err.Error(), midtrans.ErrChargeRejected.Error()+": ")
	}

	return "Payment gateway is unavailable, please try again"
}
