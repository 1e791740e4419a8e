package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/domain"
)

func (s *IntegrationTestSuite) request(method, path string, body any, headers map[string]string) *http.Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.App.Test(req, -1)
	s.Require().NoError(err)

	return resp
}

func (s *IntegrationTestSuite) decode(resp *http.Response, into any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(into))
}

func (s *IntegrationTestSuite) bearer() map[string]string {
	pair, err := s.Tokens.Generate(1, "admin@b96.id")
	s.Require().NoError(err)

	return map[string]string{"Authorization": "Bearer " + pair.AccessToken}
}

func (s *IntegrationTestSuite) TestHTTP_Checkout() {
	body := checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 1})
	headers := map[string]string{"Idempotency-Key": "http-cart-1"}

	resp := s.request(http.MethodPost, "/api/checkout", body, headers)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var result domain.CheckoutResult
	s.decode(resp, &result)
	s.True(result.Success)
	s.Equal(int64(15000), result.Total)
	s.NotEmpty(result.QRURL)

	resp = s.request(http.MethodGet, "/api/payments/"+result.OrderID+"/status", nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var status domain.StatusResult
	s.decode(resp, &status)
	s.Equal(domain.OrderStatusPending, status.OrderStatus)
}

func (s *IntegrationTestSuite) TestHTTP_CheckoutGatewayFailure() {
	s.Midtrans.SetFailCharge(true)

	resp := s.request(http.MethodPost, "/api/checkout", checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 1}), nil)
	s.Require().Equal(http.StatusBadGateway, resp.StatusCode)

	var result domain.CheckoutResult
	s.decode(resp, &result)
	s.False(result.Success)
	s.NotEmpty(result.Error)
}

func (s *IntegrationTestSuite) TestHTTP_CheckoutValidation() {
	bad := checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 1})
	bad.Customer.Email = "not-an-email"

	resp := s.request(http.MethodPost, "/api/checkout", bad, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodPost, "/api/checkout", checkoutRequest(domain.CheckoutItem{ProductID: stickerID, Quantity: 9}), nil)
	s.Equal(http.StatusConflict, resp.StatusCode)

	resp = s.request(http.MethodPost, "/api/checkout", checkoutRequest(domain.CheckoutItem{ProductID: 404, Quantity: 1}), nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestHTTP_Quote() {
	resp := s.request(http.MethodPost, "/api/cart/quote", domain.QuoteRequest{
		Items:    []domain.CheckoutItem{{ProductID: shirtID, VariantKey: blackMKey, Quantity: 1}},
		Donation: 50000,
	}, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var quote domain.Quote
	s.decode(resp, &quote)
	s.Equal(int64(210000), quote.Total)

	resp = s.request(http.MethodPost, "/api/cart/quote", domain.QuoteRequest{
		Items:    []domain.CheckoutItem{{ProductID: stickerID, Quantity: 1}},
		Donation: 20000,
	}, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestHTTP_Notification() {
	orderID := s.placeOrder()

	forged := s.notification(orderID, "settlement")
	forged.SignatureKey = "deadbeef"

	resp := s.request(http.MethodPost, "/api/payments/notifications", forged, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp = s.request(http.MethodPost, "/api/payments/notifications", s.notification(orderID, "settlement"), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	order, err := s.Orders.GetByID(s.Ctx, orderID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCompleted, order.Status)
}

func (s *IntegrationTestSuite) TestHTTP_AdminRoutesRequireToken() {
	resp := s.request(http.MethodGet, "/api/admin/orders", nil, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.request(http.MethodPatch, "/api/admin/orders/B96-x/status", map[string]string{"status": "fulfilled"},
		map[string]string{"Authorization": "Bearer garbage"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestHTTP_AdminOrders() {
	orderID := s.placeOrder()

	resp := s.request(http.MethodGet, "/api/admin/orders?status=pending", nil, s.bearer())
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var list struct {
		Items []struct {
			ID       string `json:"id"`
			Customer string `json:"customer"`
			Total    int64  `json:"total"`
		} `json:"items"`
		TotalCount int64 `json:"total_count"`
	}
	s.decode(resp, &list)
	s.Require().Len(list.Items, 1)
	s.Equal(orderID, list.Items[0].ID)
	s.Equal("Budi Santoso", list.Items[0].Customer)
	s.Equal(int64(1), list.TotalCount)

	resp = s.request(http.MethodGet, "/api/admin/orders?status=bogus", nil, s.bearer())
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodGet, "/api/admin/orders/"+orderID, nil, s.bearer())
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var detail struct {
		Order   domain.Order `json:"order"`
		Payment struct {
			AttemptStatus string `json:"attempt_status"`
		} `json:"payment"`
	}
	s.decode(resp, &detail)
	s.Len(detail.Order.Items, 1)
	s.Equal("charged", detail.Payment.AttemptStatus)

	resp = s.request(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", map[string]string{"status": "fulfilled"}, s.bearer())
	s.Equal(http.StatusConflict, resp.StatusCode)

	resp = s.request(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", map[string]string{"status": "completed"}, s.bearer())
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", map[string]string{"status": "cancelled"}, s.bearer())
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	s.Equal([]string{"OrderCancelled"}, s.outboxEvents(orderID))

	resp = s.request(http.MethodGet, "/api/admin/orders/B96-missing", nil, s.bearer())
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestHTTP_ShippingAreasAreCached() {
	for i := 0; i < 2; i++ {
		resp := s.request(http.MethodGet, "/api/shipping/provinces", nil, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		var body struct {
			Areas []domain.Area `json:"areas"`
		}
		s.decode(resp, &body)
		s.Require().Len(body.Areas, 1)
		s.Equal("DKI Jakarta", body.Areas[0].Name)
	}

	s.Equal(1, s.Biteship.AreaCalls())

	resp := s.request(http.MethodGet, "/api/shipping/areas?q=ab", nil, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestHTTP_ShippingRates() {
	resp := s.request(http.MethodPost, "/api/shipping/rates", map[string]any{
		"destination_area_id": "IDNP6IDNC147IDND841",
		"items":               []map[string]any{{"product_id": stickerID, "quantity": 2}},
	}, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Pricing []domain.Rate `json:"pricing"`
	}
	s.decode(resp, &body)
	s.Len(body.Pricing, 2)
}
