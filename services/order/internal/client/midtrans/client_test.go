package midtrans

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const serverKey = "SB-Mid-server-test"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, serverKey, zap.NewNop())
}

func TestCharge_Success(t *testing.T) {
	var got chargeBody

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/charge", r.URL.Path)
		assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte(serverKey+":")), r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{
			"status_code": "201",
			"status_message": "QRIS transaction is created",
			"transaction_id": "trx-1",
			"order_id": "B96-1",
			"gross_amount": "150000.00",
			"transaction_status": "pending",
			"expiry_time": "2026-10-16 12:15:00",
			"actions": [
				{"name": "generate-qr-code", "method": "GET", "url": "https://api.sandbox.midtrans.com/v2/qris/trx-1/qr-code"}
			]
		}`))
	})

	res, err := c.Charge(context.Background(), ChargeRequest{
		OrderID:     "B96-1",
		GrossAmount: 150000,
		Items:       []Item{{ID: "1", Name: "Kaos", Price: 150000, Quantity: 1}},
		Customer:    CustomerDetails{FirstName: "Budi", Email: "budi@example.com", Phone: "0812"},
		Acquirer:    "gopay",
	})
	require.NoError(t, err)

	assert.Equal(t, "qris", got.PaymentType)
	assert.Equal(t, "gopay", got.QRIS.Acquirer)
	assert.Equal(t, int64(150000), got.TransactionDetails.GrossAmount)
	assert.Nil(t, got.CustomExpiry)

	assert.Equal(t, "trx-1", res.TransactionID)
	assert.Equal(t, "https://api.sandbox.midtrans.com/v2/qris/trx-1/qr-code", res.QRURL)
	assert.True(t, res.ExpiresAt.Equal(time.Date(2026, 10, 16, 5, 15, 0, 0, time.UTC)))
}

func TestCharge_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status_code":"400","status_message":"Validation Error"}`))
	})

	_, err := c.Charge(context.Background(), ChargeRequest{OrderID: "B96-2", GrossAmount: 1})
	require.ErrorIs(t, err, ErrChargeRejected)
	assert.Contains(t, err.Error(), "Validation Error")
}

func TestCharge_MissingQRAction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status_code":"201","transaction_id":"trx-3","actions":[]}`))
	})

	_, err := c.Charge(context.Background(), ChargeRequest{OrderID: "B96-3", GrossAmount: 1})
	require.ErrorIs(t, err, ErrChargeRejected)
}

func TestCharge_ServerErrorIsNotRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Charge(context.Background(), ChargeRequest{OrderID: "B96-4", GrossAmount: 1})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrChargeRejected))
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/B96-paid/status":
			_, _ = w.Write([]byte(`{"status_code":"200","transaction_status":"settlement","order_id":"B96-paid","transaction_id":"trx-9"}`))
		case "/v2/B96-missing/status":
			_, _ = w.Write([]byte(`{"status_code":"404","status_message":"Transaction doesn't exist."}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{}`))
		}
	})

	res, err := c.Status(context.Background(), "B96-paid")
	require.NoError(t, err)
	assert.Equal(t, "settlement", res.TransactionStatus)

	_, err = c.Status(context.Background(), "B96-missing")
	require.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = c.Status(context.Background(), "B96-other")
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestCancel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		switch r.URL.Path {
		case "/v2/B96-open/cancel":
			_, _ = w.Write([]byte(`{"status_code":"200","transaction_status":"cancel","order_id":"B96-open","transaction_id":"trx-5"}`))
		case "/v2/B96-settled/cancel":
			_, _ = w.Write([]byte(`{"status_code":"412","status_message":"Merchant cannot modify the status of the transaction"}`))
		default:
			_, _ = w.Write([]byte(`{"status_code":"404","status_message":"Transaction doesn't exist."}`))
		}
	})

	res, err := c.Cancel(context.Background(), "B96-open")
	require.NoError(t, err)
	assert.Equal(t, "cancel", res.TransactionStatus)

	_, err = c.Cancel(context.Background(), "B96-settled")
	require.ErrorIs(t, err, ErrCancelRejected)
	assert.Contains(t, err.Error(), "cannot modify")

	_, err = c.Cancel(context.Background(), "B96-missing")
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestVerifySignature(t *testing.T) {
	c := NewClient("http://unused", serverKey, zap.NewNop())

	n := &Notification{
		TransactionResponse: TransactionResponse{OrderID: "B96-1", StatusCode: "200", GrossAmount: "150000.00"},
	}
	n.SignatureKey = Sign(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	require.NoError(t, c.VerifySignature(n))

	n.GrossAmount = "1.00"
	require.ErrorIs(t, c.VerifySignature(n), ErrInvalidSignature)
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("2026-01-02 07:00:00")
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))

	_, err = ParseTime("02/01/2026")
	require.Error(t, err)
}

func TestGross(t *testing.T) {
	r := &TransactionResponse{GrossAmount: "150000.00"}
	gross, err := r.Gross()
	require.NoError(t, err)
	assert.Equal(t, int64(150000), gross)

	r.GrossAmount = "10.50"
	_, err = r.Gross()
	require.Error(t, err)

	r.GrossAmount = ""
	_, err = r.Gross()
	require.Error(t, err)
}
