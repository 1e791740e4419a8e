package midtrans

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/mylogger"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	ErrChargeRejected      = errors.New("charge rejected by gateway")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidSignature    = errors.New("invalid notification signature")
	ErrCancelRejected      = errors.New("cancel rejected by gateway")
)

const (
	timeLayout   = "2006-01-02 15:04:05"
	qrActionName = "generate-qr-code"
)

// Jakarta is the gateway's fixed +07:00 zone.
var Jakarta = time.FixedZone("WIB", 7*60*60)

type Item struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Name     string `json:"name"`
}

type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

type CustomerDetails struct {
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name,omitempty"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	BillingAddress  *Address `json:"billing_address,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
}

type ChargeRequest struct {
	OrderID       string
	GrossAmount   int64
	Items         []Item
	Customer      CustomerDetails
	Acquirer      string
	ExpiryMinutes int
}

type chargeBody struct {
	PaymentType        string `json:"payment_type"`
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails     []Item          `json:"item_details"`
	CustomerDetails CustomerDetails `json:"customer_details"`
	QRIS            struct {
		Acquirer string `json:"acquirer"`
	} `json:"qris"`
	CustomExpiry *struct {
		ExpiryDuration int    `json:"expiry_duration"`
		Unit           string `json:"unit"`
	} `json:"custom_expiry,omitempty"`
}

type Action struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

type TransactionResponse struct {
	StatusCode        string   `json:"status_code"`
	StatusMessage     string   `json:"status_message"`
	TransactionID     string   `json:"transaction_id"`
	OrderID           string   `json:"order_id"`
	GrossAmount       string   `json:"gross_amount"`
	PaymentType       string   `json:"payment_type"`
	TransactionTime   string   `json:"transaction_time"`
	TransactionStatus string   `json:"transaction_status"`
	FraudStatus       string   `json:"fraud_status"`
	SettlementTime    string   `json:"settlement_time"`
	ExpiryTime        string   `json:"expiry_time"`
	Actions           []Action `json:"actions"`
}

// Notification is the body of a payment notification webhook.
type Notification struct {
	TransactionResponse
	SignatureKey string `json:"signature_key"`
}

type ChargeResult struct {
	TransactionID     string
	TransactionStatus string
	QRURL             string
	ExpiresAt         time.Time
}

func (r *TransactionResponse) succeeded() bool {
	return r.StatusCode == "200" || r.StatusCode == "201"
}

// Gross reads gross_amount ("150000.00") as whole rupiah.
func (r *TransactionResponse) Gross() (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(r.GrossAmount))
	if err != nil {
		return 0, fmt.Errorf("gross_amount %q: %w", r.GrossAmount, err)
	}

	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("gross_amount %q has a fractional rupiah part", r.GrossAmount)
	}

	return d.IntPart(), nil
}

func (r *TransactionResponse) QRURL() string {
	for _, a := range r.Actions {
		if a.Name == qrActionName {
			return a.URL
		}
	}

	return ""
}

// ParseTime reads a gateway timestamp, which carries no zone and is in WIB.
func ParseTime(value string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, strings.TrimSpace(value), Jakarta)
}

type Client struct {
	baseURL   string
	serverKey string
	http      *http.Client
	cb        *gobreaker.CircuitBreaker
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

func NewClient(baseURL, serverKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		serverKey: serverKey,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:     utils.NewBreaker("Midtrans", logger),
		tracer: otel.Tracer("order/midtrans"),
		logger: logger,
		now:    time.Now,
	}
}

// Charge creates a QRIS charge. Any non-success answer is ErrChargeRejected
// with the gateway message attached.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	ctx, span := c.tracer.Start(ctx, "Midtrans.Charge")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.Int64("gross_amount", req.GrossAmount),
	)

	body := chargeBody{
		PaymentType:     "qris",
		ItemDetails:     req.Items,
		CustomerDetails: req.Customer,
	}
	body.TransactionDetails.OrderID = req.OrderID
	body.TransactionDetails.GrossAmount = req.GrossAmount
	body.QRIS.Acquirer = req.Acquirer

	if req.ExpiryMinutes > 0 {
		body.CustomExpiry = &struct {
			ExpiryDuration int    `json:"expiry_duration"`
			Unit           string `json:"unit"`
		}{ExpiryDuration: req.ExpiryMinutes, Unit: "minute"}
	}

	resp, err := c.do(ctx, http.MethodPost, "/v2/charge", body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !resp.succeeded() {
		mylogger.Warn(ctx, c.logger, "Charge rejected",
			zap.String("order_id", req.OrderID),
			zap.String("status_code", resp.StatusCode),
			zap.String("status_message", resp.StatusMessage),
		)

		return nil, fmt.Errorf("%w: %s %s", ErrChargeRejected, resp.StatusCode, resp.StatusMessage)
	}

	qrURL := resp.QRURL()
	if qrURL == "" {
		return nil, fmt.Errorf("%w: response has no %s action", ErrChargeRejected, qrActionName)
	}

	expiresAt, err := ParseTime(resp.ExpiryTime)
	if err != nil {
		mylogger.Warn(ctx, c.logger, "Unreadable expiry_time, using requested expiry",
			zap.String("expiry_time", resp.ExpiryTime),
		)

		expiresAt = c.now().Add(time.Duration(max(req.ExpiryMinutes, 15)) * time.Minute)
	}

	return &ChargeResult{
		TransactionID:     resp.TransactionID,
		TransactionStatus: resp.TransactionStatus,
		QRURL:             qrURL,
		ExpiresAt:         expiresAt,
	}, nil
}

func (c *Client) Status(ctx context.Context, orderID string) (*TransactionResponse, error) {
	ctx, span := c.tracer.Start(ctx, "Midtrans.Status")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	resp, err := c.do(ctx, http.MethodGet, "/v2/"+orderID+"/status", nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if resp.StatusCode == "404" {
		return nil, ErrTransactionNotFound
	}

	if !resp.succeeded() && resp.TransactionStatus == "" {
		return nil, fmt.Errorf("status check for %s: %s %s", orderID, resp.StatusCode, resp.StatusMessage)
	}

	return resp, nil
}

// Cancel voids an unpaid transaction. The gateway refuses once the payment
// has settled; that answer is ErrCancelRejected.
func (c *Client) Cancel(ctx context.Context, orderID string) (*TransactionResponse, error) {
	ctx, span := c.tracer.Start(ctx, "Midtrans.Cancel")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	resp, err := c.do(ctx, http.MethodPost, "/v2/"+orderID+"/cancel", nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if resp.StatusCode == "404" {
		return nil, ErrTransactionNotFound
	}

	if !resp.succeeded() {
		mylogger.Warn(ctx, c.logger, "Cancel rejected",
			zap.String("order_id", orderID),
			zap.String("status_code", resp.StatusCode),
			zap.String("status_message", resp.StatusMessage),
		)

		return nil, fmt.Errorf("%w: %s %s", ErrCancelRejected, resp.StatusCode, resp.StatusMessage)
	}

	return resp, nil
}

// VerifySignature checks sha512(order_id + status_code + gross_amount + server_key).
func (c *Client) VerifySignature(n *Notification) error {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + c.serverKey))
	expected := hex.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) != 1 {
		return ErrInvalidSignature
	}

	return nil
}

// Sign computes the notification signature; tests use it to build webhooks.
func Sign(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// do sends a request through the breaker. Only transport failures and 5xx
// answers count against the breaker; the decoded body is returned for every
// other status.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*TransactionResponse, error) {
	return utils.ExecuteWithBreaker(c.cb, func() (*TransactionResponse, error) {
		var body io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			body = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.serverKey+":")))

		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("midtrans %s %s: %w", method, path, err)
		}
		defer res.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if res.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("midtrans %s %s: http %d", method, path, res.StatusCode)
		}

		var out TransactionResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode response (http %d): %w", res.StatusCode, err)
		}

		if out.StatusCode == "" {
			out.StatusCode = strconv.Itoa(res.StatusCode)
		}

		return &out, nil
	})
}
