package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/services/order/internal/client/midtrans"
)

const (
	shirtID    int64 = 1
	stickerID  int64 = 2
	hoodieID   int64 = 3
	shirtPrice       = 150000
	blackMKey        = "color=black;size=m;sleeve=short"
)

type chargeCall struct {
	OrderID  string
	Gross    int64
	ItemsSum int64
	Acquirer string
}

// fakeMidtrans answers charge, status and cancel calls like the sandbox does.
type fakeMidtrans struct {
	server *httptest.Server

	mu         sync.Mutex
	failCharge bool
	charges    []chargeCall
	cancels    []string
	statuses   map[string]string
	gross      map[string]int64
}

func newFakeMidtrans(t *testing.T) *fakeMidtrans {
	f := &fakeMidtrans{
		statuses: make(map[string]string),
		gross:    make(map[string]int64),
	}

	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeMidtrans) URL() string { return f.server.URL }

func (f *fakeMidtrans) SetFailCharge(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCharge = fail
}

func (f *fakeMidtrans) SetStatus(orderID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[orderID] = status
}

func (f *fakeMidtrans) Charges() []chargeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chargeCall(nil), f.charges...)
}

func (f *fakeMidtrans) Cancels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancels...)
}

func (f *fakeMidtrans) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v2/charge":
		var body struct {
			TransactionDetails struct {
				OrderID     string `json:"order_id"`
				GrossAmount int64  `json:"gross_amount"`
			} `json:"transaction_details"`
			ItemDetails []struct {
				Price    int64 `json:"price"`
				Quantity int64 `json:"quantity"`
			} `json:"item_details"`
			QRIS struct {
				Acquirer string `json:"acquirer"`
			} `json:"qris"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		var sum int64
		for _, it := range body.ItemDetails {
			sum += it.Price * it.Quantity
		}

		orderID := body.TransactionDetails.OrderID
		f.charges = append(f.charges, chargeCall{
			OrderID:  orderID,
			Gross:    body.TransactionDetails.GrossAmount,
			ItemsSum: sum,
			Acquirer: body.QRIS.Acquirer,
		})

		if f.failCharge {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status_code":"400","status_message":"One or more parameters in the payload is invalid."}`))
			return
		}

		f.statuses[orderID] = "pending"
		f.gross[orderID] = body.TransactionDetails.GrossAmount

		writeJSON(w, map[string]any{
			"status_code":        "201",
			"status_message":     "QRIS transaction is created",
			"transaction_id":     "trx-" + orderID,
			"order_id":           orderID,
			"transaction_status": "pending",
			"expiry_time":        time.Now().Add(15 * time.Minute).In(midtrans.Jakarta).Format("2006-01-02 15:04:05"),
			"actions": []map[string]string{
				{"name": "generate-qr-code", "method": "GET", "url": "https://api.sandbox.midtrans.com/v2/qris/trx-" + orderID + "/qr-code"},
			},
		})
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/status"):
		orderID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v2/"), "/status")

		status, ok := f.statuses[orderID]
		if !ok {
			writeJSON(w, map[string]any{"status_code": "404", "status_message": "Transaction doesn't exist."})
			return
		}

		writeJSON(w, map[string]any{
			"status_code":        "200",
			"transaction_id":     "trx-" + orderID,
			"order_id":           orderID,
			"transaction_status": status,
			"fraud_status":       "accept",
			"gross_amount":       formatGross(f.gross[orderID]),
		})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/cancel"):
		orderID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v2/"), "/cancel")
		f.cancels = append(f.cancels, orderID)

		status, ok := f.statuses[orderID]
		switch {
		case !ok:
			writeJSON(w, map[string]any{"status_code": "404", "status_message": "Transaction doesn't exist."})
		case status == "settlement" || status == "capture":
			writeJSON(w, map[string]any{"status_code": "412", "status_message": "Merchant cannot modify the status of the transaction"})
		default:
			f.statuses[orderID] = "cancel"
			writeJSON(w, map[string]any{
				"status_code":        "200",
				"status_message":     "Success, transaction is canceled",
				"transaction_id":     "trx-" + orderID,
				"order_id":           orderID,
				"transaction_status": "cancel",
			})
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func formatGross(v int64) string {
	b, _ := json.Marshal(v)
	return string(b) + ".00"
}

// fakeCatalog serves the catalog's public product endpoint.
type fakeCatalog struct {
	server *httptest.Server
}

var catalogProducts = map[string]string{
	"/api/products/1": `{
		"id": 1, "name": "Kaos B.96 Community", "price": 150000, "stock": 10, "weight_grams": 250,
		"variants": {
			"sizes": [{"name": "M", "active": true}, {"name": "L", "active": true}],
			"matrix": {"color=black;size=m;sleeve=short": {"price": 160000, "stock": 3}}
		}
	}`,
	"/api/products/2": `{"id": 2, "name": "Sticker Pack", "price": 15000, "stock": 5, "weight_grams": 20}`,
	"/api/products/3": `{"id": 3, "name": "Hoodie Pre-Order", "price": 300000, "stock": 0, "weight_grams": 600, "is_preorder": true}`,
}

func newFakeCatalog(t *testing.T) *fakeCatalog {
	f := &fakeCatalog{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := catalogProducts[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"product not found"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeCatalog) URL() string { return f.server.URL }

// fakeBiteship serves area lookups and JNE rates.
type fakeBiteship struct {
	server *httptest.Server

	mu        sync.Mutex
	areaCalls int
}

func newFakeBiteship(t *testing.T) *fakeBiteship {
	f := &fakeBiteship{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/maps/areas":
			f.mu.Lock()
			f.areaCalls++
			f.mu.Unlock()

			writeJSON(w, map[string]any{
				"success": true,
				"areas":   []map[string]any{{"id": "IDNP6", "name": "DKI Jakarta"}},
			})
		case "/v1/rates/couriers":
			writeJSON(w, map[string]any{
				"success": true,
				"pricing": []map[string]any{
					{"courier_name": "JNE", "courier_code": "jne", "courier_service_name": "Reguler", "courier_service_code": "reg", "price": 18000},
					{"courier_name": "JNE", "courier_code": "jne", "courier_service_name": "YES", "courier_service_code": "yes", "price": 35000},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeBiteship) URL() string { return f.server.URL }

func (f *fakeBiteship) AreaCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.areaCalls
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
