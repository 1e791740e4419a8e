package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/events"
	"github.com/Arsyadam/bhawikarsu-store/pkg/variant"
	"github.com/Arsyadam/bhawikarsu-store/services/notification/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var jakarta = time.FixedZone("WIB", 7*60*60)

const timeLayout = "02 Jan 2006 15:04 WIB"

type Renderer struct {
	storeURL  string
	templates *template.Template
}

func NewRenderer(storeURL string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	return &Renderer{
		storeURL:  strings.TrimRight(storeURL, "/"),
		templates: tmpl,
	}, nil
}

type lineView struct {
	Name     string
	Variant  string
	Quantity int64
	Subtotal string
}

type orderPaidView struct {
	Name     string
	OrderID  string
	PaidAt   string
	Lines    []lineView
	Donation string
	Shipping string
	Total    string
	OrderURL string
}

type paymentExpiredView struct {
	Name      string
	OrderID   string
	Total     string
	ExpiredAt string
	StoreURL  string
}

func (r *Renderer) OrderPaid(event events.OrderPaidEvent) (domain.Message, error) {
	view := orderPaidView{
		Name:     displayName(event.Customer),
		OrderID:  event.OrderID,
		PaidAt:   event.PaidAt.In(jakarta).Format(timeLayout),
		Lines:    make([]lineView, 0, len(event.Items)),
		Total:    domain.Rupiah(event.Total),
		OrderURL: r.storeURL + "/payment/" + event.OrderID,
	}

	if event.Donation > 0 {
		view.Donation = domain.Rupiah(event.Donation)
	}
	if event.Shipping > 0 {
		view.Shipping = domain.Rupiah(event.Shipping)
	}

	for _, item := range event.Items {
		view.Lines = append(view.Lines, lineView{
			Name:     item.Name,
			Variant:  variantLabel(item.VariantKey),
			Quantity: item.Quantity,
			Subtotal: domain.Rupiah(item.Price * item.Quantity),
		})
	}

	html, err := r.execute("order_paid.html", view)
	if err != nil {
		return domain.Message{}, err
	}

	return domain.Message{
		To:      event.Customer.Email,
		Subject: "Pembayaran diterima - Pesanan " + event.OrderID,
		HTML:    html,
	}, nil
}

func (r *Renderer) PaymentExpired(event events.OrderExpiredEvent) (domain.Message, error) {
	view := paymentExpiredView{
		Name:      displayName(event.Customer),
		OrderID:   event.OrderID,
		Total:     domain.Rupiah(event.Total),
		ExpiredAt: event.ExpiredAt.In(jakarta).Format(timeLayout),
		StoreURL:  r.storeURL,
	}

	html, err := r.execute("payment_expired.html", view)
	if err != nil {
		return domain.Message{}, err
	}

	return domain.Message{
		To:      event.Customer.Email,
		Subject: "Waktu pembayaran habis - Pesanan " + event.OrderID,
		HTML:    html,
	}, nil
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	return buf.String(), nil
}

func displayName(c events.Customer) string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return "Pelanggan"
	}

	return name
}

func variantLabel(key string) string {
	if key == "" {
		return ""
	}

	sel, err := variant.ParseKey(variant.Key(key))
	if err != nil {
		return key
	}

	return sel.Label()
}
