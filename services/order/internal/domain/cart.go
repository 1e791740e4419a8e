package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Arsyadam/bhawikarsu-store/pkg/variant"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidDonation   = errors.New("donation must be 0 or at least 50000")
	ErrInvalidAmount     = errors.New("total amount must be positive")
	ErrInvalidVariant    = errors.New("invalid variant")
)

const (
	MinDonation = 50000

	DonationItemID   = "donation-community"
	DonationItemName = "Dukungan Komunitas B.96"

	maxItemNameLength = 50
)

var DonationPresets = []int64{50000, 100000, 250000}

// Product is the catalog's view of a product, as much of it as a quote needs.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Stock       int64     `json:"stock"`
	WeightGrams int       `json:"weight_grams"`
	IsPreorder  bool      `json:"is_preorder"`
	Variants    *Variants `json:"variants,omitempty"`
}

type Variants struct {
	Sizes []struct {
		Name string `json:"name"`
	} `json:"sizes"`
	Matrix variant.Matrix `json:"matrix"`
}

func (p *Product) knownSizes() []string {
	sizes := append([]string{}, variant.DefaultSizes...)
	if p.Variants != nil {
		for _, s := range p.Variants.Sizes {
			sizes = append(sizes, s.Name)
		}
	}

	return sizes
}

// ResolveSelection turns a client variant reference, either a canonical key
// or a legacy display label, into a selection.
func (p *Product) ResolveSelection(raw string) (variant.Selection, error) {
	if strings.TrimSpace(raw) == "" {
		return variant.Selection{}, nil
	}

	sel, err := variant.ParseAny(raw, p.knownSizes())
	if err != nil {
		return variant.Selection{}, fmt.Errorf("%w: %q: %w", ErrInvalidVariant, raw, err)
	}

	return sel, nil
}

// UnitPrice is the matrix price for sel when one is set, else the base price.
func (p *Product) UnitPrice(sel variant.Selection) int64 {
	if p.Variants == nil {
		return p.Price
	}

	price, _ := p.Variants.Matrix.Resolve(sel, p.Price)

	return price
}

// HasMatrix reports whether the product is sold per variant.
func (p *Product) HasMatrix() bool {
	return p.Variants != nil && len(p.Variants.Matrix) > 0
}

// Available is the stock a line for sel can draw from. On a matrix product
// only a listed combination has stock.
func (p *Product) Available(sel variant.Selection) int64 {
	if !p.HasMatrix() {
		return p.Stock
	}

	entry, ok := p.Variants.Matrix.Lookup(sel)
	if !ok {
		return 0
	}

	return entry.Stock
}

type CartLine struct {
	ProductID int64
	Selection variant.Selection
	Quantity  int64
}

func (l CartLine) Key() variant.Key {
	return l.Selection.Key()
}

// MergeLines sums the quantities of lines with the same product and variant
// and drops lines with a non-positive quantity. First-seen order is kept.
func MergeLines(lines []CartLine) []CartLine {
	type lineKey struct {
		productID int64
		key       variant.Key
	}

	index := make(map[lineKey]int, len(lines))
	out := make([]CartLine, 0, len(lines))

	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}

		k := lineKey{l.ProductID, l.Key()}
		if i, ok := index[k]; ok {
			out[i].Quantity += l.Quantity
			continue
		}

		index[k] = len(out)
		out = append(out, l)
	}

	return out
}

type QuoteLine struct {
	ProductID   int64             `json:"product_id"`
	Name        string            `json:"name"`
	Selection   variant.Selection `json:"selection"`
	Key         variant.Key       `json:"variant_key,omitempty"`
	Label       string            `json:"label,omitempty"`
	UnitPrice   int64             `json:"unit_price"`
	Quantity    int64             `json:"quantity"`
	WeightGrams int               `json:"weight_grams"`
}

func (l QuoteLine) Subtotal() int64 {
	return l.UnitPrice * l.Quantity
}

type ShippingChoice struct {
	CourierCode string `json:"courier_code"`
	ServiceCode string `json:"service_code"`
	CourierName string `json:"courier_name"`
	ServiceName string `json:"service_name"`
	Cost        int64  `json:"cost"`
}

type Quote struct {
	Lines      []QuoteLine     `json:"lines"`
	ItemsTotal int64           `json:"items_total"`
	Donation   int64           `json:"donation"`
	Shipping   *ShippingChoice `json:"shipping,omitempty"`
	Total      int64           `json:"total"`
}

func ValidateDonation(amount int64) error {
	if amount == 0 || amount >= MinDonation {
		return nil
	}

	return fmt.Errorf("%w: got %d", ErrInvalidDonation, amount)
}

// PriceLines prices merged cart lines against the catalog and checks stock.
// A product with a variant matrix only sells the combinations listed in it.
// Pre-order products are not limited by stock.
func PriceLines(lines []CartLine, products map[int64]*Product) ([]QuoteLine, int64, error) {
	if len(lines) == 0 {
		return nil, 0, ErrEmptyCart
	}

	priced := make([]QuoteLine, 0, len(lines))
	var itemsTotal int64

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || p == nil {
			return nil, 0, fmt.Errorf("%w: %d", ErrProductNotFound, l.ProductID)
		}

		if p.HasMatrix() {
			if _, listed := p.Variants.Matrix.Lookup(l.Selection); !listed {
				return nil, 0, fmt.Errorf("%w: %s has no variant %q", ErrInvalidVariant, p.Name, l.Key())
			}
		}

		if !p.IsPreorder && l.Quantity > p.Available(l.Selection) {
			return nil, 0, fmt.Errorf("%w: %s (%s) has %d left", ErrInsufficientStock, p.Name, l.Selection.Label(), p.Available(l.Selection))
		}

		line := QuoteLine{
			ProductID:   p.ID,
			Name:        p.Name,
			Selection:   l.Selection,
			Key:         l.Key(),
			Label:       l.Selection.Label(),
			UnitPrice:   p.UnitPrice(l.Selection),
			Quantity:    l.Quantity,
			WeightGrams: p.WeightGrams,
		}

		priced = append(priced, line)
		itemsTotal += line.Subtotal()
	}

	return priced, itemsTotal, nil
}

// BuildQuote prices merged cart lines against the catalog. The total is the
// items sum plus donation plus shipping cost.
func BuildQuote(lines []CartLine, products map[int64]*Product, donation int64, shipping *ShippingChoice) (*Quote, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	if err := ValidateDonation(donation); err != nil {
		return nil, err
	}

	priced, itemsTotal, err := PriceLines(lines, products)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		Lines:      priced,
		ItemsTotal: itemsTotal,
		Donation:   donation,
		Shipping:   shipping,
	}

	q.Total = q.ItemsTotal + q.Donation
	if shipping != nil {
		q.Total += shipping.Cost
	}

	if q.Total <= 0 {
		return nil, ErrInvalidAmount
	}

	return q, nil
}

type ChargeItem struct {
	ID       string
	Name     string
	Price    int64
	Quantity int64
}

// GatewayItems is the item list sent with a charge. Its sum equals Total.
func (q *Quote) GatewayItems() []ChargeItem {
	items := make([]ChargeItem, 0, len(q.Lines)+2)

	for _, l := range q.Lines {
		id := strconv.FormatInt(l.ProductID, 10)
		name := l.Name
		if l.Key != "" {
			id += ":" + string(l.Key)
			name = fmt.Sprintf("%s (%s)", l.Name, l.Label)
		}

		items = append(items, ChargeItem{
			ID:       id,
			Name:     truncate(name, maxItemNameLength),
			Price:    l.UnitPrice,
			Quantity: l.Quantity,
		})
	}

	if q.Donation > 0 {
		items = append(items, ChargeItem{
			ID:       DonationItemID,
			Name:     DonationItemName,
			Price:    q.Donation,
			Quantity: 1,
		})
	}

	if q.Shipping != nil && q.Shipping.Cost > 0 {
		items = append(items, ChargeItem{
			ID:       "shipping-" + q.Shipping.CourierCode,
			Name:     truncate(strings.TrimSpace("Ongkir "+strings.ToUpper(q.Shipping.CourierCode)+" "+q.Shipping.ServiceName), maxItemNameLength),
			Price:    q.Shipping.Cost,
			Quantity: 1,
		})
	}

	return items
}

func SumItems(items []ChargeItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Price * it.Quantity
	}

	return sum
}

// OrderItems converts quoted lines into order rows for orderID.
func (q *Quote) OrderItems(orderID string) []OrderItem {
	items := make([]OrderItem, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, OrderItem{
			OrderID:    orderID,
			ProductID:  l.ProductID,
			VariantKey: string(l.Key),
			Name:       l.Name,
			Label:      l.Label,
			Price:      l.UnitPrice,
			Quantity:   l.Quantity,
		})
	}

	return items
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)

	return string(runes[:n])
}
