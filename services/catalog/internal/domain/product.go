package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidProduct = errors.New("invalid product")
	ErrUnknownVariant = errors.New("matrix entry does not match an enabled variant")
)

type PreorderType string

const (
	PreorderDays PreorderType = "days"
	PreorderDate PreorderType = "date"
)

const DefaultWeightGrams = 500

type Preorder struct {
	Type  PreorderType `json:"type"`
	Value string       `json:"value"`
}

type Product struct {
	ID             int64        `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	Description    string       `db:"description" json:"description"`
	DetailMaterial string       `db:"detail_material" json:"detail_material"`
	ShippingInfo   string       `db:"shipping_info" json:"shipping_info"`
	Price          int64        `db:"price" json:"price"`
	Discount       int          `db:"discount" json:"discount"`
	Stock          int64        `db:"stock" json:"stock"`
	Categories     []string     `db:"categories" json:"categories"`
	Images         []string     `db:"images" json:"images"`
	WeightGrams    int          `db:"weight_grams" json:"weight_grams"`
	IsPreorder     bool         `db:"is_preorder" json:"is_preorder"`
	Preorder       *Preorder    `db:"preorder" json:"preorder,omitempty"`
	Variants       *VariantSpec `db:"variants" json:"variants,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

func (p *Product) HasVariants() bool {
	return p.Variants != nil && len(p.Variants.Combinations()) > 0
}

// Normalize canonicalises variant options and derives the base price and the
// stock from the matrix. It must run before every write.
func (p *Product) Normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Categories = dedupe(p.Categories)

	if p.WeightGrams <= 0 {
		p.WeightGrams = DefaultWeightGrams
	}

	if !p.IsPreorder {
		p.Preorder = nil
	}

	if p.Variants == nil {
		return p.Validate()
	}

	if err := p.Variants.Normalize(); err != nil {
		return err
	}

	if len(p.Variants.Combinations()) == 0 {
		p.Variants = nil
		return p.Validate()
	}

	if cheapest := p.Variants.Matrix.CheapestPrice(); cheapest > 0 {
		p.Price = cheapest
	}

	if len(p.Variants.Matrix) > 0 {
		p.Stock = p.Variants.Matrix.TotalStock()
	}

	return p.Validate()
}

func (p *Product) Validate() error {
	nameLen := utf8.RuneCountInString(p.Name)
	descLen := utf8.RuneCountInString(strings.TrimSpace(p.Description))

	switch {
	case nameLen < 3 || nameLen > 100:
		return fmt.Errorf("%w: name must be between 3 and 100 characters", ErrInvalidProduct)
	case descLen < 10 || descLen > 2000:
		return fmt.Errorf("%w: description must be between 10 and 2000 characters", ErrInvalidProduct)
	case p.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case p.Discount < 0 || p.Discount > 100:
		return fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidProduct)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}

	if p.IsPreorder {
		if p.Preorder == nil || (p.Preorder.Type != PreorderDays && p.Preorder.Type != PreorderDate) {
			return fmt.Errorf("%w: preorder type must be days or date", ErrInvalidProduct)
		}

		if strings.TrimSpace(p.Preorder.Value) == "" {
			return fmt.Errorf("%w: preorder value is required", ErrInvalidProduct)
		}
	}

	return nil
}

// CompareAtPrice is the struck-through price shown next to a discounted
// price: price / (1 - discount/100), rounded to the rupiah.
func (p *Product) CompareAtPrice() int64 {
	if p.Discount <= 0 || p.Discount >= 100 {
		return p.Price
	}

	factor := decimal.NewFromInt(100 - int64(p.Discount)).Div(decimal.NewFromInt(100))

	return decimal.NewFromInt(p.Price).Div(factor).Round(0).IntPart()
}

type UpdateProductInput struct {
	Name           *string      `json:"name"`
	Description    *string      `json:"description"`
	DetailMaterial *string      `json:"detail_material"`
	ShippingInfo   *string      `json:"shipping_info"`
	Price          *int64       `json:"price"`
	Discount       *int         `json:"discount"`
	Stock          *int64       `json:"stock"`
	Categories     []string     `json:"categories"`
	Images         []string     `json:"images"`
	WeightGrams    *int         `json:"weight_grams"`
	IsPreorder     *bool        `json:"is_preorder"`
	Preorder       *Preorder    `json:"preorder"`
	Variants       *VariantSpec `json:"variants"`
}

// Apply merges the non-nil fields of in into p.
func (in *UpdateProductInput) Apply(p *Product) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.DetailMaterial != nil {
		p.DetailMaterial = *in.DetailMaterial
	}
	if in.ShippingInfo != nil {
		p.ShippingInfo = *in.ShippingInfo
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Discount != nil {
		p.Discount = *in.Discount
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Categories != nil {
		p.Categories = in.Categories
	}
	if in.Images != nil {
		p.Images = in.Images
	}
	if in.WeightGrams != nil {
		p.WeightGrams = *in.WeightGrams
	}
	if in.IsPreorder != nil {
		p.IsPreorder = *in.IsPreorder
	}
	if in.Preorder != nil {
		p.Preorder = in.Preorder
	}
	if in.Variants != nil {
		p.Variants = in.Variants
	}
}

type ListFilter struct {
	Search   string
	Category string
	Limit    int64
	Offset   int64
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, v)
	}

	return out
}
