package domain

import (
	"fmt"

	"github.com/Arsyadam/bhawikarsu-store/pkg/variant"
)

// StockChange is one line of a paid or refunded order, applied to a product
// and, when VariantKey is set, to its matrix entry.
type StockChange struct {
	ProductID  int64
	VariantKey variant.Key
	Quantity   int64
}

func (p *Product) hasMatrix() bool {
	return p.Variants != nil && len(p.Variants.Matrix) > 0
}

// matrixEntry finds the entry a stock change applies to. A product without a
// matrix has none; a matrix product must name a listed key.
func (p *Product) matrixEntry(key variant.Key) (variant.Entry, bool, error) {
	if !p.hasMatrix() {
		return variant.Entry{}, false, nil
	}

	entry, ok := p.Variants.Matrix[key]
	if !ok {
		return variant.Entry{}, false, fmt.Errorf("%w: %q", ErrUnknownVariant, key)
	}

	return entry, true, nil
}

// DecreaseStock takes qty from the variant entry and recomputes the product
// total, or takes it from the total when the product has no matrix. Both
// clamp at zero. It returns how many units could not be covered. A key the
// matrix does not list changes nothing and returns ErrUnknownVariant.
func (p *Product) DecreaseStock(key variant.Key, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, nil
	}

	entry, found, err := p.matrixEntry(key)
	if err != nil {
		return 0, err
	}

	if found {
		taken := max(min(entry.Stock, qty), 0)
		entry.Stock -= taken
		p.Variants.Matrix[key] = entry
		p.Stock = p.Variants.Matrix.TotalStock()

		return qty - taken, nil
	}

	taken := max(min(p.Stock, qty), 0)
	p.Stock -= taken

	return qty - taken, nil
}

func (p *Product) IncreaseStock(key variant.Key, qty int64) error {
	if qty <= 0 {
		return nil
	}

	entry, found, err := p.matrixEntry(key)
	if err != nil {
		return err
	}

	if found {
		entry.Stock += qty
		p.Variants.Matrix[key] = entry
		p.Stock = p.Variants.Matrix.TotalStock()

		return nil
	}

	p.Stock += qty

	return nil
}
