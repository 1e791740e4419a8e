package variant

import (
	"fmt"
	"sort"
)

type Entry struct {
	Price int64 `json:"price"`
	Stock int64 `json:"stock"`
}

type Matrix map[Key]Entry

func (m Matrix) Lookup(sel Selection) (Entry, bool) {
	if len(m) == 0 {
		return Entry{}, false
	}

	e, ok := m[sel.Key()]
	return e, ok
}

// Resolve returns the matrix price for sel, or basePrice when sel has no
// entry or the entry carries no price. ok reports whether the matrix price
// was used.
func (m Matrix) Resolve(sel Selection, basePrice int64) (price int64, ok bool) {
	e, found := m.Lookup(sel)
	if !found || e.Price <= 0 {
		return basePrice, false
	}

	return e.Price, true
}

func (m Matrix) TotalStock() int64 {
	var total int64
	for _, e := range m {
		if e.Stock > 0 {
			total += e.Stock
		}
	}

	return total
}

// CheapestPrice is the lowest positive entry price, or 0 if none is set.
func (m Matrix) CheapestPrice() int64 {
	var cheapest int64
	for _, e := range m {
		if e.Price <= 0 {
			continue
		}

		if cheapest == 0 || e.Price < cheapest {
			cheapest = e.Price
		}
	}

	return cheapest
}

// Keys returns the matrix keys in sorted order.
func (m Matrix) Keys() []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// Canonicalize re-keys a matrix whose keys may be legacy display labels or
// non-normalised keys.
func Canonicalize(raw map[string]Entry, knownSizes []string) (Matrix, error) {
	out := make(Matrix, len(raw))

	for rawKey, entry := range raw {
		sel, err := ParseAny(rawKey, knownSizes)
		if err != nil {
			return nil, err
		}

		k := sel.Key()
		if _, exists := out[k]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, rawKey)
		}

		out[k] = entry
	}

	return out, nil
}
