// Package variant models a product option choice (color, size, sleeve) and
// its canonical key in a product's price/stock matrix.
//
// Keys are derived from a structured Selection, never from display text, so
// the admin form and the storefront agree on a key regardless of option
// order, casing, surrounding whitespace or sleeve language.
package variant

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAmbiguousLabel = errors.New("variant label has more than one unclassified option")
	ErrMalformedKey   = errors.New("malformed variant key")
	ErrDuplicateKey   = errors.New("two matrix entries resolve to the same variant")
)

const (
	SleeveShort = "short"
	SleeveLong  = "long"
)

// DefaultSizes is the storefront size ladder, used to classify legacy labels.
var DefaultSizes = []string{"XS", "S", "M", "L", "XL", "XXL", "XXXL"}

var sleeveAliases = map[string]string{
	"short":          SleeveShort,
	"short sleeve":   SleeveShort,
	"short sleeves":  SleeveShort,
	"pendek":         SleeveShort,
	"lengan pendek":  SleeveShort,
	"long":           SleeveLong,
	"long sleeve":    SleeveLong,
	"long sleeves":   SleeveLong,
	"panjang":        SleeveLong,
	"lengan panjang": SleeveLong,
}

var sleeveLabels = map[string]string{
	SleeveShort: "Short Sleeve",
	SleeveLong:  "Long Sleeve",
}

var keyEscaper = strings.NewReplacer("%", "%25", ";", "%3B", "=", "%3D")
var keyUnescaper = strings.NewReplacer("%3B", ";", "%3D", "=", "%25", "%")

type Selection struct {
	Color  string `json:"color,omitempty"`
	Size   string `json:"size,omitempty"`
	Sleeve string `json:"sleeve,omitempty"`
}

// Key is the canonical encoding of a Selection: normalised dimensions sorted
// by name, e.g. "color=red;size=m;sleeve=short". The empty key means the
// product has no variant dimensions.
type Key string

func (s Selection) IsZero() bool {
	return normalize(s.Color) == "" && normalize(s.Size) == "" && normalize(s.Sleeve) == ""
}

func (s Selection) Key() Key {
	parts := make([]string, 0, 3)

	if c := normalize(s.Color); c != "" {
		parts = append(parts, "color="+keyEscaper.Replace(c))
	}
	if sz := normalize(s.Size); sz != "" {
		parts = append(parts, "size="+keyEscaper.Replace(sz))
	}
	if sl := CanonicalSleeve(s.Sleeve); sl != "" {
		parts = append(parts, "sleeve="+keyEscaper.Replace(sl))
	}

	return Key(strings.Join(parts, ";"))
}

// Label is the display form shown to shoppers: "Red - M - Short Sleeve".
func (s Selection) Label() string {
	parts := make([]string, 0, 3)

	if c := collapse(s.Color); c != "" {
		parts = append(parts, c)
	}
	if sz := collapse(s.Size); sz != "" {
		parts = append(parts, sz)
	}
	if sl := CanonicalSleeve(s.Sleeve); sl != "" {
		if label, ok := sleeveLabels[sl]; ok {
			parts = append(parts, label)
		} else {
			parts = append(parts, collapse(s.Sleeve))
		}
	}

	return strings.Join(parts, " - ")
}

// CanonicalSleeve maps every known spelling to "short" or "long". Unknown
// values are only normalised.
func CanonicalSleeve(v string) string {
	n := normalize(v)
	if canon, ok := sleeveAliases[n]; ok {
		return canon
	}

	return n
}

func IsSleeve(v string) bool {
	_, ok := sleeveAliases[normalize(v)]
	return ok
}

// ParseKey is the inverse of Selection.Key. Values come back normalised.
func ParseKey(k Key) (Selection, error) {
	var sel Selection
	if k == "" {
		return sel, nil
	}

	for _, part := range strings.Split(string(k), ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok || value == "" {
			return Selection{}, fmt.Errorf("%w: %q", ErrMalformedKey, k)
		}

		value = keyUnescaper.Replace(value)

		switch name {
		case "color":
			sel.Color = value
		case "size":
			sel.Size = value
		case "sleeve":
			sel.Sleeve = value
		default:
			return Selection{}, fmt.Errorf("%w: unknown dimension %q", ErrMalformedKey, name)
		}
	}

	return sel, nil
}

// ParseLabel reads a legacy display key such as "Merah - XL - Lengan Panjang".
// Sleeve aliases and sizes from knownSizes are recognised wherever they
// appear; the remaining part is the color.
func ParseLabel(label string, knownSizes []string) (Selection, error) {
	var sel Selection
	if strings.TrimSpace(label) == "" {
		return sel, nil
	}

	sizes := make(map[string]struct{}, len(knownSizes))
	for _, s := range knownSizes {
		sizes[normalize(s)] = struct{}{}
	}

	for _, raw := range strings.Split(label, " - ") {
		part := collapse(raw)
		if part == "" {
			continue
		}

		if IsSleeve(part) && sel.Sleeve == "" {
			sel.Sleeve = CanonicalSleeve(part)
			continue
		}

		if _, ok := sizes[normalize(part)]; ok && sel.Size == "" {
			sel.Size = part
			continue
		}

		if sel.Color != "" {
			return Selection{}, fmt.Errorf("%w: %q", ErrAmbiguousLabel, label)
		}
		sel.Color = part
	}

	return sel, nil
}

// ParseAny accepts either a canonical key or a legacy display label.
func ParseAny(raw string, knownSizes []string) (Selection, error) {
	if strings.Contains(raw, "=") {
		return ParseKey(Key(raw))
	}

	return ParseLabel(raw, knownSizes)
}

func normalize(v string) string {
	return strings.ToLower(collapse(v))
}

func collapse(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
