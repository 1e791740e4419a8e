package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Arsyadam/bhawikarsu-store/pkg/variant"
)

type Color struct {
	Name       string `json:"name"`
	Hex        string `json:"hex"`
	ShortImage string `json:"short_image,omitempty"`
	LongImage  string `json:"long_image,omitempty"`
}

type Size struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type VariantSpec struct {
	Colors  []Color        `json:"colors"`
	Sizes   []Size         `json:"sizes"`
	Sleeves []string       `json:"sleeves"`
	Matrix  variant.Matrix `json:"matrix"`
}

type Combination struct {
	Selection variant.Selection `json:"selection"`
	Key       variant.Key       `json:"key"`
	Label     string            `json:"label"`
}

// UnmarshalJSON accepts matrix keys written either as canonical keys or as
// legacy display labels ("Red - M - Lengan Pendek").
func (v *VariantSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Colors  []Color                  `json:"colors"`
		Sizes   []Size                   `json:"sizes"`
		Sleeves []string                 `json:"sleeves"`
		Matrix  map[string]variant.Entry `json:"matrix"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	sizes := append([]string{}, variant.DefaultSizes...)
	for _, s := range raw.Sizes {
		sizes = append(sizes, s.Name)
	}

	matrix, err := variant.Canonicalize(raw.Matrix, sizes)
	if err != nil {
		return fmt.Errorf("variants.matrix: %w", err)
	}

	v.Colors = raw.Colors
	v.Sizes = raw.Sizes
	v.Sleeves = raw.Sleeves
	v.Matrix = matrix

	return nil
}

// Combinations is the cartesian product of every color, every active size and
// every enabled sleeve. A dimension with nothing enabled does not take part.
func (v *VariantSpec) Combinations() []Combination {
	if v == nil {
		return nil
	}

	var colors, sizes, sleeves []string

	for i, c := range v.Colors {
		colors = append(colors, colorName(c, i))
	}
	for _, s := range v.Sizes {
		if s.Active && strings.TrimSpace(s.Name) != "" {
			sizes = append(sizes, strings.TrimSpace(s.Name))
		}
	}
	for _, s := range v.Sleeves {
		if sl := variant.CanonicalSleeve(s); sl != "" {
			sleeves = append(sleeves, sl)
		}
	}

	if len(colors) == 0 && len(sizes) == 0 && len(sleeves) == 0 {
		return nil
	}

	selections := []variant.Selection{{}}
	selections = expand(selections, colors, func(s *variant.Selection, val string) { s.Color = val })
	selections = expand(selections, sizes, func(s *variant.Selection, val string) { s.Size = val })
	selections = expand(selections, sleeves, func(s *variant.Selection, val string) { s.Sleeve = val })

	out := make([]Combination, 0, len(selections))
	for _, sel := range selections {
		out = append(out, Combination{Selection: sel, Key: sel.Key(), Label: sel.Label()})
	}

	return out
}

// Normalize names unnamed colors, canonicalises sleeves and rejects matrix
// entries that are not one of the combinations.
func (v *VariantSpec) Normalize() error {
	for i := range v.Colors {
		v.Colors[i].Name = colorName(v.Colors[i], i)
	}

	seenSleeve := make(map[string]struct{}, len(v.Sleeves))
	sleeves := make([]string, 0, len(v.Sleeves))
	for _, s := range v.Sleeves {
		sl := variant.CanonicalSleeve(s)
		if _, ok := seenSleeve[sl]; ok || sl == "" {
			continue
		}

		seenSleeve[sl] = struct{}{}
		sleeves = append(sleeves, sl)
	}
	v.Sleeves = sleeves

	valid := make(map[variant.Key]struct{})
	for _, c := range v.Combinations() {
		valid[c.Key] = struct{}{}
	}

	for k := range v.Matrix {
		if _, ok := valid[k]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownVariant, k)
		}
	}

	if v.Matrix == nil {
		v.Matrix = variant.Matrix{}
	}

	return nil
}

func (v *VariantSpec) Resolve(sel variant.Selection, basePrice int64) (int64, bool) {
	if v == nil {
		return basePrice, false
	}

	return v.Matrix.Resolve(sel, basePrice)
}

func colorName(c Color, i int) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}

	return fmt.Sprintf("Color %d", i+1)
}

func expand(in []variant.Selection, values []string, set func(*variant.Selection, string)) []variant.Selection {
	if len(values) == 0 {
		return in
	}

	out := make([]variant.Selection, 0, len(in)*len(values))
	for _, sel := range in {
		for _, val := range values {
			next := sel
			set(&next, val)
			out = append(out, next)
		}
	}

	return out
}
