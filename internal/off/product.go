// Package off holds the raw Open Food Facts product shape shared by the
// importer, the reference dataset and the normalizer.
package off

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Product is the subset of an Open Food Facts JSONL record the service keeps.
// Scalar fields are empty when the dump omits them; Nutriments keeps the
// provider's own keys (energy-kcal_100g, proteins_100g, ...).
type Product struct {
	Code             string         `json:"code"`
	ProductName      string         `json:"product_name,omitempty"`
	ProductNameEn    string         `json:"product_name_en,omitempty"`
	GenericName      string         `json:"generic_name,omitempty"`
	ShortDescription string         `json:"short_description,omitempty"`
	Brands           string         `json:"brands,omitempty"`
	Categories       string         `json:"categories,omitempty"`
	Allergens        string         `json:"allergens,omitempty"`
	IngredientsText  string         `json:"ingredients_text,omitempty"`
	ServingSize      string         `json:"serving_size,omitempty"`
	NutriscoreGrade  string         `json:"nutriscore_grade,omitempty"`
	NovaGroup        any            `json:"nova_group,omitempty"`
	ImageURL         string         `json:"image_url,omitempty"`
	Nutriments       map[string]any `json:"nutriments,omitempty"`
}

// Name returns the best available product name using the fallback order:
// product_name → product_name_en → generic_name → short_description → "".
func (p *Product) Name() string {
	for _, s := range []string{p.ProductName, p.ProductNameEn, p.GenericName, p.ShortDescription} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Nutriment returns the value stored under key and whether it was usable.
// JSON numbers and numeric strings are accepted ("12,5" included); NaN and
// infinities count as absent.
func (p *Product) Nutriment(key string) (float64, bool) {
	if p.Nutriments == nil {
		return 0, false
	}
	return parseFloat(p.Nutriments[key])
}

// Nova returns the NOVA processing group, or 0 when missing or malformed.
func (p *Product) Nova() int {
	f, ok := parseFloat(p.NovaGroup)
	if !ok || f != math.Trunc(f) || f < 1 || f > 4 {
		return 0
	}
	return int(f)
}

func parseFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", ".")
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
