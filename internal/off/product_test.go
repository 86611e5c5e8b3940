package off

import (
	"encoding/json"
	"math"
	"testing"
)

func TestProductName(t *testing.T) {
	tests := []struct {
		name string
		p    Product
		want string
	}{
		{"product_name wins", Product{ProductName: "Nutella", GenericName: "Spread"}, "Nutella"},
		{"english fallback", Product{ProductNameEn: "Oat Milk"}, "Oat Milk"},
		{"generic fallback", Product{GenericName: "Hazelnut spread"}, "Hazelnut spread"},
		{"short description", Product{ShortDescription: "Cola"}, "Cola"},
		{"whitespace skipped", Product{ProductName: "   ", GenericName: "Bread"}, "Bread"},
		{"nothing", Product{}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Name(); got != tc.want {
				t.Errorf("Name() = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestProductNutriment(t *testing.T) {
	p := Product{Nutriments: map[string]any{
		"energy-kcal_100g": float64(539),
		"proteins_100g":    "6.3",
		"fat_100g":         "30,9",
		"sugars_100g":      json.Number("56.3"),
		"salt_100g":        math.NaN(),
		"fiber_100g":       "n/a",
		"sodium_100g":      float64(-1),
	}}

	tests := []struct {
		key    string
		want   float64
		wantOK bool
	}{
		{"energy-kcal_100g", 539, true},
		{"proteins_100g", 6.3, true},
		{"fat_100g", 30.9, true},
		{"sugars_100g", 56.3, true},
		{"salt_100g", 0, false},
		{"fiber_100g", 0, false},
		{"sodium_100g", -1, true}, // not clamped
		{"carbohydrates_100g", 0, false},
	}
	for _, tc := range tests {
		got, ok := p.Nutriment(tc.key)
		if ok != tc.wantOK || (ok && math.Abs(got-tc.want) > 1e-9) {
			t.Errorf("Nutriment(%q) = %v, %v; want %v, %v", tc.key, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestProductNova(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`{"nova_group": 4}`, 4},
		{`{"nova_group": "1"}`, 1},
		{`{"nova_group": 9}`, 0},
		{`{"nova_group": ""}`, 0},
		{`{}`, 0},
	}
	for _, tc := range tests {
		var p Product
		if err := json.Unmarshal([]byte(tc.raw), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if got := p.Nova(); got != tc.want {
			t.Errorf("Nova() for %s = %d; want %d", tc.raw, got, tc.want)
		}
	}
}
