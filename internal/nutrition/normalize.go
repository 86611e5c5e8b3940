package nutrition

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/korjavin/nomnom/internal/off"
)

const (
	kjPerKcal        = 4.184
	saltToSodiumRate = 2.5
)

// localePrefix matches the "en:" style taxonomy prefix OFF puts on allergens.
var localePrefix = regexp.MustCompile(`^[a-z]{2}:`)

// Normalize converts a raw Open Food Facts product into a canonical Record.
//
// Missing optional nutrients stay nil. Missing required macros also stay nil
// (see Record.MissingRequired) and are never defaulted to zero. Values are
// not clamped: out-of-range numbers are left for Validate to flag.
func Normalize(raw off.Product, source Source) (Record, error) {
	name := raw.Name()
	if name == "" {
		return Record{}, fmt.Errorf("barcode %q: no product name: %w", raw.Code, ErrMalformedRecord)
	}

	r := Record{
		Barcode:         strings.TrimSpace(raw.Code),
		Name:            name,
		Brand:           firstBrand(raw.Brands),
		Calories:        energyKcal(raw),
		ProteinG:        nutriment(raw, "proteins_100g"),
		CarbsG:          nutriment(raw, "carbohydrates_100g"),
		FatG:            nutriment(raw, "fat_100g"),
		FiberG:          nutriment(raw, "fiber_100g"),
		SugarG:          nutriment(raw, "sugars_100g"),
		SodiumG:         sodium(raw),
		SaturatedFatG:   nutriment(raw, "saturated-fat_100g"),
		Categories:      splitList(raw.Categories),
		IngredientsText: strings.TrimSpace(raw.IngredientsText),
		Allergens:       allergens(raw.Allergens),
		ServingSize:     strings.TrimSpace(raw.ServingSize),
		NutriscoreGrade: strings.ToLower(strings.TrimSpace(raw.NutriscoreGrade)),
		NovaGroup:       raw.Nova(),
		ImageURL:        strings.TrimSpace(raw.ImageURL),
		Source:          source,
	}
	r.DataQuality = Assess(r)
	return r, nil
}

func nutriment(raw off.Product, key string) *float64 {
	if v, ok := raw.Nutriment(key); ok {
		return &v
	}
	return nil
}

// energyKcal prefers energy-kcal_100g, then converts energy-kj_100g, then the
// unsuffixed energy_100g which OFF reports in kJ.
func energyKcal(raw off.Product) *float64 {
	if v, ok := raw.Nutriment("energy-kcal_100g"); ok {
		return &v
	}
	for _, key := range []string{"energy-kj_100g", "energy_100g"} {
		if v, ok := raw.Nutriment(key); ok {
			kcal := v / kjPerKcal
			return &kcal
		}
	}
	return nil
}

func sodium(raw off.Product) *float64 {
	if v, ok := raw.Nutriment("sodium_100g"); ok {
		return &v
	}
	if v, ok := raw.Nutriment("salt_100g"); ok {
		s := v / saltToSodiumRate
		return &s
	}
	return nil
}

func firstBrand(brands string) string {
	for _, b := range strings.Split(brands, ",") {
		if b = strings.TrimSpace(b); b != "" {
			return b
		}
	}
	return ""
}

// splitList splits a comma-joined field, trimming entries and dropping
// empties while keeping the original order.
func splitList(s string) []string {
	return CleanList(strings.Split(s, ","))
}

// CleanList trims every entry and drops the empty ones.
func CleanList(list []string) []string {
	var out []string
	for _, part := range list {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func allergens(s string) []string {
	return CleanAllergens(splitList(s))
}

// CleanAllergens lowercases allergen names, strips locale prefixes such as
// "en:" and drops blanks and duplicates, keeping first-seen order.
func CleanAllergens(list []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, a := range list {
		a = strings.ToLower(strings.TrimSpace(a))
		a = strings.TrimSpace(localePrefix.ReplaceAllString(a, ""))
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
