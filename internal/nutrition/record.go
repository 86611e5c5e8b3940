// Package nutrition defines the canonical food record and the pure policy
// functions applied to it: normalization of raw provider data, data-quality
// assessment and physical sanity validation.
package nutrition

import (
	"errors"
	"time"
)

// Source identifies where a resolved record came from.
type Source string

const (
	SourceOverride      Source = "override"
	SourceBulkReference Source = "bulk_reference"
)

// Quality is the completeness tier of a record.
type Quality string

const (
	QualityComplete Quality = "complete"
	QualityPartial  Quality = "partial"
	QualityMinimal  Quality = "minimal"
)

// ErrMalformedRecord is returned by Normalize when a raw record has no usable
// name. Batch callers skip such records; single lookups treat them as absent.
var ErrMalformedRecord = errors.New("malformed record")

// Record is the canonical nutrition record. Nutrient values are per 100 g
// (or 100 ml) and are nil when the source did not provide them, so that
// "missing" never reads as "measured zero".
type Record struct {
	Barcode string `json:"barcode,omitempty"`
	Name    string `json:"name"`
	Brand   string `json:"brand,omitempty"`

	Calories      *float64 `json:"calories"`
	ProteinG      *float64 `json:"protein_g"`
	CarbsG        *float64 `json:"carbs_g"`
	FatG          *float64 `json:"fat_g"`
	FiberG        *float64 `json:"fiber_g,omitempty"`
	SugarG        *float64 `json:"sugar_g,omitempty"`
	SodiumG       *float64 `json:"sodium_g,omitempty"`
	SaturatedFatG *float64 `json:"saturated_fat_g,omitempty"`

	Categories      []string `json:"categories,omitempty"`
	IngredientsText string   `json:"ingredients_text,omitempty"`
	Allergens       []string `json:"allergens,omitempty"`
	ServingSize     string   `json:"serving_size,omitempty"`

	NutriscoreGrade string `json:"nutriscore_grade,omitempty"`
	NovaGroup       int    `json:"nova_group,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`

	DataQuality Quality `json:"data_quality"`
	Source      Source  `json:"source"`
	// OverrideID names the override a record was served from, so clients
	// can edit or delete the correction.
	OverrideID string `json:"override_id,omitempty"`

	// Validation is set by the resolution engine when Validate rejects the
	// record. The record is still served, flagged as unverified.
	Validation *ValidationError `json:"validation_warning,omitempty"`
	Unverified bool             `json:"unverified"`
	// Missing lists the absent required macros, as of the last Finalize.
	Missing []string `json:"missing_required,omitempty"`
}

// MissingRequired lists the required macro fields that are absent.
func (r Record) MissingRequired() []string {
	var missing []string
	if r.Calories == nil {
		missing = append(missing, "calories")
	}
	if r.ProteinG == nil {
		missing = append(missing, "protein_g")
	}
	if r.CarbsG == nil {
		missing = append(missing, "carbs_g")
	}
	if r.FatG == nil {
		missing = append(missing, "fat_g")
	}
	return missing
}

// Override is a user-authored or user-corrected record. It never expires.
type Override struct {
	Record
	ID                 string    `json:"id"`
	CreatedBy          string    `json:"created_by,omitempty"`
	OverridesReference bool      `json:"overrides_reference"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Float returns a pointer to v, for building records by hand.
func Float(v float64) *float64 {
	return &v
}
