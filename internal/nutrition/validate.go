package nutrition

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// maxMacroMassG is the 100 g basis plus 10% slack for measurement noise.
	maxMacroMassG = 110
	// energyTolerance absorbs fiber and alcohol energy not tracked separately.
	energyTolerance = 0.2

	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9
)

// Violation codes reported in ValidationError.Violations.
const (
	ViolationCaloriesNotPositive = "calories_not_positive"
	ViolationNegativeMacro       = "negative_macro"
	ViolationMacroSum            = "macro_sum_exceeds_mass"
	ViolationEnergyMismatch      = "energy_mismatch"
	ViolationMissingMacro        = "missing_macro"
)

// Violation is a single failed sanity rule.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError lists every rule a record failed. It is a warning: the
// record is still returned to callers, flagged as unverified.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Has reports whether the error carries the given violation code.
func (e *ValidationError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Validate checks r for physically impossible values. It returns nil or a
// *ValidationError; values are never clamped.
//
// An absent protein, carbs or fat value is reported as missing_macro. The
// macro-sum and energy rules need all three, so they are skipped then.
func Validate(r Record) error {
	var vs []Violation
	add := func(code, format string, args ...any) {
		vs = append(vs, Violation{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if r.Calories == nil || *r.Calories <= 0 {
		add(ViolationCaloriesNotPositive, "calories must be positive")
	}

	macros := []struct {
		name string
		v    *float64
	}{
		{"protein_g", r.ProteinG},
		{"carbs_g", r.CarbsG},
		{"fat_g", r.FatG},
	}
	allPresent := true
	for _, m := range macros {
		if m.v == nil {
			allPresent = false
			add(ViolationMissingMacro, "%s is missing", m.name)
			continue
		}
		if *m.v < 0 {
			add(ViolationNegativeMacro, "%s is negative (%.1f)", m.name, *m.v)
		}
	}

	if allPresent {
		p, c, f := *r.ProteinG, *r.CarbsG, *r.FatG
		if sum := p + c + f; sum > maxMacroMassG {
			add(ViolationMacroSum, "protein+carbs+fat is %.1f g per 100 g (max %d)", sum, maxMacroMassG)
		}
		if r.Calories != nil && *r.Calories > 0 {
			kcal := *r.Calories
			derived := p*kcalPerGramProtein + c*kcalPerGramCarbs + f*kcalPerGramFat
			if math.Abs(kcal-derived) > energyTolerance*kcal {
				add(ViolationEnergyMismatch, "calories %.1f inconsistent with macros (%.1f kcal)", kcal, derived)
			}
		}
	}

	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

// Finalize recomputes the derived fields of r: the quality tier, the missing
// required macros and the validation warning. Stored records pass through it
// on every read so the tier always reflects the current fields.
func Finalize(r Record) Record {
	r.DataQuality = Assess(r)
	r.Missing = r.MissingRequired()
	r.Validation = nil
	r.Unverified = false
	var verr *ValidationError
	if errors.As(Validate(r), &verr) {
		r.Validation = verr
		r.Unverified = true
	}
	return r
}
