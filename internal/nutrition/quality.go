package nutrition

import "strings"

// Point weights for Assess. Required macros carry most of the score; every
// optional field is worth one point so adding one can only raise the tier.
const (
	caloriesPoints = 3
	macroPoints    = 2
	optionalPoints = 1

	completeThreshold = 12
	partialThreshold  = 7
)

// Score returns the completeness score of r.
func Score(r Record) int {
	score := 0
	if positive(r.Calories) {
		score += caloriesPoints
	}
	for _, v := range []*float64{r.ProteinG, r.CarbsG, r.FatG} {
		if positive(v) {
			score += macroPoints
		}
	}
	for _, v := range []*float64{r.FiberG, r.SodiumG, r.SugarG, r.SaturatedFatG} {
		if v != nil {
			score += optionalPoints
		}
	}
	for _, s := range []string{r.Brand, r.IngredientsText, r.ServingSize} {
		if strings.TrimSpace(s) != "" {
			score += optionalPoints
		}
	}
	return score
}

// Assess maps the completeness score of r onto a quality tier. A record
// missing any required macro is minimal whatever else it carries.
func Assess(r Record) Quality {
	if len(r.MissingRequired()) > 0 {
		return QualityMinimal
	}
	switch s := Score(r); {
	case s >= completeThreshold:
		return QualityComplete
	case s >= partialThreshold:
		return QualityPartial
	default:
		return QualityMinimal
	}
}

// Rank orders tiers: minimal < partial < complete.
func (q Quality) Rank() int {
	switch q {
	case QualityComplete:
		return 2
	case QualityPartial:
		return 1
	default:
		return 0
	}
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}
