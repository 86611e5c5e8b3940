package nutrition

import "testing"

func TestAssess_Tiers(t *testing.T) {
	tests := []struct {
		name string
		r    Record
		want Quality
	}{
		{
			name: "empty",
			r:    Record{Name: "x"},
			want: QualityMinimal,
		},
		{
			name: "macros only",
			r:    Record{Name: "x", Calories: Float(100), ProteinG: Float(1), CarbsG: Float(1), FatG: Float(1)},
			want: QualityPartial, // 3+2+2+2 = 9
		},
		{
			name: "measured zero macros do not score",
			r:    Record{Name: "x", Calories: Float(42), ProteinG: Float(0), CarbsG: Float(10.6), FatG: Float(0)},
			want: QualityMinimal, // 3+2 = 5
		},
		{
			name: "macros and three optionals",
			r: Record{
				Name: "x", Calories: Float(100), ProteinG: Float(1), CarbsG: Float(1), FatG: Float(1),
				FiberG: Float(0), Brand: "Acme", ServingSize: "30 g",
			},
			want: QualityComplete, // 9+3 = 12
		},
	}
	for _, field := range []string{"calories", "protein_g", "carbs_g", "fat_g"} {
		r := full()
		switch field {
		case "calories":
			r.Calories = nil
		case "protein_g":
			r.ProteinG = nil
		case "carbs_g":
			r.CarbsG = nil
		case "fat_g":
			r.FatG = nil
		}
		tests = append(tests, struct {
			name string
			r    Record
			want Quality
		}{"every optional but no " + field, r, QualityMinimal})
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Assess(tc.r); got != tc.want {
				t.Errorf("Assess() = %q (score %d); want %q", got, Score(tc.r), tc.want)
			}
		})
	}
}

// full returns a record with every scored field set.
func full() Record {
	r := Record{Name: "x", Calories: Float(400), ProteinG: Float(10), CarbsG: Float(60), FatG: Float(12)}
	for _, set := range optionalSetters {
		set(&r)
	}
	return r
}

// optionalSetters add one optional field each.
var optionalSetters = []func(*Record){
	func(r *Record) { r.FiberG = Float(2) },
	func(r *Record) { r.SodiumG = Float(0.1) },
	func(r *Record) { r.SugarG = Float(5) },
	func(r *Record) { r.SaturatedFatG = Float(1) },
	func(r *Record) { r.Brand = "Acme" },
	func(r *Record) { r.IngredientsText = "oats" },
	func(r *Record) { r.ServingSize = "40 g" },
}

// TestAssess_Monotonic checks every subset of optional fields against every
// subset plus one more field: the tier never goes down.
func TestAssess_Monotonic(t *testing.T) {
	bases := []Record{
		{Name: "none"},
		{Name: "kcal", Calories: Float(100)},
		{Name: "partial macros", Calories: Float(100), ProteinG: Float(3)},
		{Name: "all macros", Calories: Float(100), ProteinG: Float(3), CarbsG: Float(10), FatG: Float(2)},
	}
	n := len(optionalSetters)
	for _, base := range bases {
		for mask := 0; mask < 1<<n; mask++ {
			r := base
			for i := 0; i < n; i++ {
				if mask&(1<<i) != 0 {
					optionalSetters[i](&r)
				}
			}
			before := Assess(r)
			for i := 0; i < n; i++ {
				if mask&(1<<i) != 0 {
					continue
				}
				grown := r
				optionalSetters[i](&grown)
				after := Assess(grown)
				if after.Rank() < before.Rank() {
					t.Fatalf("%s mask=%b +field %d: tier %q -> %q", base.Name, mask, i, before, after)
				}
				if before == QualityPartial && after == QualityMinimal {
					t.Fatalf("%s mask=%b: partial dropped to minimal", base.Name, mask)
				}
			}
		}
	}
}

func TestQualityRank(t *testing.T) {
	if !(QualityComplete.Rank() > QualityPartial.Rank() && QualityPartial.Rank() > QualityMinimal.Rank()) {
		t.Error("expected complete > partial > minimal")
	}
}
