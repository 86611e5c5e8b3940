package nutrition

import (
	"errors"
	"testing"
)

func macros(kcal, p, c, f float64) Record {
	return Record{Name: "x", Calories: Float(kcal), ProteinG: Float(p), CarbsG: Float(c), FatG: Float(f)}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		r         Record
		wantCodes []string
	}{
		{"nutella within tolerance", macros(539, 6.3, 57.5, 30.9), nil},
		{"cola", macros(42, 0, 10.6, 0), nil},
		{"greek yogurt", macros(97, 10, 4, 5), nil},
		{"pure fat", macros(884, 0, 0, 100), nil},
		{"macro sum over 110", macros(42, 50, 50, 50), []string{ViolationMacroSum, ViolationEnergyMismatch}},
		{"zero calories", macros(0, 0, 0, 0), []string{ViolationCaloriesNotPositive}},
		{"negative calories", macros(-10, 1, 1, 1), []string{ViolationCaloriesNotPositive}},
		{"negative fat", macros(100, 10, 20, -1), []string{ViolationNegativeMacro}},
		{"energy mismatch", macros(500, 10, 10, 1), []string{ViolationEnergyMismatch}},
		{"missing calories", Record{Name: "x", ProteinG: Float(1), CarbsG: Float(1), FatG: Float(1)}, []string{ViolationCaloriesNotPositive}},
		{"missing macros skip sum rules", Record{Name: "x", Calories: Float(100), ProteinG: Float(200)}, []string{ViolationMissingMacro, ViolationMissingMacro}},
		{"missing fat", Record{Name: "x", Calories: Float(400), ProteinG: Float(10), CarbsG: Float(60)}, []string{ViolationMissingMacro}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.r)
			if len(tc.wantCodes) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v; want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v; want *ValidationError", err)
			}
			if len(verr.Violations) != len(tc.wantCodes) {
				t.Errorf("violations = %+v; want codes %v", verr.Violations, tc.wantCodes)
			}
			for _, code := range tc.wantCodes {
				if !verr.Has(code) {
					t.Errorf("missing violation %q in %+v", code, verr.Violations)
				}
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	bad := macros(42, 50, 50, 50)
	bad.DataQuality = QualityComplete // stale stored tier must be recomputed

	got := Finalize(bad)
	if !got.Unverified || got.Validation == nil {
		t.Fatalf("Finalize did not flag invalid record: %+v", got)
	}
	if got.DataQuality != Assess(bad) {
		t.Errorf("DataQuality = %q; want recomputed %q", got.DataQuality, Assess(bad))
	}

	good := Finalize(macros(539, 6.3, 57.5, 30.9))
	if good.Unverified || good.Validation != nil || good.Missing != nil {
		t.Errorf("Finalize flagged valid record: %+v %v", good.Validation, good.Missing)
	}

	noFat := full()
	noFat.FatG = nil
	got = Finalize(noFat)
	if !got.Unverified || got.Validation == nil || !got.Validation.Has(ViolationMissingMacro) {
		t.Errorf("record without fat not flagged: unverified=%v validation=%v", got.Unverified, got.Validation)
	}
	if len(got.Missing) != 1 || got.Missing[0] != "fat_g" {
		t.Errorf("Missing = %v; want [fat_g]", got.Missing)
	}
	if got.DataQuality != QualityMinimal {
		t.Errorf("DataQuality = %q; want minimal", got.DataQuality)
	}

	// A fixed record loses the stale flag on the next read.
	got.FatG = Float(30.9)
	if again := Finalize(got); again.Missing != nil {
		t.Errorf("Missing after refill = %v", again.Missing)
	}
}
