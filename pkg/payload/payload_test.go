package payload

import (
	"math"
	"testing"
)

func TestSaturateFinite(t *testing.T) {
	if got := Saturate(-1.5); got != -1.5 {
		t.Errorf("Saturate(-1.5) = %v, want -1.5", got)
	}
}

func TestSaturateNegInfStaysNegInf(t *testing.T) {
	got := Saturate(math.Inf(-1))
	if !math.IsInf(got, -1) {
		t.Errorf("Saturate(-Inf) = %v, want -Inf", got)
	}
}

func TestSaturateNaNBecomesNegInf(t *testing.T) {
	got := Saturate(math.NaN())
	if !math.IsInf(got, -1) {
		t.Errorf("Saturate(NaN) = %v, want -Inf (never propagate NaN)", got)
	}
}

// Two -Inf payloads summed in log space must stay -Inf, not become NaN
// (spec.md §9 open question on -99/-inf sentinel handling).
func TestNegInfSumNeverNaN(t *testing.T) {
	a := Saturate(math.Inf(-1))
	b := Saturate(math.Inf(-1))
	sum := a + b
	if math.IsNaN(sum) {
		t.Fatal("summing two saturated -Inf values produced NaN")
	}
	if !math.IsInf(sum, -1) {
		t.Errorf("sum = %v, want -Inf", sum)
	}
}
