package nn

import (
	"math"
	"testing"
)

func TestScaleHelpers(t *testing.T) {
	if got := Unit(50); got != 0.5 {
		t.Fatalf("unexpected unit value: %f", got)
	}
	if got := Rescale(0.25); got != 25 {
		t.Fatalf("unexpected rescaled value: %f", got)
	}
	if got := Sat(5, 3, -3); got != 3 {
		t.Fatalf("expected sat max clamp, got=%f", got)
	}
	if got := Sat(-5, 3, -3); got != -3 {
		t.Fatalf("expected sat min clamp, got=%f", got)
	}
}

func TestAvgAndStd(t *testing.T) {
	avg, err := Avg([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("avg failed: %v", err)
	}
	if math.Abs(avg-2) > 1e-12 {
		t.Fatalf("unexpected avg: %f", avg)
	}
	std, err := Std([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("std failed: %v", err)
	}
	if math.Abs(std-math.Sqrt(2.0/3.0)) > 1e-12 {
		t.Fatalf("unexpected std: %f", std)
	}
	if _, err := Avg(nil); err == nil {
		t.Fatal("expected avg empty error")
	}
}
