package nn

import (
	"errors"
	"math"
	"testing"
)

func TestRegisterAndLookupActivation(t *testing.T) {
	t.Cleanup(loadBuiltinActivations)

	err := RegisterActivation(Activation{
		Name:  "quad",
		Apply: func(x float64) float64 { return x * x },
		Slope: func(x float64) float64 { return 2 * x },
	})
	if err != nil {
		t.Fatalf("register activation: %v", err)
	}
	a, err := LookupActivation("quad")
	if err != nil {
		t.Fatalf("lookup activation: %v", err)
	}
	if got := a.Apply(3); got != 9 {
		t.Fatalf("unexpected activation result: got=%f want=9", got)
	}
	if got := a.Slope(3); got != 6 {
		t.Fatalf("unexpected slope: got=%f want=6", got)
	}
}

func TestRegisterActivationValidation(t *testing.T) {
	t.Cleanup(loadBuiltinActivations)

	if err := RegisterActivation(Activation{Apply: func(x float64) float64 { return x }}); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := RegisterActivation(Activation{Name: "nil"}); err == nil {
		t.Fatal("expected nil function error")
	}
	if err := RegisterActivation(Activation{Name: "sigmoid", Apply: sigmoid}); !errors.Is(err, ErrActivationExists) {
		t.Fatalf("expected ErrActivationExists, got: %v", err)
	}
}

func TestLookupActivationNotFound(t *testing.T) {
	if _, err := LookupActivation("missing"); !errors.Is(err, ErrActivationNotFound) {
		t.Fatalf("expected ErrActivationNotFound, got: %v", err)
	}
}

func TestListActivationsSorted(t *testing.T) {
	t.Cleanup(loadBuiltinActivations)

	for _, name := range []string{"b", "a"} {
		if err := RegisterActivation(Activation{Name: name, Apply: func(x float64) float64 { return x }}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	names := ListActivations()
	want := []string{"a", "b", "identity", "relu", "sigmoid", "step", "tanh"}
	if len(names) != len(want) {
		t.Fatalf("expected built-ins plus custom activations, got: %+v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected activation list: %+v", names)
		}
	}
}

func TestBuiltinActivations(t *testing.T) {
	tests := []struct {
		act       string
		x         float64
		want      float64
		wantSlope float64
	}{
		{act: "identity", x: 2.5, want: 2.5, wantSlope: 1},
		{act: "relu", x: -1, want: 0, wantSlope: 0},
		{act: "relu", x: 3, want: 3, wantSlope: 1},
		{act: "tanh", x: 0, want: 0, wantSlope: 1},
		{act: "sigmoid", x: 0, want: 0.5, wantSlope: 0.25},
		{act: "sigmoid", x: -1000, want: 0, wantSlope: 0},
	}
	for _, tc := range tests {
		a, err := LookupActivation(tc.act)
		if err != nil {
			t.Fatalf("lookup %s: %v", tc.act, err)
		}
		if got := a.Apply(tc.x); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s(%f)=%f want=%f", tc.act, tc.x, got, tc.want)
		}
		if got := a.Slope(tc.x); math.Abs(got-tc.wantSlope) > 1e-9 {
			t.Fatalf("%s'(%f)=%f want=%f", tc.act, tc.x, got, tc.wantSlope)
		}
	}
}

func TestStepIsNotDifferentiable(t *testing.T) {
	a, err := LookupActivation("step")
	if err != nil {
		t.Fatalf("lookup step: %v", err)
	}
	if a.Differentiable() {
		t.Fatal("step must not expose a slope")
	}
	if a.Apply(0) != 0 || a.Apply(0.01) != 1 {
		t.Fatalf("unexpected step values: %f %f", a.Apply(0), a.Apply(0.01))
	}
}
