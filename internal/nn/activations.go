package nn

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
)

var (
	ErrActivationExists   = errors.New("activation already registered")
	ErrActivationNotFound = errors.New("activation not found")
	ErrNotDifferentiable  = errors.New("activation has no derivative")
)

// Activation squashes a neuron's net drive, expressed on the unit scale.
// Slope is the derivative at the same pre-activation; propagation only needs
// Apply, backprop refuses activations without a Slope.
type Activation struct {
	Name  string
	Apply func(x float64) float64
	Slope func(x float64) float64
}

func (a Activation) Differentiable() bool { return a.Slope != nil }

var activations = struct {
	mu     sync.RWMutex
	byName map[string]Activation
}{}

var builtinActivations = []Activation{
	{
		Name:  "identity",
		Apply: func(x float64) float64 { return x },
		Slope: func(float64) float64 { return 1 },
	},
	{
		Name:  "relu",
		Apply: func(x float64) float64 { return math.Max(0, x) },
		Slope: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
	{
		Name:  "tanh",
		Apply: math.Tanh,
		Slope: func(x float64) float64 {
			y := math.Tanh(x)
			return 1 - y*y
		},
	},
	{
		Name:  "sigmoid",
		Apply: sigmoid,
		Slope: func(x float64) float64 {
			s := sigmoid(x)
			return s * (1 - s)
		},
	},
	{
		// all-or-nothing firing; usable for propagation only
		Name: "step",
		Apply: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
}

func init() {
	loadBuiltinActivations()
}

func loadBuiltinActivations() {
	activations.mu.Lock()
	defer activations.mu.Unlock()
	activations.byName = make(map[string]Activation, len(builtinActivations))
	for _, a := range builtinActivations {
		activations.byName[a.Name] = a
	}
}

// sigmoid saturates instead of overflowing for large negative inputs.
func sigmoid(x float64) float64 {
	if x < -700 {
		return 0
	}
	return 1.0 / (1.0 + math.Exp(-x))
}

// RegisterActivation makes a custom squashing function available to the
// propagation.activation and backprop.activation config keys.
func RegisterActivation(a Activation) error {
	if a.Name == "" {
		return errors.New("activation name is required")
	}
	if a.Apply == nil {
		return fmt.Errorf("activation %s: apply function is required", a.Name)
	}

	activations.mu.Lock()
	defer activations.mu.Unlock()
	if _, exists := activations.byName[a.Name]; exists {
		return fmt.Errorf("%w: %s", ErrActivationExists, a.Name)
	}
	activations.byName[a.Name] = a
	return nil
}

func LookupActivation(name string) (Activation, error) {
	activations.mu.RLock()
	a, ok := activations.byName[name]
	activations.mu.RUnlock()
	if !ok {
		return Activation{}, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
	}
	return a, nil
}

func ListActivations() []string {
	activations.mu.RLock()
	defer activations.mu.RUnlock()
	return slices.Sorted(maps.Keys(activations.byName))
}
