package nn

import (
	"fmt"
	"math"

	"neuroplex/internal/model"
)

// Unit maps a state on the canonical activation scale to [0, 1].
func Unit(state float64) float64 {
	return state / model.Scale
}

// Rescale maps a unit value back to the canonical activation scale.
func Rescale(unit float64) float64 {
	return unit * model.Scale
}

// Sat clamps value to [min, max].
func Sat(value, max, min float64) float64 {
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}

// Avg returns the arithmetic mean of values.
func Avg(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values)), nil
}

// Std returns population standard deviation.
func Std(values []float64) (float64, error) {
	mean, err := Avg(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, value := range values {
		diff := mean - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values))), nil
}
