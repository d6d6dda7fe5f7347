package neurogenesis

import (
	"errors"
	"fmt"

	"neuroplex/internal/model"
)

var (
	ErrTriggerExists  = errors.New("trigger already registered")
	ErrInvalidTrigger = errors.New("invalid trigger")
)

// Trigger maps a named input signal to the kind of neuron it grows.
type Trigger struct {
	// Signal is the key looked up in the signal map passed to Check.
	Signal string
	// ThresholdKey names the neurogenesis option the signal must exceed.
	ThresholdKey string
	Type         model.NeuronType
	// Prefix starts generated ids, e.g. novel_0.
	Prefix string
	// Related neurons are wired with twice the base connection strength.
	Related []string
}

func defaultTriggers() []Trigger {
	return []Trigger{
		{
			Signal:       "novelty_exposure",
			ThresholdKey: "novelty_threshold",
			Type:         model.TypeNovelty,
			Prefix:       "novel",
			Related:      []string{"curiosity"},
		},
		{
			Signal:       "sustained_stress",
			ThresholdKey: "stress_threshold",
			Type:         model.TypeStress,
			Prefix:       "stress",
			Related:      []string{"anxiety"},
		},
		{
			Signal:       "recent_rewards",
			ThresholdKey: "reward_threshold",
			Type:         model.TypeReward,
			Prefix:       "reward",
			Related:      []string{"satisfaction", "happiness"},
		},
	}
}

func (t Trigger) validate() error {
	if t.Signal == "" {
		return fmt.Errorf("%w: signal is required", ErrInvalidTrigger)
	}
	if t.ThresholdKey == "" {
		return fmt.Errorf("%w: %s: threshold key is required", ErrInvalidTrigger, t.Signal)
	}
	return nil
}

func (t Trigger) prefix() string {
	if t.Prefix == "" {
		return "new"
	}
	return t.Prefix
}

func (t Trigger) related(id string) bool {
	for _, r := range t.Related {
		if r == id {
			return true
		}
	}
	return false
}
