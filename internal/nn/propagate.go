package nn

import (
	"fmt"

	"neuroplex/internal/config"
	"neuroplex/internal/graph"
	"neuroplex/internal/model"
)

type propagationSettings struct {
	activation    func(float64) float64
	clamp         bool
	clampMin      float64
	clampMax      float64
	retention     float64
	normalize     bool
	historyLength int
	group         config.Group
}

// Propagator computes neuron activations from weighted incoming connections.
type Propagator struct {
	graph  *graph.Graph
	config *config.Config
}

func NewPropagator(g *graph.Graph, cfg *config.Config) *Propagator {
	return &Propagator{graph: g, config: cfg}
}

// HistoryLength is the activation history bound applied to every state write.
func (p *Propagator) HistoryLength() (int, error) {
	return p.config.Group(config.GroupPropagation).IntOr("history_length", 10)
}

// Propagate runs one synchronous pass in neuron insertion order. Every drive is
// computed from the states as they were before the pass, so the result is a pure
// function of state and graph. Neurons without incoming connections keep their state.
func (p *Propagator) Propagate() error {
	s, err := p.settings()
	if err != nil {
		return err
	}

	before := p.graph.States()
	ids := p.graph.Neurons.IDs()
	next := make(map[string]float64, len(ids))
	for _, id := range ids {
		incoming := p.graph.Connections.Incoming(id)
		if len(incoming) == 0 {
			continue
		}
		neuron, err := p.graph.Neurons.Get(id)
		if err != nil {
			return err
		}

		total := 0.0
		for _, c := range incoming {
			total += c.Weight * Unit(before[c.Source])
		}
		if s.normalize {
			total /= float64(len(incoming))
		}
		gain, err := s.gain(neuron.Type.Kind)
		if err != nil {
			return err
		}
		drive := (neuron.Bias + total) * gain

		value := Rescale(s.activation(drive))
		if s.retention != 0 {
			value = s.retention*before[id] + (1-s.retention)*value
		}
		if s.clamp {
			value = Sat(value, s.clampMax, s.clampMin)
		}
		next[id] = value
	}

	for _, id := range ids {
		value, ok := next[id]
		if !ok {
			continue
		}
		if err := p.graph.SetState(id, value, s.historyLength); err != nil {
			return err
		}
	}
	return nil
}

func (p *Propagator) settings() (propagationSettings, error) {
	group := p.config.Group(config.GroupPropagation)
	r := group.Reader()
	name := r.String("activation", "identity")
	s := propagationSettings{
		clamp:         r.Bool("clamp", true),
		clampMin:      r.Float("clamp_min", 0),
		clampMax:      r.Float("clamp_max", model.Scale),
		retention:     r.Float("retention", 0),
		normalize:     r.Bool("normalize", false),
		historyLength: r.Int("history_length", 10),
		group:         group,
	}
	if err := r.Err(); err != nil {
		return propagationSettings{}, err
	}
	act, err := LookupActivation(name)
	if err != nil {
		return propagationSettings{}, fmt.Errorf("%w: propagation.activation: %v", model.ErrConfiguration, err)
	}
	s.activation = act.Apply
	if s.clampMin > s.clampMax {
		return propagationSettings{}, &model.ConfigError{Group: group.Name(), Key: "clamp_min", Cause: "exceeds clamp_max"}
	}
	return s, nil
}

// gain is the per-kind drive multiplier, e.g. propagation.gain_novelty.
func (s propagationSettings) gain(kind model.NeuronKind) (float64, error) {
	return s.group.FloatOr("gain_"+kind.String(), 1)
}
