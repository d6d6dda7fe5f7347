package neurogenesis

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"neuroplex/internal/config"
	"neuroplex/internal/graph"
	"neuroplex/internal/model"
)

const (
	SchemeSequential = "sequential"
	SchemeUUID       = "uuid"

	uuidAttempts = 8
)

// Stats summarizes controller activity since construction.
type Stats struct {
	Calls            int                `json:"calls"`
	LastCreationCall int                `json:"last_creation_call"`
	Counters         map[string]float64 `json:"counters"`
	Created          []string           `json:"created"`
}

// Controller grows new neurons when input signals cross their thresholds.
type Controller struct {
	graph  *graph.Graph
	config *config.Config
	rng    *rand.Rand
	logger *slog.Logger

	triggers     []Trigger
	counters     map[string]float64
	excluded     map[string]struct{}
	calls        int
	lastCreation int
	sequence     int
	created      []string
}

func NewController(g *graph.Graph, cfg *config.Config, rng *rand.Rand, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Controller{
		graph:        g,
		config:       cfg,
		rng:          rng,
		logger:       logger.With(slog.String("component", "neurogenesis")),
		triggers:     defaultTriggers(),
		counters:     make(map[string]float64),
		excluded:     make(map[string]struct{}),
		lastCreation: -1,
	}
}

// RegisterTrigger adds a signal after the built-in ones.
func (c *Controller) RegisterTrigger(t Trigger) error {
	if err := t.validate(); err != nil {
		return err
	}
	for _, existing := range c.triggers {
		if existing.Signal == t.Signal {
			return fmt.Errorf("%w: %s", ErrTriggerExists, t.Signal)
		}
	}
	t.Related = append([]string(nil), t.Related...)
	c.triggers = append(c.triggers, t)
	return nil
}

func (c *Controller) Triggers() []Trigger {
	return append([]Trigger(nil), c.triggers...)
}

// Exclude keeps ids out of the wiring of future neurons.
func (c *Controller) Exclude(ids ...string) {
	for _, id := range ids {
		c.excluded[id] = struct{}{}
	}
}

type plannedNeuron struct {
	id      string
	trigger Trigger
}

type plannedEdge struct {
	target string
	weight float64
}

// settings is every neurogenesis option Check reads, resolved up front so a
// bad value fails the call before anything changes.
type settings struct {
	accumulate bool
	decay      float64
	perTrigger int
	limit      int
	maxTotal   int
	initial    float64
	cooldown   int
	scheme     string
	budget     int
	fanout     int
	strength   float64
}

func readSettings(group config.Group) (settings, error) {
	r := group.Reader()
	s := settings{
		accumulate: r.Bool("accumulate", false),
		decay:      r.Float("decay_rate", 0.95),
		perTrigger: r.Int("neurons_per_trigger", 1),
		limit:      r.Int("max_new_per_call", 3),
		maxTotal:   r.Int("max_total_neurons", 0),
		initial:    r.Float("initial_state", 50),
		cooldown:   r.Int("cooldown_calls", 0),
		scheme:     r.String("id_scheme", SchemeSequential),
		budget:     r.Int("max_generated_ids", 1000000),
		fanout:     r.Int("wiring_fanout", 3),
		strength:   r.Float("new_neuron_connection_strength", 0.3),
	}
	if err := r.Err(); err != nil {
		return settings{}, err
	}
	for key, v := range map[string]float64{
		"decay_rate":                     s.decay,
		"initial_state":                  s.initial,
		"new_neuron_connection_strength": s.strength,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return settings{}, &model.ConfigError{Group: group.Name(), Key: key, Cause: fmt.Sprintf("must be finite, got %v", v)}
		}
	}
	if s.scheme != SchemeSequential && s.scheme != SchemeUUID {
		return settings{}, &model.ConfigError{Group: group.Name(), Key: "id_scheme", Cause: fmt.Sprintf("unknown scheme %q", s.scheme)}
	}
	return s, nil
}

// Check evaluates signals and creates neurons for every trigger whose value
// strictly exceeds its threshold. The number created per call is capped by
// max_new_per_call. It returns the new ids in creation order, or none when
// nothing fired or the cooldown is still running. A failed call changes
// neither the graph nor the controller's counters.
func (c *Controller) Check(signals map[string]float64) ([]string, error) {
	group := c.config.Group(config.GroupNeurogenesis)
	s, err := readSettings(group)
	if err != nil {
		return nil, err
	}

	calls := c.calls + 1
	counters := make(map[string]float64, len(c.counters))
	for k, v := range c.counters {
		counters[k] = v
	}
	if s.accumulate {
		for _, t := range c.triggers {
			counters[t.Signal] = counters[t.Signal]*s.decay + signals[t.Signal]
		}
	}

	var fired []Trigger
	for _, t := range c.triggers {
		value, present := signals[t.Signal]
		if s.accumulate {
			value = counters[t.Signal]
			present = present || value != 0
		}
		if !present {
			continue
		}
		threshold, err := group.Float(t.ThresholdKey)
		if err != nil {
			return nil, err
		}
		if value > threshold {
			fired = append(fired, t)
		}
	}

	var kinds []Trigger
	if len(fired) > 0 && !c.coolingDown(calls, s.cooldown) {
		for _, t := range fired {
			for i := 0; i < s.perTrigger && len(kinds) < s.limit; i++ {
				kinds = append(kinds, t)
			}
		}
	}
	if len(kinds) == 0 {
		c.calls, c.counters = calls, counters
		return nil, nil
	}

	if s.maxTotal > 0 && c.graph.Neurons.Len()+len(kinds) > s.maxTotal {
		return nil, fmt.Errorf("%w: %d neurons plus %d new exceeds max_total_neurons %d",
			model.ErrResourceExhausted, c.graph.Neurons.Len(), len(kinds), s.maxTotal)
	}
	plan, sequence, err := c.allocate(s, kinds)
	if err != nil {
		return nil, err
	}
	wiring := c.planWiring(s, plan)

	ids := make([]string, 0, len(plan))
	for i, p := range plan {
		if err := c.graph.AddNeuron(model.Neuron{ID: p.id, Type: p.trigger.Type, State: s.initial}); err != nil {
			return ids, err
		}
		for _, e := range wiring[i] {
			if err := c.graph.ConnectBidirectional(p.id, e.target, e.weight); err != nil {
				return ids, err
			}
		}
		ids = append(ids, p.id)
	}

	for _, t := range fired {
		counters[t.Signal] = 0
	}
	c.calls, c.counters = calls, counters
	c.sequence = sequence
	c.lastCreation = calls
	c.created = append(c.created, ids...)
	c.logger.Info("neurons created",
		slog.Int("count", len(ids)),
		slog.Any("ids", ids),
		slog.Int("triggers", len(fired)),
	)
	return ids, nil
}

// Stats returns a copy of the counters and every id created so far.
func (c *Controller) Stats() Stats {
	counters := make(map[string]float64, len(c.counters))
	for k, v := range c.counters {
		counters[k] = v
	}
	return Stats{
		Calls:            c.calls,
		LastCreationCall: c.lastCreation,
		Counters:         counters,
		Created:          append([]string(nil), c.created...),
	}
}

// Reset clears the accumulated signal counters.
func (c *Controller) Reset() {
	c.counters = make(map[string]float64)
}

func (c *Controller) coolingDown(calls, cooldown int) bool {
	if c.lastCreation < 0 {
		return false
	}
	return calls-c.lastCreation <= cooldown
}

// allocate reserves an id per planned neuron before anything is mutated.
func (c *Controller) allocate(s settings, kinds []Trigger) ([]plannedNeuron, int, error) {
	sequence := c.sequence
	taken := make(map[string]struct{}, len(kinds))
	free := func(id string) bool {
		if c.graph.Neurons.Used(id) {
			return false
		}
		_, ok := taken[id]
		return !ok
	}

	plan := make([]plannedNeuron, 0, len(kinds))
	for _, t := range kinds {
		var id string
		switch s.scheme {
		case SchemeUUID:
			for attempt := 0; attempt < uuidAttempts && id == ""; attempt++ {
				u, err := uuid.NewRandomFromReader(c.rng)
				if err != nil {
					return nil, 0, fmt.Errorf("generate id: %w", err)
				}
				if candidate := t.prefix() + "_" + u.String(); free(candidate) {
					id = candidate
				}
			}
			if id == "" {
				return nil, 0, fmt.Errorf("%w: no unique uuid after %d attempts", model.ErrResourceExhausted, uuidAttempts)
			}
		default:
			for id == "" {
				if sequence >= s.budget {
					return nil, 0, fmt.Errorf("%w: sequential id space of %d exhausted", model.ErrResourceExhausted, s.budget)
				}
				candidate := fmt.Sprintf("%s_%d", t.prefix(), sequence)
				sequence++
				if free(candidate) {
					id = candidate
				}
			}
		}
		taken[id] = struct{}{}
		plan = append(plan, plannedNeuron{id: id, trigger: t})
	}
	return plan, sequence, nil
}

// planWiring picks, for each planned neuron in order, the wiring_fanout most
// active neurons (ties broken by insertion order) followed by any related
// neurons not already chosen, and draws the connection weights. Earlier
// neurons of the same plan count as existing ones at initial_state.
func (c *Controller) planWiring(s settings, plan []plannedNeuron) [][]plannedEdge {
	ids := c.graph.Neurons.IDs()
	states := c.graph.States()
	known := make(map[string]struct{}, len(ids)+len(plan))
	for _, id := range ids {
		known[id] = struct{}{}
	}

	wiring := make([][]plannedEdge, len(plan))
	for i, p := range plan {
		candidates := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, skip := c.excluded[id]; !skip {
				candidates = append(candidates, id)
			}
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return states[candidates[a]] > states[candidates[b]]
		})
		if s.fanout > 0 && s.fanout < len(candidates) {
			candidates = candidates[:s.fanout]
		}
		chosen := make(map[string]struct{}, len(candidates))
		for _, id := range candidates {
			chosen[id] = struct{}{}
		}
		for _, id := range p.trigger.Related {
			if _, ok := chosen[id]; ok {
				continue
			}
			if _, ok := known[id]; !ok {
				continue
			}
			if _, skip := c.excluded[id]; skip {
				continue
			}
			candidates = append(candidates, id)
			chosen[id] = struct{}{}
		}

		for _, target := range candidates {
			weight := (c.rng.Float64()*2 - 1) * s.strength
			if p.trigger.related(target) {
				weight = 2 * s.strength
			}
			wiring[i] = append(wiring[i], plannedEdge{target: target, weight: weight})
		}

		ids = append(ids, p.id)
		states[p.id] = s.initial
		known[p.id] = struct{}{}
	}
	return wiring
}
