package nn

import (
	"log/slog"

	"neuroplex/internal/config"
	"neuroplex/internal/graph"
	"neuroplex/internal/model"
)

const learningEventLimit = 100

// LearningEvent records one Hebbian weight change.
type LearningEvent struct {
	Sequence    int
	Source      string
	Target      string
	SourceState float64
	TargetState float64
	Before      float64
	After       float64
	Rate        float64
}

// HebbianLearner strengthens connections whose endpoints are co-active.
type HebbianLearner struct {
	graph  *graph.Graph
	config *config.Config
	logger *slog.Logger

	initialized bool
	rate        float64
	sequence    int
	events      []LearningEvent
	excluded    map[string]struct{}
}

func NewHebbianLearner(g *graph.Graph, cfg *config.Config, logger *slog.Logger) *HebbianLearner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HebbianLearner{
		graph:    g,
		config:   cfg,
		logger:   logger.With(slog.String("component", "hebbian")),
		excluded: make(map[string]struct{}),
	}
}

// Initialize resets session bookkeeping: the event log and the learning rate.
// Calling it repeatedly has the same effect as calling it once.
func (h *HebbianLearner) Initialize() error {
	base, err := h.config.Group(config.GroupHebbian).Float("base_learning_rate")
	if err != nil {
		return err
	}
	h.rate = base
	h.events = nil
	h.sequence = 0
	h.initialized = true
	return nil
}

func (h *HebbianLearner) LearningRate() (float64, error) {
	if err := h.ensureInitialized(); err != nil {
		return 0, err
	}
	return h.rate, nil
}

// ModifyLearningRate sets the rate to base_learning_rate * factor.
func (h *HebbianLearner) ModifyLearningRate(factor float64) (float64, error) {
	base, err := h.config.Group(config.GroupHebbian).Float("base_learning_rate")
	if err != nil {
		return 0, err
	}
	if err := h.ensureInitialized(); err != nil {
		return 0, err
	}
	h.rate = base * factor
	return h.rate, nil
}

func (h *HebbianLearner) Exclude(ids ...string) {
	for _, id := range ids {
		h.excluded[id] = struct{}{}
	}
}

func (h *HebbianLearner) Include(ids ...string) {
	for _, id := range ids {
		delete(h.excluded, id)
	}
}

func (h *HebbianLearner) Excluded(id string) bool {
	_, ok := h.excluded[id]
	return ok
}

// Learn applies one Hebbian pass. Every connection whose source and target
// states both exceed hebbian.active_threshold gains rate*unit(pre)*unit(post),
// clamped to [min_weight, max_weight]. With hebbian.weight_decay set, every
// other connection decays toward zero. Updated pairs are returned in
// connection insertion order.
func (h *HebbianLearner) Learn() ([]model.ConnectionKey, error) {
	group := h.config.Group(config.GroupHebbian)
	threshold, err := group.Float("active_threshold")
	if err != nil {
		return nil, err
	}
	if err := h.ensureInitialized(); err != nil {
		return nil, err
	}
	r := group.Reader()
	maxWeight := r.Float("max_weight", 1)
	minWeight := r.Float("min_weight", -1)
	decay := r.Float("weight_decay", 0)
	if err := r.Err(); err != nil {
		return nil, err
	}

	states := h.graph.States()
	var updated []model.ConnectionKey
	decayed := 0
	for _, c := range h.graph.Connections.All() {
		pre, post := states[c.Source], states[c.Target]
		if pre > threshold && post > threshold && !h.Excluded(c.Source) && !h.Excluded(c.Target) {
			next := Sat(c.Weight+h.rate*Unit(pre)*Unit(post), maxWeight, minWeight)
			if err := h.graph.SetWeight(c.Source, c.Target, next); err != nil {
				return nil, err
			}
			h.record(c, pre, post, next)
			updated = append(updated, c.Key())
			continue
		}
		if decay > 0 && c.Weight != 0 {
			if err := h.graph.SetWeight(c.Source, c.Target, c.Weight*(1-decay)); err != nil {
				return nil, err
			}
			decayed++
		}
	}

	h.logger.Debug("hebbian pass",
		slog.Int("updated", len(updated)),
		slog.Int("decayed", decayed),
		slog.Float64("rate", h.rate),
	)
	return updated, nil
}

// ApplyDecay scales every weight by (1 - factor) and reports how many changed noticeably.
func (h *HebbianLearner) ApplyDecay(factor float64) (int, error) {
	count := 0
	for _, c := range h.graph.Connections.All() {
		next := c.Weight * (1 - factor)
		if err := h.graph.SetWeight(c.Source, c.Target, next); err != nil {
			return count, err
		}
		if d := next - c.Weight; d > 1e-4 || d < -1e-4 {
			count++
		}
	}
	return count, nil
}

// RecentEvents returns up to n most recent events, oldest first.
func (h *HebbianLearner) RecentEvents(n int) []LearningEvent {
	if n <= 0 || n > len(h.events) {
		n = len(h.events)
	}
	return append([]LearningEvent(nil), h.events[len(h.events)-n:]...)
}

func (h *HebbianLearner) ResetHistory() {
	h.events = nil
}

func (h *HebbianLearner) ensureInitialized() error {
	if h.initialized {
		return nil
	}
	return h.Initialize()
}

func (h *HebbianLearner) record(c model.Connection, pre, post, after float64) {
	h.sequence++
	h.events = append(h.events, LearningEvent{
		Sequence:    h.sequence,
		Source:      c.Source,
		Target:      c.Target,
		SourceState: pre,
		TargetState: post,
		Before:      c.Weight,
		After:       after,
		Rate:        h.rate,
	})
	if len(h.events) > learningEventLimit {
		h.events = append(h.events[:0], h.events[len(h.events)-learningEventLimit:]...)
	}
}
