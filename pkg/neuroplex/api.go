package neuroplex

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"neuroplex/internal/config"
	"neuroplex/internal/graph"
	"neuroplex/internal/model"
	"neuroplex/internal/neurogenesis"
	"neuroplex/internal/nn"
	"neuroplex/internal/storage"
)


type (
	Config             = config.Config
	Neuron             = model.Neuron
	NeuronType         = model.NeuronType
	Connection         = model.Connection
	ConnectionKey      = model.ConnectionKey
	Statistics         = model.Statistics
	Snapshot           = model.NetworkSnapshot
	Example            = nn.Example
	TrainOptions       = nn.TrainOptions
	Activation         = nn.Activation
	LearningEvent      = nn.LearningEvent
	Trigger            = neurogenesis.Trigger
	NeurogenesisStats  = neurogenesis.Stats
	MalformedFileError = model.MalformedFileError
	ConfigError        = model.ConfigError
)

var (
	TypeDefault = model.TypeDefault
	TypeNovelty = model.TypeNovelty
	TypeStress  = model.TypeStress
	TypeReward  = model.TypeReward
)

var (
	ErrDuplicateID         = model.ErrDuplicateID
	ErrUnknownNeuron       = model.ErrUnknownNeuron
	ErrInvalidNeuron       = model.ErrInvalidNeuron
	ErrDuplicateConnection = model.ErrDuplicateConnection
	ErrConnectionNotFound  = model.ErrConnectionNotFound
	ErrSelfLoop            = model.ErrSelfLoop
	ErrInvalidLayer        = model.ErrInvalidLayer
	ErrDimensionMismatch   = model.ErrDimensionMismatch
	ErrResourceExhausted   = model.ErrResourceExhausted
	ErrMalformedFile       = model.ErrMalformedFile
	ErrIntegrity           = model.ErrIntegrity
	ErrConfiguration       = model.ErrConfiguration
	ErrVersionMismatch     = storage.ErrVersionMismatch
	ErrInvalidEpochs       = nn.ErrInvalidEpochs
	ErrNotDifferentiable   = nn.ErrNotDifferentiable
	ErrActivationExists    = nn.ErrActivationExists
)

func DefaultConfig() *Config { return config.Default() }

// LoadConfig reads a JSON or YAML config file merged over the defaults.
func LoadConfig(path string) (*Config, error) { return config.LoadFile(path) }

// RegisterActivation adds a named activation for every network in the process.
// Activations without a Slope can propagate but not train.
func RegisterActivation(a Activation) error { return nn.RegisterActivation(a) }

func ListActivations() []string { return nn.ListActivations() }

func CustomType(label string) NeuronType { return model.CustomType(label) }

func ParseNeuronType(name string) NeuronType { return model.ParseNeuronType(name) }

type Options struct {
	// Config defaults to DefaultConfig().
	Config *Config
	// Seed drives every random choice (neurogenesis wiring, uuid ids, example
	// shuffling). Zero means 1.
	Seed   int64
	Logger *slog.Logger
}

// Network owns one neuron graph and one configuration, and routes calls to the
// propagator and the three learning mechanisms. It is not safe for concurrent use.
type Network struct {
	config *config.Config
	graph  *graph.Graph
	logger *slog.Logger

	propagator *nn.Propagator
	hebbian    *nn.HebbianLearner
	growth     *neurogenesis.Controller
	backprop   *nn.BackpropTrainer

	updateCount int
}

func New(opts Options) *Network {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rng := rand.New(rand.NewSource(seed))

	g := graph.New()
	return &Network{
		config:     cfg,
		graph:      g,
		logger:     logger.With(slog.String("component", "network")),
		propagator: nn.NewPropagator(g, cfg),
		hebbian:    nn.NewHebbianLearner(g, cfg, logger),
		growth:     neurogenesis.NewController(g, cfg, rng, logger),
		backprop:   nn.NewBackpropTrainer(g, cfg, rng, logger),
	}
}

// Config returns the live configuration; changes apply to the next call that reads them.
func (n *Network) Config() *Config { return n.config }

// applySelfLoopPolicy refreshes network.allow_self_loops on the graph before
// connections are created.
func (n *Network) applySelfLoopPolicy() error {
	allow, err := n.config.Group(config.GroupNetwork).BoolOr("allow_self_loops", true)
	if err != nil {
		return err
	}
	n.graph.SetAllowSelfLoops(allow)
	return nil
}

type neuronSettings struct {
	kind  model.NeuronType
	state float64
	bias  float64
}

type NeuronOption func(*neuronSettings)

func WithType(t NeuronType) NeuronOption {
	return func(s *neuronSettings) { s.kind = t }
}

// WithState sets the initial activation; the default is 0.
func WithState(state float64) NeuronOption {
	return func(s *neuronSettings) { s.state = state }
}

func WithBias(bias float64) NeuronOption {
	return func(s *neuronSettings) { s.bias = bias }
}

func (n *Network) AddNeuron(id string, opts ...NeuronOption) error {
	settings := neuronSettings{kind: model.TypeDefault}
	for _, opt := range opts {
		opt(&settings)
	}
	if math.IsNaN(settings.state) || math.IsInf(settings.state, 0) {
		return fmt.Errorf("%w: %s: state must be finite", ErrInvalidNeuron, id)
	}
	return n.graph.AddNeuron(model.Neuron{ID: id, Type: settings.kind, State: settings.state, Bias: settings.bias})
}

// RemoveNeuron deletes the neuron and every connection touching it. The id
// can never be used again by this network.
func (n *Network) RemoveNeuron(id string) error {
	return n.graph.RemoveNeuron(id)
}

func (n *Network) Connect(source, target string, weight float64) error {
	if err := n.applySelfLoopPolicy(); err != nil {
		return err
	}
	return n.graph.Connect(source, target, weight)
}

// ConnectBidirectional creates source->target and target->source; an existing
// reverse edge is left as it is.
func (n *Network) ConnectBidirectional(source, target string, weight float64) error {
	if err := n.applySelfLoopPolicy(); err != nil {
		return err
	}
	return n.graph.ConnectBidirectional(source, target, weight)
}

func (n *Network) Disconnect(source, target string) error {
	return n.graph.Disconnect(source, target)
}

// UpdateState assigns several states at once. Every id is checked before any
// state changes.
func (n *Network) UpdateState(states map[string]float64) error {
	ids := make([]string, 0, len(states))
	for id := range states {
		if !n.graph.Neurons.Has(id) {
			return fmt.Errorf("%w: %s", ErrUnknownNeuron, id)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	history, err := n.propagator.HistoryLength()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := n.graph.SetState(id, states[id], history); err != nil {
			return err
		}
	}
	n.updateCount++
	return nil
}

func (n *Network) SetState(id string, state float64) error {
	return n.UpdateState(map[string]float64{id: state})
}

// PropagateActivation runs one synchronous propagation pass.
func (n *Network) PropagateActivation() error {
	if err := n.propagator.Propagate(); err != nil {
		return err
	}
	n.updateCount++
	return nil
}

func (n *Network) NeuronValue(id string) (float64, error) {
	return n.graph.State(id)
}

func (n *Network) Neuron(id string) (Neuron, error) {
	return n.graph.Neurons.Get(id)
}

// MeanActivity averages the neuron's recorded state history; it is 0 until a
// state has been recorded.
func (n *Network) MeanActivity(id string) (float64, error) {
	neuron, err := n.graph.Neurons.Get(id)
	if err != nil {
		return 0, err
	}
	return neuron.MeanActivity(), nil
}

// NeuronIDs returns a snapshot of live ids in insertion order.
func (n *Network) NeuronIDs() []string {
	return n.graph.Neurons.IDs()
}

// Connections returns every connection in insertion order.
func (n *Network) Connections() []Connection {
	return n.graph.Connections.All()
}

func (n *Network) ConnectionWeight(source, target string) (float64, error) {
	return n.graph.Weight(source, target)
}

// StrongestConnections returns up to limit connections ordered by descending
// absolute weight, ties in insertion order. A non-positive limit returns all.
func (n *Network) StrongestConnections(limit int) []Connection {
	all := n.graph.Connections.All()
	sort.SliceStable(all, func(i, j int) bool {
		return math.Abs(all[i].Weight) > math.Abs(all[j].Weight)
	})
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (n *Network) Statistics() Statistics {
	stats := Statistics{
		Neurons:     n.graph.Neurons.Len(),
		Connections: n.graph.Connections.Len(),
		UpdateCount: n.updateCount,
	}
	all := n.graph.Connections.All()
	if len(all) == 0 {
		return stats
	}
	magnitudes := make([]float64, 0, len(all))
	positive, negative := 0, 0
	for _, c := range all {
		magnitudes = append(magnitudes, math.Abs(c.Weight))
		switch {
		case c.Excitatory():
			positive++
		case c.Inhibitory():
			negative++
		}
	}
	stats.MeanWeight, _ = nn.Avg(magnitudes)
	stats.WeightStd, _ = nn.Std(magnitudes)
	stats.PositiveRatio = float64(positive) / float64(len(all))
	stats.NegativeRatio = float64(negative) / float64(len(all))
	return stats
}

// InitializeLearning resets the Hebbian session; calling it twice equals calling it once.
func (n *Network) InitializeLearning() error {
	return n.hebbian.Initialize()
}

// PerformLearning runs one Hebbian pass and returns the strengthened connections.
func (n *Network) PerformLearning() ([]ConnectionKey, error) {
	return n.hebbian.Learn()
}

func (n *Network) LearningRate() (float64, error) {
	return n.hebbian.LearningRate()
}

func (n *Network) LearningEvents(limit int) []LearningEvent {
	return n.hebbian.RecentEvents(limit)
}

// ExcludeFromLearning keeps ids out of Hebbian updates and out of the wiring of
// neurons grown later.
func (n *Network) ExcludeFromLearning(ids ...string) {
	n.hebbian.Exclude(ids...)
	n.growth.Exclude(ids...)
}

// ApplyWeightDecay scales every weight by (1 - factor) and reports how many changed.
func (n *Network) ApplyWeightDecay(factor float64) (int, error) {
	if factor < 0 || factor > 1 {
		return 0, fmt.Errorf("decay factor %v outside [0, 1]", factor)
	}
	return n.hebbian.ApplyDecay(factor)
}

// CheckNeurogenesis grows neurons for the signals that cross their thresholds
// and, when anything was created, boosts the Hebbian rate by
// combined.neurogenesis_learning_boost.
func (n *Network) CheckNeurogenesis(signals map[string]float64) ([]string, error) {
	ids, err := n.growth.Check(signals)
	if err != nil {
		return ids, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	boost, err := n.config.Group(config.GroupCombined).FloatOr("neurogenesis_learning_boost", 1.5)
	if err != nil {
		return ids, err
	}
	rate, err := n.hebbian.ModifyLearningRate(boost)
	if err != nil {
		return ids, err
	}
	n.logger.Debug("learning rate boosted after neurogenesis", slog.Float64("rate", rate), slog.Int("created", len(ids)))
	return ids, nil
}

func (n *Network) RegisterTrigger(t Trigger) error {
	return n.growth.RegisterTrigger(t)
}

func (n *Network) NeurogenesisStats() NeurogenesisStats {
	return n.growth.Stats()
}

func (n *Network) ResetNeurogenesis() {
	n.growth.Reset()
}

// SetLayers declares the feed-forward partition used by Train, Forward and Evaluate.
func (n *Network) SetLayers(layers [][]string) error {
	return n.backprop.SetLayers(layers)
}

func (n *Network) Layers() [][]string {
	return n.backprop.Layers()
}

// Train runs backpropagation and returns the summed squared error of each epoch.
func (n *Network) Train(examples []Example, epochs int, opts TrainOptions) ([]float64, error) {
	history, err := n.backprop.Train(examples, epochs, opts)
	if len(history) > 0 {
		n.updateCount++
	}
	return history, err
}

func (n *Network) Forward(inputs []float64) ([]float64, error) {
	return n.backprop.Forward(inputs)
}

func (n *Network) Evaluate(examples []Example) (float64, error) {
	return n.backprop.Evaluate(examples)
}
