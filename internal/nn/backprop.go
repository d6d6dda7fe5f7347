package nn

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"neuroplex/internal/config"
	"neuroplex/internal/graph"
	"neuroplex/internal/model"
)

// Example is one supervised pair on the canonical activation scale.
type Example struct {
	Inputs  []float64
	Targets []float64
}

var ErrInvalidEpochs = errors.New("epochs must not be negative")

// TrainOptions override the backprop config group for a single Train call.
// A zero LearningRate and nil Momentum or TargetError defer to the
// configuration; a non-nil pointer to 0 disables momentum or early stopping.
type TrainOptions struct {
	LearningRate float64
	Momentum     *float64
	TargetError  *float64
	// Progress is called after every epoch; returning false stops training.
	Progress func(epoch int, sse float64) bool
}

type layerEdge struct {
	from int
	to   int
	key  model.ConnectionKey
}

// BackpropTrainer runs gradient descent over an explicit feed-forward layer
// partition. Only connections present between consecutive layers take part;
// missing ones count as weight 0 and are never created.
type BackpropTrainer struct {
	graph  *graph.Graph
	config *config.Config
	logger *slog.Logger
	rng    *rand.Rand

	layers       [][]string
	transitions  [][]layerEdge
	version      uint64
	velocity     map[model.ConnectionKey]float64
	biasVelocity map[string]float64
}

func NewBackpropTrainer(g *graph.Graph, cfg *config.Config, rng *rand.Rand, logger *slog.Logger) *BackpropTrainer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &BackpropTrainer{
		graph:  g,
		config: cfg,
		rng:    rng,
		logger: logger.With(slog.String("component", "backprop")),
	}
}

// SetLayers validates the partition and caches the layer-to-layer connections.
// Any later topology change invalidates the cache until SetLayers runs again.
func (b *BackpropTrainer) SetLayers(partition [][]string) error {
	if len(partition) < 2 {
		return fmt.Errorf("%w: need at least 2 layers, got %d", model.ErrInvalidLayer, len(partition))
	}
	seen := make(map[string]int)
	layers := make([][]string, len(partition))
	for l, layer := range partition {
		if len(layer) == 0 {
			return fmt.Errorf("%w: layer %d is empty", model.ErrInvalidLayer, l)
		}
		for _, id := range layer {
			if !b.graph.Neurons.Has(id) {
				return fmt.Errorf("%w: layer %d: %v: %s", model.ErrInvalidLayer, l, model.ErrUnknownNeuron, id)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: neuron %s in layers %d and %d", model.ErrInvalidLayer, id, prev, l)
			}
			seen[id] = l
		}
		layers[l] = append([]string(nil), layer...)
	}

	transitions := make([][]layerEdge, len(layers)-1)
	for l := 0; l < len(layers)-1; l++ {
		for j, to := range layers[l+1] {
			for i, from := range layers[l] {
				if b.graph.Connections.Has(from, to) {
					transitions[l] = append(transitions[l], layerEdge{
						from: i,
						to:   j,
						key:  model.ConnectionKey{Source: from, Target: to},
					})
				}
			}
		}
	}

	b.layers = layers
	b.transitions = transitions
	b.version = b.graph.Version()
	b.velocity = make(map[model.ConnectionKey]float64)
	b.biasVelocity = make(map[string]float64)
	return nil
}

func (b *BackpropTrainer) Layers() [][]string {
	out := make([][]string, len(b.layers))
	for i, layer := range b.layers {
		out[i] = append([]string(nil), layer...)
	}
	return out
}

// Forward pushes inputs through the layers and returns the output layer states.
func (b *BackpropTrainer) Forward(inputs []float64) ([]float64, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	if len(inputs) != len(b.layers[0]) {
		return nil, fmt.Errorf("%w: expected %d inputs, got %d", model.ErrDimensionMismatch, len(b.layers[0]), len(inputs))
	}
	activation, err := b.activation()
	if err != nil {
		return nil, err
	}
	_, act, err := b.forward(inputs, activation.Apply)
	if err != nil {
		return nil, err
	}
	out := act[len(act)-1]
	states := make([]float64, len(out))
	for i, a := range out {
		states[i] = Rescale(a)
	}
	return states, nil
}

// Train runs epochs of online gradient descent and returns the summed squared
// error (unit scale) of every completed epoch.
func (b *BackpropTrainer) Train(examples []Example, epochs int, opts TrainOptions) ([]float64, error) {
	if epochs < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidEpochs, epochs)
	}
	if err := b.ready(); err != nil {
		return nil, err
	}
	for i, ex := range examples {
		if err := b.checkDimensions(ex); err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
	}
	group := b.config.Group(config.GroupBackprop)
	rate := opts.LearningRate
	if rate == 0 {
		configured, err := group.Float("learning_rate")
		if err != nil {
			return nil, err
		}
		rate = configured
	}
	r := group.Reader()
	momentum := r.Float("momentum", 0)
	target := r.Float("target_error", 0)
	shuffle := r.Bool("shuffle", false)
	if err := r.Err(); err != nil {
		return nil, err
	}
	if opts.Momentum != nil {
		momentum = *opts.Momentum
	}
	if opts.TargetError != nil {
		target = *opts.TargetError
	}
	activation, err := b.activation()
	if err != nil {
		return nil, err
	}

	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}

	history := make([]float64, 0, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		if shuffle {
			b.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		sse := 0.0
		for _, idx := range order {
			exampleErr, err := b.step(examples[idx], activation, rate, momentum)
			if err != nil {
				return history, err
			}
			sse += exampleErr
		}
		history = append(history, sse)

		if epoch%100 == 0 {
			b.logger.Debug("epoch", slog.Int("epoch", epoch), slog.Float64("sse", sse))
		}
		if opts.Progress != nil && !opts.Progress(epoch, sse) {
			break
		}
		if target > 0 && sse <= target {
			break
		}
	}

	if len(history) > 0 {
		b.logger.Info("training finished",
			slog.Int("epochs", len(history)),
			slog.Float64("sse", history[len(history)-1]),
		)
	}
	return history, nil
}

// Evaluate returns the fraction of examples classified correctly: the strongest
// output must match the strongest target, or for a single output both must fall
// on the same side of the scale midpoint.
func (b *BackpropTrainer) Evaluate(examples []Example) (float64, error) {
	if err := b.ready(); err != nil {
		return 0, err
	}
	if len(examples) == 0 {
		return 0, nil
	}
	correct := 0
	for i, ex := range examples {
		if err := b.checkDimensions(ex); err != nil {
			return 0, fmt.Errorf("example %d: %w", i, err)
		}
		out, err := b.Forward(ex.Inputs)
		if err != nil {
			return 0, err
		}
		if matches(out, ex.Targets) {
			correct++
		}
	}
	return float64(correct) / float64(len(examples)), nil
}

func (b *BackpropTrainer) step(ex Example, activation Activation, rate, momentum float64) (float64, error) {
	pre, act, err := b.forward(ex.Inputs, activation.Apply)
	if err != nil {
		return 0, err
	}

	last := len(b.layers) - 1
	deltas := make([][]float64, len(b.layers))
	sse := 0.0
	deltas[last] = make([]float64, len(b.layers[last]))
	for j := range b.layers[last] {
		diff := Unit(ex.Targets[j]) - act[last][j]
		sse += diff * diff
		deltas[last][j] = diff * activation.Slope(pre[last][j])
	}

	for l := last - 1; l >= 1; l-- {
		deltas[l] = make([]float64, len(b.layers[l]))
		for _, e := range b.transitions[l] {
			w, err := b.graph.Weight(e.key.Source, e.key.Target)
			if err != nil {
				return 0, err
			}
			deltas[l][e.from] += w * deltas[l+1][e.to]
		}
		for i := range deltas[l] {
			deltas[l][i] *= activation.Slope(pre[l][i])
		}
	}

	for l, edges := range b.transitions {
		for _, e := range edges {
			w, err := b.graph.Weight(e.key.Source, e.key.Target)
			if err != nil {
				return 0, err
			}
			change := rate*deltas[l+1][e.to]*act[l][e.from] + momentum*b.velocity[e.key]
			b.velocity[e.key] = change
			if err := b.graph.SetWeight(e.key.Source, e.key.Target, w+change); err != nil {
				return 0, err
			}
		}
	}
	for l := 1; l <= last; l++ {
		for j, id := range b.layers[l] {
			bias, err := b.graph.Bias(id)
			if err != nil {
				return 0, err
			}
			change := rate*deltas[l][j] + momentum*b.biasVelocity[id]
			b.biasVelocity[id] = change
			if err := b.graph.SetBias(id, bias+change); err != nil {
				return 0, err
			}
		}
	}
	return sse, nil
}

// forward returns per-layer pre-activations and unit-scale activations and
// writes the resulting states back onto the layer neurons.
func (b *BackpropTrainer) forward(inputs []float64, fn func(float64) float64) ([][]float64, [][]float64, error) {
	history, err := b.config.Group(config.GroupPropagation).IntOr("history_length", 10)
	if err != nil {
		return nil, nil, err
	}
	pre := make([][]float64, len(b.layers))
	act := make([][]float64, len(b.layers))

	act[0] = make([]float64, len(b.layers[0]))
	for i, id := range b.layers[0] {
		act[0][i] = Unit(inputs[i])
		if err := b.graph.SetState(id, inputs[i], history); err != nil {
			return nil, nil, err
		}
	}

	for l := 1; l < len(b.layers); l++ {
		pre[l] = make([]float64, len(b.layers[l]))
		act[l] = make([]float64, len(b.layers[l]))
		for j, id := range b.layers[l] {
			bias, err := b.graph.Bias(id)
			if err != nil {
				return nil, nil, err
			}
			pre[l][j] = bias
		}
		for _, e := range b.transitions[l-1] {
			w, err := b.graph.Weight(e.key.Source, e.key.Target)
			if err != nil {
				return nil, nil, err
			}
			pre[l][e.to] += w * act[l-1][e.from]
		}
		for j, id := range b.layers[l] {
			act[l][j] = fn(pre[l][j])
			if err := b.graph.SetState(id, Rescale(act[l][j]), history); err != nil {
				return nil, nil, err
			}
		}
	}
	return pre, act, nil
}

func (b *BackpropTrainer) ready() error {
	if len(b.layers) == 0 {
		return fmt.Errorf("%w: layers not set", model.ErrInvalidLayer)
	}
	if b.graph.Version() != b.version {
		return fmt.Errorf("%w: topology changed since layers were set; set layers again", model.ErrInvalidLayer)
	}
	return nil
}

func (b *BackpropTrainer) checkDimensions(ex Example) error {
	if err := b.ready(); err != nil {
		return err
	}
	if want := len(b.layers[0]); len(ex.Inputs) != want {
		return fmt.Errorf("%w: expected %d inputs, got %d", model.ErrDimensionMismatch, want, len(ex.Inputs))
	}
	if want := len(b.layers[len(b.layers)-1]); len(ex.Targets) != want {
		return fmt.Errorf("%w: expected %d targets, got %d", model.ErrDimensionMismatch, want, len(ex.Targets))
	}
	return nil
}

func (b *BackpropTrainer) activation() (Activation, error) {
	name, err := b.config.Group(config.GroupBackprop).StringOr("activation", "sigmoid")
	if err != nil {
		return Activation{}, err
	}
	a, err := LookupActivation(name)
	if err != nil {
		return Activation{}, fmt.Errorf("%w: backprop.activation: %v", model.ErrConfiguration, err)
	}
	if !a.Differentiable() {
		return Activation{}, fmt.Errorf("%w: backprop.activation: %w: %s", model.ErrConfiguration, ErrNotDifferentiable, name)
	}
	return a, nil
}

func matches(out, targets []float64) bool {
	if len(out) == 1 {
		return (out[0] > model.Scale/2) == (targets[0] > model.Scale/2)
	}
	return argmax(out) == argmax(targets)
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
