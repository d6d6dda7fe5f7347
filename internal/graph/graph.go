package graph

import (
	"fmt"
	"math"
	"sort"

	"neuroplex/internal/model"
)

const weightTraceLimit = 100

// NeuronStore owns neuron records keyed by id. Ids are never reused: removed
// ids stay reserved so stale references remain detectable.
type NeuronStore struct {
	order   []string
	records map[string]*model.Neuron
	retired map[string]struct{}
}

func NewNeuronStore() *NeuronStore {
	return &NeuronStore{
		records: make(map[string]*model.Neuron),
		retired: make(map[string]struct{}),
	}
}

func (s *NeuronStore) Has(id string) bool {
	_, ok := s.records[id]
	return ok
}

// Used reports whether id was ever assigned, including removed neurons.
func (s *NeuronStore) Used(id string) bool {
	if s.Has(id) {
		return true
	}
	_, ok := s.retired[id]
	return ok
}

func (s *NeuronStore) Len() int { return len(s.order) }

// IDs returns a copy of live ids in insertion order.
func (s *NeuronStore) IDs() []string {
	return append([]string(nil), s.order...)
}

func (s *NeuronStore) RetiredIDs() []string {
	ids := make([]string, 0, len(s.retired))
	for id := range s.retired {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *NeuronStore) Get(id string) (model.Neuron, error) {
	n, ok := s.records[id]
	if !ok {
		return model.Neuron{}, fmt.Errorf("%w: %s", model.ErrUnknownNeuron, id)
	}
	out := *n
	out.History = append([]float64(nil), n.History...)
	return out, nil
}

func (s *NeuronStore) add(n model.Neuron) error {
	if n.ID == "" {
		return fmt.Errorf("%w: id is required", model.ErrInvalidNeuron)
	}
	if s.Used(n.ID) {
		return fmt.Errorf("%w: %s", model.ErrDuplicateID, n.ID)
	}
	rec := n
	rec.History = append([]float64(nil), n.History...)
	s.records[n.ID] = &rec
	s.order = append(s.order, n.ID)
	return nil
}

func (s *NeuronStore) remove(id string) {
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.retired[id] = struct{}{}
}

func (s *NeuronStore) retire(id string) {
	if !s.Has(id) {
		s.retired[id] = struct{}{}
	}
}

func (s *NeuronStore) record(id string) (*model.Neuron, error) {
	n, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownNeuron, id)
	}
	return n, nil
}

// ConnectionGraph owns directed weighted edges with insertion-ordered adjacency.
type ConnectionGraph struct {
	order    []model.ConnectionKey
	edges    map[model.ConnectionKey]*model.Connection
	incoming map[string][]model.ConnectionKey
	outgoing map[string][]model.ConnectionKey
}

func NewConnectionGraph() *ConnectionGraph {
	return &ConnectionGraph{
		edges:    make(map[model.ConnectionKey]*model.Connection),
		incoming: make(map[string][]model.ConnectionKey),
		outgoing: make(map[string][]model.ConnectionKey),
	}
}

func (g *ConnectionGraph) Len() int { return len(g.order) }

func (g *ConnectionGraph) Has(source, target string) bool {
	_, ok := g.edges[model.ConnectionKey{Source: source, Target: target}]
	return ok
}

func (g *ConnectionGraph) All() []model.Connection {
	return g.collect(g.order)
}

func (g *ConnectionGraph) Incoming(id string) []model.Connection {
	return g.collect(g.incoming[id])
}

func (g *ConnectionGraph) Outgoing(id string) []model.Connection {
	return g.collect(g.outgoing[id])
}

func (g *ConnectionGraph) collect(keys []model.ConnectionKey) []model.Connection {
	out := make([]model.Connection, 0, len(keys))
	for _, key := range keys {
		c := *g.edges[key]
		c.Trace = append([]float64(nil), c.Trace...)
		out = append(out, c)
	}
	return out
}

func (g *ConnectionGraph) add(c model.Connection) {
	key := c.Key()
	rec := c
	rec.Trace = []float64{c.Weight}
	g.edges[key] = &rec
	g.order = append(g.order, key)
	g.outgoing[c.Source] = append(g.outgoing[c.Source], key)
	g.incoming[c.Target] = append(g.incoming[c.Target], key)
}

func (g *ConnectionGraph) remove(key model.ConnectionKey) {
	if _, ok := g.edges[key]; !ok {
		return
	}
	delete(g.edges, key)
	g.order = withoutKey(g.order, key)
	g.outgoing[key.Source] = withoutKey(g.outgoing[key.Source], key)
	g.incoming[key.Target] = withoutKey(g.incoming[key.Target], key)
	if len(g.outgoing[key.Source]) == 0 {
		delete(g.outgoing, key.Source)
	}
	if len(g.incoming[key.Target]) == 0 {
		delete(g.incoming, key.Target)
	}
}

// incident lists every edge touching id, deduplicated, in insertion order.
func (g *ConnectionGraph) incident(id string) []model.ConnectionKey {
	var keys []model.ConnectionKey
	for _, key := range g.order {
		if key.Source == id || key.Target == id {
			keys = append(keys, key)
		}
	}
	return keys
}

func withoutKey(keys []model.ConnectionKey, key model.ConnectionKey) []model.ConnectionKey {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}

// Graph composes the neuron store and the connection graph and keeps their
// referential invariants. Every mutating call is all-or-nothing.
type Graph struct {
	Neurons     *NeuronStore
	Connections *ConnectionGraph

	allowSelfLoops bool
	version        uint64
}

func New() *Graph {
	return &Graph{
		Neurons:        NewNeuronStore(),
		Connections:    NewConnectionGraph(),
		allowSelfLoops: true,
	}
}

func (g *Graph) SetAllowSelfLoops(allow bool) { g.allowSelfLoops = allow }

// Version changes on every topology mutation (neuron or connection add/remove).
func (g *Graph) Version() uint64 { return g.version }

func (g *Graph) AddNeuron(n model.Neuron) error {
	if err := g.Neurons.add(n); err != nil {
		return err
	}
	g.version++
	return nil
}

// RemoveNeuron deletes a neuron together with every connection touching it.
func (g *Graph) RemoveNeuron(id string) error {
	if !g.Neurons.Has(id) {
		return fmt.Errorf("%w: %s", model.ErrUnknownNeuron, id)
	}
	for _, key := range g.Connections.incident(id) {
		g.Connections.remove(key)
	}
	g.Neurons.remove(id)
	g.version++
	return nil
}

// Retire reserves ids without creating neurons; used when restoring snapshots.
func (g *Graph) Retire(ids ...string) {
	for _, id := range ids {
		g.Neurons.retire(id)
	}
}

func (g *Graph) Connect(source, target string, weight float64) error {
	if err := g.checkEndpoints(source, target); err != nil {
		return err
	}
	if source == target && !g.allowSelfLoops {
		return fmt.Errorf("%w: %s", model.ErrSelfLoop, source)
	}
	if g.Connections.Has(source, target) {
		return fmt.Errorf("%w: %s -> %s", model.ErrDuplicateConnection, source, target)
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("invalid weight %v for %s -> %s", weight, source, target)
	}
	g.Connections.add(model.Connection{Source: source, Target: target, Weight: weight})
	g.version++
	return nil
}

// ConnectBidirectional creates source->target and, when absent, target->source.
func (g *Graph) ConnectBidirectional(source, target string, weight float64) error {
	if err := g.Connect(source, target, weight); err != nil {
		return err
	}
	if source == target || g.Connections.Has(target, source) {
		return nil
	}
	g.Connections.add(model.Connection{Source: target, Target: source, Weight: weight})
	g.version++
	return nil
}

func (g *Graph) Disconnect(source, target string) error {
	if err := g.checkEndpoints(source, target); err != nil {
		return err
	}
	if !g.Connections.Has(source, target) {
		return fmt.Errorf("%w: %s -> %s", model.ErrConnectionNotFound, source, target)
	}
	g.Connections.remove(model.ConnectionKey{Source: source, Target: target})
	g.version++
	return nil
}

func (g *Graph) Weight(source, target string) (float64, error) {
	c, err := g.edge(source, target)
	if err != nil {
		return 0, err
	}
	return c.Weight, nil
}

// SetWeight overwrites a connection weight, recording it in the bounded trace.
func (g *Graph) SetWeight(source, target string, weight float64) error {
	c, err := g.edge(source, target)
	if err != nil {
		return err
	}
	c.Weight = weight
	c.Trace = append(c.Trace, weight)
	if len(c.Trace) > weightTraceLimit {
		c.Trace = append(c.Trace[:0], c.Trace[len(c.Trace)-weightTraceLimit:]...)
	}
	return nil
}

func (g *Graph) State(id string) (float64, error) {
	n, err := g.Neurons.record(id)
	if err != nil {
		return 0, err
	}
	return n.State, nil
}

// SetState assigns a state and appends it to the neuron's history when
// historyLimit is positive.
func (g *Graph) SetState(id string, value float64, historyLimit int) error {
	n, err := g.Neurons.record(id)
	if err != nil {
		return err
	}
	n.State = value
	n.Record(value, historyLimit)
	return nil
}

func (g *Graph) Bias(id string) (float64, error) {
	n, err := g.Neurons.record(id)
	if err != nil {
		return 0, err
	}
	return n.Bias, nil
}

func (g *Graph) SetBias(id string, bias float64) error {
	n, err := g.Neurons.record(id)
	if err != nil {
		return err
	}
	n.Bias = bias
	return nil
}

// States returns a point-in-time copy of every live neuron's state.
func (g *Graph) States() map[string]float64 {
	out := make(map[string]float64, g.Neurons.Len())
	for _, id := range g.Neurons.order {
		out[id] = g.Neurons.records[id].State
	}
	return out
}

func (g *Graph) edge(source, target string) (*model.Connection, error) {
	if err := g.checkEndpoints(source, target); err != nil {
		return nil, err
	}
	c, ok := g.Connections.edges[model.ConnectionKey{Source: source, Target: target}]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrConnectionNotFound, source, target)
	}
	return c, nil
}

func (g *Graph) checkEndpoints(source, target string) error {
	if !g.Neurons.Has(source) {
		return fmt.Errorf("%w: source %s", model.ErrUnknownNeuron, source)
	}
	if !g.Neurons.Has(target) {
		return fmt.Errorf("%w: target %s", model.ErrUnknownNeuron, target)
	}
	return nil
}
