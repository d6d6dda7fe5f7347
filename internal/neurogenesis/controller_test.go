package neurogenesis

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"neuroplex/internal/config"
	"neuroplex/internal/graph"
	"neuroplex/internal/model"
)

func seededGraph(t *testing.T, states map[string]float64, order ...string) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, id := range order {
		if err := g.AddNeuron(model.Neuron{ID: id, State: states[id]}); err != nil {
			t.Fatalf("add neuron %s: %v", id, err)
		}
	}
	return g
}

func newController(g *graph.Graph, cfg *config.Config) *Controller {
	return NewController(g, cfg, rand.New(rand.NewSource(3)), nil)
}

func TestCheckNoveltyThreshold(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  int
	}{
		{name: "below", value: 2, want: 0},
		{name: "equal", value: 3, want: 0},
		{name: "above", value: 3.5, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := seededGraph(t, map[string]float64{"a": 10}, "a")
			c := newController(g, config.Default())
			ids, err := c.Check(map[string]float64{"novelty_exposure": tc.value})
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if len(ids) != tc.want {
				t.Fatalf("expected %d new neurons, got=%v", tc.want, ids)
			}
			if g.Neurons.Len() != 1+tc.want {
				t.Fatalf("unexpected neuron count: %d", g.Neurons.Len())
			}
		})
	}
}

func TestCheckCreatesTypedWiredNeuron(t *testing.T) {
	g := seededGraph(t,
		map[string]float64{"a": 10, "b": 90, "c": 40, "d": 70, "curiosity": 0},
		"a", "b", "c", "d", "curiosity",
	)
	c := newController(g, config.Default())
	ids, err := c.Check(map[string]float64{"novelty_exposure": 5})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(ids) != 1 || ids[0] != "novel_0" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	n, err := g.Neurons.Get("novel_0")
	if err != nil {
		t.Fatalf("get new neuron: %v", err)
	}
	if n.Type != model.TypeNovelty || n.State != 50 {
		t.Fatalf("unexpected new neuron: %+v", n)
	}

	out := g.Connections.Outgoing("novel_0")
	var targets []string
	for _, conn := range out {
		targets = append(targets, conn.Target)
		if !g.Connections.Has(conn.Target, "novel_0") {
			t.Fatalf("expected reverse edge from %s", conn.Target)
		}
	}
	if got := strings.Join(targets, ","); got != "b,d,c,curiosity" {
		t.Fatalf("unexpected wiring targets: %s", got)
	}
	for _, conn := range out {
		if conn.Target == "curiosity" {
			if conn.Weight != 0.6 {
				t.Fatalf("related neuron should get double strength, got=%f", conn.Weight)
			}
			continue
		}
		if conn.Weight < -0.3 || conn.Weight > 0.3 {
			t.Fatalf("weight out of range for %s: %f", conn.Target, conn.Weight)
		}
	}
}

func TestCheckPerCallCap(t *testing.T) {
	g := seededGraph(t, map[string]float64{"a": 10}, "a")
	cfg := config.Default()
	cfg.Set(config.GroupNeurogenesis, "neurons_per_trigger", 2)
	cfg.Set(config.GroupNeurogenesis, "max_new_per_call", 3)
	c := newController(g, cfg)
	signals := map[string]float64{"novelty_exposure": 10, "sustained_stress": 1, "recent_rewards": 1}
	for call := 0; call < 3; call++ {
		ids, err := c.Check(signals)
		if err != nil {
			t.Fatalf("check %d: %v", call, err)
		}
		if len(ids) != 3 {
			t.Fatalf("call %d: expected cap of 3, got=%v", call, ids)
		}
	}
	if g.Neurons.Len() != 10 {
		t.Fatalf("unexpected neuron count: %d", g.Neurons.Len())
	}
	created := c.Stats().Created
	if created[0] != "novel_0" || created[1] != "novel_1" || created[2] != "stress_2" {
		t.Fatalf("unexpected creation order: %v", created)
	}
}

func TestCheckMaxTotalNeurons(t *testing.T) {
	g := seededGraph(t, map[string]float64{"a": 10, "b": 20}, "a", "b")
	cfg := config.Default()
	cfg.Set(config.GroupNeurogenesis, "max_total_neurons", 3)
	c := newController(g, cfg)
	if ids, err := c.Check(map[string]float64{"novelty_exposure": 10}); err != nil || len(ids) != 1 {
		t.Fatalf("expected one neuron, got ids=%v err=%v", ids, err)
	}
	connections := g.Connections.Len()
	_, err := c.Check(map[string]float64{"novelty_exposure": 10})
	if !errors.Is(err, model.ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted, got: %v", err)
	}
	if g.Neurons.Len() != 3 || g.Connections.Len() != connections {
		t.Fatalf("failed check must not mutate: neurons=%d connections=%d", g.Neurons.Len(), g.Connections.Len())
	}
}

func TestCheckSequentialIDExhaustion(t *testing.T) {
	g := seededGraph(t, nil, "a")
	cfg := config.Default()
	cfg.Set(config.GroupNeurogenesis, "max_generated_ids", 2)
	c := newController(g, cfg)
	for i := 0; i < 2; i++ {
		if _, err := c.Check(map[string]float64{"recent_rewards": 1}); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}
	_, err := c.Check(map[string]float64{"recent_rewards": 1})
	if !errors.Is(err, model.ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted, got: %v", err)
	}
	if g.Neurons.Len() != 3 {
		t.Fatalf("unexpected neuron count: %d", g.Neurons.Len())
	}
}

func TestCheckSkipsUsedIDs(t *testing.T) {
	g := seededGraph(t, nil, "a", "novel_0")
	if err := g.RemoveNeuron("novel_0"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	c := newController(g, config.Default())
	ids, err := c.Check(map[string]float64{"novelty_exposure": 4})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(ids) != 1 || ids[0] != "novel_1" {
		t.Fatalf("expected retired id to be skipped, got=%v", ids)
	}
}

func TestCheckUUIDScheme(t *testing.T) {
	cfg := config.Default()
	cfg.Set(config.GroupNeurogenesis, "id_scheme", SchemeUUID)
	run := func() []string {
		g := seededGraph(t, nil, "a")
		ids, err := newController(g, cfg).Check(map[string]float64{"sustained_stress": 0.9})
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		return ids
	}
	first, second := run(), run()
	if len(first) != 1 || !strings.HasPrefix(first[0], "stress_") || len(first[0]) != len("stress_")+36 {
		t.Fatalf("unexpected uuid id: %v", first)
	}
	if first[0] != second[0] {
		t.Fatalf("uuid ids must be reproducible from the seed: %s != %s", first[0], second[0])
	}

	cfg.Set(config.GroupNeurogenesis, "id_scheme", "bogus")
	g := seededGraph(t, nil, "a")
	if _, err := newController(g, cfg).Check(map[string]float64{"sustained_stress": 0.9}); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unknown scheme, got: %v", err)
	}
}

func TestCheckCooldownAndAccumulate(t *testing.T) {
	g := seededGraph(t, nil, "a")
	cfg := config.Default()
	cfg.Set(config.GroupNeurogenesis, "accumulate", 1)
	cfg.Set(config.GroupNeurogenesis, "decay_rate", 0.5)
	cfg.Set(config.GroupNeurogenesis, "cooldown_calls", 1)
	c := newController(g, cfg)

	// 2, then 2*0.5+2.5 = 3.5 > 3.
	if ids, _ := c.Check(map[string]float64{"novelty_exposure": 2}); len(ids) != 0 {
		t.Fatalf("counter below threshold should not fire: %v", ids)
	}
	if ids, _ := c.Check(map[string]float64{"novelty_exposure": 2.5}); len(ids) != 1 {
		t.Fatalf("accumulated counter should fire: %v", ids)
	}
	if got := c.Stats().Counters["novelty_exposure"]; got != 0 {
		t.Fatalf("fired counter should reset, got=%f", got)
	}
	if ids, _ := c.Check(map[string]float64{"novelty_exposure": 10}); len(ids) != 0 {
		t.Fatalf("cooldown should suppress creation: %v", ids)
	}
	if ids, _ := c.Check(map[string]float64{}); len(ids) != 1 {
		t.Fatalf("expected creation after cooldown from accumulated counter: %v", ids)
	}

	c.Reset()
	if len(c.Stats().Counters) != 0 {
		t.Fatal("reset should clear counters")
	}
	if c.Stats().Calls != 4 {
		t.Fatalf("unexpected call count: %d", c.Stats().Calls)
	}
}

func TestRegisterTrigger(t *testing.T) {
	g := seededGraph(t, map[string]float64{"focus": 20}, "focus")
	cfg := config.Default()
	cfg.Set(config.GroupNeurogenesis, "attention_threshold", 0.5)
	c := newController(g, cfg)
	err := c.RegisterTrigger(Trigger{
		Signal:       "attention",
		ThresholdKey: "attention_threshold",
		Type:         model.CustomType("attention"),
		Related:      []string{"focus"},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.RegisterTrigger(Trigger{Signal: "attention", ThresholdKey: "x"}); !errors.Is(err, ErrTriggerExists) {
		t.Fatalf("expected ErrTriggerExists, got: %v", err)
	}
	if err := c.RegisterTrigger(Trigger{Signal: "x"}); !errors.Is(err, ErrInvalidTrigger) {
		t.Fatalf("expected ErrInvalidTrigger, got: %v", err)
	}

	ids, err := c.Check(map[string]float64{"attention": 1})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(ids) != 1 || ids[0] != "new_0" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if w, err := g.Weight("new_0", "focus"); err != nil || w != 0.6 {
		t.Fatalf("expected related weight 0.6, got=%f err=%v", w, err)
	}
}

func TestCheckMissingThreshold(t *testing.T) {
	g := seededGraph(t, nil, "a")
	c := newController(g, config.New())
	if ids, err := c.Check(map[string]float64{}); err != nil || len(ids) != 0 {
		t.Fatalf("no signals should be a no-op, got ids=%v err=%v", ids, err)
	}
	var cfgErr *model.ConfigError
	if _, err := c.Check(map[string]float64{"novelty_exposure": 5}); !errors.As(err, &cfgErr) || cfgErr.Key != "novelty_threshold" {
		t.Fatalf("expected novelty_threshold ConfigError, got: %v", err)
	}
}

func TestCheckFailureLeavesStateUntouched(t *testing.T) {
	withoutThreshold := config.Default().Map()
	delete(withoutThreshold[config.GroupNeurogenesis], "novelty_threshold")
	withoutThreshold[config.GroupNeurogenesis]["accumulate"] = 1.0

	infiniteStrength := config.Default()
	infiniteStrength.Set(config.GroupNeurogenesis, "new_neuron_connection_strength", math.Inf(1))

	wrongType := config.Default()
	wrongType.Set(config.GroupNeurogenesis, "wiring_fanout", "three")

	tests := []struct {
		name string
		cfg  *config.Config
		key  string
	}{
		{name: "missing-threshold", cfg: config.FromMap(withoutThreshold), key: "novelty_threshold"},
		{name: "infinite-strength", cfg: infiniteStrength, key: "new_neuron_connection_strength"},
		{name: "non-numeric-fanout", cfg: wrongType, key: "wiring_fanout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := seededGraph(t, map[string]float64{"a": 60, "b": 40}, "a", "b")
			c := newController(g, tc.cfg)
			before := c.Stats()
			version := g.Version()

			_, err := c.Check(map[string]float64{"novelty_exposure": 5})
			var cfgErr *model.ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Key != tc.key {
				t.Fatalf("expected ConfigError on %s, got: %v", tc.key, err)
			}
			if !reflect.DeepEqual(c.Stats(), before) {
				t.Fatalf("failed check changed stats: before=%+v after=%+v", before, c.Stats())
			}
			if g.Version() != version || g.Neurons.Len() != 2 || g.Connections.Len() != 0 {
				t.Fatalf("failed check mutated the graph: neurons=%d connections=%d", g.Neurons.Len(), g.Connections.Len())
			}
		})
	}
}

func TestCheckPlansWiringAcrossNewNeurons(t *testing.T) {
	g := seededGraph(t, map[string]float64{"a": 40}, "a")
	cfg := config.Default()
	cfg.Set(config.GroupNeurogenesis, "neurons_per_trigger", 2)
	c := newController(g, cfg)

	ids, err := c.Check(map[string]float64{"novelty_exposure": 5})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected two neurons, got=%v", ids)
	}
	// the second neuron starts at initial_state 50 and outranks a (40).
	if !g.Connections.Has("novel_1", "novel_0") || !g.Connections.Has("novel_0", "novel_1") {
		t.Fatal("expected the second new neuron to wire to the first")
	}
	if got := len(g.Connections.Outgoing("novel_1")); got != 2 {
		t.Fatalf("expected novel_1 wired to a and novel_0, got=%d", got)
	}
}
