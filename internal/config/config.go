package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"neuroplex/internal/model"
)

const (
	GroupHebbian      = "hebbian"
	GroupNeurogenesis = "neurogenesis"
	GroupBackprop     = "backprop"
	GroupPropagation  = "propagation"
	GroupCombined     = "combined"
	GroupNetwork      = "network"
)

// Config holds named parameter groups. Each algorithm reads its own group.
// Unknown keys are carried through untouched.
type Config struct {
	groups map[string]map[string]any
}

// New returns an empty configuration. Every required option read from it fails.
func New() *Config {
	return &Config{groups: make(map[string]map[string]any)}
}

func Default() *Config {
	return FromMap(map[string]map[string]any{
		GroupHebbian: {
			"base_learning_rate": 0.1,
			"active_threshold":   50.0,
			"max_weight":         1.0,
			"min_weight":         -1.0,
			"weight_decay":       0.0,
		},
		GroupNeurogenesis: {
			"novelty_threshold":              3.0,
			"stress_threshold":               0.7,
			"reward_threshold":               0.6,
			"max_new_per_call":               3.0,
			"neurons_per_trigger":            1.0,
			"max_total_neurons":              0.0,
			"new_neuron_connection_strength": 0.3,
			"wiring_fanout":                  3.0,
			"initial_state":                  50.0,
			"accumulate":                     0.0,
			"decay_rate":                     0.95,
			"cooldown_calls":                 0.0,
			"id_scheme":                      "sequential",
			"max_generated_ids":              1000000.0,
		},
		GroupBackprop: {
			"learning_rate": 0.5,
			"momentum":      0.9,
			"activation":    "sigmoid",
			"shuffle":       0.0,
			"target_error":  0.0,
		},
		GroupPropagation: {
			"activation":     "identity",
			"clamp":          1.0,
			"clamp_min":      0.0,
			"clamp_max":      model.Scale,
			"retention":      0.0,
			"normalize":      0.0,
			"history_length": 10.0,
		},
		GroupCombined: {
			"neurogenesis_learning_boost": 1.5,
		},
		GroupNetwork: {
			"allow_self_loops": 1.0,
		},
	})
}

// FromMap deep-copies groups, normalizing numeric values to float64.
func FromMap(groups map[string]map[string]any) *Config {
	cfg := New()
	for name, values := range groups {
		group := make(map[string]any, len(values))
		for key, value := range values {
			group[key] = normalize(value)
		}
		cfg.groups[name] = group
	}
	return cfg
}

// Map returns a deep copy of all groups.
func (c *Config) Map() map[string]map[string]any {
	out := make(map[string]map[string]any, len(c.groups))
	for name, values := range c.groups {
		group := make(map[string]any, len(values))
		for key, value := range values {
			group[key] = value
		}
		out[name] = group
	}
	return out
}

func (c *Config) Clone() *Config {
	return FromMap(c.groups)
}

// Merge overlays every option of other onto c, group by group.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	for name, values := range other.groups {
		for key, value := range values {
			c.Set(name, key, value)
		}
	}
}

func (c *Config) Set(group, key string, value any) {
	values, ok := c.groups[group]
	if !ok {
		values = make(map[string]any)
		c.groups[group] = values
	}
	values[key] = normalize(value)
}

func (c *Config) Group(name string) Group {
	return Group{name: name, values: c.groups[name]}
}

func (c *Config) GroupNames() []string {
	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group is a read-only view of one parameter group.
type Group struct {
	name   string
	values map[string]any
}

func (g Group) Name() string { return g.name }

func (g Group) Has(key string) bool {
	_, ok := g.values[key]
	return ok
}

// Float reads a required numeric option.
func (g Group) Float(key string) (float64, error) {
	raw, ok := g.values[key]
	if !ok {
		return 0, &model.ConfigError{Group: g.name, Key: key, Cause: "is required"}
	}
	v, ok := asFloat64(raw)
	if !ok {
		return 0, &model.ConfigError{Group: g.name, Key: key, Cause: fmt.Sprintf("must be numeric, got %T", raw)}
	}
	return v, nil
}

// FloatOr reads an optional numeric option. A present value of the wrong
// type is an error, never a silent fallback.
func (g Group) FloatOr(key string, fallback float64) (float64, error) {
	if !g.Has(key) {
		return fallback, nil
	}
	return g.Float(key)
}

func (g Group) IntOr(key string, fallback int) (int, error) {
	if !g.Has(key) {
		return fallback, nil
	}
	v, err := g.Float(key)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, &model.ConfigError{Group: g.name, Key: key, Cause: fmt.Sprintf("must be an integer, got %v", v)}
	}
	return int(v), nil
}

// BoolOr accepts booleans or numbers (non-zero is true).
func (g Group) BoolOr(key string, fallback bool) (bool, error) {
	raw, ok := g.values[key]
	if !ok {
		return fallback, nil
	}
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	if v, ok := asFloat64(raw); ok {
		return v != 0, nil
	}
	return false, &model.ConfigError{Group: g.name, Key: key, Cause: fmt.Sprintf("must be a boolean or number, got %T", raw)}
}

// StringOr treats a blank string as unset.
func (g Group) StringOr(key, fallback string) (string, error) {
	raw, ok := g.values[key]
	if !ok {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", &model.ConfigError{Group: g.name, Key: key, Cause: fmt.Sprintf("must be a string, got %T", raw)}
	}
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return s, nil
}

// Reader reads several optional values from one group and keeps the first
// error, so a caller checks Err once after all reads.
type Reader struct {
	group Group
	err   error
}

func (g Group) Reader() *Reader { return &Reader{group: g} }

func (r *Reader) Float(key string, fallback float64) float64 {
	v, err := r.group.FloatOr(key, fallback)
	r.keep(err)
	return v
}

func (r *Reader) Int(key string, fallback int) int {
	v, err := r.group.IntOr(key, fallback)
	r.keep(err)
	return v
}

func (r *Reader) Bool(key string, fallback bool) bool {
	v, err := r.group.BoolOr(key, fallback)
	r.keep(err)
	return v
}

func (r *Reader) String(key, fallback string) string {
	v, err := r.group.StringOr(key, fallback)
	r.keep(err)
	return v
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

// LoadFile reads a JSON or YAML file and merges it over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", model.ErrConfiguration, path, err)
	}
	cfg := Default()
	cfg.Merge(FromMap(raw))
	return cfg, nil
}

func (c *Config) SaveFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c.groups)
	default:
		data, err = json.MarshalIndent(c.groups, "", "  ")
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func normalize(v any) any {
	if f, ok := asFloat64(v); ok {
		return f
	}
	return v
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
