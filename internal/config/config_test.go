package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"neuroplex/internal/model"
)

func TestDefaultGroupsCarryDocumentedOptions(t *testing.T) {
	cfg := Default()

	rate, err := cfg.Group(GroupHebbian).Float("base_learning_rate")
	if err != nil {
		t.Fatalf("base_learning_rate: %v", err)
	}
	if rate != 0.1 {
		t.Fatalf("unexpected learning rate: %f", rate)
	}
	threshold, err := cfg.Group(GroupNeurogenesis).Float("novelty_threshold")
	if err != nil {
		t.Fatalf("novelty_threshold: %v", err)
	}
	if threshold != 3.0 {
		t.Fatalf("unexpected novelty threshold: %f", threshold)
	}
	if got, err := cfg.Group(GroupBackprop).StringOr("activation", ""); err != nil || got != "sigmoid" {
		t.Fatalf("unexpected backprop activation: %q err=%v", got, err)
	}
	if got, err := cfg.Group(GroupBackprop).FloatOr("momentum", 0); err != nil || got != 0.9 {
		t.Fatalf("unexpected backprop momentum: %f err=%v", got, err)
	}
}

func TestMissingRequiredKeyIsConfigurationError(t *testing.T) {
	cfg := New()
	_, err := cfg.Group(GroupHebbian).Float("active_threshold")
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Key != "active_threshold" || cfgErr.Group != GroupHebbian {
		t.Fatalf("expected key in error, got %+v", cfgErr)
	}
}

func TestNonNumericRequiredKeyIsConfigurationError(t *testing.T) {
	cfg := New()
	cfg.Set(GroupHebbian, "active_threshold", "high")
	if _, err := cfg.Group(GroupHebbian).Float("active_threshold"); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFromMapNormalizesNumbers(t *testing.T) {
	cfg := FromMap(map[string]map[string]any{
		"hebbian": {"active_threshold": 40, "label": "x"},
	})
	got := cfg.Map()["hebbian"]["active_threshold"]
	if _, ok := got.(float64); !ok {
		t.Fatalf("expected float64, got %T", got)
	}
	if label, err := cfg.Group("hebbian").StringOr("label", ""); err != nil || label != "x" {
		t.Fatal("expected string option to survive")
	}
}

func TestLoadFileMergesOverDefaultsAndIgnoresUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"cfg.json": `{"hebbian":{"active_threshold":30,"future_option":7},"extra":{"k":1}}`,
		"cfg.yaml": "hebbian:\n  active_threshold: 30\n  future_option: 7\nextra:\n  k: 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			cfg, err := LoadFile(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			threshold, err := cfg.Group(GroupHebbian).Float("active_threshold")
			if err != nil || threshold != 30 {
				t.Fatalf("unexpected threshold=%f err=%v", threshold, err)
			}
			rate, err := cfg.Group(GroupHebbian).Float("base_learning_rate")
			if err != nil || rate != 0.1 {
				t.Fatalf("expected default learning rate, got %f err=%v", rate, err)
			}
		})
	}
}

func TestLoadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSaveFileRoundTrip(t *testing.T) {
	for _, name := range []string{"out.json", "out.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.Set(GroupHebbian, "active_threshold", 42)
			if err := cfg.SaveFile(path); err != nil {
				t.Fatalf("save: %v", err)
			}
			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !reflect.DeepEqual(loaded.Map(), cfg.Map()) {
				t.Fatalf("round trip mismatch:\n got=%v\nwant=%v", loaded.Map(), cfg.Map())
			}
		})
	}
}

func TestGroupFallbacks(t *testing.T) {
	cfg := New()
	cfg.Set(GroupNetwork, "allow_self_loops", false)
	cfg.Set(GroupNetwork, "label", "  ")
	g := cfg.Group(GroupNetwork)
	if allow, err := g.BoolOr("allow_self_loops", true); err != nil || allow {
		t.Fatalf("expected explicit false, got=%v err=%v", allow, err)
	}
	if v, err := g.IntOr("missing", 7); err != nil || v != 7 {
		t.Fatalf("expected int fallback, got=%d err=%v", v, err)
	}
	if v, err := g.FloatOr("missing", 1.5); err != nil || v != 1.5 {
		t.Fatalf("expected float fallback, got=%f err=%v", v, err)
	}
	if v, err := g.StringOr("label", "none"); err != nil || v != "none" {
		t.Fatalf("expected blank string fallback, got=%q err=%v", v, err)
	}
}

func TestOptionalGettersRejectWrongTypes(t *testing.T) {
	cfg := FromMap(map[string]map[string]any{
		GroupHebbian: {
			"max_weight":    "2",
			"fanout":        2.5,
			"clamp":         "yes",
			"activation":    3,
			"history_limit": 4,
		},
	})
	g := cfg.Group(GroupHebbian)
	checks := []struct {
		key string
		get func() error
	}{
		{key: "max_weight", get: func() error { _, err := g.FloatOr("max_weight", 1); return err }},
		{key: "fanout", get: func() error { _, err := g.IntOr("fanout", 3); return err }},
		{key: "clamp", get: func() error { _, err := g.BoolOr("clamp", true); return err }},
		{key: "activation", get: func() error { _, err := g.StringOr("activation", "identity"); return err }},
	}
	for _, c := range checks {
		err := c.get()
		var cfgErr *model.ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Group != GroupHebbian || cfgErr.Key != c.key {
			t.Fatalf("%s: expected ConfigError, got: %v", c.key, err)
		}
	}
	if v, err := g.IntOr("history_limit", 10); err != nil || v != 4 {
		t.Fatalf("expected integral value to be accepted, got=%d err=%v", v, err)
	}
}

func TestReaderKeepsFirstError(t *testing.T) {
	cfg := FromMap(map[string]map[string]any{
		GroupPropagation: {"clamp_min": "low", "clamp_max": "high", "retention": 0.25},
	})
	r := cfg.Group(GroupPropagation).Reader()
	if got := r.Float("retention", 0); got != 0.25 {
		t.Fatalf("unexpected retention: %f", got)
	}
	r.Float("clamp_min", 0)
	r.Float("clamp_max", 100)
	if got := r.Int("history_length", 10); got != 10 {
		t.Fatalf("expected fallback after error, got=%d", got)
	}
	var cfgErr *model.ConfigError
	if !errors.As(r.Err(), &cfgErr) || cfgErr.Key != "clamp_min" {
		t.Fatalf("expected first ConfigError on clamp_min, got: %v", r.Err())
	}
}
