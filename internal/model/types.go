package model

import (
	"encoding/json"
	"strings"
)

// Scale is the canonical upper bound of a neuron's activation state.
// States live on [0, Scale]; algorithms that multiply activations divide by Scale first.
const Scale = 100.0

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type NeuronKind uint8

const (
	KindDefault NeuronKind = iota
	KindNovelty
	KindStress
	KindReward
	KindCustom
)

func (k NeuronKind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindNovelty:
		return "novelty"
	case KindStress:
		return "stress"
	case KindReward:
		return "reward"
	default:
		return "custom"
	}
}

// NeuronType is a closed variant: one of the built-in kinds, or KindCustom
// carrying a domain-specific label.
type NeuronType struct {
	Kind  NeuronKind
	Label string
}

var (
	TypeDefault = NeuronType{Kind: KindDefault}
	TypeNovelty = NeuronType{Kind: KindNovelty}
	TypeStress  = NeuronType{Kind: KindStress}
	TypeReward  = NeuronType{Kind: KindReward}
)

func CustomType(label string) NeuronType {
	return ParseNeuronType(label)
}

// ParseNeuronType maps a type name to its variant. Unknown names become custom types.
func ParseNeuronType(name string) NeuronType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return TypeDefault
	case "novelty":
		return TypeNovelty
	case "stress":
		return TypeStress
	case "reward":
		return TypeReward
	default:
		return NeuronType{Kind: KindCustom, Label: strings.TrimSpace(name)}
	}
}

func (t NeuronType) String() string {
	if t.Kind == KindCustom {
		return t.Label
	}
	return t.Kind.String()
}

func (t NeuronType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *NeuronType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*t = ParseNeuronType(name)
	return nil
}

type Neuron struct {
	ID      string     `json:"id"`
	Type    NeuronType `json:"type"`
	State   float64    `json:"state"`
	Bias    float64    `json:"bias,omitempty"`
	History []float64  `json:"history,omitempty"`
}

// Record appends value to the activation history, keeping at most limit entries.
func (n *Neuron) Record(value float64, limit int) {
	if limit <= 0 {
		return
	}
	n.History = append(n.History, value)
	if len(n.History) > limit {
		n.History = append(n.History[:0], n.History[len(n.History)-limit:]...)
	}
}

// MeanActivity averages the recorded history; zero when nothing was recorded.
func (n Neuron) MeanActivity() float64 {
	if len(n.History) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range n.History {
		sum += v
	}
	return sum / float64(len(n.History))
}

type ConnectionKey struct {
	Source string
	Target string
}

type Connection struct {
	Source string    `json:"source"`
	Target string    `json:"target"`
	Weight float64   `json:"weight"`
	Trace  []float64 `json:"-"`
}

func (c Connection) Key() ConnectionKey {
	return ConnectionKey{Source: c.Source, Target: c.Target}
}

func (c Connection) Excitatory() bool { return c.Weight > 0 }
func (c Connection) Inhibitory() bool { return c.Weight < 0 }

type NetworkMetadata struct {
	UpdateCount int `json:"update_count"`
}

// NetworkSnapshot is the flattened, persistable form of a network.
type NetworkSnapshot struct {
	VersionedRecord
	Neurons     []Neuron                  `json:"neurons"`
	Connections []Connection              `json:"connections"`
	Config      map[string]map[string]any `json:"config"`
	RetiredIDs  []string                  `json:"retired_ids,omitempty"`
	Metadata    NetworkMetadata           `json:"metadata"`
}

type Statistics struct {
	Neurons       int     `json:"neurons"`
	Connections   int     `json:"connections"`
	MeanWeight    float64 `json:"avg_weight"`
	WeightStd     float64 `json:"weight_std"`
	PositiveRatio float64 `json:"positive_ratio"`
	NegativeRatio float64 `json:"negative_ratio"`
	UpdateCount   int     `json:"update_count"`
}
