package neuroplex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"neuroplex/internal/config"
	"neuroplex/internal/model"
	"neuroplex/internal/storage"
)

var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Store persists named snapshots; see storage.NewStore for the backends.
type Store = storage.Store

func NewStore(kind, sqlitePath string) (Store, error) {
	return storage.NewStore(kind, sqlitePath)
}

func DefaultStoreKind() string { return storage.DefaultStoreKind() }

func CloseStore(store Store) error { return storage.CloseIfSupported(store) }

// Snapshot flattens the network into its persistable form. Removed ids are
// kept so that a restored network still refuses to reuse them.
func (n *Network) Snapshot() Snapshot {
	ids := n.graph.Neurons.IDs()
	neurons := make([]model.Neuron, 0, len(ids))
	for _, id := range ids {
		neuron, err := n.graph.Neurons.Get(id)
		if err != nil {
			continue
		}
		neurons = append(neurons, neuron)
	}
	connections := n.graph.Connections.All()
	for i := range connections {
		connections[i].Trace = nil
	}
	return Snapshot{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		Neurons:     neurons,
		Connections: connections,
		Config:      n.config.Map(),
		RetiredIDs:  n.graph.Neurons.RetiredIDs(),
		Metadata:    model.NetworkMetadata{UpdateCount: n.updateCount},
	}
}

// FromSnapshot rebuilds a network. A snapshot that carries a config is
// restored with exactly that config; only a snapshot without one uses
// opts.Config (or the defaults). Seed and logger come from opts.
func FromSnapshot(s Snapshot, opts Options) (*Network, error) {
	if len(s.Config) > 0 {
		opts.Config = config.FromMap(s.Config)
	} else if opts.Config != nil {
		opts.Config = opts.Config.Clone()
	}

	n := New(opts)
	if err := n.applySelfLoopPolicy(); err != nil {
		return nil, err
	}
	for _, neuron := range s.Neurons {
		if err := n.graph.AddNeuron(neuron); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
	}
	n.graph.Retire(s.RetiredIDs...)
	for _, c := range s.Connections {
		if err := n.graph.Connect(c.Source, c.Target, c.Weight); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
	}
	n.updateCount = s.Metadata.UpdateCount
	n.logger.Debug("network restored",
		slog.Int("neurons", len(s.Neurons)),
		slog.Int("connections", len(s.Connections)),
	)
	return n, nil
}

// Save writes the network to path as JSON, replacing any existing file atomically.
func (n *Network) Save(path string) error {
	return storage.WriteNetworkFile(path, n.Snapshot())
}

// Load reads a file written by Save. Schema problems fail with a
// *MalformedFileError; dangling or duplicate ids fail with ErrIntegrity.
func Load(path string, opts Options) (*Network, error) {
	snapshot, err := storage.ReadNetworkFile(path)
	if err != nil {
		return nil, err
	}
	return FromSnapshot(snapshot, opts)
}

// Checkpoint stores the current snapshot under name.
func (n *Network) Checkpoint(ctx context.Context, store Store, name string) error {
	if err := store.SaveNetwork(ctx, name, n.Snapshot()); err != nil {
		return fmt.Errorf("checkpoint %s: %w", name, err)
	}
	n.logger.Info("checkpoint saved", slog.String("name", name))
	return nil
}

func Restore(ctx context.Context, store Store, name string, opts Options) (*Network, error) {
	snapshot, ok, err := store.GetNetwork(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, name)
	}
	return FromSnapshot(snapshot, opts)
}
