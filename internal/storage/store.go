package storage

import (
	"context"

	"neuroplex/internal/model"
)

// Store persists named network snapshots and per-run training histories.
type Store interface {
	Init(ctx context.Context) error
	SaveNetwork(ctx context.Context, name string, snapshot model.NetworkSnapshot) error
	GetNetwork(ctx context.Context, name string) (model.NetworkSnapshot, bool, error)
	ListNetworks(ctx context.Context) ([]string, error)
	DeleteNetwork(ctx context.Context, name string) error
	SaveTrainingHistory(ctx context.Context, runID string, history []float64) error
	GetTrainingHistory(ctx context.Context, runID string) ([]float64, bool, error)
}
