package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"neuroplex/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

// MemoryStore keeps encoded snapshots so callers never share mutable state
// with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	networks    map[string][]byte
	history     map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.networks = make(map[string][]byte)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveNetwork(_ context.Context, name string, snapshot model.NetworkSnapshot) error {
	if name == "" {
		return errors.New("network name is required")
	}
	payload, err := EncodeNetwork(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.networks[name] = payload
	return nil
}

func (s *MemoryStore) GetNetwork(_ context.Context, name string) (model.NetworkSnapshot, bool, error) {
	s.mu.RLock()
	payload, ok := s.networks[name]
	s.mu.RUnlock()

	if !ok {
		return model.NetworkSnapshot{}, false, nil
	}
	snapshot, err := DecodeNetwork(payload)
	if err != nil {
		return model.NetworkSnapshot{}, false, fmt.Errorf("decode network %s: %w", name, err)
	}
	return snapshot, true, nil
}

func (s *MemoryStore) ListNetworks(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.networks))
	for name := range s.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) DeleteNetwork(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.networks, name)
	return nil
}

func (s *MemoryStore) SaveTrainingHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetTrainingHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}
