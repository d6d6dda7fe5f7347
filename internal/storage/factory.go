package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedStore = errors.New("unsupported store backend")
	ErrStorePath        = errors.New("store path is required")
)

// StoreKinds lists the backend names NewStore accepts.
var StoreKinds = []string{"memory", "sqlite"}

// NewStore builds the checkpoint store named by kind, ignoring case and
// surrounding space. An empty kind selects the in-memory store; sqlite needs
// a database path.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if strings.TrimSpace(sqlitePath) == "" {
			return nil, fmt.Errorf("%w: sqlite backend", ErrStorePath)
		}
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedStore, kind, strings.Join(StoreKinds, ", "))
	}
}

// CloseIfSupported closes stores that hold resources; the memory store has none.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
