package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"neuroplex/internal/model"
)

// WriteNetworkFile writes the snapshot next to path and renames it into place,
// so readers never observe a partially written file.
func WriteNetworkFile(path string, snapshot model.NetworkSnapshot) error {
	payload, err := EncodeNetworkIndent(snapshot)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func ReadNetworkFile(path string) (model.NetworkSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.NetworkSnapshot{}, err
	}
	snapshot, err := DecodeNetwork(data)
	if err != nil {
		return model.NetworkSnapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snapshot, nil
}
