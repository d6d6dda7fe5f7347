package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"neuroplex/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

var requiredNetworkFields = []string{"neurons", "connections", "config"}

func EncodeNetwork(snapshot model.NetworkSnapshot) ([]byte, error) {
	return json.Marshal(stamp(snapshot))
}

// EncodeNetworkIndent is EncodeNetwork formatted for files meant to be read by people.
func EncodeNetworkIndent(snapshot model.NetworkSnapshot) ([]byte, error) {
	return json.MarshalIndent(stamp(snapshot), "", "  ")
}

// DecodeNetwork parses and validates a snapshot. Schema violations are reported
// as *model.MalformedFileError naming the offending field; dangling or duplicate
// references wrap model.ErrIntegrity. Records without version fields are read
// as the current version.
func DecodeNetwork(data []byte) (model.NetworkSnapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return model.NetworkSnapshot{}, malformed(err)
	}
	for _, field := range requiredNetworkFields {
		raw, ok := top[field]
		if !ok {
			return model.NetworkSnapshot{}, &model.MalformedFileError{Field: field, Err: errors.New("missing required field")}
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return model.NetworkSnapshot{}, &model.MalformedFileError{Field: field, Err: errors.New("must not be null")}
		}
	}

	var snapshot model.NetworkSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.NetworkSnapshot{}, malformed(err)
	}
	if snapshot.SchemaVersion == 0 && snapshot.CodecVersion == 0 {
		snapshot.VersionedRecord = currentVersion()
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.NetworkSnapshot{}, err
	}
	if err := validateNetwork(snapshot); err != nil {
		return model.NetworkSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeTrainingHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeTrainingHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func validateNetwork(s model.NetworkSnapshot) error {
	ids := make(map[string]struct{}, len(s.Neurons))
	for i, n := range s.Neurons {
		if n.ID == "" {
			return &model.MalformedFileError{Field: fmt.Sprintf("neurons[%d].id", i), Err: errors.New("must not be empty")}
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: duplicate neuron id %s", model.ErrIntegrity, n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, id := range s.RetiredIDs {
		if _, live := ids[id]; live {
			return fmt.Errorf("%w: retired id %s is also a live neuron", model.ErrIntegrity, id)
		}
	}

	edges := make(map[model.ConnectionKey]struct{}, len(s.Connections))
	for i, c := range s.Connections {
		if c.Source == "" {
			return &model.MalformedFileError{Field: fmt.Sprintf("connections[%d].source", i), Err: errors.New("must not be empty")}
		}
		if c.Target == "" {
			return &model.MalformedFileError{Field: fmt.Sprintf("connections[%d].target", i), Err: errors.New("must not be empty")}
		}
		if _, ok := ids[c.Source]; !ok {
			return fmt.Errorf("%w: connection %d references unknown source %s", model.ErrIntegrity, i, c.Source)
		}
		if _, ok := ids[c.Target]; !ok {
			return fmt.Errorf("%w: connection %d references unknown target %s", model.ErrIntegrity, i, c.Target)
		}
		if _, dup := edges[c.Key()]; dup {
			return fmt.Errorf("%w: duplicate connection %s -> %s", model.ErrIntegrity, c.Source, c.Target)
		}
		edges[c.Key()] = struct{}{}
	}
	return nil
}

func malformed(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "$"
		}
		return &model.MalformedFileError{Field: field, Err: fmt.Errorf("cannot use %s as %s", typeErr.Value, typeErr.Type)}
	}
	return &model.MalformedFileError{Field: "$", Err: err}
}

func stamp(s model.NetworkSnapshot) model.NetworkSnapshot {
	if s.SchemaVersion == 0 && s.CodecVersion == 0 {
		s.VersionedRecord = currentVersion()
	}
	return s
}

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema %d codec %d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
