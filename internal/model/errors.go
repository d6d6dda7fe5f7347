package model

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID         = errors.New("duplicate neuron id")
	ErrUnknownNeuron       = errors.New("unknown neuron")
	ErrInvalidNeuron       = errors.New("invalid neuron")
	ErrDuplicateConnection = errors.New("duplicate connection")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrSelfLoop            = errors.New("self-loop not allowed")
	ErrInvalidLayer        = errors.New("invalid layer partition")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrResourceExhausted   = errors.New("resource exhausted")
	ErrMalformedFile       = errors.New("malformed network file")
	ErrIntegrity           = errors.New("network integrity violation")
	ErrConfiguration       = errors.New("configuration error")
)

// MalformedFileError reports a schema violation at a specific field path.
type MalformedFileError struct {
	Field string
	Err   error
}

func (e *MalformedFileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: field %q", ErrMalformedFile, e.Field)
	}
	return fmt.Sprintf("%s: field %q: %v", ErrMalformedFile, e.Field, e.Err)
}

func (e *MalformedFileError) Is(target error) bool {
	return target == ErrMalformedFile
}

func (e *MalformedFileError) Unwrap() error {
	return e.Err
}

// ConfigError reports a missing or mistyped option.
type ConfigError struct {
	Group string
	Key   string
	Cause string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s.%s %s", ErrConfiguration, e.Group, e.Key, e.Cause)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}
