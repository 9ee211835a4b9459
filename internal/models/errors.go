package models

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreNotBuilt is returned when the index is queried or opened before it was built.
	ErrStoreNotBuilt = errors.New("vector store has not been built")
	// ErrNoMatch means no stored chunk is relevant enough to answer the query.
	ErrNoMatch = errors.New("unable to find matching results")
)

// ConfigurationError reports a bad or missing configuration value.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Key, e.Reason)
}

// UpstreamError wraps a failure of the hosted embedding or chat API.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
