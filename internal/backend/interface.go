// Package backend assembles the ledger's store and event publisher from configuration.
package backend

import (
	"context"

	"ledger/internal/ledger"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// ReadyFunc reports whether the backend is usable
type ReadyFunc func(ctx context.Context) error

// Result contains the store, the publisher and an optional cleanup function
type Result struct {
	Store     ledger.Store
	Publisher ledger.Publisher
	Ready     ReadyFunc
	Cleanup   CleanupFunc
}

// Close runs the cleanup function, if any.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Config holds configuration for backend creation
type Config struct {
	Type StoreType

	// SQLite specific
	SQLiteDSN string

	// Event feed, optional for every store type
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// StoreType represents the type of transaction store
type StoreType string

const (
	MemoryStore StoreType = "memory"
	SQLiteStore StoreType = "sqlite"
)

// String implements fmt.Stringer
func (t StoreType) String() string {
	return string(t)
}

// IsValid returns true if the store type is valid
func (t StoreType) IsValid() bool {
	switch t {
	case MemoryStore, SQLiteStore:
		return true
	default:
		return false
	}
}
