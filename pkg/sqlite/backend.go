// Package sqlite provides the public API for the SQLite-indexed SRD store.
// This package exposes the factory function for creating backends while
// keeping implementation details internal.
package sqlite

import (
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tome/internal/sqlite"
	"github.com/mesh-intelligence/tome/pkg/types"
)

// Option configures a backend.
type Option = sqlite.Option

// WithLogger sets the logger used for load warnings and mutations.
func WithLogger(logger *zap.Logger) Option { return sqlite.WithLogger(logger) }

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option { return sqlite.WithClock(now) }

// NewBackend creates a new SQLite-indexed store.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "data",
//	})
//	defer store.Detach()
func NewBackend(opts ...Option) types.Store {
	return sqlite.NewBackend(opts...)
}
