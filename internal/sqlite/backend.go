// Package sqlite implements the SRD store backend. JSON files under the data
// root are the source of truth; an SQLite database rebuilt on every Attach
// serves as the query engine. A single RWMutex serializes writers within a
// process, and an advisory lock file keeps a second process from attaching
// the same data directory.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/tome/pkg/types"
)

// indexFileName is the SQLite index, recreated from the JSON files on every
// Attach.
const indexFileName = "index.db"

// lockFileName is held with an exclusive flock while a backend is attached.
const lockFileName = ".lock"

// Backend implements the types.Store interface.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	lock     *os.File
	meta     types.Metadata

	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a new backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		meta:     types.NewMetadata(),
		logger:   zap.NewNop(),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach initializes the backend with the given configuration.
// Creates the partition directories if needed, loads every JSON file and
// indexes the entries in a fresh SQLite database.
// Returns ErrAlreadyAttached if already attached and ErrStoreLocked if
// another backend has the data directory attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := EnsureLayout(config.DataDir); err != nil {
		return err
	}

	lock, err := lockDir(filepath.Join(config.DataDir, srdDirName, lockFileName))
	if err != nil {
		return err
	}
	if err := b.attach(config, lock); err != nil {
		lock.Close()
		return err
	}
	return nil
}

// attach loads the data directory and builds the index. Callers hold b.mu
// and the directory lock.
func (b *Backend) attach(config types.Config, lock *os.File) error {
	loaded := Load(config.DataDir, b.logger)

	dbPath := filepath.Join(config.DataDir, srdDirName, indexFileName)
	// The index is derived state; start from an empty file every time.
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	// One connection: writers hold b.mu exclusively and never mix tx and db.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	if err := loadIndex(tx, loaded, b.logger); err != nil {
		tx.Rollback()
		db.Close()
		return fmt.Errorf("loading index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		db.Close()
		return fmt.Errorf("committing load transaction: %w", err)
	}

	b.db = db
	b.lock = lock
	b.config = config
	b.meta = loaded.Metadata.Clone()
	b.attached = true

	b.logger.Info("store attached",
		zap.String("data_dir", config.DataDir),
		zap.Any("official", loaded.Official.Counts()),
		zap.Any("custom", loaded.Custom.Counts()))
	return nil
}

// Detach releases all resources held by the backend.
// After Detach, all operations return ErrStoreDetached.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	if b.lock != nil {
		b.lock.Close()
		b.lock = nil
	}
	b.attached = false
	return nil
}

// DataDir returns the data root of the attached store.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.DataDir
}

// Snapshot returns every entry of both partitions in file order plus a copy
// of the metadata.
func (b *Backend) Snapshot() (*types.Database, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	db := types.NewDatabase()
	for _, s := range types.Sources {
		p := db.Partition(s)
		for _, t := range types.AllEntryTypes {
			entries, err := readEntries(b.db, t, s)
			if err != nil {
				return nil, err
			}
			p[t] = entries
		}
	}
	db.Metadata = b.meta.Clone()
	return db, nil
}

// Metadata returns a copy of the metadata record.
func (b *Backend) Metadata() (types.Metadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.Metadata{}, types.ErrStoreDetached
	}
	return b.meta.Clone(), nil
}

// GetEntry returns the entry with id, looking in the official partition
// first. Returns ErrNotFound if neither partition holds it.
func (b *Backend) GetEntry(t types.EntryType, id string) (types.Entry, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidEntryType, t)
	}
	if id == "" {
		return nil, types.ErrInvalidID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	for _, s := range types.Sources {
		e, err := getEntry(b.db, t, s, id)
		if err == types.ErrNotFound {
			continue
		}
		return e, err
	}
	return nil, types.ErrNotFound
}

// createSchema executes every table and index statement.
func createSchema(db *sql.DB) error {
	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction and commits when fn succeeds.
// The caller must hold b.mu write lock.
func (b *Backend) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// newUUID generates a UUID v7 for custom entry IDs.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
