package types

import "errors"

// Store defines the interface for the SRD reference data store.
// Callers attach to a data directory, read and mutate entries, and detach
// when done.
type Store interface {
	// Attach loads the data directory described by config. Creates the
	// directory layout if it does not exist. Returns ErrAlreadyAttached if
	// called while already attached and ErrStoreLocked if another store
	// holds the data directory.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, operations return ErrStoreDetached.
	Detach() error

	// Snapshot returns every entry of both partitions plus the metadata.
	Snapshot() (*Database, error)

	// Metadata returns a copy of the current metadata record.
	Metadata() (Metadata, error)

	// GetEntry returns the entry with the given id, looking in the official
	// partition first. Returns ErrNotFound if neither partition has it.
	GetEntry(t EntryType, id string) (Entry, error)

	// AddCustomEntry stores a new custom entry. An empty id is replaced by a
	// generated one and missing timestamps are set.
	AddCustomEntry(t EntryType, e Entry) (Entry, error)

	// UpdateCustomEntry merges patch into the custom entry with the given id
	// and refreshes its updatedAt timestamp.
	UpdateCustomEntry(t EntryType, id string, patch map[string]any) (Entry, error)

	// RemoveCustomEntry deletes the custom entry with the given id.
	RemoveCustomEntry(t EntryType, id string) error

	// ReplaceOfficial overwrites the official partition of every type present
	// in entries and records the sync in the metadata.
	ReplaceOfficial(entries map[EntryType][]Entry, info SyncInfo) error

	// SearchEntries returns the entries of type t whose name contains query,
	// case-insensitively, split by partition. An empty query matches all.
	SearchEntries(t EntryType, query string) (official, custom []Entry, err error)

	// Fetch runs a filtered, paginated query.
	Fetch(q Query) (*QueryResult, error)
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrStoreLocked     = errors.New("data directory is attached by another store")
)

// Entry operation errors.
var (
	ErrNotFound         = errors.New("entry not found")
	ErrInvalidID        = errors.New("invalid entry ID")
	ErrDuplicateID      = errors.New("entry ID already exists")
	ErrInvalidEntryType = errors.New("invalid entry type")
	ErrInvalidData      = errors.New("invalid entry data")
	ErrOfficialReadOnly = errors.New("official entries are read-only")
	ErrInvalidFilter    = errors.New("invalid filter value")
)
