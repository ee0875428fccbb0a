// Package srdsync decides when official SRD data is stale and refreshes it
// from the upstream API.
package srdsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/tome/pkg/types"
)

// Defaults for a Manager.
const (
	DefaultMaxAge   = 168 * time.Hour
	DefaultMaxPages = 50
)

// ErrSyncInProgress is reported when a sync is requested while another one
// is running.
var ErrSyncInProgress = errors.New("sync already in progress")

// Fetcher retrieves converted official entries from the upstream API.
type Fetcher interface {
	FetchType(ctx context.Context, t types.EntryType, maxPages int) ([]types.Entry, error)
	BaseURL() string
	APIVersion() string
}

// OfficialStore is the part of types.Store the manager writes to.
type OfficialStore interface {
	Metadata() (types.Metadata, error)
	ReplaceOfficial(entries map[types.EntryType][]types.Entry, info types.SyncInfo) error
}

// Result reports the outcome of a sync. Failures are reported here rather
// than as an error.
type Result struct {
	Success    bool                    `json:"success"`
	Skipped    bool                    `json:"skipped,omitempty"`
	Message    string                  `json:"message"`
	Error      string                  `json:"error,omitempty"`
	Counts     map[types.EntryType]int `json:"counts,omitempty"`
	DurationMS int64                   `json:"durationMs"`
}

// Manager runs syncs against a store.
type Manager struct {
	store    OfficialStore
	fetcher  Fetcher
	maxAge   time.Duration
	maxPages int
	now      func() time.Time
	logger   *zap.Logger

	running sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxAge sets how old official data may get before a sync is due.
func WithMaxAge(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxAge = d
		}
	}
}

// WithMaxPages caps the pages fetched per type.
func WithMaxPages(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxPages = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager.
func NewManager(store OfficialStore, fetcher Fetcher, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		fetcher:  fetcher,
		maxAge:   DefaultMaxAge,
		maxPages: DefaultMaxPages,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ShouldSync reports whether official data is due for a refresh: no
// monsters are cached, or the last sync is older than maxAge.
func ShouldSync(meta types.Metadata, maxAge time.Duration, now time.Time) bool {
	if meta.OfficialEntryCount[types.Monsters] == 0 {
		return true
	}
	return now.Sub(meta.LastSync()) > maxAge
}

// NeedsSync applies ShouldSync to the store's current metadata.
func (m *Manager) NeedsSync() (bool, error) {
	meta, err := m.store.Metadata()
	if err != nil {
		return false, err
	}
	return ShouldSync(meta, m.maxAge, m.now()), nil
}

// Sync refreshes all six official partitions. Unless force is set it does
// nothing when the data is fresh. The types are fetched in parallel; if any
// fetch fails nothing is written.
func (m *Manager) Sync(ctx context.Context, force bool) Result {
	if !m.running.TryLock() {
		return m.failure(ErrSyncInProgress, time.Time{})
	}
	defer m.running.Unlock()

	start := m.now()

	meta, err := m.store.Metadata()
	if err != nil {
		return m.failure(err, start)
	}
	if !force && !ShouldSync(meta, m.maxAge, start) {
		m.logger.Debug("sync skipped, official data is fresh", zap.Time("last_sync", meta.LastSync()))
		return Result{
			Success: true,
			Skipped: true,
			Message: "official data is up to date",
			Counts:  meta.OfficialEntryCount,
		}
	}

	m.logger.Info("sync started", zap.Bool("force", force), zap.String("source", m.fetcher.BaseURL()))

	fetched := make([][]types.Entry, len(types.AllEntryTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types.AllEntryTypes {
		g.Go(func() error {
			entries, err := m.fetcher.FetchType(gctx, t, m.maxPages)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", t, err)
			}
			fetched[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Error("sync failed", zap.Error(err))
		return m.failure(err, start)
	}

	all := make(map[types.EntryType][]types.Entry, len(types.AllEntryTypes))
	for i, t := range types.AllEntryTypes {
		all[t] = fetched[i]
	}
	return m.replace(all, start)
}

// SyncType refreshes the official partition of t only. If a page fails
// mid-pagination, the entries fetched so far are discarded and nothing is
// written.
func (m *Manager) SyncType(ctx context.Context, t types.EntryType) Result {
	if !t.Valid() {
		return m.failure(fmt.Errorf("%w: %q", types.ErrInvalidEntryType, t), time.Time{})
	}
	if !m.running.TryLock() {
		return m.failure(ErrSyncInProgress, time.Time{})
	}
	defer m.running.Unlock()

	start := m.now()
	m.logger.Info("type sync started", zap.String("type", string(t)))

	entries, err := m.fetcher.FetchType(ctx, t, m.maxPages)
	if err != nil {
		err = fmt.Errorf("fetching %s: %w", t, err)
		m.logger.Error("type sync failed", zap.Error(err))
		return m.failure(err, start)
	}
	return m.replace(map[types.EntryType][]types.Entry{t: entries}, start)
}

// replace writes the fetched partitions and builds the success result.
func (m *Manager) replace(entries map[types.EntryType][]types.Entry, start time.Time) Result {
	info := types.SyncInfo{
		Time:       start,
		APIVersion: m.fetcher.APIVersion(),
		SourceURL:  m.fetcher.BaseURL(),
	}
	if err := m.store.ReplaceOfficial(entries, info); err != nil {
		m.logger.Error("writing official data failed", zap.Error(err))
		return m.failure(err, start)
	}

	meta, err := m.store.Metadata()
	if err != nil {
		return m.failure(err, start)
	}
	counts := make(map[types.EntryType]int, len(entries))
	total := 0
	for t := range entries {
		counts[t] = meta.OfficialEntryCount[t]
		total += counts[t]
	}

	elapsed := m.now().Sub(start)
	m.logger.Info("sync finished", zap.Any("counts", counts), zap.Duration("elapsed", elapsed))
	return Result{
		Success:    true,
		Message:    fmt.Sprintf("synced %d official entries", total),
		Counts:     counts,
		DurationMS: elapsed.Milliseconds(),
	}
}

func (m *Manager) failure(err error, start time.Time) Result {
	r := Result{
		Success: false,
		Message: "sync failed",
		Error:   err.Error(),
	}
	if errors.Is(err, ErrSyncInProgress) {
		r.Message = err.Error()
	}
	if !start.IsZero() {
		r.DurationMS = m.now().Sub(start).Milliseconds()
	}
	return r
}
