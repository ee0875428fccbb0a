// This file implements the mutations: custom entry CRUD and the wholesale
// replacement of official partitions. Each mutation updates the index inside
// a transaction, rewrites the affected partition files from the index and
// rewrites the metadata record before committing. A failed file write rolls
// the index back, so the index always matches what is on disk.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tome/pkg/types"
)

var _ types.Store = (*Backend)(nil)

// timestampLayout matches the millisecond ISO-8601 form used in the data
// files.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// immutableFields cannot be changed through UpdateCustomEntry.
var immutableFields = map[string]bool{
	"id":        true,
	"source":    true,
	"createdAt": true,
}

// AddCustomEntry stores e in the custom partition of type t. An empty id is
// replaced with a UUID v7 and missing timestamps are set to now. The custom
// count for t is incremented.
func (b *Backend) AddCustomEntry(t types.EntryType, e types.Entry) (types.Entry, error) {
	if err := checkEntry(t, e); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	h := e.Header()
	now := b.timestamp()
	if h.ID == "" {
		h.ID = newUUID()
	}
	h.Source = types.SourceCustom
	if h.CreatedAt == nil {
		created := now
		h.CreatedAt = &created
	}
	if h.UpdatedAt == nil {
		updated := now
		h.UpdatedAt = &updated
	}
	if err := b.validateEntry(e); err != nil {
		return nil, err
	}

	meta := b.meta.Clone()
	meta.CustomEntryCount[t]++

	err := b.withTx(func(tx *sql.Tx) error {
		exists, err := entryExists(tx, t, types.SourceCustom, h.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %q", types.ErrDuplicateID, h.ID)
		}
		ordinal, err := nextOrdinal(tx, t, types.SourceCustom)
		if err != nil {
			return err
		}
		if err := insertEntry(tx, types.SourceCustom, ordinal, e); err != nil {
			return err
		}
		return b.persist(tx, types.SourceCustom, []types.EntryType{t}, meta)
	})
	if err != nil {
		return nil, err
	}

	b.meta = meta
	b.logger.Debug("custom entry added", zap.String("type", string(t)), zap.String("id", h.ID))
	return e, nil
}

// UpdateCustomEntry merges patch into the custom entry id of type t and
// refreshes updatedAt. The id, source and createdAt fields are immutable and
// silently kept. Returns ErrOfficialReadOnly if id names an official entry.
func (b *Backend) UpdateCustomEntry(t types.EntryType, id string, patch map[string]any) (types.Entry, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidEntryType, t)
	}
	if id == "" {
		return nil, types.ErrInvalidID
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	var updated types.Entry
	err := b.withTx(func(tx *sql.Tx) error {
		current, err := getEntry(tx, t, types.SourceCustom, id)
		if errors.Is(err, types.ErrNotFound) {
			return b.missingCustom(tx, t, id)
		}
		if err != nil {
			return err
		}

		merged, err := mergePatch(t, current, patch, b.timestamp())
		if err != nil {
			return err
		}
		if err := b.validateEntry(merged); err != nil {
			return err
		}
		if err := updateEntry(tx, types.SourceCustom, merged); err != nil {
			return err
		}
		updated = merged
		return b.persist(tx, types.SourceCustom, []types.EntryType{t}, b.meta.Clone())
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug("custom entry updated", zap.String("type", string(t)), zap.String("id", id))
	return updated, nil
}

// RemoveCustomEntry deletes the custom entry id of type t and decrements the
// custom count, floored at zero.
func (b *Backend) RemoveCustomEntry(t types.EntryType, id string) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidEntryType, t)
	}
	if id == "" {
		return types.ErrInvalidID
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	meta := b.meta.Clone()
	if meta.CustomEntryCount[t] > 0 {
		meta.CustomEntryCount[t]--
	}

	err := b.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"DELETE FROM entries WHERE entry_type = ? AND source = ? AND entry_id = ?",
			string(t), string(types.SourceCustom), id)
		if err != nil {
			return fmt.Errorf("deleting %s entry %q: %w", t, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return b.missingCustom(tx, t, id)
		}
		return b.persist(tx, types.SourceCustom, []types.EntryType{t}, meta)
	})
	if err != nil {
		return err
	}

	b.meta = meta
	b.logger.Debug("custom entry removed", zap.String("type", string(t)), zap.String("id", id))
	return nil
}

// ReplaceOfficial overwrites the official partition of every type present in
// entries. Types absent from the map are left untouched, so a single-type
// sync only rewrites its own file. The official counts of replaced types and
// the sync fields of the metadata are updated. Custom partitions are never
// touched.
func (b *Backend) ReplaceOfficial(entries map[types.EntryType][]types.Entry, info types.SyncInfo) error {
	var replaced []types.EntryType
	for _, t := range types.AllEntryTypes {
		list, ok := entries[t]
		if !ok {
			continue
		}
		for _, e := range list {
			if err := checkEntry(t, e); err != nil {
				return err
			}
			e.Header().Source = types.SourceOfficial
			if err := b.validateEntry(e); err != nil {
				return fmt.Errorf("official %s %q: %w", t, e.Header().ID, err)
			}
		}
		replaced = append(replaced, t)
	}
	if len(replaced) != len(entries) {
		return fmt.Errorf("%w: unknown type in official data", types.ErrInvalidEntryType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	meta := b.meta.Clone()
	syncTime := info.Time
	if syncTime.IsZero() {
		syncTime = b.now()
	}
	meta.LastSyncDate = syncTime.UTC().Format(timestampLayout)
	meta.LastSyncTimestamp = syncTime.UnixMilli()
	meta.APIVersion = info.APIVersion
	meta.SourceURL = info.SourceURL

	err := b.withTx(func(tx *sql.Tx) error {
		for _, t := range replaced {
			if _, err := tx.Exec(
				"DELETE FROM entries WHERE entry_type = ? AND source = ?",
				string(t), string(types.SourceOfficial)); err != nil {
				return fmt.Errorf("clearing official %s: %w", t, err)
			}

			seen := make(map[string]bool, len(entries[t]))
			ordinal := 0
			for _, e := range entries[t] {
				h := e.Header()
				if seen[h.ID] {
					b.logger.Warn("skipping duplicate official entry",
						zap.String("type", string(t)), zap.String("id", h.ID))
					continue
				}
				seen[h.ID] = true
				if err := insertEntry(tx, types.SourceOfficial, ordinal, e); err != nil {
					return err
				}
				ordinal++
			}
			meta.OfficialEntryCount[t] = ordinal
		}
		return b.persist(tx, types.SourceOfficial, replaced, meta)
	})
	if err != nil {
		return err
	}

	b.meta = meta
	b.logger.Info("official data replaced",
		zap.Any("types", replaced), zap.Any("counts", meta.OfficialEntryCount))
	return nil
}

// persist rewrites the files of the given types in partition s from the
// index, then the metadata record. Writes are sequential: an error leaves
// earlier files written and the caller's transaction uncommitted.
func (b *Backend) persist(q querier, s types.Source, ts []types.EntryType, meta types.Metadata) error {
	for _, t := range ts {
		entries, err := readEntries(q, t, s)
		if err != nil {
			return err
		}
		if err := writeEntries(EntriesPath(b.config.DataDir, s, t), entries); err != nil {
			return fmt.Errorf("writing %s %s: %w", s, t, err)
		}
	}
	if err := SaveMetadata(b.config.DataDir, meta); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// missingCustom returns the error for an id that is not in the custom
// partition: ErrOfficialReadOnly when it is an official entry, ErrNotFound
// otherwise.
func (b *Backend) missingCustom(q querier, t types.EntryType, id string) error {
	official, err := entryExists(q, t, types.SourceOfficial, id)
	if err != nil {
		return err
	}
	if official {
		return fmt.Errorf("%w: %s %q", types.ErrOfficialReadOnly, t, id)
	}
	return types.ErrNotFound
}

func (b *Backend) validateEntry(e types.Entry) error {
	if err := b.validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	return nil
}

// timestamp returns now in UTC at millisecond precision.
func (b *Backend) timestamp() time.Time {
	return b.now().UTC().Truncate(time.Millisecond)
}

// checkEntry verifies that e is a non-nil entry of type t.
func checkEntry(t types.EntryType, e types.Entry) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidEntryType, t)
	}
	if e == nil {
		return fmt.Errorf("%w: nil entry", types.ErrInvalidData)
	}
	if e.EntryType() != t {
		return fmt.Errorf("%w: %s entry given for %s", types.ErrInvalidData, e.EntryType(), t)
	}
	return nil
}

// mergePatch overlays patch onto the JSON form of current and decodes the
// result as a fresh entry of type t.
func mergePatch(t types.EntryType, current types.Entry, patch map[string]any, now time.Time) (types.Entry, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encoding entry: %w", err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}
	for k, v := range patch {
		if immutableFields[k] {
			continue
		}
		fields[k] = v
	}
	fields["updatedAt"] = now.Format(timestampLayout)

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	return types.DecodeEntry(t, merged)
}
