// This file maps entries to rows of the query index and back.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tome/pkg/types"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

const insertEntrySQL = `INSERT INTO entries (
    entry_type, source, entry_id, ordinal, name, name_folded,
    cr, monster_type, size, spell_level, school, ritual, concentration,
    rarity, item_type, body
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateEntrySQL = `UPDATE entries SET
    name = ?, name_folded = ?,
    cr = ?, monster_type = ?, size = ?, spell_level = ?, school = ?,
    ritual = ?, concentration = ?, rarity = ?, item_type = ?, body = ?
WHERE entry_type = ? AND source = ? AND entry_id = ?`

// filterColumns holds the extracted filter values of one entry. A nil field
// is stored as NULL.
type filterColumns struct {
	cr            any
	monsterType   any
	size          any
	spellLevel    any
	school        any
	ritual        any
	concentration any
	rarity        any
	itemType      any
}

func columnsFor(e types.Entry) filterColumns {
	var c filterColumns
	switch v := e.(type) {
	case *types.Monster:
		c.cr = v.CR
		c.monsterType = fold(v.Type)
		c.size = fold(v.Size)
	case *types.Race:
		c.size = fold(v.Size)
	case *types.Spell:
		c.spellLevel = v.Level
		c.school = fold(v.School)
		c.ritual = boolInt(v.Ritual)
		c.concentration = boolInt(v.Concentration)
	case *types.Item:
		c.rarity = fold(v.Rarity)
		c.itemType = fold(v.ItemType)
	}
	return c
}

// fold normalizes text for case-insensitive comparison. Folding happens in Go
// so matching is not limited to SQLite's ASCII-only lower().
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// insertEntry adds one entry row at the given ordinal.
func insertEntry(ex execer, s types.Source, ordinal int, e types.Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	h := e.Header()
	c := columnsFor(e)
	_, err = ex.Exec(insertEntrySQL,
		string(e.EntryType()), string(s), h.ID, ordinal, h.Name, fold(h.Name),
		c.cr, c.monsterType, c.size, c.spellLevel, c.school, c.ritual, c.concentration,
		c.rarity, c.itemType, string(body))
	if err != nil {
		return fmt.Errorf("inserting %s entry %q: %w", e.EntryType(), h.ID, err)
	}
	return nil
}

// updateEntry rewrites the row of an existing entry in place, keeping its
// ordinal.
func updateEntry(ex execer, s types.Source, e types.Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	h := e.Header()
	c := columnsFor(e)
	_, err = ex.Exec(updateEntrySQL,
		h.Name, fold(h.Name),
		c.cr, c.monsterType, c.size, c.spellLevel, c.school,
		c.ritual, c.concentration, c.rarity, c.itemType, string(body),
		string(e.EntryType()), string(s), h.ID)
	if err != nil {
		return fmt.Errorf("updating %s entry %q: %w", e.EntryType(), h.ID, err)
	}
	return nil
}

// getEntry returns the entry with id from partition s.
func getEntry(q querier, t types.EntryType, s types.Source, id string) (types.Entry, error) {
	var body string
	err := q.QueryRow(
		"SELECT body FROM entries WHERE entry_type = ? AND source = ? AND entry_id = ?",
		string(t), string(s), id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s entry %q: %w", t, id, err)
	}
	return types.DecodeEntry(t, []byte(body))
}

// entryExists reports whether partition s has an entry with id.
func entryExists(q querier, t types.EntryType, s types.Source, id string) (bool, error) {
	var n int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM entries WHERE entry_type = ? AND source = ? AND entry_id = ?",
		string(t), string(s), id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s entry %q: %w", t, id, err)
	}
	return n > 0, nil
}

// nextOrdinal returns the ordinal that appends to partition s of type t.
func nextOrdinal(q querier, t types.EntryType, s types.Source) (int, error) {
	var n int
	err := q.QueryRow(
		"SELECT COALESCE(MAX(ordinal), -1) + 1 FROM entries WHERE entry_type = ? AND source = ?",
		string(t), string(s)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reading next ordinal: %w", err)
	}
	return n, nil
}

// readEntries returns all entries of type t in partition s in file order.
func readEntries(q querier, t types.EntryType, s types.Source) ([]types.Entry, error) {
	return scanEntries(q, t,
		"SELECT body FROM entries WHERE entry_type = ? AND source = ? ORDER BY ordinal",
		string(t), string(s))
}

// scanEntries runs a query selecting a single body column and decodes each
// row as an entry of type t.
func scanEntries(q querier, t types.EntryType, query string, args ...any) ([]types.Entry, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t, err)
	}
	defer rows.Close()

	entries := []types.Entry{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning %s entry: %w", t, err)
		}
		e, err := types.DecodeEntry(t, []byte(body))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// loadIndex inserts every entry of db into the index. Entries whose id
// repeats within a partition are skipped and logged; the first occurrence
// wins.
func loadIndex(ex execer, db *types.Database, logger *zap.Logger) error {
	for _, s := range types.Sources {
		p := db.Partition(s)
		for _, t := range types.AllEntryTypes {
			seen := make(map[string]bool, len(p[t]))
			ordinal := 0
			for _, e := range p[t] {
				id := e.Header().ID
				if id == "" || seen[id] {
					logger.Warn("skipping entry with missing or duplicate id",
						zap.String("type", string(t)), zap.String("partition", string(s)), zap.String("id", id))
					continue
				}
				seen[id] = true
				if err := insertEntry(ex, s, ordinal, e); err != nil {
					return err
				}
				ordinal++
			}
		}
	}
	return nil
}
