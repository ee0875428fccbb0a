// This file implements the query surface: name search and filtered,
// paginated fetches over the index.
package sqlite

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tome/pkg/types"
)

// SearchEntries returns the entries of type t whose name contains query,
// case-insensitively, as separate official and custom slices in file order.
// An empty query returns both partitions in full.
func (b *Backend) SearchEntries(t types.EntryType, query string) (official, custom []types.Entry, err error) {
	res, err := b.Fetch(types.Query{Type: t, Text: query, Source: types.SourceAll})
	if err != nil {
		return nil, nil, err
	}
	return res.Official, res.Custom, nil
}

// Fetch returns the entries matching q. Official matches come first, then
// custom matches; Offset and Limit apply to that combined sequence and Total
// counts every match before pagination.
func (b *Backend) Fetch(q types.Query) (*types.QueryResult, error) {
	if !q.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidEntryType, q.Type)
	}
	source, err := types.ParseSource(string(q.Source))
	if err != nil {
		return nil, err
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit or offset", types.ErrInvalidFilter)
	}
	f := q.Filter
	if f.CRMin != nil && f.CRMax != nil && *f.CRMin > *f.CRMax {
		return nil, fmt.Errorf("%w: crMin greater than crMax", types.ErrInvalidFilter)
	}

	clauses, args := filterClauses(q.Type, q.Text, f)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	res := &types.QueryResult{Official: []types.Entry{}, Custom: []types.Entry{}}
	if source != types.SourceCustom {
		if res.Official, err = b.match(q.Type, types.SourceOfficial, clauses, args); err != nil {
			return nil, err
		}
	}
	if source != types.SourceOfficial {
		if res.Custom, err = b.match(q.Type, types.SourceCustom, clauses, args); err != nil {
			return nil, err
		}
	}
	res.Total = len(res.Official) + len(res.Custom)
	res.Official, res.Custom = paginate(res.Official, res.Custom, q.Offset, q.Limit)

	b.logger.Debug("fetch",
		zap.String("type", string(q.Type)),
		zap.String("source", string(source)),
		zap.String("filter", describeFilter(q.Type, q.Text, f)),
		zap.Int("total", res.Total))
	return res, nil
}

// match runs the filter against one partition.
func (b *Backend) match(t types.EntryType, s types.Source, clauses []string, args []any) ([]types.Entry, error) {
	query := "SELECT body FROM entries WHERE entry_type = ? AND source = ?"
	for _, c := range clauses {
		query += " AND " + c
	}
	query += " ORDER BY ordinal"

	all := append([]any{string(t), string(s)}, args...)
	return scanEntries(b.db, t, query, all...)
}

// filterClauses builds the SQL predicates for text and f. Predicates that do
// not apply to t are dropped.
func filterClauses(t types.EntryType, text string, f types.Filter) ([]string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}

	if needle := fold(text); needle != "" {
		add("instr(name_folded, ?) > 0", needle)
	}

	switch t {
	case types.Monsters:
		if f.CRMin != nil {
			add("cr >= ?", *f.CRMin)
		}
		if f.CRMax != nil {
			add("cr <= ?", *f.CRMax)
		}
		if v := fold(f.MonsterType); v != "" {
			add("monster_type = ?", v)
		}
		if v := fold(f.Size); v != "" {
			add("size = ?", v)
		}
	case types.Races:
		if v := fold(f.Size); v != "" {
			add("size = ?", v)
		}
	case types.Spells:
		if f.Level != nil {
			add("spell_level = ?", *f.Level)
		}
		if v := fold(f.School); v != "" {
			add("school = ?", v)
		}
		if f.Ritual != nil {
			add("ritual = ?", boolInt(*f.Ritual))
		}
		if f.Concentration != nil {
			add("concentration = ?", boolInt(*f.Concentration))
		}
	case types.Items:
		if v := fold(f.Rarity); v != "" {
			add("rarity = ?", v)
		}
		if v := fold(f.ItemType); v != "" {
			add("instr(item_type, ?) > 0", v)
		}
	}
	return clauses, args
}

// paginate slices the concatenation official+custom to [offset, offset+limit)
// and splits the window back into its two parts. limit <= 0 means no limit.
func paginate(official, custom []types.Entry, offset, limit int) ([]types.Entry, []types.Entry) {
	total := len(official) + len(custom)
	start := min(offset, total)
	end := total
	if limit > 0 && limit < end-start {
		end = start + limit
	}

	n := len(official)
	oStart, oEnd := min(start, n), min(end, n)
	cStart, cEnd := max(start-n, 0), max(end-n, 0)
	return official[oStart:oEnd], custom[cStart:cEnd]
}

// describeFilter renders the active predicates for log lines.
func describeFilter(t types.EntryType, text string, f types.Filter) string {
	clauses, _ := filterClauses(t, text, f)
	if len(clauses) == 0 {
		return "all"
	}
	return strings.Join(clauses, " AND ")
}
