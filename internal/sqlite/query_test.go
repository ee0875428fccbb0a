package sqlite

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tome/pkg/types"
)

// seededBackend returns a backend holding the official fixture plus two
// custom monsters and one custom spell.
func seededBackend(t *testing.T) *Backend {
	t.Helper()
	b := attachBackend(t, t.TempDir())
	require.NoError(t, b.ReplaceOfficial(officialFixture(), types.SyncInfo{Time: time.Now()}))

	for _, e := range []types.Entry{
		&types.Monster{Base: types.Base{ID: "goblin-boss", Name: "Goblin Boss"}, Type: "humanoid", Size: "Small", CR: 1},
		&types.Monster{Base: types.Base{ID: "ember-wyrm", Name: "Ember Wyrm"}, Type: "Dragon", Size: "Huge", CR: 12},
	} {
		_, err := b.AddCustomEntry(types.Monsters, e)
		require.NoError(t, err)
	}
	_, err := b.AddCustomEntry(types.Spells, &types.Spell{
		Base: types.Base{ID: "ember-bolt", Name: "Ember Bolt"}, Level: 0, School: "evocation",
	})
	require.NoError(t, err)
	return b
}

func TestSearchEntries(t *testing.T) {
	b := seededBackend(t)

	tests := []struct {
		name         string
		t            types.EntryType
		query        string
		wantOfficial []string
		wantCustom   []string
	}{
		{
			name:         "empty query returns everything in order",
			t:            types.Monsters,
			wantOfficial: []string{"open5e-goblin", "open5e-hobgoblin", "open5e-adult-red-dragon", "open5e-owlbear"},
			wantCustom:   []string{"goblin-boss", "ember-wyrm"},
		},
		{
			name:         "case-insensitive substring",
			t:            types.Monsters,
			query:        "GOBLIN",
			wantOfficial: []string{"open5e-goblin", "open5e-hobgoblin"},
			wantCustom:   []string{"goblin-boss"},
		},
		{
			name:         "surrounding whitespace ignored",
			t:            types.Spells,
			query:        "  bolt ",
			wantOfficial: []string{"open5e-fire-bolt"},
			wantCustom:   []string{"ember-bolt"},
		},
		{
			name:         "no match",
			t:            types.Monsters,
			query:        "beholder",
			wantOfficial: []string{},
			wantCustom:   []string{},
		},
		{
			name:         "empty type",
			t:            types.Backgrounds,
			wantOfficial: []string{},
			wantCustom:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			official, custom, err := b.SearchEntries(tt.t, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOfficial, ids(official))
			assert.Equal(t, tt.wantCustom, ids(custom))
		})
	}
}

func TestFetch_Filters(t *testing.T) {
	b := seededBackend(t)

	tests := []struct {
		name string
		q    types.Query
		want []string
	}{
		{
			name: "cr range inclusive",
			q:    types.Query{Type: types.Monsters, Filter: types.Filter{CRMin: floatPtr(0.5), CRMax: floatPtr(3)}},
			want: []string{"open5e-hobgoblin", "open5e-owlbear", "goblin-boss"},
		},
		{
			name: "cr min only",
			q:    types.Query{Type: types.Monsters, Filter: types.Filter{CRMin: floatPtr(10)}},
			want: []string{"open5e-adult-red-dragon", "ember-wyrm"},
		},
		{
			name: "monster type ignores case",
			q:    types.Query{Type: types.Monsters, Filter: types.Filter{MonsterType: "DRAGON"}},
			want: []string{"open5e-adult-red-dragon", "ember-wyrm"},
		},
		{
			name: "size",
			q:    types.Query{Type: types.Monsters, Filter: types.Filter{Size: "small"}},
			want: []string{"goblin-boss"},
		},
		{
			name: "text and cr combined",
			q:    types.Query{Type: types.Monsters, Text: "goblin", Filter: types.Filter{CRMax: floatPtr(0.25)}},
			want: []string{"open5e-goblin"},
		},
		{
			name: "cantrips",
			q:    types.Query{Type: types.Spells, Filter: types.Filter{Level: intPtr(types.CantripLevel)}},
			want: []string{"open5e-fire-bolt", "ember-bolt"},
		},
		{
			name: "school",
			q:    types.Query{Type: types.Spells, Filter: types.Filter{School: "Evocation"}},
			want: []string{"open5e-fire-bolt", "open5e-fireball", "ember-bolt"},
		},
		{
			name: "ritual",
			q:    types.Query{Type: types.Spells, Filter: types.Filter{Ritual: boolPtr(true)}},
			want: []string{"open5e-detect-magic"},
		},
		{
			name: "concentration false",
			q:    types.Query{Type: types.Spells, Filter: types.Filter{Concentration: boolPtr(false)}},
			want: []string{"open5e-fire-bolt", "open5e-fireball", "ember-bolt"},
		},
		{
			name: "rarity",
			q:    types.Query{Type: types.Items, Filter: types.Filter{Rarity: "Legendary"}},
			want: []string{"open5e-vorpal-sword"},
		},
		{
			name: "item type substring",
			q:    types.Query{Type: types.Items, Filter: types.Filter{ItemType: "wondrous"}},
			want: []string{"open5e-bag-of-holding"},
		},
		{
			name: "filters for other types are ignored",
			q:    types.Query{Type: types.Items, Filter: types.Filter{Level: intPtr(9), CRMin: floatPtr(30)}},
			want: []string{"open5e-bag-of-holding", "open5e-vorpal-sword"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := b.Fetch(tt.q)
			require.NoError(t, err)
			got := append(ids(res.Official), ids(res.Custom)...)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), res.Total)
		})
	}
}

func TestFetch_Source(t *testing.T) {
	b := seededBackend(t)

	res, err := b.Fetch(types.Query{Type: types.Monsters, Source: types.SourceCustom})
	require.NoError(t, err)
	assert.Empty(t, res.Official)
	assert.Equal(t, []string{"goblin-boss", "ember-wyrm"}, ids(res.Custom))

	res, err = b.Fetch(types.Query{Type: types.Monsters, Source: types.SourceOfficial, Text: "goblin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"open5e-goblin", "open5e-hobgoblin"}, ids(res.Official))
	assert.Empty(t, res.Custom)
	assert.Equal(t, 2, res.Total)
}

func TestFetch_Pagination(t *testing.T) {
	b := seededBackend(t)

	res, err := b.Fetch(types.Query{Type: types.Monsters, Offset: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"open5e-owlbear"}, ids(res.Official))
	assert.Equal(t, []string{"goblin-boss"}, ids(res.Custom))
	assert.Equal(t, 6, res.Total)

	res, err = b.Fetch(types.Query{Type: types.Monsters, Offset: 10, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Official)
	assert.Empty(t, res.Custom)
	assert.Equal(t, 6, res.Total)
}

func TestFetch_InvalidQuery(t *testing.T) {
	b := seededBackend(t)

	tests := []struct {
		name    string
		q       types.Query
		wantErr error
	}{
		{name: "unknown type", q: types.Query{Type: "feats"}, wantErr: types.ErrInvalidEntryType},
		{name: "unknown source", q: types.Query{Type: types.Monsters, Source: "homebrew"}, wantErr: types.ErrInvalidFilter},
		{name: "negative limit", q: types.Query{Type: types.Monsters, Limit: -1}, wantErr: types.ErrInvalidFilter},
		{name: "negative offset", q: types.Query{Type: types.Monsters, Offset: -3}, wantErr: types.ErrInvalidFilter},
		{
			name:    "inverted cr range",
			q:       types.Query{Type: types.Monsters, Filter: types.Filter{CRMin: floatPtr(5), CRMax: floatPtr(1)}},
			wantErr: types.ErrInvalidFilter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Fetch(tt.q)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaginate(t *testing.T) {
	official := []types.Entry{monster("o1", "A", "", 0), monster("o2", "B", "", 0)}
	custom := []types.Entry{monster("c1", "C", "", 0), monster("c2", "D", "", 0)}

	tests := []struct {
		name          string
		offset, limit int
		wantO, wantC  []string
	}{
		{name: "no limit", wantO: []string{"o1", "o2"}, wantC: []string{"c1", "c2"}},
		{name: "first page", limit: 1, wantO: []string{"o1"}, wantC: []string{}},
		{name: "straddles partitions", offset: 1, limit: 2, wantO: []string{"o2"}, wantC: []string{"c1"}},
		{name: "custom only window", offset: 2, limit: 10, wantO: []string{}, wantC: []string{"c1", "c2"}},
		{name: "past end", offset: 9, limit: 1, wantO: []string{}, wantC: []string{}},
		{name: "huge limit after offset", offset: 1, limit: math.MaxInt, wantO: []string{"o2"}, wantC: []string{"c1", "c2"}},
		{name: "huge offset and limit", offset: math.MaxInt, limit: math.MaxInt, wantO: []string{}, wantC: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, c := paginate(official, custom, tt.offset, tt.limit)
			assert.Equal(t, tt.wantO, ids(o))
			assert.Equal(t, tt.wantC, ids(c))
		})
	}
}

func TestDescribeFilter(t *testing.T) {
	assert.Equal(t, "all", describeFilter(types.Spells, "", types.Filter{}))
	assert.Equal(t, "instr(name_folded, ?) > 0 AND spell_level = ?",
		describeFilter(types.Spells, "fire", types.Filter{Level: intPtr(3), CRMin: floatPtr(1)}))
}
