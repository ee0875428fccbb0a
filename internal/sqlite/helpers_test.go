package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tome/pkg/types"
)

// attachBackend attaches a new backend to dir and detaches it when the test
// ends.
func attachBackend(t *testing.T, dir string, opts ...Option) *Backend {
	t.Helper()
	b := NewBackend(opts...)
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func monster(id, name, kind string, cr float64) *types.Monster {
	return &types.Monster{
		Base:       types.Base{ID: id, Name: name, Source: types.SourceOfficial},
		Type:       kind,
		Size:       "Medium",
		ArmorClass: 12,
		HitPoints:  10,
		CR:         cr,
	}
}

func spell(id, name string, level int, school string, ritual, concentration bool) *types.Spell {
	return &types.Spell{
		Base:          types.Base{ID: id, Name: name, Source: types.SourceOfficial},
		Level:         level,
		School:        school,
		Ritual:        ritual,
		Concentration: concentration,
	}
}

// officialFixture is a small official data set covering the filterable
// types.
func officialFixture() map[types.EntryType][]types.Entry {
	return map[types.EntryType][]types.Entry{
		types.Monsters: {
			monster("open5e-goblin", "Goblin", "humanoid", 0.25),
			monster("open5e-hobgoblin", "Hobgoblin", "humanoid", 0.5),
			monster("open5e-adult-red-dragon", "Adult Red Dragon", "dragon", 17),
			monster("open5e-owlbear", "Owlbear", "monstrosity", 3),
		},
		types.Spells: {
			spell("open5e-fire-bolt", "Fire Bolt", 0, "Evocation", false, false),
			spell("open5e-detect-magic", "Detect Magic", 1, "Divination", true, true),
			spell("open5e-fireball", "Fireball", 3, "Evocation", false, false),
			spell("open5e-hold-person", "Hold Person", 2, "Enchantment", false, true),
		},
		types.Items: {
			&types.Item{Base: types.Base{ID: "open5e-bag-of-holding", Name: "Bag of Holding"}, ItemType: "Wondrous item", Rarity: "uncommon"},
			&types.Item{Base: types.Base{ID: "open5e-vorpal-sword", Name: "Vorpal Sword"}, ItemType: "Weapon (any sword that deals slashing damage)", Rarity: "legendary", RequiresAttunement: true},
		},
	}
}

func ids(entries []types.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Header().ID)
	}
	return out
}
