package types

// Spell levels. Level 0 is a cantrip.
const (
	CantripLevel  = 0
	MaxSpellLevel = 9
)

// Spell is a castable spell.
type Spell struct {
	Base
	Level         int      `json:"level" validate:"gte=0,lte=9"`
	School        string   `json:"school,omitempty"`
	CastingTime   string   `json:"castingTime,omitempty"`
	Range         string   `json:"range,omitempty"`
	Components    []string `json:"components,omitempty"`
	Material      string   `json:"material,omitempty"`
	Duration      string   `json:"duration,omitempty"`
	Ritual        bool     `json:"ritual"`
	Concentration bool     `json:"concentration"`
	HigherLevel   string   `json:"higherLevel,omitempty"`
	Classes       []string `json:"classes,omitempty"`
}

// EntryType implements Entry.
func (*Spell) EntryType() EntryType { return Spells }
