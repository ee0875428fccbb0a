package types

// AbilityBonus is a racial ability score increase.
type AbilityBonus struct {
	Ability string `json:"ability" validate:"required"`
	Bonus   int    `json:"bonus"`
}

// Subrace refines a race with extra bonuses and traits.
type Subrace struct {
	Name           string         `json:"name" validate:"required"`
	Description    string         `json:"description,omitempty"`
	AbilityBonuses []AbilityBonus `json:"abilityBonuses,omitempty" validate:"dive"`
}

// Race is a playable ancestry.
type Race struct {
	Base
	Size           string         `json:"size,omitempty"`
	Speed          map[string]int `json:"speed,omitempty"`
	AbilityBonuses []AbilityBonus `json:"abilityBonuses,omitempty" validate:"dive"`
	Age            string         `json:"age,omitempty"`
	Alignment      string         `json:"alignment,omitempty"`
	Languages      string         `json:"languages,omitempty"`
	Vision         string         `json:"vision,omitempty"`
	Traits         string         `json:"traits,omitempty"`
	Subraces       []Subrace      `json:"subraces,omitempty" validate:"dive"`
}

// EntryType implements Entry.
func (*Race) EntryType() EntryType { return Races }
