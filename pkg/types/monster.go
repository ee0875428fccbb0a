package types

// AbilityScores holds the six ability scores of a creature.
type AbilityScores struct {
	Strength     int `json:"str" validate:"gte=0,lte=30"`
	Dexterity    int `json:"dex" validate:"gte=0,lte=30"`
	Constitution int `json:"con" validate:"gte=0,lte=30"`
	Intelligence int `json:"int" validate:"gte=0,lte=30"`
	Wisdom       int `json:"wis" validate:"gte=0,lte=30"`
	Charisma     int `json:"cha" validate:"gte=0,lte=30"`
}

// Monster is a creature stat block.
type Monster struct {
	Base
	Size                  string         `json:"size,omitempty"`
	Type                  string         `json:"type,omitempty"`
	Subtype               string         `json:"subtype,omitempty"`
	Alignment             string         `json:"alignment,omitempty"`
	ArmorClass            int            `json:"armorClass" validate:"gte=0"`
	ArmorDesc             string         `json:"armorDesc,omitempty"`
	HitPoints             int            `json:"hitPoints" validate:"gte=0"`
	HitDice               string         `json:"hitDice,omitempty"`
	Speed                 map[string]int `json:"speed,omitempty"`
	AbilityScores         AbilityScores  `json:"abilityScores"`
	ChallengeRating       string         `json:"challengeRating,omitempty"`
	CR                    float64        `json:"cr" validate:"gte=0,lte=30"`
	DamageVulnerabilities []string       `json:"damageVulnerabilities,omitempty"`
	DamageResistances     []string       `json:"damageResistances,omitempty"`
	DamageImmunities      []string       `json:"damageImmunities,omitempty"`
	ConditionImmunities   []string       `json:"conditionImmunities,omitempty"`
	Senses                string         `json:"senses,omitempty"`
	Languages             string         `json:"languages,omitempty"`
	SpecialAbilities      []Feature      `json:"specialAbilities,omitempty" validate:"dive"`
	Actions               []Feature      `json:"actions,omitempty" validate:"dive"`
	Reactions             []Feature      `json:"reactions,omitempty" validate:"dive"`
	LegendaryActions      []Feature      `json:"legendaryActions,omitempty" validate:"dive"`
}

// EntryType implements Entry.
func (*Monster) EntryType() EntryType { return Monsters }
