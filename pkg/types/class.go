package types

// Class is a character class.
type Class struct {
	Base
	HitDie              int       `json:"hitDie" validate:"gte=0,lte=20"`
	HPAtFirstLevel      string    `json:"hpAtFirstLevel,omitempty"`
	ArmorProficiencies  string    `json:"armorProficiencies,omitempty"`
	WeaponProficiencies string    `json:"weaponProficiencies,omitempty"`
	ToolProficiencies   string    `json:"toolProficiencies,omitempty"`
	SavingThrows        []string  `json:"savingThrows,omitempty"`
	SkillChoices        string    `json:"skillChoices,omitempty"`
	Equipment           string    `json:"equipment,omitempty"`
	SpellcastingAbility string    `json:"spellcastingAbility,omitempty"`
	SubclassTitle       string    `json:"subclassTitle,omitempty"`
	Subclasses          []Feature `json:"subclasses,omitempty" validate:"dive"`
}

// EntryType implements Entry.
func (*Class) EntryType() EntryType { return Classes }
