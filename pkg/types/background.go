package types

// Background is a character background.
type Background struct {
	Base
	SkillProficiencies []string `json:"skillProficiencies,omitempty"`
	ToolProficiencies  string   `json:"toolProficiencies,omitempty"`
	Languages          string   `json:"languages,omitempty"`
	Equipment          string   `json:"equipment,omitempty"`
	Feature            string   `json:"feature,omitempty"`
	FeatureDescription string   `json:"featureDescription,omitempty"`
}

// EntryType implements Entry.
func (*Background) EntryType() EntryType { return Backgrounds }
