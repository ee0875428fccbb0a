// This file models the Open5e v1 record shapes. Open5e is loose with types:
// list fields are sometimes an empty string and numbers sometimes arrive as
// strings, so a few fields use tolerant decoders.
package open5e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var null = []byte("null")

// flexInt decodes a JSON number, a numeric string, an empty string or null.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not an integer: %q", s)
		}
		*f = flexInt(n)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	v, err := n.Float64()
	if err != nil {
		return err
	}
	*f = flexInt(int(v))
	return nil
}

// featureList decodes an array of named blocks; an empty string or null
// yields an empty list.
type featureList []wireFeature

func (l *featureList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) || bytes.Equal(data, []byte(`""`)) {
		*l = nil
		return nil
	}
	var items []wireFeature
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

type wireFeature struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

type wireMonster struct {
	Slug                  string         `json:"slug"`
	Name                  string         `json:"name"`
	Desc                  string         `json:"desc"`
	Size                  string         `json:"size"`
	Type                  string         `json:"type"`
	Subtype               string         `json:"subtype"`
	Alignment             string         `json:"alignment"`
	ArmorClass            flexInt        `json:"armor_class"`
	ArmorDesc             string         `json:"armor_desc"`
	HitPoints             flexInt        `json:"hit_points"`
	HitDice               string         `json:"hit_dice"`
	Speed                 map[string]any `json:"speed"`
	Strength              flexInt        `json:"strength"`
	Dexterity             flexInt        `json:"dexterity"`
	Constitution          flexInt        `json:"constitution"`
	Intelligence          flexInt        `json:"intelligence"`
	Wisdom                flexInt        `json:"wisdom"`
	Charisma              flexInt        `json:"charisma"`
	DamageVulnerabilities string         `json:"damage_vulnerabilities"`
	DamageResistances     string         `json:"damage_resistances"`
	DamageImmunities      string         `json:"damage_immunities"`
	ConditionImmunities   string         `json:"condition_immunities"`
	Senses                string         `json:"senses"`
	Languages             string         `json:"languages"`
	ChallengeRating       string         `json:"challenge_rating"`
	CR                    *float64       `json:"cr"`
	Actions               featureList    `json:"actions"`
	Reactions             featureList    `json:"reactions"`
	LegendaryActions      featureList    `json:"legendary_actions"`
	SpecialAbilities      featureList    `json:"special_abilities"`
}

type wireASI struct {
	Attributes []string `json:"attributes"`
	Value      flexInt  `json:"value"`
}

type wireSubrace struct {
	Name string    `json:"name"`
	Desc string    `json:"desc"`
	ASI  []wireASI `json:"asi"`
}

type wireRace struct {
	Slug      string         `json:"slug"`
	Name      string         `json:"name"`
	Desc      string         `json:"desc"`
	ASI       []wireASI      `json:"asi"`
	Age       string         `json:"age"`
	Alignment string         `json:"alignment"`
	Size      string         `json:"size"`
	SizeRaw   string         `json:"size_raw"`
	Speed     map[string]any `json:"speed"`
	Languages string         `json:"languages"`
	Vision    string         `json:"vision"`
	Traits    string         `json:"traits"`
	Subraces  []wireSubrace  `json:"subraces"`
}

type wireClass struct {
	Slug                string        `json:"slug"`
	Name                string        `json:"name"`
	Desc                string        `json:"desc"`
	HitDice             string        `json:"hit_dice"`
	HPAtFirstLevel      string        `json:"hp_at_1st_level"`
	ProfArmor           string        `json:"prof_armor"`
	ProfWeapons         string        `json:"prof_weapons"`
	ProfTools           string        `json:"prof_tools"`
	ProfSavingThrows    string        `json:"prof_saving_throws"`
	ProfSkills          string        `json:"prof_skills"`
	Equipment           string        `json:"equipment"`
	SpellcastingAbility string        `json:"spellcasting_ability"`
	SubtypesName        string        `json:"subtypes_name"`
	Archetypes          []wireFeature `json:"archetypes"`
}

type wireSpell struct {
	Slug                  string   `json:"slug"`
	Name                  string   `json:"name"`
	Desc                  string   `json:"desc"`
	HigherLevel           string   `json:"higher_level"`
	Range                 string   `json:"range"`
	Components            string   `json:"components"`
	Material              string   `json:"material"`
	Ritual                string   `json:"ritual"`
	CanBeCastAsRitual     *bool    `json:"can_be_cast_as_ritual"`
	Duration              string   `json:"duration"`
	Concentration         string   `json:"concentration"`
	RequiresConcentration *bool    `json:"requires_concentration"`
	CastingTime           string   `json:"casting_time"`
	Level                 string   `json:"level"`
	LevelInt              *flexInt `json:"level_int"`
	School                string   `json:"school"`
	DndClass              string   `json:"dnd_class"`
}

type wireItem struct {
	Slug               string `json:"slug"`
	Name               string `json:"name"`
	Desc               string `json:"desc"`
	Type               string `json:"type"`
	Rarity             string `json:"rarity"`
	RequiresAttunement string `json:"requires_attunement"`
}

type wireBackground struct {
	Slug               string `json:"slug"`
	Name               string `json:"name"`
	Desc               string `json:"desc"`
	SkillProficiencies string `json:"skill_proficiencies"`
	ToolProficiencies  string `json:"tool_proficiencies"`
	Languages          string `json:"languages"`
	Equipment          string `json:"equipment"`
	Feature            string `json:"feature"`
	FeatureDesc        string `json:"feature_desc"`
}
