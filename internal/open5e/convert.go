package open5e

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mesh-intelligence/tome/pkg/types"
)

// IDPrefix namespaces official entry IDs.
const IDPrefix = "open5e-"

var validate = validator.New()

type converter func(raw []byte) (types.Entry, error)

var converters = map[types.EntryType]converter{
	types.Monsters:    convertMonster,
	types.Races:       convertRace,
	types.Classes:     convertClass,
	types.Spells:      convertSpell,
	types.Items:       convertItem,
	types.Backgrounds: convertBackground,
}

// Convert decodes one Open5e record of type t into an official entry and
// validates it. Errors wrap ErrInvalidRecord.
func Convert(t types.EntryType, raw []byte) (types.Entry, error) {
	conv, ok := converters[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidEntryType, t)
	}
	e, err := conv(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, t, err)
	}
	if err := validate.Struct(e); err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", ErrInvalidRecord, t, e.Header().ID, err)
	}
	return e, nil
}

// base builds the common header of an official entry.
func base(slug, name, desc string) (types.Base, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return types.Base{}, fmt.Errorf("record %q has no slug", name)
	}
	return types.Base{
		ID:          IDPrefix + slug,
		Name:        strings.TrimSpace(name),
		Source:      types.SourceOfficial,
		Description: desc,
	}, nil
}

func convertMonster(raw []byte) (types.Entry, error) {
	var w wireMonster
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	b, err := base(w.Slug, w.Name, w.Desc)
	if err != nil {
		return nil, err
	}

	cr, err := parseCR(w.ChallengeRating, w.CR)
	if err != nil {
		return nil, err
	}

	return &types.Monster{
		Base:       b,
		Size:       w.Size,
		Type:       w.Type,
		Subtype:    w.Subtype,
		Alignment:  w.Alignment,
		ArmorClass: int(w.ArmorClass),
		ArmorDesc:  w.ArmorDesc,
		HitPoints:  int(w.HitPoints),
		HitDice:    w.HitDice,
		Speed:      speedMap(w.Speed),
		AbilityScores: types.AbilityScores{
			Strength:     int(w.Strength),
			Dexterity:    int(w.Dexterity),
			Constitution: int(w.Constitution),
			Intelligence: int(w.Intelligence),
			Wisdom:       int(w.Wisdom),
			Charisma:     int(w.Charisma),
		},
		ChallengeRating:       w.ChallengeRating,
		CR:                    cr,
		DamageVulnerabilities: splitList(w.DamageVulnerabilities),
		DamageResistances:     splitList(w.DamageResistances),
		DamageImmunities:      splitList(w.DamageImmunities),
		ConditionImmunities:   splitList(w.ConditionImmunities),
		Senses:                w.Senses,
		Languages:             w.Languages,
		SpecialAbilities:      features(w.SpecialAbilities),
		Actions:               features(w.Actions),
		Reactions:             features(w.Reactions),
		LegendaryActions:      features(w.LegendaryActions),
	}, nil
}

func convertRace(raw []byte) (types.Entry, error) {
	var w wireRace
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	b, err := base(w.Slug, w.Name, w.Desc)
	if err != nil {
		return nil, err
	}

	size := w.SizeRaw
	if size == "" {
		size = w.Size
	}
	r := &types.Race{
		Base:           b,
		Size:           size,
		Speed:          speedMap(w.Speed),
		AbilityBonuses: abilityBonuses(w.ASI),
		Age:            w.Age,
		Alignment:      w.Alignment,
		Languages:      w.Languages,
		Vision:         w.Vision,
		Traits:         w.Traits,
	}
	for _, sr := range w.Subraces {
		r.Subraces = append(r.Subraces, types.Subrace{
			Name:           sr.Name,
			Description:    sr.Desc,
			AbilityBonuses: abilityBonuses(sr.ASI),
		})
	}
	return r, nil
}

func convertClass(raw []byte) (types.Entry, error) {
	var w wireClass
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	b, err := base(w.Slug, w.Name, w.Desc)
	if err != nil {
		return nil, err
	}
	hitDie, err := parseHitDie(w.HitDice)
	if err != nil {
		return nil, err
	}

	c := &types.Class{
		Base:                b,
		HitDie:              hitDie,
		HPAtFirstLevel:      w.HPAtFirstLevel,
		ArmorProficiencies:  w.ProfArmor,
		WeaponProficiencies: w.ProfWeapons,
		ToolProficiencies:   w.ProfTools,
		SavingThrows:        splitList(w.ProfSavingThrows),
		SkillChoices:        w.ProfSkills,
		Equipment:           w.Equipment,
		SpellcastingAbility: w.SpellcastingAbility,
		SubclassTitle:       w.SubtypesName,
	}
	for _, a := range w.Archetypes {
		c.Subclasses = append(c.Subclasses, types.Feature{Name: a.Name, Description: a.Desc})
	}
	return c, nil
}

func convertSpell(raw []byte) (types.Entry, error) {
	var w wireSpell
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	b, err := base(w.Slug, w.Name, w.Desc)
	if err != nil {
		return nil, err
	}
	level, err := spellLevel(w.Level, w.LevelInt)
	if err != nil {
		return nil, err
	}

	return &types.Spell{
		Base:          b,
		Level:         level,
		School:        w.School,
		CastingTime:   w.CastingTime,
		Range:         w.Range,
		Components:    splitList(w.Components),
		Material:      w.Material,
		Duration:      w.Duration,
		Ritual:        flag(w.CanBeCastAsRitual, w.Ritual),
		Concentration: flag(w.RequiresConcentration, w.Concentration),
		HigherLevel:   w.HigherLevel,
		Classes:       splitList(w.DndClass),
	}, nil
}

func convertItem(raw []byte) (types.Entry, error) {
	var w wireItem
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	b, err := base(w.Slug, w.Name, w.Desc)
	if err != nil {
		return nil, err
	}

	attunement := strings.TrimSpace(w.RequiresAttunement)
	item := &types.Item{
		Base:               b,
		ItemType:           w.Type,
		Rarity:             w.Rarity,
		RequiresAttunement: attunement != "",
	}
	if !strings.EqualFold(attunement, "requires attunement") {
		item.AttunementDetail = attunement
	}
	return item, nil
}

func convertBackground(raw []byte) (types.Entry, error) {
	var w wireBackground
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	b, err := base(w.Slug, w.Name, w.Desc)
	if err != nil {
		return nil, err
	}
	return &types.Background{
		Base:               b,
		SkillProficiencies: splitList(w.SkillProficiencies),
		ToolProficiencies:  w.ToolProficiencies,
		Languages:          w.Languages,
		Equipment:          w.Equipment,
		Feature:            w.Feature,
		FeatureDescription: w.FeatureDesc,
	}, nil
}

// splitList splits a comma-joined field into trimmed, non-empty parts.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseCR parses a challenge rating such as "1/4" or "17". An empty rating
// uses fallback, or zero when fallback is nil.
func parseCR(s string, fallback *float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if fallback != nil {
			return *fallback, nil
		}
		return 0, nil
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, fmt.Errorf("bad challenge rating %q", s)
		}
		return n / d, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("bad challenge rating %q", s)
	}
	return v, nil
}

// spellLevel reads level_int when present, otherwise parses the level text
// ("Cantrip", "3rd-level").
func spellLevel(text string, levelInt *flexInt) (int, error) {
	if levelInt != nil {
		return int(*levelInt), nil
	}
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" || strings.HasPrefix(text, "cantrip") {
		return types.CantripLevel, nil
	}
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("bad spell level %q", text)
	}
	return strconv.Atoi(text[:end])
}

// parseHitDie extracts the die size from "1d12". An empty value is zero.
func parseHitDie(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	_, size, ok := strings.Cut(s, "d")
	if !ok {
		size = s
	}
	n, err := strconv.Atoi(strings.TrimSpace(size))
	if err != nil {
		return 0, fmt.Errorf("bad hit die %q", s)
	}
	return n, nil
}

// flag prefers the boolean field and falls back to a "yes"/"no" string.
func flag(b *bool, yesNo string) bool {
	if b != nil {
		return *b
	}
	return strings.EqualFold(strings.TrimSpace(yesNo), "yes")
}

// speedMap keeps the numeric movement modes, dropping flags such as hover.
func speedMap(in map[string]any) map[string]int {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]int, len(in))
	for mode, v := range in {
		switch n := v.(type) {
		case float64:
			out[mode] = int(n)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(n, "ft."))); err == nil {
				out[mode] = i
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func abilityBonuses(asi []wireASI) []types.AbilityBonus {
	var out []types.AbilityBonus
	for _, a := range asi {
		for _, attr := range a.Attributes {
			out = append(out, types.AbilityBonus{Ability: attr, Bonus: int(a.Value)})
		}
	}
	return out
}

func features(in featureList) []types.Feature {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Feature, 0, len(in))
	for _, f := range in {
		out = append(out, types.Feature{Name: f.Name, Description: f.Desc})
	}
	return out
}
