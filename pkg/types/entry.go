package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntryType names one of the six SRD collections. The value doubles as the
// file stem on disk (monsters.json, spells.json, ...).
type EntryType string

// Entry types.
const (
	Monsters    EntryType = "monsters"
	Races       EntryType = "races"
	Classes     EntryType = "classes"
	Spells      EntryType = "spells"
	Items       EntryType = "items"
	Backgrounds EntryType = "backgrounds"
)

// AllEntryTypes lists every entry type in a stable order.
var AllEntryTypes = []EntryType{
	Monsters,
	Races,
	Classes,
	Spells,
	Items,
	Backgrounds,
}

// Valid reports whether t is one of the six known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case Monsters, Races, Classes, Spells, Items, Backgrounds:
		return true
	}
	return false
}

// ParseEntryType converts s to an EntryType.
// Returns ErrInvalidEntryType if s does not name a known type.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryType, s)
	}
	return t, nil
}

// Source is the provenance flag of an entry and names its partition.
type Source string

// Partitions.
const (
	SourceOfficial Source = "official"
	SourceCustom   Source = "custom"
)

// Sources lists both partitions, official first.
var Sources = []Source{SourceOfficial, SourceCustom}

// Base holds the fields every entry carries. Timestamps are only set on
// custom entries.
type Base struct {
	ID          string     `json:"id" validate:"required"`
	Name        string     `json:"name" validate:"required"`
	Source      Source     `json:"source" validate:"oneof=official custom"`
	Description string     `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Header returns the common fields so callers can read and assign them
// without knowing the concrete entry type.
func (b *Base) Header() *Base { return b }

// Entry is implemented by the six entity structs.
type Entry interface {
	Header() *Base
	EntryType() EntryType
}

// Feature is a named block of rules text: a monster trait or action, a
// racial trait, a subclass.
type Feature struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// NewEntry returns a zero value of the concrete struct for t.
func NewEntry(t EntryType) (Entry, error) {
	switch t {
	case Monsters:
		return &Monster{}, nil
	case Races:
		return &Race{}, nil
	case Classes:
		return &Class{}, nil
	case Spells:
		return &Spell{}, nil
	case Items:
		return &Item{}, nil
	case Backgrounds:
		return &Background{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntryType, t)
	}
}

// DecodeEntry unmarshals data into the concrete struct for t.
func DecodeEntry(t EntryType, data []byte) (Entry, error) {
	e, err := NewEntry(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("%w: decoding %s entry: %v", ErrInvalidData, t, err)
	}
	return e, nil
}
