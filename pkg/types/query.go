package types

import "fmt"

// SourceAll selects both partitions in a Query.
const SourceAll Source = "all"

// ParseSource converts s to a query source. An empty string means all.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "", SourceAll:
		return SourceAll, nil
	case SourceOfficial, SourceCustom:
		return Source(s), nil
	default:
		return "", fmt.Errorf("%w: source %q", ErrInvalidFilter, s)
	}
}

// Filter holds the type-specific predicates of a Query. Nil pointers and
// empty strings disable a predicate, and predicates that do not apply to the
// queried type are ignored.
type Filter struct {
	// Monsters.
	CRMin       *float64
	CRMax       *float64
	MonsterType string
	Size        string

	// Spells.
	Level         *int
	School        string
	Ritual        *bool
	Concentration *bool

	// Items.
	Rarity   string
	ItemType string
}

// Query selects entries of one type. Text is matched case-insensitively as a
// substring of the name. Limit <= 0 means no limit.
type Query struct {
	Type   EntryType
	Text   string
	Source Source
	Filter Filter
	Limit  int
	Offset int
}

// QueryResult holds the page of matches from each partition. Total counts
// all matches before pagination.
type QueryResult struct {
	Official []Entry `json:"official"`
	Custom   []Entry `json:"custom"`
	Total    int     `json:"total"`
}
