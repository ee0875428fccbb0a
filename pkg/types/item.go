package types

// Item is a magic item.
type Item struct {
	Base
	ItemType           string `json:"itemType,omitempty"`
	Rarity             string `json:"rarity,omitempty"`
	RequiresAttunement bool   `json:"requiresAttunement"`
	AttunementDetail   string `json:"attunementDetail,omitempty"`
}

// EntryType implements Entry.
func (*Item) EntryType() EntryType { return Items }
