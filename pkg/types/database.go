package types

import "time"

// Partition holds the entries of one partition keyed by type. A partition
// built with NewPartition has an entry (possibly empty) for every type.
type Partition map[EntryType][]Entry

// NewPartition returns a partition with an empty slice for every type.
func NewPartition() Partition {
	p := make(Partition, len(AllEntryTypes))
	for _, t := range AllEntryTypes {
		p[t] = []Entry{}
	}
	return p
}

// Counts returns the number of entries per type.
func (p Partition) Counts() map[EntryType]int {
	counts := newCounts()
	for _, t := range AllEntryTypes {
		counts[t] = len(p[t])
	}
	return counts
}

// Database is the fully populated in-memory view of the store: both
// partitions plus the metadata record.
type Database struct {
	Official Partition
	Custom   Partition
	Metadata Metadata
}

// NewDatabase returns an empty database.
func NewDatabase() *Database {
	return &Database{
		Official: NewPartition(),
		Custom:   NewPartition(),
		Metadata: NewMetadata(),
	}
}

// Partition returns the partition for s.
func (d *Database) Partition(s Source) Partition {
	if s == SourceCustom {
		return d.Custom
	}
	return d.Official
}

// Metadata records when official data was last synced and how many entries
// each partition holds. It is stored as srd/official/metadata.json.
type Metadata struct {
	LastSyncDate       string            `json:"lastSyncDate"`
	LastSyncTimestamp  int64             `json:"lastSyncTimestamp"`
	APIVersion         string            `json:"apiVersion"`
	SourceURL          string            `json:"sourceUrl"`
	OfficialEntryCount map[EntryType]int `json:"officialEntryCount"`
	CustomEntryCount   map[EntryType]int `json:"customEntryCount"`
}

// NewMetadata returns a metadata record that has never synced.
func NewMetadata() Metadata {
	return Metadata{
		OfficialEntryCount: newCounts(),
		CustomEntryCount:   newCounts(),
	}
}

// LastSync returns the last sync time, or the zero time if the store has
// never synced.
func (m Metadata) LastSync() time.Time {
	if m.LastSyncTimestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.LastSyncTimestamp).UTC()
}

// Clone returns a deep copy with both count maps filled for every type.
func (m Metadata) Clone() Metadata {
	c := m
	c.OfficialEntryCount = newCounts()
	c.CustomEntryCount = newCounts()
	for t, n := range m.OfficialEntryCount {
		c.OfficialEntryCount[t] = n
	}
	for t, n := range m.CustomEntryCount {
		c.CustomEntryCount[t] = n
	}
	return c
}

// SyncInfo describes a completed fetch that replaces official data.
type SyncInfo struct {
	Time       time.Time
	APIVersion string
	SourceURL  string
}

func newCounts() map[EntryType]int {
	counts := make(map[EntryType]int, len(AllEntryTypes))
	for _, t := range AllEntryTypes {
		counts[t] = 0
	}
	return counts
}
