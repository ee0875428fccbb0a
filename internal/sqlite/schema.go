package sqlite

// Schema DDL for the query index. Every entry of both partitions is one row
// of entries; body holds the entry JSON exactly as it is written to disk and
// the remaining columns are extracted for filtering. Columns that do not
// apply to a row's type are NULL.
const (
	createEntries = `CREATE TABLE entries (
    entry_type TEXT NOT NULL,
    source TEXT NOT NULL,
    entry_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    name TEXT NOT NULL,
    name_folded TEXT NOT NULL,
    cr REAL,
    monster_type TEXT,
    size TEXT,
    spell_level INTEGER,
    school TEXT,
    ritual INTEGER,
    concentration INTEGER,
    rarity TEXT,
    item_type TEXT,
    body TEXT NOT NULL,
    PRIMARY KEY (entry_type, source, entry_id)
);`
)

// Index DDL for common queries.
const (
	idxEntriesOrder = `CREATE INDEX idx_entries_order ON entries(entry_type, source, ordinal);`
	idxEntriesCR    = `CREATE INDEX idx_entries_cr ON entries(entry_type, cr);`
	idxEntriesLevel = `CREATE INDEX idx_entries_level ON entries(entry_type, spell_level);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createEntries,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxEntriesOrder,
	idxEntriesCR,
	idxEntriesLevel,
}
