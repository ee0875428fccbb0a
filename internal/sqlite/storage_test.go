package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/tome/pkg/types"
)

func TestLoad_MissingFilesYieldEmptyDatabase(t *testing.T) {
	db := Load(t.TempDir(), nil)

	for _, s := range types.Sources {
		p := db.Partition(s)
		for _, et := range types.AllEntryTypes {
			assert.NotNil(t, p[et], "%s/%s should be an empty slice", s, et)
			assert.Empty(t, p[et])
		}
	}
	assert.Equal(t, types.NewMetadata(), db.Metadata)
	assert.True(t, db.Metadata.LastSync().IsZero())
}

func TestLoad_MalformedFilesAreLoggedAndEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLayout(dir))
	require.NoError(t, os.WriteFile(EntriesPath(dir, types.SourceOfficial, types.Monsters), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(MetadataPath(dir), []byte(`[1,2,3]`), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	db := Load(dir, zap.New(core))

	assert.Empty(t, db.Official[types.Monsters])
	assert.Equal(t, types.NewMetadata(), db.Metadata)
	assert.Equal(t, 1, logs.FilterMessage("malformed entry file").Len())
	assert.Equal(t, 1, logs.FilterMessage("malformed metadata").Len())
}

func TestLoad_SkipsBadElementsAndStampsSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLayout(dir))
	body := `[
  {"id": "a", "name": "Acid Splash", "level": 0},
  {"id": "b", "name": "Broken", "level": "third"},
  {"id": "c", "name": "Cure Wounds", "level": 1, "source": "custom"}
]`
	require.NoError(t, os.WriteFile(EntriesPath(dir, types.SourceCustom, types.Spells), []byte(body), 0o644))

	core, logs := observer.New(zap.WarnLevel)
	db := Load(dir, zap.New(core))

	spells := db.Custom[types.Spells]
	assert.Equal(t, []string{"a", "c"}, ids(spells))
	assert.Equal(t, types.SourceCustom, spells[0].Header().Source)
	assert.Equal(t, 1, logs.FilterMessage("skipping malformed entry").Len())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	db := types.NewDatabase()
	for et, list := range officialFixture() {
		for _, e := range list {
			e.Header().Source = types.SourceOfficial
		}
		db.Official[et] = list
	}
	db.Custom[types.Classes] = []types.Entry{&types.Class{
		Base:   types.Base{ID: "c1", Name: "Witch <Hedge>", Source: types.SourceCustom, CreatedAt: &created, UpdatedAt: &created},
		HitDie: 8,
	}}
	db.Metadata.LastSyncTimestamp = created.UnixMilli()
	db.Metadata.LastSyncDate = created.Format(timestampLayout)
	db.Metadata.OfficialEntryCount = db.Official.Counts()
	db.Metadata.CustomEntryCount = db.Custom.Counts()

	first := t.TempDir()
	require.NoError(t, Save(first, db))

	loaded := Load(first, nil)
	if diff := cmp.Diff(db, loaded); diff != "" {
		t.Fatalf("Load(Save(db)) differs (-want +got):\n%s", diff)
	}

	second := t.TempDir()
	require.NoError(t, Save(second, loaded))
	for _, s := range types.Sources {
		for _, et := range types.AllEntryTypes {
			assertSameFile(t, EntriesPath(first, s, et), EntriesPath(second, s, et))
		}
	}
	assertSameFile(t, MetadataPath(first), MetadataPath(second))

	raw, err := os.ReadFile(EntriesPath(first, types.SourceCustom, types.Classes))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Witch <Hedge>", "HTML must not be escaped")
}

func TestSnapshotThenSaveIsNoOp(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir)
	require.NoError(t, b.ReplaceOfficial(officialFixture(), types.SyncInfo{Time: time.Now()}))
	_, err := b.AddCustomEntry(types.Monsters, &types.Monster{Base: types.Base{Name: "Gloom Stalker"}, CR: 4})
	require.NoError(t, err)

	before := readTree(t, dir)
	snap, err := b.Snapshot()
	require.NoError(t, err)
	require.NoError(t, Save(dir, snap))
	after := readTree(t, dir)

	// Save also creates the files no mutation has written yet.
	for path, want := range before {
		assert.Equal(t, want, after[path], path)
	}
	assert.Len(t, after, len(types.Sources)*len(types.AllEntryTypes)+1)
}

func TestWriteEntries_NilWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spells.json")
	require.NoError(t, writeEntries(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, writeFileAtomic(path, []byte("one\n")))
	require.NoError(t, writeFileAtomic(path, []byte("two\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func assertSameFile(t *testing.T, want, got string) {
	t.Helper()
	a, err := os.ReadFile(want)
	require.NoError(t, err)
	b, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "%s and %s differ", want, got)
}

// readTree returns the contents of every JSON file under the srd directory.
func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, s := range types.Sources {
		for _, et := range types.AllEntryTypes {
			path := EntriesPath(dir, s, et)
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				continue
			}
			require.NoError(t, err)
			out[path] = string(data)
		}
	}
	data, err := os.ReadFile(MetadataPath(dir))
	require.NoError(t, err)
	out[MetadataPath(dir)] = string(data)
	return out
}
