package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tome/internal/paths"
	"github.com/mesh-intelligence/tome/internal/sqlite"
	"github.com/mesh-intelligence/tome/pkg/types"
)

// testEnv is an isolated config and data directory pair.
type testEnv struct {
	configDir string
	dataDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv(paths.EnvConfigDir, "")
	t.Setenv(paths.EnvDataDir, "")
	root := t.TempDir()
	return &testEnv{
		configDir: filepath.Join(root, "config"),
		dataDir:   filepath.Join(root, "data"),
	}
}

// writeConfig replaces config.yaml with body.
func (e *testEnv) writeConfig(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, configFileExt), []byte(body), 0o644))
}

type result struct {
	stdout string
	stderr string
	code   int
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	args = append(args, "--config-dir", e.configDir, "--data-dir", e.dataDir)
	code := run(root, args, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// fakeOpen5e serves one page per endpoint. Every record carries only a slug
// and a name; monsters also carry a challenge rating.
func fakeOpen5e(t *testing.T, status int) *httptest.Server {
	t.Helper()
	records := map[string][]map[string]any{
		"monsters":    {{"slug": "goblin", "name": "Goblin", "challenge_rating": "1/4", "size": "Small"}, {"slug": "owlbear", "name": "Owlbear", "challenge_rating": "3"}},
		"races":       {{"slug": "elf", "name": "Elf"}},
		"classes":     {{"slug": "wizard", "name": "Wizard", "hit_dice": "1d6"}},
		"spells":      {{"slug": "fireball", "name": "Fireball", "level_int": 3, "school": "evocation"}},
		"magicitems":  {{"slug": "bag-of-holding", "name": "Bag of Holding", "rarity": "uncommon"}},
		"backgrounds": {{"slug": "acolyte", "name": "Acolyte"}},
	}
	mux := http.NewServeMux()
	for endpoint, results := range records {
		mux.HandleFunc("/"+endpoint+"/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if status != http.StatusOK {
				w.WriteHeader(status)
				w.Write([]byte(`{"detail":"maintenance"}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"count": len(results), "next": nil, "results": results})
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func syncConfig(baseURL string) string {
	return fmt.Sprintf(`backend: sqlite
api:
  base_url: %s
sync:
  request_delay_ms: 0
  timeout_seconds: 5
log:
  level: error
`, baseURL)
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "", "version")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, fmt.Sprintf("tome v%s\nmodule: %s\n", Version, modulePath), res.stdout)

	_, err := os.Stat(env.configDir)
	assert.True(t, os.IsNotExist(err), "version must not create the config dir")
}

func TestInit(t *testing.T) {
	env := newTestEnv(t)

	res := env.run(t, "", "init")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Tome initialized.")
	assert.Contains(t, res.stdout, "tome sync")

	for _, dir := range []string{"official", "custom"} {
		info, err := os.Stat(filepath.Join(env.dataDir, "srd", dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	data, err := os.ReadFile(filepath.Join(env.configDir, configFileExt))
	require.NoError(t, err)
	assert.Contains(t, string(data), "data_dir: "+env.dataDir)
	assert.Contains(t, string(data), "max_age_hours: 168")

	// Running init again keeps the recorded data dir.
	res = env.run(t, "", "init")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	again, err := os.ReadFile(filepath.Join(env.configDir, configFileExt))
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestStatus_NeverSynced(t *testing.T) {
	env := newTestEnv(t)

	res := env.run(t, "", "status", "--json")
	require.Equal(t, exitSuccess, res.code, res.stderr)

	var out struct {
		LastSyncDate       string                  `json:"lastSyncDate"`
		NeedsSync          bool                    `json:"needsSync"`
		DataDir            string                  `json:"dataDir"`
		OfficialEntryCount map[types.EntryType]int `json:"officialEntryCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Empty(t, out.LastSyncDate)
	assert.True(t, out.NeedsSync)
	assert.Equal(t, env.dataDir, out.DataDir)
	assert.Len(t, out.OfficialEntryCount, len(types.AllEntryTypes))

	res = env.run(t, "", "status")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Last sync: never")
	assert.Contains(t, res.stdout, "TYPE")
}

func TestSyncThenSearch(t *testing.T) {
	env := newTestEnv(t)
	srv := fakeOpen5e(t, http.StatusOK)
	env.writeConfig(t, syncConfig(srv.URL))

	res := env.run(t, "", "sync", "--json")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var sr struct {
		Success bool                    `json:"success"`
		Counts  map[types.EntryType]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &sr))
	assert.True(t, sr.Success)
	assert.Equal(t, 2, sr.Counts[types.Monsters])
	assert.Equal(t, 1, sr.Counts[types.Items])

	// Fresh data is not fetched again without --force.
	res = env.run(t, "", "sync")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "up to date")

	res = env.run(t, "", "sync", "--force")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Sync complete: synced 7 official entries")

	res = env.run(t, "", "search", "monsters", "GOB", "--json")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var qr struct {
		Official []map[string]any `json:"official"`
		Custom   []map[string]any `json:"custom"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &qr))
	require.Len(t, qr.Official, 1)
	assert.Equal(t, "open5e-goblin", qr.Official[0]["id"])
	assert.Empty(t, qr.Custom)
	assert.Equal(t, 1, qr.Total)

	res = env.run(t, "", "search", "monsters", "--offset", "1", "--limit", "9223372036854775807", "--json")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	qr.Official, qr.Custom = nil, nil
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &qr))
	assert.Len(t, qr.Official, 1)
	assert.Empty(t, qr.Custom)
	assert.Equal(t, 2, qr.Total)

	res = env.run(t, "", "search", "monsters", "--cr-min", "1")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Owlbear")
	assert.NotContains(t, res.stdout, "Goblin")
	assert.Contains(t, res.stdout, "No monsters found.")

	res = env.run(t, "", "get", "spells", "open5e-fireball")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"school": "evocation"`)

	res = env.run(t, "", "status")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, srv.URL)
	assert.NotContains(t, res.stdout, "stale")
}

func TestSync_SingleType(t *testing.T) {
	env := newTestEnv(t)
	srv := fakeOpen5e(t, http.StatusOK)
	env.writeConfig(t, syncConfig(srv.URL))

	res := env.run(t, "", "sync", "--type", "spells")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "spells")
	assert.NotContains(t, res.stdout, "monsters")

	res = env.run(t, "", "sync", "--type", "feats")
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "invalid entry type")
}

func TestSync_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	srv := fakeOpen5e(t, http.StatusServiceUnavailable)
	env.writeConfig(t, syncConfig(srv.URL))

	res := env.run(t, "", "sync")
	assert.Equal(t, exitSysError, res.code)
	assert.Contains(t, res.stderr, "sync failed")

	// Nothing was written.
	res = env.run(t, "", "status", "--json")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"needsSync": true`)
}

func TestCustomEntryLifecycle(t *testing.T) {
	env := newTestEnv(t)

	res := env.run(t, "", "add", "monsters", `{"name":"Goblin Boss","size":"Small","cr":1}`, "--json")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var added map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &added))
	id, _ := added["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "custom", added["source"])
	assert.NotEmpty(t, added["createdAt"])

	res = env.run(t, `{"name":"Ember Bolt","level":0,"school":"evocation"}`, "add", "spells", "-")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Added spells:")
	assert.Contains(t, res.stdout, "(Ember Bolt)")

	res = env.run(t, "", "update", "monsters", id, `{"hitPoints":30,"id":"ignored"}`, "--json")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	var updated map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &updated))
	assert.Equal(t, id, updated["id"])
	assert.EqualValues(t, 30, updated["hitPoints"])

	res = env.run(t, "", "search", "monsters", "--source", "custom")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Goblin Boss")
	assert.Contains(t, res.stdout, "CR 1 Small")
	assert.NotContains(t, res.stdout, "Official (")

	res = env.run(t, "", "remove", "monsters", id)
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Equal(t, fmt.Sprintf("Removed monsters: %s\n", id), res.stdout)

	res = env.run(t, "", "get", "monsters", id)
	assert.Equal(t, exitUserError, res.code)
	assert.Contains(t, res.stderr, "entry not found")
}

func TestEntryCommandErrors(t *testing.T) {
	env := newTestEnv(t)
	srv := fakeOpen5e(t, http.StatusOK)
	env.writeConfig(t, syncConfig(srv.URL))
	require.Equal(t, exitSuccess, env.run(t, "", "sync").code)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown type", []string{"get", "feats", "x"}, "invalid entry type"},
		{"malformed json", []string{"add", "monsters", "{"}, "invalid entry data"},
		{"missing name", []string{"add", "monsters", `{"cr":1}`}, "invalid entry data"},
		{"update official", []string{"update", "monsters", "open5e-goblin", `{"hitPoints":1}`}, "read-only"},
		{"remove official", []string{"remove", "monsters", "open5e-goblin"}, "read-only"},
		{"remove missing", []string{"remove", "monsters", "nope"}, "entry not found"},
		{"bad source", []string{"search", "monsters", "--source", "homebrew"}, "invalid filter"},
		{"negative limit", []string{"search", "monsters", "--limit", "-1"}, "invalid filter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.run(t, "", tt.args...)
			assert.Equal(t, exitUserError, res.code)
			assert.Contains(t, res.stderr, tt.wantErr)
		})
	}
}

func TestSetup_BadConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{"unknown backend", "backend: postgres\n", "unknown backend"},
		{"zero max pages", "sync:\n  max_pages: 0\n", "sync.max_pages must be positive"},
		{"bad log level", "log:\n  level: loud\n", "invalid log level"},
		{"bad log format", "log:\n  format: xml\n", "invalid log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.writeConfig(t, tt.config)
			res := env.run(t, "", "status")
			assert.Equal(t, exitUserError, res.code)
			assert.Contains(t, res.stderr, tt.wantErr)
		})
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	v, err := loadConfig(t.TempDir())
	require.NoError(t, err)
	s, err := loadSettings(v)
	require.NoError(t, err)

	assert.Empty(t, s.DataDir)
	assert.Equal(t, 168, int(s.MaxAge.Hours()))
	assert.Equal(t, 50, s.MaxPages)
	assert.Equal(t, 100, int(s.RequestDelay.Milliseconds()))
	assert.Equal(t, 30, int(s.Timeout.Seconds()))
	assert.Equal(t, "https://api.open5e.com/v1", s.BaseURL)
	assert.Equal(t, "v1", s.APIVersion)
	assert.Equal(t, ":8080", s.ServerAddr)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoadConfig_WritesDefaultFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	_, err := loadConfig(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, configFileExt))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), configHeader))
	assert.NotContains(t, string(data), "data_dir")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitUserError, exitCode(userError("bad %s", "input")))
	assert.Equal(t, exitSysError, exitCode(sysError("disk: %w", os.ErrPermission)))
	assert.Equal(t, exitUserError, exitCode(fmt.Errorf("unknown flag")))
	assert.ErrorIs(t, sysError("disk: %w", os.ErrPermission), os.ErrPermission)
}

func TestEntryDetail(t *testing.T) {
	tests := []struct {
		name  string
		entry types.Entry
		want  string
	}{
		{"monster rating text", &types.Monster{ChallengeRating: "1/4", Size: "Small", Type: "humanoid"}, "CR 1/4 Small humanoid"},
		{"monster numeric rating", &types.Monster{CR: 0.5, Size: "Medium", Type: "beast"}, "CR 1/2 Medium beast"},
		{"cantrip", &types.Spell{School: "evocation"}, "cantrip evocation"},
		{"leveled spell", &types.Spell{Level: 3, School: "evocation"}, "level 3 evocation"},
		{"item", &types.Item{Rarity: "rare", ItemType: "Wondrous item"}, "rare Wondrous item"},
		{"class", &types.Class{HitDie: 12}, "d12"},
		{"background", &types.Background{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entryDetail(tt.entry))
		})
	}
}

func TestSearchHelp_PaginationSpansPartitions(t *testing.T) {
	env := newTestEnv(t)
	res := env.run(t, "", "search", "--help")
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "maximum results across both partitions")
	assert.Contains(t, res.stdout, "results to skip across both partitions")
	assert.NotContains(t, res.stdout, "per partition")
}

func TestAdd_DataDirHeldByAnotherStore(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no advisory locking on windows")
	}
	env := newTestEnv(t)
	held := sqlite.NewBackend()
	require.NoError(t, held.Attach(types.Config{Backend: types.BackendSQLite, DataDir: env.dataDir}))

	res := env.run(t, "", "add", "monsters", `{"name":"Goblin Boss","size":"Small","cr":1}`)
	assert.Equal(t, exitSysError, res.code)
	assert.Contains(t, res.stderr, types.ErrStoreLocked.Error())

	require.NoError(t, held.Detach())
	res = env.run(t, "", "add", "monsters", `{"name":"Goblin Boss","size":"Small","cr":1}`)
	require.Equal(t, exitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Goblin Boss")
}
