package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tome/internal/open5e"
	"github.com/mesh-intelligence/tome/internal/srdsync"
	"github.com/mesh-intelligence/tome/pkg/sqlite"
	"github.com/mesh-intelligence/tome/pkg/types"
)

// openStore resolves the data directory and attaches a store to it. The
// caller must defer store.Detach().
func (a *app) openStore() (types.Store, error) {
	dataDir, err := a.resolveDataDir()
	if err != nil {
		return nil, sysError("resolve data dir: %w", err)
	}

	store := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dataDir}
	if err := store.Attach(cfg); err != nil {
		return nil, sysError("attach store: %w", err)
	}
	return store, nil
}

// newSyncManager wires an Open5e client to store using the loaded settings.
func (a *app) newSyncManager(store types.Store) *srdsync.Manager {
	client := open5e.New(
		open5e.WithBaseURL(a.settings.BaseURL),
		open5e.WithAPIVersion(a.settings.APIVersion),
		open5e.WithDelay(a.settings.RequestDelay),
		open5e.WithTimeout(a.settings.Timeout),
		open5e.WithLogger(a.logger),
	)
	return srdsync.NewManager(store, client,
		srdsync.WithMaxAge(a.settings.MaxAge),
		srdsync.WithMaxPages(a.settings.MaxPages),
		srdsync.WithLogger(a.logger),
	)
}

// storeError classifies a store error by exit code.
func storeError(action string, err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidEntryType),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, types.ErrInvalidFilter),
		errors.Is(err, types.ErrOfficialReadOnly),
		errors.Is(err, types.ErrDuplicateID):
		return userError("%s: %w", action, err)
	default:
		return sysError("%s: %w", action, err)
	}
}

// parseTypeArg converts a positional argument to an entry type.
func parseTypeArg(s string) (types.EntryType, error) {
	t, err := types.ParseEntryType(s)
	if err != nil {
		return "", userError("%w (valid: %s)", err, entryTypeList())
	}
	return t, nil
}

func entryTypeList() string {
	names := make([]string, len(types.AllEntryTypes))
	for i, t := range types.AllEntryTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError("marshal output: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

// printEntryTable prints entries in a human-readable table.
func printEntryTable(w io.Writer, t types.EntryType, entries []types.Entry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No %s found.\n", t)
		return
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSOURCE\tDETAIL")
	fmt.Fprintln(tw, "--\t----\t------\t------")
	for _, e := range entries {
		h := e.Header()
		name := h.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.ID, name, h.Source, entryDetail(e))
	}
	tw.Flush()

	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// entryDetail summarizes the type-specific fields shown in tables.
func entryDetail(e types.Entry) string {
	switch v := e.(type) {
	case *types.Monster:
		cr := v.ChallengeRating
		if cr == "" {
			cr = formatCR(v.CR)
		}
		return strings.TrimSpace(fmt.Sprintf("CR %s %s %s", cr, v.Size, v.Type))
	case *types.Spell:
		if v.Level == types.CantripLevel {
			return strings.TrimSpace("cantrip " + v.School)
		}
		return fmt.Sprintf("level %d %s", v.Level, v.School)
	case *types.Item:
		return strings.TrimSpace(v.Rarity + " " + v.ItemType)
	case *types.Class:
		if v.HitDie == 0 {
			return ""
		}
		return fmt.Sprintf("d%d", v.HitDie)
	case *types.Race:
		return v.Size
	default:
		return ""
	}
}

// formatCR renders fractional challenge ratings the way stat blocks do.
func formatCR(cr float64) string {
	switch cr {
	case 0.125:
		return "1/8"
	case 0.25:
		return "1/4"
	case 0.5:
		return "1/2"
	default:
		return fmt.Sprintf("%g", cr)
	}
}

// readArgOrStdin returns arg, or all of stdin when arg is "-".
func readArgOrStdin(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, sysError("read stdin: %w", err)
	}
	return data, nil
}
