package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tome/internal/srdsync"
	"github.com/mesh-intelligence/tome/pkg/types"
)

func newSyncCmd(a *app) *cobra.Command {
	var (
		force    bool
		typeName string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download official SRD data from Open5e",
		Long: `Sync replaces the official entries with a fresh download from the
Open5e API. A sync is skipped while the last one is younger than
sync.max_age_hours unless --force is given. Custom entries are never touched.

Example:
  tome sync
  tome sync --force
  tome sync --type spells`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			mgr := a.newSyncManager(store)
			var res srdsync.Result
			if typeName != "" {
				t, err := parseTypeArg(typeName)
				if err != nil {
					return err
				}
				res = mgr.SyncType(cmd.Context(), t)
			} else {
				res = mgr.Sync(cmd.Context(), force)
			}

			if a.flags.jsonMode {
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				printSyncResult(cmd, res)
			}
			if !res.Success {
				return sysError("%s: %s", res.Message, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "sync even when official data is fresh")
	cmd.Flags().StringVar(&typeName, "type", "", "sync a single entry type")
	return cmd
}

func printSyncResult(cmd *cobra.Command, res srdsync.Result) {
	w := cmd.OutOrStdout()
	switch {
	case res.Skipped:
		fmt.Fprintln(w, "Official data is up to date; use --force to sync anyway.")
	case res.Success:
		fmt.Fprintf(w, "Sync complete: %s in %dms\n", res.Message, res.DurationMS)
	default:
		// The error itself is printed by run.
		return
	}
	for _, t := range types.AllEntryTypes {
		if n, ok := res.Counts[t]; ok {
			fmt.Fprintf(w, "  %-12s %d\n", t, n)
		}
	}
}
