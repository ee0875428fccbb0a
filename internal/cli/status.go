package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tome/internal/srdsync"
	"github.com/mesh-intelligence/tome/pkg/types"
)

// statusOutput is the --json shape of the status command.
type statusOutput struct {
	types.Metadata
	DataDir   string `json:"dataDir"`
	NeedsSync bool   `json:"needsSync"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state and entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			meta, err := store.Metadata()
			if err != nil {
				return storeError("read metadata", err)
			}
			dataDir, _ := a.resolveDataDir()
			out := statusOutput{
				Metadata:  meta,
				DataDir:   dataDir,
				NeedsSync: srdsync.ShouldSync(meta, a.settings.MaxAge, a.now()),
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printStatus(cmd, out)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, s statusOutput) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Data:      %s\n", s.DataDir)
	if s.LastSync().IsZero() {
		fmt.Fprintln(w, "Last sync: never")
	} else {
		fmt.Fprintf(w, "Last sync: %s (%s)\n", s.LastSyncDate, s.SourceURL)
	}
	if s.NeedsSync {
		fmt.Fprintln(w, "Official data is stale; run 'tome sync'.")
	}
	fmt.Fprintln(w)

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tOFFICIAL\tCUSTOM")
	for _, t := range types.AllEntryTypes {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", t, s.OfficialEntryCount[t], s.CustomEntryCount[t])
	}
	tw.Flush()
	fmt.Fprint(w, sb.String())
}
