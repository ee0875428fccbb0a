package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the tome release, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/tome/internal/cli.Version=...".
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/tome"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tome version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "tome v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
