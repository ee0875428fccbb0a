package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tome/pkg/types"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show one entry as JSON",
		Long: `Get prints the entry with the given ID. The official partition is
checked first, then the custom one.

Example:
  tome get monsters open5e-goblin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeArg(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			e, err := store.GetEntry(t, args[1])
			if err != nil {
				return storeError("get entry", err)
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <type> <json|->",
		Short: "Add a custom entry",
		Long: `Add stores a new custom entry. The entry is read from the second
argument, or from stdin when it is "-". An ID is generated when none is given.

Example:
  tome add monsters '{"name":"Goblin Boss","size":"Small","cr":1}'
  tome add spells - < ember-bolt.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeArg(args[0])
			if err != nil {
				return err
			}
			data, err := readArgOrStdin(cmd, args[1])
			if err != nil {
				return err
			}
			e, err := types.DecodeEntry(t, data)
			if err != nil {
				return userError("%w", err)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			saved, err := store.AddCustomEntry(t, e)
			if err != nil {
				return storeError("add entry", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), saved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %s (%s)\n", t, saved.Header().ID, saved.Header().Name)
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <type> <id> <json|->",
		Short: "Update fields of a custom entry",
		Long: `Update merges a JSON object of fields into a custom entry. The id,
source and createdAt fields cannot be changed. Official entries are
read-only.

Example:
  tome update monsters 0192f0c1-... '{"hitPoints":30}'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeArg(args[0])
			if err != nil {
				return err
			}
			data, err := readArgOrStdin(cmd, args[2])
			if err != nil {
				return err
			}
			var patch map[string]any
			if err := json.Unmarshal(data, &patch); err != nil {
				return userError("%w: %v", types.ErrInvalidData, err)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			saved, err := store.UpdateCustomEntry(t, args[1], patch)
			if err != nil {
				return storeError("update entry", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), saved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", t, saved.Header().ID)
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <type> <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a custom entry",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeArg(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			id := args[1]
			if err := store.RemoveCustomEntry(t, id); err != nil {
				return storeError("remove entry", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"deleted": id,
					"status":  "success",
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s: %s\n", t, id)
			return nil
		},
	}
}
