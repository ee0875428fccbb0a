package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tome/pkg/types"
)

// searchFlags holds the search command's filter flags. Numeric and boolean
// filters only apply when the flag was set on the command line.
type searchFlags struct {
	source        string
	limit         int
	offset        int
	crMin         float64
	crMax         float64
	level         int
	school        string
	ritual        bool
	concentration bool
	rarity        string
	itemType      string
	monsterType   string
	size          string
}

func newSearchCmd(a *app) *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search <type> [text]",
		Short: "Search official and custom entries",
		Long: `Search lists the entries of one type whose name contains text
(case-insensitive). Official and custom matches are listed separately.

Valid types: monsters, races, classes, spells, items, backgrounds

Example:
  tome search monsters goblin
  tome search monsters --cr-min 1 --cr-max 3 --size Medium
  tome search spells --level 0 --school evocation
  tome search items --rarity rare --source custom --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := f.query(cmd, args)
			if err != nil {
				return err
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			res, err := store.Fetch(q)
			if err != nil {
				return storeError("search", err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printSearchResult(cmd, q, res)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.source, "source", "all", "partition to search: all, official, custom")
	fl.IntVar(&f.limit, "limit", 0, "maximum results across both partitions (0 = no limit)")
	fl.IntVar(&f.offset, "offset", 0, "results to skip across both partitions")
	fl.Float64Var(&f.crMin, "cr-min", 0, "monsters: minimum challenge rating")
	fl.Float64Var(&f.crMax, "cr-max", 0, "monsters: maximum challenge rating")
	fl.StringVar(&f.monsterType, "monster-type", "", "monsters: creature type")
	fl.StringVar(&f.size, "size", "", "monsters: size")
	fl.IntVar(&f.level, "level", 0, "spells: spell level (0 = cantrip)")
	fl.StringVar(&f.school, "school", "", "spells: school of magic")
	fl.BoolVar(&f.ritual, "ritual", false, "spells: ritual spells only (--ritual=false excludes them)")
	fl.BoolVar(&f.concentration, "concentration", false, "spells: concentration spells only (--concentration=false excludes them)")
	fl.StringVar(&f.rarity, "rarity", "", "items: rarity")
	fl.StringVar(&f.itemType, "item-type", "", "items: item type")
	return cmd
}

// query builds a store query from args and the flags that were set.
func (f *searchFlags) query(cmd *cobra.Command, args []string) (types.Query, error) {
	t, err := parseTypeArg(args[0])
	if err != nil {
		return types.Query{}, err
	}
	src, err := types.ParseSource(f.source)
	if err != nil {
		return types.Query{}, userError("%w", err)
	}
	if f.limit < 0 || f.offset < 0 {
		return types.Query{}, userError("%w: limit and offset must not be negative", types.ErrInvalidFilter)
	}

	q := types.Query{
		Type:   t,
		Source: src,
		Limit:  f.limit,
		Offset: f.offset,
		Filter: types.Filter{
			MonsterType: f.monsterType,
			Size:        f.size,
			School:      f.school,
			Rarity:      f.rarity,
			ItemType:    f.itemType,
		},
	}
	if len(args) == 2 {
		q.Text = args[1]
	}

	changed := cmd.Flags().Changed
	if changed("cr-min") {
		q.Filter.CRMin = &f.crMin
	}
	if changed("cr-max") {
		q.Filter.CRMax = &f.crMax
	}
	if changed("level") {
		q.Filter.Level = &f.level
	}
	if changed("ritual") {
		q.Filter.Ritual = &f.ritual
	}
	if changed("concentration") {
		q.Filter.Concentration = &f.concentration
	}
	return q, nil
}

func printSearchResult(cmd *cobra.Command, q types.Query, res *types.QueryResult) {
	w := cmd.OutOrStdout()
	if q.Source != types.SourceCustom {
		fmt.Fprintf(w, "Official (%d):\n", len(res.Official))
		printEntryTable(w, q.Type, res.Official)
	}
	if q.Source == types.SourceAll {
		fmt.Fprintln(w)
	}
	if q.Source != types.SourceOfficial {
		fmt.Fprintf(w, "Custom (%d):\n", len(res.Custom))
		printEntryTable(w, q.Type, res.Custom)
	}
	fmt.Fprintf(w, "Total: %d match(es)\n", res.Total)
}
