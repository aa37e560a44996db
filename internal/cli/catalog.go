package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yungbote/negotiator-backend/internal/achievements"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the built-in achievement catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defs := achievements.DefaultDefinitions()
		sort.SliceStable(defs, func(i, j int) bool {
			if defs[i].Category != defs[j].Category {
				return defs[i].Category < defs[j].Category
			}
			return defs[i].Code < defs[j].Code
		})
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-24s %-14s %-10s %6s %s\n", "CODE", "CATEGORY", "RARITY", "POINTS", "NAME")
		total := 0
		for _, d := range defs {
			fmt.Fprintf(w, "%-24s %-14s %-10s %6d %s\n", d.Code, d.Category, d.Rarity, d.Points, d.Name)
			total += d.Points
		}
		fmt.Fprintf(w, "\n%d achievements, %d points available\n", len(defs), total)
		return nil
	},
}
