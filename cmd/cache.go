package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the amenity cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and geohash coverage",
	Long: `Loads the configured cache backend and prints the number of cached
coordinates, grouped by geohash cell. Lower --precision values give
coarser cells (5 is roughly 5 km, 7 roughly 150 m).`,
	Args: exactArgs(0),
	RunE: runCacheStats,
}

func init() {
	cacheStatsCmd.Flags().Uint("precision", 5, "geohash precision used to group entries (1-12)")
	cacheStatsCmd.Flags().Int("top", 20, "cells to list, most populated first (0 = all)")
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}

type cellCount struct {
	Cell  string
	Count int
}

// rankCells orders coverage by count descending, then cell name.
func rankCells(coverage map[string]int) []cellCount {
	cells := make([]cellCount, 0, len(coverage))
	for cell, n := range coverage {
		cells = append(cells, cellCount{Cell: cell, Count: n})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Count != cells[j].Count {
			return cells[i].Count > cells[j].Count
		}
		return cells[i].Cell < cells[j].Cell
	})
	return cells
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	precision, _ := cmd.Flags().GetUint("precision")
	if precision < 1 || precision > 12 {
		return &usageError{err: fmt.Errorf("--precision must be between 1 and 12, got %d", precision)}
	}
	top, _ := cmd.Flags().GetInt("top")

	env, err := initAmenities(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	cells := rankCells(env.Cache.Coverage(precision))

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Backend:\t%s\n", cfg.Cache.Backend)
	_, _ = fmt.Fprintf(w, "Entries:\t%d\n", env.Cache.Len())
	_, _ = fmt.Fprintf(w, "Cells (precision %d):\t%d\n\n", precision, len(cells))
	if len(cells) > 0 {
		_, _ = fmt.Fprintln(w, "GEOHASH\tENTRIES")
		for i, c := range cells {
			if top > 0 && i >= top {
				_, _ = fmt.Fprintf(w, "...\t%d more cells\n", len(cells)-top)
				break
			}
			_, _ = fmt.Fprintf(w, "%s\t%d\n", c.Cell, c.Count)
		}
	}
	return w.Flush()
}
