package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/homescore/internal/config"
	"github.com/sells-group/homescore/internal/feature"
	"github.com/sells-group/homescore/internal/listing"
	"github.com/sells-group/homescore/internal/pipeline"
	"github.com/sells-group/homescore/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score <listings> <amenity-summary-dest>",
	Short: "Enrich listings with amenity distances and rank them",
	Long: `Reads a listing table (CSV, XLSX or JSON), resolves amenities around each
listing through the cache, writes the per-listing amenity summary to
<amenity-summary-dest> (CSV, or JSON records for a .json path) and prints
the ranked listings.

Examples:
  # Score with the configured filter and uniform weights
  homescore score listings.csv amenity_summary.csv

  # Custom weights, export the ranking as GeoJSON
  homescore score listings.xlsx summary.json --weights weights.yaml --output ranked.geojson

  # Everything in the file, with a per-locality breakdown
  homescore score listings.csv summary.csv --no-filter --by-locality`,
	Args: exactArgs(2),
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("output", "", "write scored listings to a file (.csv, .json, .geojson, .xlsx) instead of stdout")
	f.String("weights", "", "YAML file mapping feature name to weight (overrides config)")
	f.StringSlice("features", nil, "features to score on (default from config, else all)")
	f.Int("limit", 20, "rows to print when writing to stdout (0 = all)")
	f.Bool("by-locality", false, "print min/median/max score per locality")
	f.Bool("no-filter", false, "score every listing, ignoring the region/locality/property-type filter")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listingsPath, summaryPath := args[0], args[1]
	log := zap.L().With(zap.String("command", "score"))

	features, _ := cmd.Flags().GetStringSlice("features")
	weightsPath, _ := cmd.Flags().GetString("weights")
	noFilter, _ := cmd.Flags().GetBool("no-filter")
	opts, err := pipelineOptions(cfg, features, weightsPath, !noFilter)
	if err != nil {
		return err
	}

	env, err := initAmenities(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	// Fetched entries are kept even when the run fails or is interrupted.
	defer func() {
		if saveErr := saveCache(env.Cache); saveErr != nil {
			log.Error("failed to save amenity cache", zap.Error(saveErr))
			if err == nil {
				err = saveErr
			}
		}
	}()

	p, err := pipeline.New(env.Aggregator, opts, env.Metrics)
	if err != nil {
		return err
	}

	res, err := p.RunFile(ctx, listingsPath)
	if err != nil {
		return err
	}

	if err := listing.WriteSummaryFile(summaryPath, res.Summaries); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		if err := listing.WriteScoredFile(output, res.Ranked, res.Features); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Wrote %d scored listings to %s\n", len(res.Ranked), output)
	} else {
		limit, _ := cmd.Flags().GetInt("limit")
		if err := listing.WriteTable(out, res.Ranked, limit); err != nil {
			return err
		}
	}

	if byLocality, _ := cmd.Flags().GetBool("by-locality"); byLocality {
		if err := writeLocalityTable(out, scorer.ByLocality(res.Ranked)); err != nil {
			return err
		}
	}

	log.Info("score complete",
		zap.String("run_id", res.RunID),
		zap.Int("loaded", res.Loaded),
		zap.Int("considered", res.Considered),
		zap.Int("ranked", len(res.Ranked)),
		zap.Int("dropped", res.Dropped),
		zap.Int("fetch_failures", res.FetchFailures),
		zap.Duration("elapsed", res.Duration),
	)
	return nil
}

// pipelineOptions resolves features, weights and the listing filter from
// config. Non-empty features and weightsPath override the config values.
func pipelineOptions(c *config.Config, features []string, weightsPath string, filtered bool) (pipeline.Options, error) {
	opts := pipeline.Options{
		Filter: listing.Filter{
			Region:        c.Listings.Region,
			PropertyTypes: c.Listings.PropertyTypes,
			Localities:    c.Listings.Localities,
		},
		Filtered:     filtered,
		Features:     c.Scoring.Features,
		MedianIncome: c.Scoring.MedianIncome,
	}
	if len(features) > 0 {
		opts.Features = features
	}
	if len(opts.Features) == 0 {
		opts.Features = append([]string(nil), feature.All...)
	}

	weights := c.Scoring.Weights
	if weightsPath != "" {
		w, err := loadWeights(weightsPath)
		if err != nil {
			return opts, err
		}
		weights = w
	}
	if len(weights) > 0 {
		w, err := scorer.WeightsFromMap(opts.Features, weights)
		if err != nil {
			return opts, err
		}
		opts.Weights = w
	}
	return opts, nil
}

// loadWeights reads a YAML mapping of feature name to weight.
func loadWeights(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read weights file %s", path)
	}
	var w map[string]float64
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, eris.Wrapf(err, "parse weights file %s", path)
	}
	if len(w) == 0 {
		return nil, eris.Errorf("weights file %s is empty", path)
	}
	return w, nil
}

func writeLocalityTable(out io.Writer, stats []scorer.LocalityStats) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\nLOCALITY\tLISTINGS\tMIN\tMEDIAN\tMAX")
	for _, s := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\t%.3f\n", s.Locality, s.Count, s.Min, s.Median, s.Max)
	}
	return w.Flush()
}
