package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/config"
	"github.com/sells-group/homescore/internal/model"
	"github.com/sells-group/homescore/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <place> [place...]",
	Short: "Resolve place names to coordinates",
	Long: `Searches Nominatim for each place name and prints the first match.
When geocode.google_api_key is set, names Nominatim cannot resolve are
retried against the Google Geocoding API. Unresolved names print N/A.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	},
	RunE: runGeocode,
}

func init() {
	geocodeCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(geocodeCmd)
}

func newGeocoder(c config.GeocodeConfig) geocode.Client {
	return geocode.NewClient(
		geocode.WithNominatimURL(c.Endpoint),
		geocode.WithUserAgent(c.UserAgent),
		geocode.WithGoogleAPIKey(c.GoogleAPIKey),
		geocode.WithRateLimit(c.RatePerSec),
	)
}

func runGeocode(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := newGeocoder(cfg.Geocode).BatchGeocode(ctx, args)
	if err != nil {
		return err
	}

	matched := 0
	for _, r := range results {
		if r.Matched {
			matched++
		}
	}
	zap.L().Info("geocode complete", zap.Int("places", len(results)), zap.Int("matched", matched))

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PLACE\tLATITUDE\tLONGITUDE\tSOURCE\tQUALITY")
	for _, r := range results {
		if !r.Matched {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\n", r.Query, model.NotAvailable, model.NotAvailable)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%s\t%s\n", r.Query, r.Latitude, r.Longitude, r.Source, r.Quality)
	}
	return w.Flush()
}
