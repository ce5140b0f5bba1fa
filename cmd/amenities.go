package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

var amenitiesCmd = &cobra.Command{
	Use:   "amenities --lat <lat> --lon <lon>",
	Short: "Resolve amenities around one coordinate",
	Long:  "Looks up (or fetches and caches) the amenities within the configured radius and prints them with the per-category mean distances.",
	Example: `  homescore amenities --lat 49.2827 --lon -123.1207
  homescore amenities --lat=49.2827 --lon=-123.1207 --json`,
	Args: exactArgs(0),
	RunE: runAmenities,
}

func init() {
	amenitiesCmd.Flags().Float64("lat", 0, "latitude in decimal degrees")
	amenitiesCmd.Flags().Float64("lon", 0, "longitude in decimal degrees (negative west of Greenwich)")
	amenitiesCmd.Flags().Bool("json", false, "print the amenities and summary as JSON")
	rootCmd.AddCommand(amenitiesCmd)
}

// coordinateFlags reads --lat and --lon. Both are required.
func coordinateFlags(cmd *cobra.Command) (geo.Coordinate, error) {
	for _, name := range []string{"lat", "lon"} {
		if !cmd.Flags().Changed(name) {
			return geo.Coordinate{}, &usageError{err: eris.Errorf("--%s is required", name)}
		}
	}
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return geo.Coordinate{}, &usageError{err: eris.Errorf("coordinate %v, %v out of range", lat, lon)}
	}
	return c, nil
}

func runAmenities(cmd *cobra.Command, _ []string) error {
	coord, err := coordinateFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initAmenities(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	amenities, err := env.Aggregator.Resolve(ctx, coord)
	if err != nil {
		return err
	}
	summary := env.Aggregator.Summarize(ctx, coord)

	if err := saveCache(env.Cache); err != nil {
		zap.L().Error("failed to save amenity cache", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Key       string               `json:"cache_key"`
			Amenities []model.Amenity      `json:"amenities"`
			Summary   model.AmenitySummary `json:"summary"`
		}{geo.RoundKey(coord).String(), amenities, summary})
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Cache key: %s (%d amenities)\n\n", geo.RoundKey(coord), len(amenities))
	_, _ = fmt.Fprintln(w, "CATEGORY\tNAME\tDISTANCE_KM")
	for _, a := range amenities {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.3f\n", a.Category, a.Name, coord.DistanceKM(a.Coordinate()))
	}
	_, _ = fmt.Fprintf(w, "\nconvenience\t%s\n", kmOrNA(summary.ConvenienceKM))
	_, _ = fmt.Fprintf(w, "transit\t%s\n", kmOrNA(summary.TransitKM))
	_, _ = fmt.Fprintf(w, "school\t%s\n", kmOrNA(summary.SchoolKM))
	return w.Flush()
}

func kmOrNA(v *float64) string {
	if v == nil {
		return model.NotAvailable
	}
	return fmt.Sprintf("%.3f km", *v)
}
