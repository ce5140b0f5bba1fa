package listing

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/homescore/internal/model"
)

// SummaryColumns are the amenity summary table columns.
var SummaryColumns = []string{
	"latitude", "longitude", "avg_convenience_dist", "avg_transit_distance", "avg_school_distance",
}

type summaryRecord struct {
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Convenience *float64 `json:"avg_convenience_dist"`
	Transit     *float64 `json:"avg_transit_distance"`
	School      *float64 `json:"avg_school_distance"`
}

// WriteSummaryCSV writes one row per summary. Absent distances are empty cells.
func WriteSummaryCSV(w io.Writer, summaries []model.AmenitySummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryColumns); err != nil {
		return eris.Wrap(err, "listing: write summary header")
	}
	for _, s := range summaries {
		row := []string{
			formatFloat(s.Coordinate.Lat),
			formatFloat(s.Coordinate.Lon),
			formatOptional(s.ConvenienceKM),
			formatOptional(s.TransitKM),
			formatOptional(s.SchoolKM),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "listing: write summary row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "listing: flush summary csv")
}

// WriteSummaryJSON writes summaries as an array of records. Absent
// distances are null.
func WriteSummaryJSON(w io.Writer, summaries []model.AmenitySummary) error {
	recs := make([]summaryRecord, len(summaries))
	for i, s := range summaries {
		recs[i] = summaryRecord{
			Latitude:    s.Coordinate.Lat,
			Longitude:   s.Coordinate.Lon,
			Convenience: s.ConvenienceKM,
			Transit:     s.TransitKM,
			School:      s.SchoolKM,
		}
	}
	return eris.Wrap(json.NewEncoder(w).Encode(recs), "listing: encode summary json")
}

// WriteSummaryFile writes summaries to path as JSON when the extension is
// .json and as CSV otherwise.
func WriteSummaryFile(path string, summaries []model.AmenitySummary) error {
	return writeFile(path, func(w io.Writer) error {
		if strings.EqualFold(filepath.Ext(path), ".json") {
			return WriteSummaryJSON(w, summaries)
		}
		return WriteSummaryCSV(w, summaries)
	})
}

var scoredColumns = []string{
	"rank", ColAddress, ColLocality, ColPostalCode, ColLatitude, ColLongitude,
	ColPrice, ColBeds, ColBaths, ColSqft, ColPropertyType, ColGarage,
	"price_to_income", "avg_convenience_dist", "avg_transit_distance", "avg_school_distance",
	"amenity_status", "score",
}

func scoredRow(rank int, r model.ScoredListing) []string {
	l := r.Listing
	return []string{
		strconv.Itoa(rank),
		l.Address,
		l.Locality,
		l.PostalCode,
		formatFloat(l.Coordinate.Lat),
		formatFloat(l.Coordinate.Lon),
		formatOptional(l.Price),
		formatOptional(l.Beds),
		formatOptional(l.Baths),
		formatOptional(l.Sqft),
		l.PropertyType,
		l.Garage,
		formatOptional(r.PriceToIncome),
		formatOptional(r.Amenities.ConvenienceKM),
		formatOptional(r.Amenities.TransitKM),
		formatOptional(r.Amenities.SchoolKM),
		string(r.Amenities.Status),
		strconv.FormatFloat(r.Score, 'f', 6, 64),
	}
}

// WriteScoredCSV writes ranked listings followed by one column per
// normalized feature.
func WriteScoredCSV(w io.Writer, rows []model.ScoredListing, features []string) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), scoredColumns...), prefixed(features)...)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "listing: write scored header")
	}
	for i, r := range rows {
		if err := cw.Write(append(scoredRow(i+1, r), featureCells(r, features)...)); err != nil {
			return eris.Wrap(err, "listing: write scored row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "listing: flush scored csv")
}

// WriteScoredJSON writes ranked listings as an indented JSON array.
func WriteScoredJSON(w io.Writer, rows []model.ScoredListing) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []model.ScoredListing{}
	}
	return eris.Wrap(enc.Encode(rows), "listing: encode scored json")
}

// WriteScoredGeoJSON writes ranked listings as a FeatureCollection of
// points carrying rank, address and score properties.
func WriteScoredGeoJSON(w io.Writer, rows []model.ScoredListing) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(rows))}
	for i, r := range rows {
		props := map[string]any{
			"rank":           i + 1,
			"street_address": r.Listing.Address,
			"locality":       r.Listing.Locality,
			"property_type":  r.Listing.PropertyType,
			"score":          r.Score,
		}
		if r.Listing.Price != nil {
			props["price"] = *r.Listing.Price
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{r.Listing.Coordinate.Lon, r.Listing.Coordinate.Lat}),
			Properties: props,
		})
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "listing: marshal geojson")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "listing: write geojson")
}

// WriteScoredXLSX saves ranked listings to a single-sheet workbook.
func WriteScoredXLSX(path string, rows []model.ScoredListing, features []string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Scores")
	if err != nil {
		return eris.Wrap(err, "listing: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range append(append([]string(nil), scoredColumns...), prefixed(features)...) {
		header.AddCell().SetString(h)
	}
	for i, r := range rows {
		row := sheet.AddRow()
		for _, v := range append(scoredRow(i+1, r), featureCells(r, features)...) {
			cell := row.AddCell()
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				cell.SetFloat(n)
			} else {
				cell.SetString(v)
			}
		}
	}

	return eris.Wrap(f.Save(path), "listing: save xlsx")
}

// WriteScoredFile picks the output format from the extension of path:
// .json, .geojson, .xlsx, otherwise CSV.
func WriteScoredFile(path string, rows []model.ScoredListing, features []string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return WriteScoredXLSX(path, rows, features)
	case ".geojson":
		return writeFile(path, func(w io.Writer) error { return WriteScoredGeoJSON(w, rows) })
	case ".json":
		return writeFile(path, func(w io.Writer) error { return WriteScoredJSON(w, rows) })
	default:
		return writeFile(path, func(w io.Writer) error { return WriteScoredCSV(w, rows, features) })
	}
}

// WriteTable prints the top limit rows as an aligned table. A limit <= 0
// prints every row.
func WriteTable(out io.Writer, rows []model.ScoredListing, limit int) error {
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tSCORE\tADDRESS\tLOCALITY\tTYPE\tPRICE\tCONV_KM\tTRANSIT_KM\tSCHOOL_KM")
	for i, r := range rows[:limit] {
		_, _ = fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, r.Score, r.Listing.Address, r.Listing.Locality, r.Listing.PropertyType,
			dash(formatOptional(r.Listing.Price)),
			dash(formatKM(r.Amenities.ConvenienceKM)),
			dash(formatKM(r.Amenities.TransitKM)),
			dash(formatKM(r.Amenities.SchoolKM)),
		)
	}
	return eris.Wrap(w.Flush(), "listing: flush table")
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "listing: create output")
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "listing: close output")
}

func prefixed(features []string) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = "norm_" + f
	}
	return out
}

func featureCells(r model.ScoredListing, features []string) []string {
	out := make([]string, len(features))
	for i, f := range features {
		if v, ok := r.Features[f]; ok {
			out[i] = strconv.FormatFloat(v, 'f', 6, 64)
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatKM(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
