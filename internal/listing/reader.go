// Package listing reads, filters, merges and exports real-estate listing tables.
package listing

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

// Source column names, as exported by the listing scrape.
const (
	ColAddress       = "streetAddress"
	ColLocality      = "addressLocality"
	ColRegion        = "addressRegion"
	ColPostalCode    = "postalCode"
	ColLatitude      = "latitude"
	ColLongitude     = "longitude"
	ColPrice         = "price"
	ColBeds          = "property-beds"
	ColBaths         = "property-baths"
	ColSqft          = "property-sqft"
	ColGarage        = "Garage"
	ColPropertyType  = "Property Type"
	ColSquareFootage = "Square Footage"
)

var requiredColumns = []string{ColLatitude, ColLongitude}

// errNoCoordinate marks a row whose latitude or longitude cell is empty.
var errNoCoordinate = eris.New("listing: row has no coordinate")

// Read loads listings from path, choosing the format by extension
// (.csv, .xlsx or .json).
func Read(ctx context.Context, path string) ([]model.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "listing: read")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "listing: open json")
		}
		defer f.Close() //nolint:errcheck
		return ReadJSON(f)
	case ".csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "listing: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	default:
		return nil, eris.Errorf("listing: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV parses a listing table with a header row.
func ReadCSV(r io.Reader) ([]model.Listing, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "listing: read csv")
	}
	if len(records) == 0 {
		return nil, eris.New("listing: csv has no header row")
	}
	return fromRecords(records[0], records[1:])
}

// ReadXLSX parses the first sheet of a workbook; the first row is the header.
func ReadXLSX(path string) ([]model.Listing, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "listing: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("listing: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	if len(records) == 0 {
		return nil, eris.New("listing: sheet has no header row")
	}
	return fromRecords(records[0], records[1:])
}

// ReadJSON parses an array of records keyed by source column name. Values
// may be strings, numbers or null.
func ReadJSON(r io.Reader) ([]model.Listing, error) {
	var raw []map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "listing: decode json")
	}

	seen := make(map[string]bool)
	var header []string
	for _, rec := range raw {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	if len(raw) > 0 {
		for _, c := range requiredColumns {
			if !seen[c] {
				header = append(header, c)
			}
		}
	}

	rows := make([][]string, len(raw))
	for i, rec := range raw {
		row := make([]string, len(header))
		for j, k := range header {
			switch v := rec[k].(type) {
			case nil:
			case string:
				row[j] = v
			case json.Number:
				row[j] = v.String()
			case bool:
				row[j] = strconv.FormatBool(v)
			default:
				return nil, eris.Errorf("listing: record %d: column %q has unsupported value %v", i+1, k, v)
			}
		}
		rows[i] = row
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return fromRecords(header, rows)
}

// fromRecords maps rows onto listings by header name. Row numbers in errors
// are 1-based and count the header as row 1.
func fromRecords(header []string, rows [][]string) ([]model.Listing, error) {
	idx := indexHeader(header)
	for _, c := range requiredColumns {
		if _, ok := idx[fold(c)]; !ok {
			return nil, eris.Errorf("listing: missing required column %q", c)
		}
	}

	out := make([]model.Listing, 0, len(rows))
	skipped := 0
	for i, rec := range rows {
		if blank(rec) {
			continue
		}
		l, err := parseRow(idx, rec)
		if eris.Is(err, errNoCoordinate) {
			skipped++
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "listing: row %d", i+2)
		}
		out = append(out, l)
	}

	if skipped > 0 {
		zap.L().Warn("listing: skipped rows without coordinates", zap.Int("skipped", skipped))
	}
	zap.L().Debug("listing: parsed table", zap.Int("rows", len(out)), zap.Int("columns", len(header)))
	return out, nil
}

type columnIndex map[string]int

func indexHeader(header []string) columnIndex {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		key := fold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func (c columnIndex) get(rec []string, col string) string {
	i, ok := c[fold(col)]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseRow(idx columnIndex, rec []string) (model.Listing, error) {
	l := model.Listing{
		Address:       idx.get(rec, ColAddress),
		Locality:      idx.get(rec, ColLocality),
		Region:        idx.get(rec, ColRegion),
		PostalCode:    idx.get(rec, ColPostalCode),
		Garage:        idx.get(rec, ColGarage),
		PropertyType:  idx.get(rec, ColPropertyType),
		SquareFootage: idx.get(rec, ColSquareFootage),
	}

	lat, err := parseNumber(idx.get(rec, ColLatitude), ColLatitude)
	if err != nil {
		return l, err
	}
	lon, err := parseNumber(idx.get(rec, ColLongitude), ColLongitude)
	if err != nil {
		return l, err
	}
	if lat == nil || lon == nil {
		return l, errNoCoordinate
	}
	l.Coordinate = geo.Coordinate{Lat: *lat, Lon: *lon}
	if !l.Coordinate.Valid() {
		return l, eris.Errorf("coordinate (%g, %g) out of range", *lat, *lon)
	}

	if l.Price, err = parseNumber(idx.get(rec, ColPrice), ColPrice); err != nil {
		return l, err
	}
	if l.Beds, err = parseNumber(idx.get(rec, ColBeds), ColBeds); err != nil {
		return l, err
	}
	if l.Baths, err = parseNumber(idx.get(rec, ColBaths), ColBaths); err != nil {
		return l, err
	}
	l.Sqft = parseSqft(idx.get(rec, ColSqft))
	return l, nil
}

// parseNumber returns nil for an empty cell and an error for anything that
// is not a finite number.
func parseNumber(s, col string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, eris.Errorf("column %q: %q is not a number", col, s)
	}
	return &v, nil
}

// parseSqft strips thousands separators. Unparseable values are treated as
// absent, matching how the source scrape fills this column.
func parseSqft(s string) *float64 {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func fold(s string) string {
	return cases.Fold().String(s)
}
