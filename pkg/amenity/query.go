package amenity

import (
	"fmt"
	"strconv"
	"strings"
)

// AmenityTags are the amenity=* values requested from the index.
var AmenityTags = []string{"school", "university", "bus_station"}

// ShopTags are the shop=* values requested from the index.
var ShopTags = []string{"convenience", "grocery"}

// BuildQuery renders the Overpass QL union for every requested tag within
// radiusMeters of (lat, lon).
func BuildQuery(lat, lon float64, radiusMeters int) string {
	around := fmt.Sprintf("(around:%d,%s,%s)",
		radiusMeters,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lon, 'f', -1, 64),
	)

	var b strings.Builder
	b.WriteString("[out:json];\n(\n")
	for _, tag := range AmenityTags {
		fmt.Fprintf(&b, "  node[\"amenity\"=%q]%s;\n", tag, around)
	}
	for _, tag := range ShopTags {
		fmt.Fprintf(&b, "  node[\"shop\"=%q]%s;\n", tag, around)
	}
	b.WriteString(");\nout body;\n")
	return b.String()
}
