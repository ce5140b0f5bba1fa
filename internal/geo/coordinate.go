package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// KeyPrecision is the number of decimal places kept in a cache key.
// Four places is roughly 11 m of latitude.
const KeyPrecision = 4

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether the coordinate is finite and within WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Key identifies a cache entry: a coordinate rounded to KeyPrecision places.
type Key struct {
	Lat float64
	Lon float64
}

// RoundKey collapses c onto its cache key.
func RoundKey(c Coordinate) Key {
	return Key{Lat: roundTo(c.Lat, KeyPrecision), Lon: roundTo(c.Lon, KeyPrecision)}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Coordinate returns the key's rounded coordinate.
func (k Key) Coordinate() Coordinate {
	return Coordinate{Lat: k.Lat, Lon: k.Lon}
}

// String renders the key as "(lat, lon)" using the shortest exact decimal form.
func (k Key) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(strconv.FormatFloat(k.Lat, 'f', -1, 64))
	b.WriteString(", ")
	b.WriteString(strconv.FormatFloat(k.Lon, 'f', -1, 64))
	b.WriteByte(')')
	return b.String()
}

// ParseKey parses the textual key form produced by Key.String. Surrounding
// parentheses are optional. Exactly two finite numbers are accepted and the
// result is re-rounded onto the key grid.
func ParseKey(s string) (Key, error) {
	raw := strings.TrimSpace(s)
	if strings.HasPrefix(raw, "(") != strings.HasSuffix(raw, ")") {
		return Key{}, eris.Errorf("geo: unbalanced parentheses in key %q", s)
	}
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")

	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Key{}, eris.Errorf("geo: key %q must have exactly two components", s)
	}

	lat, err := parseComponent(parts[0])
	if err != nil {
		return Key{}, eris.Wrapf(err, "geo: parse latitude in key %q", s)
	}
	lon, err := parseComponent(parts[1])
	if err != nil {
		return Key{}, eris.Wrapf(err, "geo: parse longitude in key %q", s)
	}

	k := RoundKey(Coordinate{Lat: lat, Lon: lon})
	if !k.Coordinate().Valid() {
		return Key{}, eris.Errorf("geo: key %q is out of range", s)
	}
	return k, nil
}

func parseComponent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.New("empty component")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("non-finite component %q", s)
	}
	return v, nil
}
