package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// nominatimPlace is one search hit. Nominatim encodes coordinates as strings.
type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

// geocodeNominatim takes the first search hit for place.
func (g *geocoder) geocodeNominatim(ctx context.Context, place string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {place},
		"format": {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.nominatimURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(places) == 0 {
		return &Result{Query: place, Matched: false, Source: "nominatim"}, nil
	}

	hit := places[0]
	lat, err := strconv.ParseFloat(hit.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim latitude %q", hit.Lat)
	}
	lon, err := strconv.ParseFloat(hit.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim longitude %q", hit.Lon)
	}

	return &Result{
		Query:       place,
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: hit.DisplayName,
		Source:      "nominatim",
		Quality:     nominatimQuality(hit.Class, hit.Type),
		Matched:     true,
	}, nil
}

// nominatimQuality maps the hit's OSM class/type onto the quality taxonomy.
func nominatimQuality(class, typ string) string {
	switch {
	case class == "building" || typ == "house":
		return "rooftop"
	case class == "highway":
		return "range"
	case class == "place" || class == "boundary":
		return "centroid"
	default:
		return "approximate"
	}
}
