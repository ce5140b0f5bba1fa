package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleQuality maps a Geocoding API location_type to Result.Quality.
var googleQuality = map[string]string{
	"ROOFTOP":            "rooftop",
	"RANGE_INTERPOLATED": "range",
	"GEOMETRIC_CENTER":   "centroid",
}

// googlePlaces is a Geocoding API answer. Status is "OK" or "ZERO_RESULTS"
// for a completed search; anything else is a request-level failure
// described by ErrorMessage.
type googlePlaces struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Candidates   []googlePlace `json:"results"`
}

type googlePlace struct {
	Address      string   `json:"formatted_address"`
	Types        []string `json:"types"`
	PartialMatch bool     `json:"partial_match"`
	Geometry     struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
}

// best returns the first candidate that matched the whole place name, or
// the first candidate when every match is partial.
func (p googlePlaces) best() (googlePlace, bool) {
	if len(p.Candidates) == 0 {
		return googlePlace{}, false
	}
	for _, c := range p.Candidates {
		if !c.PartialMatch {
			return c, true
		}
	}
	return p.Candidates[0], true
}

// geocodeGoogle resolves place through the Geocoding API. A search with no
// candidates is unmatched; a denied, throttled or malformed request is an
// error.
func (g *geocoder) geocodeGoogle(ctx context.Context, place string) (*Result, error) {
	if g.googleKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	places, err := g.searchGoogle(ctx, place)
	if err != nil {
		return nil, err
	}

	switch places.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", places.Status, places.ErrorMessage)
	}

	hit, ok := places.best()
	if !ok {
		return &Result{Query: place, Source: "google"}, nil
	}
	return &Result{
		Query:       place,
		Latitude:    hit.Geometry.Location.Lat,
		Longitude:   hit.Geometry.Location.Lng,
		DisplayName: hit.Address,
		Source:      "google",
		Quality:     googleLocationTypeToQuality(hit.Geometry.LocationType),
		Matched:     true,
	}, nil
}

func (g *geocoder) searchGoogle(ctx context.Context, place string) (googlePlaces, error) {
	var places googlePlaces

	q := url.Values{}
	q.Set("address", place)
	q.Set("key", g.googleKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleGeocodeURL+"?"+q.Encode(), nil)
	if err != nil {
		return places, eris.Wrap(err, "geocode: google build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return places, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return places, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return places, eris.Wrap(err, "geocode: google parse response")
	}
	return places, nil
}

func googleLocationTypeToQuality(locType string) string {
	if q, ok := googleQuality[strings.ToUpper(locType)]; ok {
		return q
	}
	return "approximate"
}
