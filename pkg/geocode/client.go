// Package geocode resolves place names to coordinates via Nominatim
// (primary) and Google (fallback).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultUserAgent identifies requests per the Nominatim usage policy.
const DefaultUserAgent = "homescore/1.0 (listing geocoder)"

// Client geocodes free-text place names.
type Client interface {
	// Geocode resolves a single place name. An unmatched name is not an
	// error; the result has Matched false.
	Geocode(ctx context.Context, place string) (*Result, error)

	// BatchGeocode resolves each name in order.
	BatchGeocode(ctx context.Context, places []string) ([]Result, error)
}

// Result holds the geocoding output for a place name.
type Result struct {
	Query       string  `json:"query"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name,omitempty"`
	Source      string  `json:"source,omitempty"`  // "nominatim" or "google"
	Quality     string  `json:"quality,omitempty"` // "rooftop", "range", "centroid", "approximate"
	Matched     bool    `json:"matched"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithNominatimURL overrides the Nominatim search endpoint.
func WithNominatimURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.nominatimURL = strings.TrimRight(u, "/")
		}
	}
}

// WithUserAgent sets the User-Agent sent to Nominatim.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithGoogleAPIKey enables Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for both providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit shared by both providers.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type geocoder struct {
	httpClient   *http.Client
	nominatimURL string
	userAgent    string
	googleKey    string
	limiter      *rate.Limiter
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		nominatimURL: nominatimSearchURL,
		userAgent:    DefaultUserAgent,
		limiter:      rate.NewLimiter(1, 1), // Nominatim policy: at most 1 req/s
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode tries Nominatim first, then Google if configured. Provider
// errors are logged and reported as unmatched.
func (g *geocoder) Geocode(ctx context.Context, place string) (*Result, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, eris.New("geocode: empty place name")
	}

	result, err := g.geocodeNominatim(ctx, place)
	if err == nil && result.Matched {
		return result, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "geocode: cancelled")
		}
		zap.L().Warn("geocode: nominatim lookup failed", zap.String("place", place), zap.Error(err))
	}

	if g.googleKey != "" {
		googleResult, googleErr := g.geocodeGoogle(ctx, place)
		if googleErr == nil && googleResult.Matched {
			return googleResult, nil
		}
		if googleErr != nil {
			zap.L().Warn("geocode: google lookup failed", zap.String("place", place), zap.Error(googleErr))
		}
	}

	return &Result{Query: place, Matched: false}, nil
}

// BatchGeocode geocodes places sequentially under the shared rate limit.
func (g *geocoder) BatchGeocode(ctx context.Context, places []string) ([]Result, error) {
	if len(places) == 0 {
		return nil, nil
	}

	results := make([]Result, len(places))
	for i, place := range places {
		r, err := g.Geocode(ctx, place)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			results[i] = Result{Query: place, Matched: false}
			continue
		}
		results[i] = *r
	}
	return results, nil
}
