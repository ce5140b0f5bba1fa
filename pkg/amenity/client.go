// Package amenity queries an Overpass-style amenity index for tagged points
// around a coordinate.
package amenity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/homescore/internal/model"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// DefaultUserAgent identifies homescore to the amenity index.
const DefaultUserAgent = "homescore/1.0 (listing amenity enrichment)"

// Fetcher resolves the amenities within radiusMeters of a point.
type Fetcher interface {
	Fetch(ctx context.Context, lat, lon float64, radiusMeters int) ([]model.Amenity, error)
}

// ErrIncomplete marks a 200 response whose remark says the query was cut
// short, so its element list is partial.
var ErrIncomplete = eris.New("incomplete result")

// Failure reports a transport error or non-success status from the index.
// StatusCode is zero when no HTTP response was received.
type Failure struct {
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 && f.StatusCode != http.StatusOK {
		return fmt.Sprintf("amenity: index returned status %d: %v", f.StatusCode, f.Err)
	}
	return fmt.Sprintf("amenity: %v", f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Option configures a client.
type Option func(*options)

type options struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// WithEndpoint overrides the interpreter URL.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		if endpoint != "" {
			o.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client used for queries.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit caps queries per second. Zero or negative disables limiting.
func WithRateLimit(rps float64) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header sent with every query.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(1, 1), // public Overpass instances ask for ~1 req/s
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
