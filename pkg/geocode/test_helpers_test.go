package geocode

import (
	"net/http"
	"strings"
	"testing"

	"golang.org/x/time/rate"
)

// newTestGeocoder points Nominatim at nominatimSrv and redirects Google
// calls to googleSrv. Either URL may be empty.
func newTestGeocoder(t *testing.T, nominatimSrv, googleSrv, googleKey string) *geocoder {
	t.Helper()
	g := &geocoder{
		httpClient:   http.DefaultClient,
		nominatimURL: nominatimSrv,
		userAgent:    "homescore-test",
		googleKey:    googleKey,
		limiter:      rate.NewLimiter(rate.Inf, 1),
	}
	if googleSrv != "" {
		g.httpClient = &http.Client{Transport: &rewriteTransport{
			base:   http.DefaultTransport,
			to:     googleSrv,
			prefix: googleGeocodeURL,
		}}
	}
	if g.nominatimURL == "" {
		g.nominatimURL = "http://127.0.0.1:1/unused"
	}
	return g
}

// rewriteTransport sends requests whose URL starts with prefix to another host.
type rewriteTransport struct {
	base   http.RoundTripper
	to     string
	prefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	orig := req.URL.String()
	if !strings.HasPrefix(orig, t.prefix) {
		return t.base.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.to + orig[len(t.prefix):])
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.URL = parsed
	out.Host = parsed.Host
	return t.base.RoundTrip(out)
}
