package amenity

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"

	"github.com/sells-group/homescore/internal/model"
)

// LibraryClient runs the same query through the go-overpass client, which
// POSTs the query as a form body. Useful for mirrors that reject long GET URLs.
type LibraryClient struct {
	opts options
}

// NewLibraryClient creates a LibraryClient.
func NewLibraryClient(opts ...Option) *LibraryClient {
	return &LibraryClient{opts: newOptions(opts)}
}

// Fetch implements Fetcher.
func (c *LibraryClient) Fetch(ctx context.Context, lat, lon float64, radiusMeters int) ([]model.Amenity, error) {
	if err := c.opts.limiter.Wait(ctx); err != nil {
		return nil, &Failure{Err: eris.Wrap(err, "rate limit")}
	}

	call := &callClient{ctx: ctx, hc: c.opts.httpClient, userAgent: c.opts.userAgent}
	client := overpass.NewWithSettings(c.opts.endpoint, 1, call)

	result, err := client.Query(BuildQuery(lat, lon, radiusMeters))
	if err != nil {
		if call.status != 0 && call.status != http.StatusOK {
			return nil, &Failure{StatusCode: call.status, Err: err}
		}
		return nil, &Failure{Err: eris.Wrap(err, "overpass query")}
	}

	out := make([]model.Amenity, 0, len(result.Nodes))
	for _, node := range result.Nodes {
		if node == nil || node.Tags == nil {
			continue
		}
		out = append(out, newAmenity(string(overpass.ElementTypeNode), node.ID, node.Lat, node.Lon, node.Tags))
	}
	sortAmenities(out)
	return out, nil
}

// callClient binds one Fetch call's context to the library's requests and
// records the response status.
type callClient struct {
	ctx       context.Context
	hc        *http.Client
	userAgent string
	status    int
}

// PostForm implements overpass.HTTPClient.
func (c *callClient) PostForm(u string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, u, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

func (c *callClient) Do(req *http.Request) (*http.Response, error) {
	req = req.WithContext(c.ctx)
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.hc.Do(req)
	if resp != nil {
		c.status = resp.StatusCode
	}
	return resp, err
}
