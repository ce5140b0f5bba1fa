package amenity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/model"
)

// InterpreterClient queries the interpreter endpoint with HTTP GET, passing
// the Overpass QL query in the data parameter.
type InterpreterClient struct {
	opts options
}

// NewInterpreterClient creates an InterpreterClient.
func NewInterpreterClient(opts ...Option) *InterpreterClient {
	return &InterpreterClient{opts: newOptions(opts)}
}

// Fetch implements Fetcher.
func (c *InterpreterClient) Fetch(ctx context.Context, lat, lon float64, radiusMeters int) ([]model.Amenity, error) {
	if err := c.opts.limiter.Wait(ctx); err != nil {
		return nil, &Failure{Err: eris.Wrap(err, "rate limit")}
	}

	query := BuildQuery(lat, lon, radiusMeters)
	reqURL := c.opts.endpoint + "?" + url.Values{"data": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Failure{Err: eris.Wrap(err, "build request")}
	}
	req.Header.Set("User-Agent", c.opts.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, &Failure{Err: eris.Wrap(err, "request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &Failure{StatusCode: resp.StatusCode, Err: eris.New(http.StatusText(resp.StatusCode))}
	}

	var body interpreterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &Failure{Err: eris.Wrap(err, "decode response")}
	}
	if body.incomplete() {
		zap.L().Warn("amenity: interpreter returned a partial result",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Int("elements", len(body.Elements)),
			zap.String("remark", body.Remark),
		)
		return nil, &Failure{StatusCode: resp.StatusCode, Err: eris.Wrap(ErrIncomplete, body.Remark)}
	}

	amenities := toAmenities(body.Elements)
	zap.L().Debug("amenity: interpreter query complete",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
		zap.Int("radius_m", radiusMeters),
		zap.Int("elements", len(body.Elements)),
		zap.Int("amenities", len(amenities)),
	)
	return amenities, nil
}
