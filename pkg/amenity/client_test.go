package amenity

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/homescore/internal/model"
)

const sampleResponse = `{
	"version": 0.6,
	"elements": [
		{"type": "node", "id": 30, "lat": 49.2830, "lon": -123.1210,
		 "tags": {"shop": "grocery", "name": "Corner Market"}},
		{"type": "node", "id": 10, "lat": 49.2900, "lon": -123.1300,
		 "tags": {"amenity": "school"}},
		{"type": "node", "id": 20, "tags": {"amenity": "bus_station", "name": "No Coordinates"}},
		{"type": "node", "id": 40, "lat": 49.2800, "lon": -123.1200}
	]
}`

func newTestInterpreter(t *testing.T, handler http.HandlerFunc) *InterpreterClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewInterpreterClient(WithEndpoint(srv.URL), WithRateLimit(0))
}

func TestInterpreterClient_Success(t *testing.T) {
	var gotQuery, gotUA string
	c := newTestInterpreter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		gotQuery = r.URL.Query().Get("data")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleResponse)
	})

	got, err := c.Fetch(context.Background(), 49.2827, -123.1207, 3000)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, `node["amenity"="school"](around:3000,49.2827,-123.1207);`)
	assert.Contains(t, gotQuery, `node["shop"="grocery"](around:3000,49.2827,-123.1207);`)
	assert.Equal(t, DefaultUserAgent, gotUA)

	require.Len(t, got, 2, "untagged and coordinate-less elements are dropped")

	assert.Equal(t, int64(10), got[0].SourceID)
	assert.Equal(t, "node", got[0].SourceType)
	assert.Equal(t, model.NotAvailable, got[0].Name)
	assert.Equal(t, "school", got[0].AmenityTag)
	assert.Equal(t, model.NotAvailable, got[0].ShopTag)
	assert.Equal(t, model.CategorySchool, got[0].Category)

	assert.Equal(t, int64(30), got[1].SourceID)
	assert.Equal(t, "Corner Market", got[1].Name)
	assert.Equal(t, model.NotAvailable, got[1].AmenityTag)
	assert.Equal(t, model.CategoryGrocery, got[1].Category)
	assert.InDelta(t, 49.2830, got[1].Lat, 1e-9)
}

func TestInterpreterClient_EmptyResult(t *testing.T) {
	c := newTestInterpreter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"elements": []}`)
	})

	got, err := c.Fetch(context.Background(), 0, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInterpreterClient_NonSuccessStatus(t *testing.T) {
	c := newTestInterpreter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Fetch(context.Background(), 49.2827, -123.1207, 3000)
	require.Error(t, err)

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, http.StatusTooManyRequests, f.StatusCode)
	assert.Contains(t, err.Error(), "429")
}

func TestInterpreterClient_MalformedBody(t *testing.T) {
	c := newTestInterpreter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>busy</html>`)
	})

	_, err := c.Fetch(context.Background(), 49.2827, -123.1207, 3000)
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Zero(t, f.StatusCode)
	assert.Contains(t, err.Error(), "decode response")
}

func TestInterpreterClient_RuntimeErrorRemark(t *testing.T) {
	c := newTestInterpreter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"elements": [{"type": "node", "id": 10, "lat": 49.29, "lon": -123.13, "tags": {"amenity": "school"}}],
			"remark": "runtime error: Query timed out in \"query\" at line 1 after 25 seconds."
		}`)
	})

	got, err := c.Fetch(context.Background(), 49.2827, -123.1207, 3000)
	require.Error(t, err)
	assert.Nil(t, got, "truncated elements are not returned")

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, http.StatusOK, f.StatusCode)
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Contains(t, err.Error(), "Query timed out")
}

func TestInterpreterClient_InformationalRemark(t *testing.T) {
	c := newTestInterpreter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{
			"elements": [{"type": "node", "id": 10, "lat": 49.29, "lon": -123.13, "tags": {"amenity": "school"}}],
			"remark": "runtime remark: Timeout is 25 seconds."
		}`)
	})

	got, err := c.Fetch(context.Background(), 49.2827, -123.1207, 3000)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInterpreterClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	c := NewInterpreterClient(WithEndpoint(endpoint), WithRateLimit(0))
	_, err := c.Fetch(context.Background(), 1, 1, 100)

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Zero(t, f.StatusCode)
}

func TestInterpreterClient_ContextCancelled(t *testing.T) {
	var calls atomic.Int32
	c := newTestInterpreter(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"elements": []}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Fetch(ctx, 1, 1, 100)
	require.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestInterpreterClient_CustomUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, `{"elements": []}`)
	}))
	defer srv.Close()

	c := NewInterpreterClient(WithEndpoint(srv.URL), WithRateLimit(0), WithUserAgent("listing-test/0.1"))
	_, err := c.Fetch(context.Background(), 1, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "listing-test/0.1", ua)
}

func TestLibraryClient_Success(t *testing.T) {
	var method, contentType, ua, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		ua = r.Header.Get("User-Agent")
		if assert.NoError(t, r.ParseForm()) {
			query = r.PostForm.Get("data")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"elements": [
			{"type": "node", "id": 30, "lat": 49.2830, "lon": -123.1210,
			 "tags": {"shop": "grocery", "name": "Corner Market"}},
			{"type": "node", "id": 10, "lat": 49.2900, "lon": -123.1300,
			 "tags": {"amenity": "school"}}
		]}`)
	}))
	defer srv.Close()

	c := NewLibraryClient(WithEndpoint(srv.URL), WithRateLimit(0), WithUserAgent("listing-test/0.1"))
	got, err := c.Fetch(context.Background(), 49.2827, -123.1207, 3000)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, "listing-test/0.1", ua)
	assert.Equal(t, BuildQuery(49.2827, -123.1207, 3000), query)

	require.Len(t, got, 2)
	assert.Equal(t, int64(10), got[0].SourceID)
	assert.Equal(t, model.CategorySchool, got[0].Category)
	assert.Equal(t, model.NotAvailable, got[0].Name)
	assert.Equal(t, int64(30), got[1].SourceID)
	assert.Equal(t, "Corner Market", got[1].Name)
}

func TestLibraryClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	c := NewLibraryClient(WithEndpoint(srv.URL), WithRateLimit(0))
	_, err := c.Fetch(context.Background(), 49.2827, -123.1207, 3000)

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, http.StatusGatewayTimeout, f.StatusCode)
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(49.2827, -123.1207, 1500)
	assert.True(t, strings.HasPrefix(q, "[out:json];"))
	assert.True(t, strings.HasSuffix(q, "out body;\n"))
	for _, tag := range AmenityTags {
		assert.Contains(t, q, `node["amenity"="`+tag+`"](around:1500,49.2827,-123.1207);`)
	}
	for _, tag := range ShopTags {
		assert.Contains(t, q, `node["shop"="`+tag+`"](around:1500,49.2827,-123.1207);`)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		amenity, shop string
		want          model.Category
	}{
		{"school", model.NotAvailable, model.CategorySchool},
		{"university", model.NotAvailable, model.CategoryUniversity},
		{"bus_station", model.NotAvailable, model.CategoryBusStation},
		{model.NotAvailable, "convenience", model.CategoryConvenience},
		{model.NotAvailable, "grocery", model.CategoryGrocery},
		{"school", "grocery", model.CategoryGrocery},
		{"cafe", model.NotAvailable, model.CategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, model.Classify(tt.amenity, tt.shop))
	}
}
