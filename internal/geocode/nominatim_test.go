package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cleancity/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memCache struct {
	m      map[string]string
	getErr error
}

func (c *memCache) GetAddress(_ context.Context, key string) (string, bool, error) {
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) SetAddress(_ context.Context, key, address string, _ time.Duration) error {
	c.m[key] = address
	return nil
}

func newTestClient(srv *httptest.Server, cache Cache) *Client {
	return NewClient(config.GeocodeConfig{
		BaseURL:   srv.URL,
		UserAgent: "CleanCity-test",
		CacheTTL:  time.Hour,
		RPS:       1000,
	}, cache, srv.Client(), zap.NewNop())
}

func TestReverse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "CleanCity-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "50.4501", r.URL.Query().Get("lat"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{"display_name":"Khreshchatyk St, Kyiv, Ukraine"}`))
	}))
	defer srv.Close()

	cache := &memCache{m: map[string]string{}}
	c := newTestClient(srv, cache)

	addr, err := c.Reverse(context.Background(), 50.4501, 30.5234)
	require.NoError(t, err)
	assert.Equal(t, "Khreshchatyk St, Kyiv, Ukraine", addr)
	assert.Equal(t, "Khreshchatyk St, Kyiv, Ukraine", cache.m["50.4501,30.5234"])

	// Same grid cell is served from cache.
	addr, err = c.Reverse(context.Background(), 50.45012, 30.52338)
	require.NoError(t, err)
	assert.Equal(t, "Khreshchatyk St, Kyiv, Ukraine", addr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReverse_CacheErrorFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"display_name":"Somewhere"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, &memCache{m: map[string]string{}, getErr: errors.New("redis down")})
	addr, err := c.Reverse(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Somewhere", addr)
}

func TestReverse_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) }},
		{"nominatim error", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"error":"Unable to geocode"}`)) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`<html>`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := newTestClient(srv, nil).Reverse(context.Background(), 0, 0)
			assert.Error(t, err)
		})
	}
}

func TestReverse_RateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"display_name":"x"}`))
	}))
	defer srv.Close()

	c := NewClient(config.GeocodeConfig{BaseURL: srv.URL, RPS: 0.001}, nil, srv.Client(), zap.NewNop())
	_, err := c.Reverse(context.Background(), 1, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Reverse(ctx, 2, 2)
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "50.4500,-30.1235", CacheKey(50.45, -30.12346))
}
