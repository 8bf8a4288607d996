// Package geocode reverse-geocodes complaint locations through Nominatim.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cleancity/backend/internal/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// gridDecimals rounds cache keys to about 11 m.
const gridDecimals = 4

// Cache stores resolved addresses by grid key.
type Cache interface {
	GetAddress(ctx context.Context, key string) (string, bool, error)
	SetAddress(ctx context.Context, key, address string, ttl time.Duration) error
}

// Client handles Nominatim reverse lookups with rate limiting and caching.
type Client struct {
	baseURL    string
	userAgent  string
	cacheTTL   time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      Cache
	logger     *zap.Logger
}

func NewClient(cfg config.GeocodeConfig, cache Cache, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		cacheTTL:   cfg.CacheTTL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		cache:      cache,
		logger:     logger,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// CacheKey rounds a coordinate onto the cache grid.
func CacheKey(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', gridDecimals, 64) + "," + strconv.FormatFloat(lng, 'f', gridDecimals, 64)
}

// Reverse returns the display name of the place at (lat, lng).
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	key := CacheKey(lat, lng)
	if c.cache != nil {
		addr, ok, err := c.cache.GetAddress(ctx, key)
		if err != nil {
			c.logger.Warn("Geocode cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return addr, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("format", "jsonv2")
	reqURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, string(body))
	}

	var out reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("nominatim: %s", out.Error)
	}
	if out.DisplayName == "" {
		return "", fmt.Errorf("nominatim: no address for %s", key)
	}

	if c.cache != nil {
		if err := c.cache.SetAddress(ctx, key, out.DisplayName, c.cacheTTL); err != nil {
			c.logger.Warn("Geocode cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out.DisplayName, nil
}
