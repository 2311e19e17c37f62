package cmc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cmc_performance/config"
	"cmc_performance/metrics"
	"cmc_performance/middleware"
	"cmc_performance/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Client talks to the CoinMarketCap listings API. The API key is fixed at
// construction.
type Client struct {
	BaseURL       string
	PageSize      int
	RetryAttempts int
	RetryDelay    time.Duration
	Metrics       *metrics.Metrics

	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg *config.Config, m *metrics.Metrics) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(cfg.API.BaseURL, "/"),
		PageSize:      cfg.API.PageSize,
		RetryAttempts: cfg.API.RetryAttempts,
		RetryDelay:    cfg.API.RetryDelay,
		Metrics:       m,
		apiKey:        cfg.API.Key,
		http: &http.Client{
			Timeout:   cfg.API.Timeout,
			Transport: utils.NewLoggingTransport(http.DefaultTransport),
		},
		breaker: middleware.NewCircuitBreaker("coinmarketcap", cfg.API.BreakerThreshold, cfg.API.BreakerTimeout),
	}
}

// FetchListings retrieves one page of listings, retrying with a fixed delay
// until RetryAttempts is exhausted.
func (c *Client) FetchListings(ctx context.Context, start, limit int) (*ListingsResponse, error) {
	var listings *ListingsResponse

	operation := func() error {
		err := middleware.WithCircuitBreaker(c.breaker, func() error {
			resp, err := c.get(ctx, ListingsEndpoint, url.Values{
				"start": {strconv.Itoa(start)},
				"limit": {strconv.Itoa(limit)},
			})
			if err != nil {
				return err
			}
			listings = resp
			return nil
		})
		if middleware.IsBreakerOpen(err) {
			return backoff.Permanent(fmt.Errorf("coinmarketcap unavailable: %w", err))
		}
		return err
	}

	retry := utils.NewFixedRetry(ctx, c.RetryDelay, c.RetryAttempts)
	err := backoff.RetryNotify(operation, retry, func(err error, wait time.Duration) {
		utils.Logger.Warnw("Listings request failed, retrying",
			"start", start,
			"limit", limit,
			"error", err,
			"retry_in", wait)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings start=%d limit=%d: %w", start, limit, err)
	}
	return listings, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*ListingsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accepts", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var listings ListingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if listings.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("api error %d: %s", listings.Status.ErrorCode, listings.Status.ErrorMessage)
	}
	return &listings, nil
}
