// Package alphavantage provides a client for the Alpha Vantage time series API
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

const (
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = common.ProviderTimeout
	DefaultRateLimit = 5 // requests per minute, free tier

	providerName  = "alphavantage"
	userAgent     = "Dual Momentum ETF Tracker/1.0"
	seriesKey     = "Monthly Time Series"
	closeField    = "4. close"
	maxErrorBytes = 512
)

// Client implements interfaces.MarketDataClient against TIME_SERIES_MONTHLY
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

var _ interfaces.MarketDataClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL. An empty value keeps the default.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the request budget per minute. Zero or less disables limiting.
func WithRateLimit(requestsPerMinute int) ClientOption {
	return func(c *Client) {
		c.limiter = newLimiter(requestsPerMinute)
	}
}

// WithTimeout bounds each FetchMonthly call, including the rate limit wait
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		limiter:    newLimiter(DefaultRateLimit),
		logger:     common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider
func (c *Client) Name() string { return providerName }

// monthlyResponse covers both the success payload and the error variants.
type monthlyResponse struct {
	Series       map[string]map[string]string `json:"Monthly Time Series"`
	ErrorMessage string                       `json:"Error Message"`
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
}

// FetchMonthly retrieves the monthly close series for symbol, newest first.
func (c *Client) FetchMonthly(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, &common.DataFormatError{Field: "symbol", Reason: "symbol is required"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", symbol, err)
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_MONTHLY")
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug().Str("symbol", symbol).Msg("Alpha Vantage API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", symbol, ctx.Err())
		}
		return nil, &common.ProviderError{Provider: providerName, Symbol: symbol, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &common.ProviderError{Provider: providerName, Symbol: symbol, StatusCode: resp.StatusCode, Message: msg}
	}

	var payload monthlyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &common.DataFormatError{Symbol: symbol, Reason: fmt.Sprintf("failed to decode response: %v", err)}
	}

	switch {
	case payload.ErrorMessage != "":
		return nil, &common.ProviderError{Provider: providerName, Symbol: symbol, Message: payload.ErrorMessage}
	case payload.Series == nil && payload.Note != "":
		return nil, &common.ProviderError{Provider: providerName, Symbol: symbol, Message: payload.Note}
	case payload.Series == nil && payload.Information != "":
		return nil, &common.ProviderError{Provider: providerName, Symbol: symbol, Message: payload.Information}
	case payload.Series == nil:
		return nil, &common.DataFormatError{Symbol: symbol, Field: seriesKey, Reason: "no monthly time series data available"}
	}

	points, err := parseSeries(symbol, payload.Series)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("symbol", symbol).Int("points", len(points)).Msg("Alpha Vantage series fetched")
	return points, nil
}

// parseSeries converts the date-keyed series into points sorted newest first.
func parseSeries(symbol string, series map[string]map[string]string) ([]models.PricePoint, error) {
	points := make([]models.PricePoint, 0, len(series))
	for day, fields := range series {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, &common.DataFormatError{Symbol: symbol, Field: "date", Reason: fmt.Sprintf("invalid date %q", day)}
		}
		raw, ok := fields[closeField]
		if !ok {
			return nil, &common.DataFormatError{Symbol: symbol, Field: closeField, Reason: fmt.Sprintf("missing for %s", day)}
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, &common.DataFormatError{Symbol: symbol, Field: closeField, Reason: fmt.Sprintf("invalid value %q for %s", raw, day)}
		}
		points = append(points, models.PricePoint{Date: date, Price: price})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.After(points[j].Date)
	})
	return points, nil
}
