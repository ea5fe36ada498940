// Package eodhd provides a client for the EODHD API
package eodhd

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

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = common.ProviderTimeout
	DefaultRateLimit = 600 // requests per minute
	DefaultExchange  = "US"

	providerName  = "eodhd"
	maxErrorBytes = 512
)

// Client implements interfaces.MarketDataClient using EODHD monthly bars
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	history    time.Duration
	timeout    time.Duration
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
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

// WithTimeout bounds each FetchMonthly call
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithExchange sets the suffix appended to bare symbols (VOO -> VOO.US)
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		c.exchange = strings.ToUpper(exchange)
	}
}

// WithHistory limits how far back the monthly series is requested
func WithHistory(d time.Duration) ClientOption {
	return func(c *Client) {
		c.history = d
	}
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		exchange:   DefaultExchange,
		history:    400 * 24 * time.Hour, // 13 month-ends plus slack
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		limiter:    newLimiter(DefaultRateLimit),
		logger:     common.NewSilentLogger(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider
func (c *Client) Name() string { return providerName }

// ticker qualifies a bare symbol with the configured exchange
func (c *Client) ticker(symbol string) string {
	if strings.Contains(symbol, ".") || c.exchange == "" {
		return symbol
	}
	return symbol + "." + c.exchange
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, symbol, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", symbol, err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("fetch %s: %w", symbol, ctx.Err())
		}
		return &common.ProviderError{Provider: providerName, Symbol: symbol, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &common.ProviderError{Provider: providerName, Symbol: symbol, StatusCode: resp.StatusCode, Message: msg}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.ProviderError{Provider: providerName, Symbol: symbol, Message: fmt.Sprintf("read body: %v", err)}
	}
	if err := json.Unmarshal(body, result); err != nil {
		// EODHD answers some failures with 200 and a plain text or object body
		var apiErr struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && (apiErr.Message != "" || apiErr.Error != "") {
			msg := apiErr.Message
			if msg == "" {
				msg = apiErr.Error
			}
			return &common.ProviderError{Provider: providerName, Symbol: symbol, Message: msg}
		}
		return &common.DataFormatError{Symbol: symbol, Reason: fmt.Sprintf("failed to decode response: %v", err)}
	}

	return nil
}

// eodBarResponse represents one bar of the /eod response
type eodBarResponse struct {
	Date          string      `json:"date"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
}

// FetchMonthly retrieves monthly closes for symbol, newest first.
func (c *Client) FetchMonthly(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, &common.DataFormatError{Field: "symbol", Reason: "symbol is required"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("period", "m")
	params.Set("order", "d")
	if c.history > 0 {
		params.Set("from", c.now().Add(-c.history).Format("2006-01-02"))
	}

	var bars []eodBarResponse
	if err := c.get(ctx, symbol, fmt.Sprintf("/eod/%s", c.ticker(symbol)), params, &bars); err != nil {
		return nil, err
	}

	points := make([]models.PricePoint, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			return nil, &common.DataFormatError{Symbol: symbol, Field: "date", Reason: fmt.Sprintf("invalid date %q", bar.Date)}
		}
		points = append(points, models.PricePoint{Date: date, Price: float64(bar.Close)})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.After(points[j].Date)
	})

	c.logger.Debug().Str("symbol", symbol).Int("points", len(points)).Msg("EODHD monthly series fetched")
	return points, nil
}
