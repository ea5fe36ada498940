// Package breaker wraps a market data client in a circuit breaker so a failing
// provider is not hammered for the whole batch.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

// Client is a MarketDataClient guarded by a gobreaker.CircuitBreaker
type Client struct {
	next   interfaces.MarketDataClient
	cb     *gobreaker.CircuitBreaker
	logger *common.Logger
}

var _ interfaces.MarketDataClient = (*Client)(nil)

// New wraps next. The breaker opens after maxFailures consecutive provider
// failures and lets one trial request through after openTimeout.
func New(next interfaces.MarketDataClient, maxFailures int, openTimeout time.Duration, logger *common.Logger) *Client {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	st := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     openTimeout,
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= uint32(maxFailures)
	}
	st.IsSuccessful = countsAsSuccess
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("Provider circuit breaker state change")
	}

	return &Client{next: next, cb: gobreaker.NewCircuitBreaker(st), logger: logger}
}

// countsAsSuccess decides whether a call result counts against the breaker.
// Provider errors and deadlines (a hanging provider) are failures. Caller
// cancellation and data format errors are not the provider's fault.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var provErr *common.ProviderError
	return !errors.As(err, &provErr)
}

// Name identifies the wrapped provider
func (c *Client) Name() string { return c.next.Name() }

// State returns the breaker state as a string (closed, half-open, open)
func (c *Client) State() string { return c.cb.State().String() }

// FetchMonthly delegates to the wrapped client unless the breaker is open.
func (c *Client) FetchMonthly(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.next.FetchMonthly(ctx, symbol)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &common.ProviderError{Provider: c.next.Name(), Symbol: symbol, Message: "provider unavailable: " + err.Error()}
		}
		return nil, err
	}
	return result.([]models.PricePoint), nil
}
