package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/etfmomentum/internal/common"
)

func TestFetchMonthly_ParsesResponse(t *testing.T) {
	mockResp := []map[string]interface{}{
		{"date": "2024-10-31", "close": 108.0, "adjusted_close": 107.5},
		{"date": "2024-12-31", "close": "120.00", "adjusted_close": 119.0},
		{"date": "2024-11-29", "close": 110.0, "adjusted_close": 109.2},
	}

	var capturedPath string
	var capturedQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
	client.now = func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }

	points, err := client.FetchMonthly(context.Background(), "VOO")
	require.NoError(t, err)

	assert.Equal(t, "/eod/VOO.US", capturedPath)
	assert.Equal(t, []string{"m"}, capturedQuery["period"])
	assert.Equal(t, []string{"test-key"}, capturedQuery["api_token"])
	assert.Equal(t, []string{"2023-12-12"}, capturedQuery["from"])

	require.Len(t, points, 3)
	assert.Equal(t, 120.0, points[0].Price)
	assert.Equal(t, 110.0, points[1].Price)
	assert.Equal(t, 108.0, points[2].Price)
	assert.True(t, points[0].Date.After(points[1].Date))
}

func TestFetchMonthly_QualifiedTickerUnchanged(t *testing.T) {
	var capturedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(0))
	points, err := client.FetchMonthly(context.Background(), "VAS.AU")
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.Equal(t, "/eod/VAS.AU", capturedPath)
}

func TestFetchMonthly_NonOKIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Ticker Not Found."))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.FetchMonthly(context.Background(), "NOPE")

	var provErr *common.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusNotFound, provErr.StatusCode)
	assert.Equal(t, "NOPE", provErr.Symbol)
	assert.Contains(t, provErr.Message, "Ticker Not Found")
}

func TestFetchMonthly_ErrorObjectIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": "Only EOD data allowed for free users"}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.FetchMonthly(context.Background(), "VOO")
	assert.Equal(t, common.KindProvider, common.ErrorKind(err))
}

func TestFetchMonthly_BadPayloadIsDataFormatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"date": "yesterday", "close": 1}]`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.FetchMonthly(context.Background(), "VOO")
	assert.Equal(t, common.KindDataFormat, common.ErrorKind(err))
}

func TestFlexFloat64(t *testing.T) {
	var v struct {
		A flexFloat64 `json:"a"`
		B flexFloat64 `json:"b"`
		C flexFloat64 `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1.5, "b": "2.25", "c": "N/A"}`), &v))
	assert.Equal(t, flexFloat64(1.5), v.A)
	assert.Equal(t, flexFloat64(2.25), v.B)
	assert.Equal(t, flexFloat64(0), v.C)
}
