package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{9.090909, 9.09},
		{33.333333, 33.33},
		{71.428571, 71.43},
		{-1.005, -1.01},
		{18.9711, 18.97},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, round2(tt.in), "round2(%v)", tt.in)
	}
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2025, 1, 15, 12, 30, 0, 123456789, time.FixedZone("AEST", 10*3600))
	assert.Equal(t, "2025-01-15T02:30:00.123Z", Timestamp(ts))
}

func TestRequireMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	ok := RequireMethod(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil), http.MethodPost)
	require.False(t, ok)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, map[string]string{"error": "Method not allowed"}, body)

	rec = httptest.NewRecorder()
	assert.True(t, RequireMethod(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil), http.MethodPost))
}

func TestQueryInt(t *testing.T) {
	rec := httptest.NewRecorder()
	n, ok := QueryInt(rec, httptest.NewRequest(http.MethodGet, "/api/etfs/top", nil), "count", 4)
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	n, ok = QueryInt(rec, httptest.NewRequest(http.MethodGet, "/api/etfs/top?count=7", nil), "count", 4)
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	for _, q := range []string{"abc", "0", "-2"} {
		rec := httptest.NewRecorder()
		_, ok := QueryInt(rec, httptest.NewRequest(http.MethodGet, "/api/etfs/top?count="+q, nil), "count", 4)
		assert.False(t, ok, q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}
