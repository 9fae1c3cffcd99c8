package main

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
	"go.uber.org/zap"
)

type fakeReadiness struct{ err error }

func (f fakeReadiness) Ready(ctx context.Context) error { return f.err }

func fixedClock() time.Time { return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC) }

func TestServeMux_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newServeMux(fakeReadiness{}, fixedClock).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2024-06-01T09:30:00Z", body["time"])
}

func TestServeMux_Ready(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status string
	}{
		{"store reachable", nil, http.StatusOK, "ready"},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newServeMux(fakeReadiness{err: tt.err}, fixedClock).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}

func TestServeMux_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newServeMux(fakeReadiness{}, fixedClock).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRetryWithBackoff(t *testing.T) {
	attempts := 0
	err := retryWithBackoff(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, zap.NewNop(), "probe")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	err = retryWithBackoff(func() error { return errors.New("down") }, 2, time.Millisecond, zap.NewNop(), "probe")
	assert.ErrorContains(t, err, "probe failed after 2 attempts")
}
