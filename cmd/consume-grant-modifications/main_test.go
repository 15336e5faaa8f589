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
	"go.uber.org/zap/zaptest"
)

func TestRetryWithBackoff(t *testing.T) {
	log := zaptest.NewLogger(t)

	attempts := 0
	err := retryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, 5, time.Millisecond, log, "PostgreSQL connection")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = retryWithBackoff(context.Background(), func() error {
		attempts++
		return errors.New("connection refused")
	}, 3, time.Millisecond, log, "Redis connection")
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "Redis connection failed after 3 attempts")
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	start := time.Now()
	err := retryWithBackoff(ctx, func() error {
		attempts++
		cancel()
		return errors.New("connection refused")
	}, 15, time.Hour, zaptest.NewLogger(t), "PostgreSQL connection")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestHealthServer_Routes(t *testing.T) {
	h := newHealthServer(":0", zaptest.NewLogger(t))
	srv := httptest.NewServer(h.routes())
	defer srv.Close()

	status := func(path string) (int, string) {
		res, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer res.Body.Close()
		var body map[string]string
		_ = json.NewDecoder(res.Body).Decode(&body)
		return res.StatusCode, body["status"]
	}

	code, body := status("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body)

	code, _ = status("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.SetReady(true)
	code, body = status("/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body)

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
