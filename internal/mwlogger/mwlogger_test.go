package mwlogger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewMWLogger_PropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	var seen bool

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := LoggerFromContext(r.Context()).Output(&buf)
		l.Info().Msg("inside")
		seen = true
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()

	NewMWLogger(next).ServeHTTP(w, req)

	require.True(t, seen)
	require.Equal(t, http.StatusTeapot, w.Code)
	require.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	require.Contains(t, buf.String(), `"request_id":"req-42"`)
	require.Contains(t, buf.String(), `"path":"/ping"`)
}

func TestNewMWLogger_GeneratesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	NewMWLogger(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	require.NotPanics(t, func() {
		logger := LoggerFromContext(context.Background())
		logger.Debug().Msg("fallback")
	})

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf).With().Str("k", "v").Logger())
	logger := LoggerFromContext(ctx)
	logger.Info().Msg("x")
	require.Contains(t, buf.String(), `"k":"v"`)
}
