package vendorhttp

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_RetriesGetThenPassesResponseThrough(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(2, 5*time.Second)
	c.RetryWaitMin, c.RetryWaitMax = time.Millisecond, time.Millisecond

	req, err := NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, int32(3), calls.Load())
}

func TestNew_PostIsSentOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(2, 5*time.Second)
	c.RetryWaitMin, c.RetryWaitMax = time.Millisecond, time.Millisecond

	// и через NewRequest, и через StandardClient (так ходят SDK)
	req, err := NewRequest(context.Background(), http.MethodPost, srv.URL, []byte("body"))
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, err = c.StandardClient().Post(srv.URL, "text/plain", bytes.NewReader([]byte("body")))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, int32(2), calls.Load())
}

func TestNew_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	resp, err := Standard(3, 5*time.Second).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int32(1), calls.Load())
}

func TestReadAllWithLimit(t *testing.T) {
	data, err := ReadAllWithLimit(bytes.NewReader([]byte("12345")), 5)
	require.NoError(t, err)
	require.Equal(t, []byte("12345"), data)

	_, err = ReadAllWithLimit(bytes.NewReader([]byte("123456")), 5)
	require.ErrorAs(t, err, &ResponseTooLargeError{})

	data, err = ReadAllWithLimit(bytes.NewReader([]byte("abc")), 0)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), data)
}
