// Package vendorhttp builds the retrying HTTP client used for the image vendors
package vendorhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/wb-go/wbf/zlog"
)

// MaxResponseSize - потолок для тела ответа вендора
const MaxResponseSize int64 = 64 << 20

type ResponseTooLargeError struct {
	Limit int64
}

func (e ResponseTooLargeError) Error() string {
	return fmt.Sprintf("response body exceeds %d bytes", e.Limit)
}

// New returns a client retrying connection errors and 5xx up to retries times,
// for idempotent requests only: vendor POSTs are paid calls and go out once.
// After the last attempt the vendor response is handed back as is, so callers can read its status.
func New(retries int, timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = max(retries, 0)
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.HTTPClient.Timeout = timeout
	c.CheckRetry = idempotentRetryPolicy
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = zlogAdapter{}
	return c
}

type idempotentKey struct{}

// NewRequest помечает GET/HEAD как безопасные для повтора
func NewRequest(ctx context.Context, method, url string, body []byte) (*retryablehttp.Request, error) {
	if idempotent(method) {
		ctx = context.WithValue(ctx, idempotentKey{}, true)
	}
	if body == nil {
		return retryablehttp.NewRequestWithContext(ctx, method, url, nil)
	}
	return retryablehttp.NewRequestWithContext(ctx, method, url, body)
}

func idempotentRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	marked, _ := ctx.Value(idempotentKey{}).(bool)
	if !marked && (resp == nil || resp.Request == nil || !idempotent(resp.Request.Method)) {
		// контекст отменен - отдаем его ошибку, как DefaultRetryPolicy
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// Standard - the same client as *http.Client for SDKs that take one
func Standard(retries int, timeout time.Duration) *http.Client {
	return New(retries, timeout).StandardClient()
}

func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(&io.LimitedReader{R: r, N: limit + 1})
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ResponseTooLargeError{Limit: limit}
	}
	return data, nil
}

// zlogAdapter - retryablehttp.LeveledLogger поверх zlog
type zlogAdapter struct{}

func (zlogAdapter) Error(msg string, kv ...interface{}) {
	zlog.Logger.Error().Fields(kv).Msg(msg)
}

func (zlogAdapter) Info(msg string, kv ...interface{}) {
	zlog.Logger.Info().Fields(kv).Msg(msg)
}

func (zlogAdapter) Debug(msg string, kv ...interface{}) {
	zlog.Logger.Debug().Fields(kv).Msg(msg)
}

func (zlogAdapter) Warn(msg string, kv ...interface{}) {
	zlog.Logger.Warn().Fields(kv).Msg(msg)
}
