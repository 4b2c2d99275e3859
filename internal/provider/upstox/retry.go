package upstox

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	retryMax     = 3
	retryBackoff = 300 * time.Millisecond
)

// newRetryClient wraps hc so idempotent API calls are retried up to three
// times with exponential waits (0.3s, 0.6s, 1.2s by default). After the last
// attempt the final response is returned as is.
func newRetryClient(hc *http.Client, backoff time.Duration) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = retryMax
	rc.RetryWaitMin = backoff
	rc.RetryWaitMax = backoff << (retryMax - 1)
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = slog.Default()
	return rc
}

// checkRetry retries transport errors and transient 5xx responses only.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return retryable(resp.StatusCode), nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
