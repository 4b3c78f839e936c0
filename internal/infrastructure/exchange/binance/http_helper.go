package binance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrHTTPStatus 上游返回非 200
	ErrHTTPStatus = errors.New("binance: unexpected http status")
	// ErrMalformed 响应体无法解析
	ErrMalformed = errors.New("binance: malformed response")
)

// maxErrBody caps how much of a non-200 body ends up in the error text.
const maxErrBody = 256

// BreakerSettings 每个 feed 一个熔断器
type BreakerSettings struct {
	Failures uint32        // consecutive failures that open the breaker
	Open     time.Duration // how long it stays open
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker[[]byte] {
	if s.Failures == 0 {
		s.Failures = 3
	}
	if s.Open <= 0 {
		s.Open = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.Open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.Failures
		},
		// the caller's own deadline is not an upstream fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// get performs one public GET through cb and returns the body.
func (c *MarketClient) get(ctx context.Context, cb *gobreaker.CircuitBreaker[[]byte], endpoint string) ([]byte, error) {
	return cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			if len(body) > maxErrBody {
				body = body[:maxErrBody]
			}
			return nil, fmt.Errorf("%w: %d %s", ErrHTTPStatus, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return body, nil
	})
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
