package middleware

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"ipc-courier/message"
)

// ErrRateLimitExceeded is returned by RateLimit when no token is available.
var ErrRateLimitExceeded = errors.New("middleware: rate limit exceeded")

// RateLimit rejects requests beyond r per second, allowing bursts of up to
// burst requests. Rejected requests never reach the handler.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Message) (message.Message, error) {
			if !limiter.Allow() {
				return nil, fmt.Errorf("%w: %s", ErrRateLimitExceeded, req.MessageName())
			}
			return next(ctx, req)
		}
	}
}

// Throttle delays requests beyond r per second instead of rejecting them.
// A request whose context ends while waiting fails with the wait error.
func Throttle(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Message) (message.Message, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("middleware: throttled %s: %w", req.MessageName(), err)
			}
			return next(ctx, req)
		}
	}
}
