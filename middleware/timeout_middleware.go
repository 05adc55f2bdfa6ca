package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ipc-courier/message"
)

// ErrRequestTimedOut is returned by Timeout when the handler does not finish
// in time.
var ErrRequestTimedOut = errors.New("middleware: request timed out")

type result struct {
	resp message.Message
	err  error
}

// Timeout bounds each handler call. The handler keeps running in the
// background after the deadline; it should watch ctx to stop early.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Message) (message.Message, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, req)
				done <- result{resp: resp, err: err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return nil, fmt.Errorf("%w after %s: %s", ErrRequestTimedOut, timeout, req.MessageName())
			}
		}
	}
}
