package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ipc-courier/message"
)

// Logging logs every request with its type name and duration. Failed
// requests are logged at warn level with the error attached.
func Logging(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req message.Message) (message.Message, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			duration := time.Since(start)

			if err != nil {
				logger.Warn().
					Str("request", req.MessageName()).
					Dur("duration", duration).
					Err(err).
					Msg("handler failed")
				return resp, err
			}

			event := logger.Debug().
				Str("request", req.MessageName()).
				Dur("duration", duration)
			if resp != nil {
				event = event.Str("response", resp.MessageName())
			}
			event.Msg("handled")
			return resp, nil
		}
	}
}
