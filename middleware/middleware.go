// Package middleware wraps courier request handlers.
//
// A server runs its middleware chain around every handler invocation after
// the request has been decoded and the handler resolved. A middleware sees
// the decoded request and may return a response, an error, or both from the
// next handler unchanged.
package middleware

import (
	"context"

	"ipc-courier/message"
)

// HandlerFunc handles one decoded request.
type HandlerFunc func(ctx context.Context, req message.Message) (message.Message, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one. The first middleware is the
// outermost: it sees the request first and the response last.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
