package http

import (
	"errors"
	"fmt"
	"time"
)

var ErrHandlerPanic = errors.New("http: handler panicked")

type Middleware func(next Handler) Handler

// RecoverMiddleware turns a panic in the handler into an error so that only
// the current connection is lost.
func RecoverMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) (err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, recovered)
				}
			}()

			return next(ctx)
		}
	}
}

func LogMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) error {
			start := time.Now()
			err := next(ctx)

			ctx.Logger.DebugContext(ctx.Context(), "handled request",
				"method", ctx.Request.Method,
				"path", ctx.Request.Path,
				"status", ctx.Response.Status(),
				"duration", time.Since(start),
			)
			return err
		}
	}
}
