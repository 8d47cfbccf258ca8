package http

import (
	"context"
	"log/slog"
	"net"

	"github.com/google/uuid"
)

// RequestCtx is what a handler receives: the parsed request and the sink
// its response is written to. It lives for a single connection.
type RequestCtx struct {
	ID       uuid.UUID
	Conn     net.Conn
	Request  *Request
	Response *Response
	Logger   *slog.Logger

	ctx context.Context
}

// Context carries the connection span.
func (reqCtx *RequestCtx) Context() context.Context {
	if reqCtx.ctx == nil {
		return context.Background()
	}
	return reqCtx.ctx
}
