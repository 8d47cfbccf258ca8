package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var ErrServerClosed = errors.New("http: server closed")

// ConnState is the position of a connection in its single request cycle.
type ConnState int

const (
	StateAccepted ConnState = iota
	StateParsing
	StateBadRequest
	StateRouting
	StateNotFound
	StateHandled
	StateClosed
)

var connStateNames = [...]string{
	StateAccepted:   "accepted",
	StateParsing:    "parsing",
	StateBadRequest: "bad_request",
	StateRouting:    "routing",
	StateNotFound:   "not_found",
	StateHandled:    "handled",
	StateClosed:     "closed",
}

func (state ConnState) String() string {
	if state < 0 || int(state) >= len(connStateNames) {
		return fmt.Sprintf("ConnState(%d)", int(state))
	}
	return connStateNames[state]
}

type Server struct {
	Name   string
	Routes *Routes

	Workers      int
	QueueSize    int
	HeadLimit    int
	MaxBodySize  int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// ConnStateHook, when set, is called on every state transition.
	ConnStateHook func(conn net.Conn, state ConnState)

	initOnce sync.Once
	initErr  error
	inst     *instruments
	pool     *WorkerPool

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	serving   sync.WaitGroup
	closed    bool
}

type Option func(*Server)

func WithWorkers(n int) Option {
	return func(s *Server) { s.Workers = n }
}

func WithQueueSize(n int) Option {
	return func(s *Server) { s.QueueSize = n }
}

func WithHeadLimit(n int) Option {
	return func(s *Server) { s.HeadLimit = n }
}

func WithMaxBodySize(n int64) Option {
	return func(s *Server) { s.MaxBodySize = n }
}

// WithTimeouts sets the read and write deadlines of a connection. Zero
// disables the deadline.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.ReadTimeout = read
		s.WriteTimeout = write
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.Logger = logger }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.TracerProvider = tp }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) { s.MeterProvider = mp }
}

func NewServer(name string, routes *Routes, opts ...Option) *Server {
	s := &Server{
		Name:         name,
		Routes:       routes,
		Workers:      DefaultWorkerPoolSize,
		QueueSize:    DefaultQueueSize,
		HeadLimit:    DefaultHeadLimit,
		MaxBodySize:  DefaultMaxBodySize,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		listeners:    make(map[net.Listener]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) init() error {
	s.initOnce.Do(func() {
		if s.Routes == nil {
			s.Routes = NewRouter().Build()
		}
		if s.Logger == nil {
			s.Logger = otelslog.NewLogger(instrumentationName)
		}
		if s.TracerProvider == nil {
			s.TracerProvider = otel.GetTracerProvider()
		}
		if s.MeterProvider == nil {
			s.MeterProvider = otel.GetMeterProvider()
		}

		s.inst, s.initErr = newInstruments(s.TracerProvider, s.MeterProvider)
		if s.initErr != nil {
			s.initErr = fmt.Errorf("http: creating instruments: %w", s.initErr)
			return
		}

		s.pool = NewWorkerPool(s.Workers, s.QueueSize, func(conn net.Conn, bw *bufio.Writer) {
			s.serveConn(context.Background(), conn, bw)
		})
		s.pool.Start()
	})
	return s.initErr
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections until the listener is closed, ctx is done or
// Shutdown is called. It always returns a non-nil error.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if err := s.init(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	s.listeners[listener] = struct{}{}
	s.serving.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.listeners, listener)
		s.mu.Unlock()
		s.serving.Done()
	}()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.Logger.InfoContext(ctx, "server listening", "name", s.Name, "addr", listener.Addr().String(), "workers", s.pool.Size)

	var backoff time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosed() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(2*backoff, time.Second)
			}
			s.Logger.WarnContext(ctx, "accept failed", "error", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.inst.connections.Add(ctx, 1)
		if err := s.pool.Submit(conn); err != nil {
			conn.Close()
			return ErrServerClosed
		}
	}
}

// ServeConn runs one request cycle on conn and closes it.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	if err := s.init(); err != nil {
		conn.Close()
		return
	}
	s.serveConn(ctx, conn, bufio.NewWriterSize(conn, DefaultWriteBufferSize))
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, bw *bufio.Writer) {
	start := time.Now()
	s.inst.active.Inc()

	id := uuid.New()
	logger := s.Logger.With("conn", id.String(), "remote", remoteAddr(conn))

	ctx, span := s.inst.tracer.Start(ctx, "pebble.conn", trace.WithSpanKind(trace.SpanKindServer))
	outcome := outcomeTransportError

	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.DebugContext(ctx, "closing connection failed", "error", err)
		}
		s.setState(conn, StateClosed)

		s.inst.active.Dec()
		s.inst.finish(ctx, outcome, time.Since(start).Seconds())
		span.End()
	}()
	s.setState(conn, StateAccepted)

	if s.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}
	if s.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}

	s.setState(conn, StateParsing)
	req, err := ParseRequest(conn, s.HeadLimit, s.MaxBodySize)
	if err != nil {
		s.abandon(ctx, logger, span, "reading request failed", err)
		return
	}

	if !req.Good() {
		s.setState(conn, StateBadRequest)
		outcome = outcomeBadRequest
		logger.DebugContext(ctx, "bad request", "reason", req.Err)
		span.SetAttributes(semconv.HTTPResponseStatusCode(int(StatusBadRequest)))

		if err := s.writeFixed(bw, response400); err != nil {
			outcome = outcomeTransportError
			s.abandon(ctx, logger, span, "writing bad request response failed", err)
		}
		return
	}

	span.SetAttributes(
		semconv.HTTPRequestMethodKey.String(string(req.Method)),
		semconv.URLPath(req.Path),
	)
	logger.DebugContext(ctx, "parsed request",
		"method", req.Method,
		"path", req.Path,
		"query", req.RawQuery,
		"headers", len(req.Headers),
		"parts", len(req.Parts),
	)
	if req.DroppedParts > 0 {
		logger.WarnContext(ctx, "dropped malformed multipart parts", "count", req.DroppedParts)
	}

	s.setState(conn, StateRouting)
	handler, found := s.Routes.Resolve(string(req.Method), req.Path)
	if !found {
		s.setState(conn, StateNotFound)
		outcome = outcomeNotFound
		span.SetAttributes(semconv.HTTPResponseStatusCode(int(StatusNotFound)))

		if err := s.writeFixed(bw, response404); err != nil {
			outcome = outcomeTransportError
			s.abandon(ctx, logger, span, "writing not found response failed", err)
		}
		return
	}

	s.setState(conn, StateHandled)
	reqCtx := &RequestCtx{
		ID:       id,
		Conn:     conn,
		Request:  req,
		Response: NewResponse(bw),
		Logger:   logger,
		ctx:      ctx,
	}

	if err := handler(reqCtx); err != nil {
		outcome = outcomeHandlerError
		s.abandon(ctx, logger, span, "handler failed", err)
		return
	}
	if err := bw.Flush(); err != nil {
		outcome = outcomeTransportError
		s.abandon(ctx, logger, span, "flushing response failed", err)
		return
	}

	outcome = outcomeHandled
	if status := reqCtx.Response.Status(); status != 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(int(status)))
	}
}

func (s *Server) writeFixed(bw *bufio.Writer, response []byte) error {
	if _, err := bw.Write(response); err != nil {
		return err
	}
	return bw.Flush()
}

func (s *Server) abandon(ctx context.Context, logger *slog.Logger, span trace.Span, msg string, err error) {
	logger.WarnContext(ctx, msg, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func (s *Server) setState(conn net.Conn, state ConnState) {
	if s.ConnStateHook != nil {
		s.ConnStateHook(conn, state)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Shutdown stops accepting, then waits for queued and in-flight connections
// to finish. In-flight connections are never interrupted.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	var err error
	for listener := range s.listeners {
		if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = errors.Join(err, cerr)
		}
	}
	s.mu.Unlock()

	s.serving.Wait()

	if s.pool != nil {
		if perr := s.pool.Stop(ctx); perr != nil {
			err = errors.Join(err, perr)
		}
	}
	return err
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
