package http

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrEmptyRequestLine       = errors.New("http: missing or empty request line")
	ErrMalformedRequestLine   = errors.New("http: malformed request line")
	ErrMethodNotAllowed       = errors.New("http: method not allowed")
	ErrMalformedResourceName  = errors.New("http: malformed resource name")
	ErrHeadersNotIsolated     = errors.New("http: unable to isolate headers")
	ErrMalformedContentLength = errors.New("http: malformed content length")
	ErrBodyTooLarge           = errors.New("http: message body too large")
	ErrTruncatedBody          = errors.New("http: truncated message body")
	ErrMalformedBody          = errors.New("http: malformed message body")
)

// ParseError records why a request could not be parsed. Requests carrying
// one are answered with 400 and never routed.
type ParseError struct {
	Reason error
}

func (e *ParseError) Error() string {
	return "bad request: " + e.Reason.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Reason
}

// Request is immutable once returned by ParseRequest.
type Request struct {
	Method   Method
	Path     string
	RawQuery string
	Protocol string
	Headers  []string
	Body     []byte
	Parts    []Part

	// DroppedParts counts multipart segments skipped for lacking a header
	// block or a usable Content-Disposition.
	DroppedParts int

	Err error
}

func badRequest(reason error) *Request {
	return &Request{Err: &ParseError{Reason: reason}}
}

// Good reports whether the request parsed cleanly.
func (req *Request) Good() bool {
	return req.Err == nil
}

// HasBody distinguishes an absent body from an empty one.
func (req *Request) HasBody() bool {
	return req.Body != nil
}

// RouteKey is the registry key for this request.
func (req *Request) RouteKey() string {
	return routeKey(string(req.Method), req.Path)
}

func (req *Request) HeaderValue(name string) (string, bool) {
	return headerValue(req.Headers, name)
}

// Part returns the first multipart part with the given name.
func (req *Request) Part(name string) (Part, bool) {
	for _, part := range req.Parts {
		if part.Name == name {
			return part, true
		}
	}
	return Part{}, false
}

// headerValue finds the first line starting with name followed by a colon
// or a space. Matching is case-sensitive.
func headerValue(lines []string, name string) (string, bool) {
	for _, line := range lines {
		if !strings.HasPrefix(line, name) {
			continue
		}

		rest := line[len(name):]
		if rest == "" || (rest[0] != ':' && rest[0] != ' ') {
			continue
		}

		rest = strings.TrimLeft(rest, " ")
		rest = strings.TrimPrefix(rest, ":")
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// ParseRequest reads one request from r. The returned error is reserved for
// transport failures; malformed input yields a Request whose Err is set.
func ParseRequest(r io.Reader, limit int, maxBody int64) (*Request, error) {
	if limit <= 0 {
		limit = DefaultHeadLimit
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}

	src := newSource(r, limit)
	src.setMark()
	if err := src.fill(); err != nil {
		return nil, fmt.Errorf("http: reading request head: %w", err)
	}
	buf := src.head()

	lineEnd := IndexOf(buf, crlf, 0, len(buf))
	if lineEnd < 0 {
		return badRequest(ErrEmptyRequestLine), nil
	}

	parts := strings.Split(string(buf[:lineEnd]), " ")
	if len(parts) != 3 {
		return badRequest(ErrMalformedRequestLine), nil
	}

	method := Method(parts[0])
	if !slices.Contains(allowedMethods, method) {
		return badRequest(ErrMethodNotAllowed), nil
	}

	path, rawQuery, _ := strings.Cut(parts[1], "?")
	if !strings.HasPrefix(path, "/") {
		return badRequest(ErrMalformedResourceName), nil
	}

	// The request line's own CRLF opens the terminator when there are no
	// headers. Starting the search after it would reject "GET / HTTP/1.1\r\n\r\n".
	headersStart := lineEnd + len(crlf)
	headersEnd := IndexOf(buf, crlfCrlf, lineEnd, len(buf))
	if headersEnd < 0 {
		return badRequest(ErrHeadersNotIsolated), nil
	}

	req := &Request{
		Method:   method,
		Path:     path,
		RawQuery: rawQuery,
		Protocol: parts[2],
		Headers:  []string{},
	}

	src.reset()
	if err := src.skip(headersStart); err != nil {
		return nil, err
	}
	if headersEnd > headersStart {
		headerBytes, err := src.readFull(headersEnd - headersStart)
		if err != nil {
			return nil, err
		}
		req.Headers = strings.Split(string(headerBytes), "\r\n")
	}

	if method == MethodGet {
		return req, nil
	}

	if err := src.skip(headersEnd + len(crlfCrlf) - src.off); err != nil {
		return nil, err
	}

	rawLength, found := req.HeaderValue(headerContentLength)
	if !found {
		return req, nil
	}

	length, err := strconv.ParseUint(rawLength, 10, 63)
	if err != nil {
		return badRequest(ErrMalformedContentLength), nil
	}
	if length > uint64(maxBody) {
		return badRequest(ErrBodyTooLarge), nil
	}

	body, err := src.readFull(int(length))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return badRequest(ErrTruncatedBody), nil
		}
		return nil, fmt.Errorf("http: reading request body: %w", err)
	}
	req.Body = body

	contentType, found := req.HeaderValue(headerContentType)
	if !found || !strings.HasPrefix(contentType, mediaMultipartFormData) {
		return req, nil
	}

	boundary, ok := boundaryParam(contentType)
	if !ok {
		return badRequest(ErrMalformedBody), nil
	}
	req.Parts, req.DroppedParts = ParseMultipart(body, boundary)

	return req, nil
}

func boundaryParam(contentType string) (string, bool) {
	segments := strings.Split(contentType, "; ")
	if len(segments) < 2 {
		return "", false
	}

	for _, segment := range segments[1:] {
		value, found := strings.CutPrefix(strings.TrimSpace(segment), "boundary=")
		if !found {
			continue
		}

		value = unquote(value)
		return value, value != ""
	}
	return "", false
}
