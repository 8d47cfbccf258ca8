package http

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/freekieb7/pebble/test"
)

func parse(t *testing.T, raw string) *Request {
	t.Helper()

	req, err := ParseRequest(strings.NewReader(raw), DefaultHeadLimit, DefaultMaxBodySize)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	return req
}

func TestRequestParseGet(t *testing.T) {
	req := parse(t, "GET /test?a=1&b=2 HTTP/1.1\r\nAccept: text/css\r\nConnection: keep-alive\r\n\r\n")

	test.AssertNoError(t, req.Err)
	test.AssertTrue(t, req.Good(), "request should be good")
	test.AssertEqual(t, MethodGet, req.Method)
	test.AssertEqual(t, "/test", req.Path)
	test.AssertEqual(t, "a=1&b=2", req.RawQuery)
	test.AssertEqual(t, "HTTP/1.1", req.Protocol)
	test.AssertEqual(t, 2, len(req.Headers))
	test.AssertEqual(t, "Accept: text/css", req.Headers[0])
	test.AssertTrue(t, !req.HasBody(), "GET must not carry a body")
	test.AssertEqual(t, "GET,/test", req.RouteKey())

	h, found := req.HeaderValue("Connection")
	test.AssertTrue(t, found, "connection header not found")
	test.AssertEqual(t, "keep-alive", h)
}

func TestRequestParseGetIgnoresBody(t *testing.T) {
	req := parse(t, "GET / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")

	test.AssertNoError(t, req.Err)
	test.AssertTrue(t, !req.HasBody(), "GET must not carry a body")
}

func TestRequestParseWithoutHeaders(t *testing.T) {
	req := parse(t, "GET / HTTP/1.1\r\n\r\n")

	test.AssertNoError(t, req.Err)
	test.AssertEqual(t, "/", req.Path)
	test.AssertEqual(t, 0, len(req.Headers))
}

func TestRequestParseQueryKeepsEverythingAfterFirstQuestionMark(t *testing.T) {
	req := parse(t, "GET /search?q=a?b HTTP/1.1\r\nHost: x\r\n\r\n")

	test.AssertNoError(t, req.Err)
	test.AssertEqual(t, "/search", req.Path)
	test.AssertEqual(t, "q=a?b", req.RawQuery)
}

func TestRequestParseErrors(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		reason error
	}{
		{"empty input", "", ErrEmptyRequestLine},
		{"no line terminator", "GET / HTTP/1.1", ErrEmptyRequestLine},
		{"empty request line", "\r\n\r\n", ErrMalformedRequestLine},
		{"two tokens", "GET /\r\n\r\n", ErrMalformedRequestLine},
		{"four tokens", "GET / HTTP/1.1 extra\r\n\r\n", ErrMalformedRequestLine},
		{"double space", "GET  / HTTP/1.1\r\n\r\n", ErrMalformedRequestLine},
		{"unknown method", "PUT / HTTP/1.1\r\n\r\n", ErrMethodNotAllowed},
		{"lowercase method", "get / HTTP/1.1\r\n\r\n", ErrMethodNotAllowed},
		{"relative path", "GET index.html HTTP/1.1\r\n\r\n", ErrMalformedResourceName},
		{"query only", "GET ?a=1 HTTP/1.1\r\n\r\n", ErrMalformedResourceName},
		{"unterminated headers", "GET / HTTP/1.1\r\nHost: x\r\n", ErrHeadersNotIsolated},
		{"non numeric length", "POST / HTTP/1.1\r\nContent-Length: abc\r\n\r\n", ErrMalformedContentLength},
		{"negative length", "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", ErrMalformedContentLength},
		{"truncated body", "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc", ErrTruncatedBody},
		{"multipart without parameters", "POST / HTTP/1.1\r\nContent-Type: multipart/form-data\r\nContent-Length: 0\r\n\r\n", ErrMalformedBody},
		{"multipart without boundary", "POST / HTTP/1.1\r\nContent-Type: multipart/form-data; charset=utf-8\r\nContent-Length: 0\r\n\r\n", ErrMalformedBody},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := parse(t, tc.raw)

			test.AssertTrue(t, !req.Good(), "request should be bad")
			test.AssertErrorIs(t, req.Err, tc.reason)

			var parseErr *ParseError
			test.AssertTrue(t, errors.As(req.Err, &parseErr), "error should be a *ParseError")

			// A bad request carries nothing but the reason.
			test.AssertEqual(t, Method(""), req.Method)
			test.AssertEqual(t, "", req.Path)
			test.AssertEqual(t, "", req.RawQuery)
			test.AssertTrue(t, req.Headers == nil, "headers should be empty")
			test.AssertTrue(t, req.Body == nil, "body should be absent")
			test.AssertTrue(t, req.Parts == nil, "parts should be absent")
		})
	}
}

func TestRequestParseBodyTooLarge(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello world"

	req, err := ParseRequest(strings.NewReader(raw), DefaultHeadLimit, 10)
	test.AssertNoError(t, err)
	test.AssertErrorIs(t, req.Err, ErrBodyTooLarge)
}

func TestRequestParsePostBody(t *testing.T) {
	for _, n := range []int{0, 1, 17, 4000, 4096, 10000} {
		body := bytes.Repeat([]byte("x"), n)
		raw := "POST /submit HTTP/1.1\r\nHost: x\r\nContent-Length: " + strconv.Itoa(n) + "\r\n\r\n" + string(body) + "trailing"

		req := parse(t, raw)

		test.AssertNoError(t, req.Err)
		test.AssertEqual(t, MethodPost, req.Method)
		test.AssertTrue(t, req.HasBody(), "body should be present")
		test.AssertEqual(t, n, len(req.Body))
		test.AssertBytes(t, body, req.Body)
	}
}

func TestRequestParsePostWithoutContentLength(t *testing.T) {
	req := parse(t, "POST /submit HTTP/1.1\r\nHost: x\r\n\r\nignored")

	test.AssertNoError(t, req.Err)
	test.AssertTrue(t, !req.HasBody(), "body should be absent without Content-Length")
}

func TestRequestParseSlowReader(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"

	req, err := ParseRequest(iotest.OneByteReader(strings.NewReader(raw)), DefaultHeadLimit, DefaultMaxBodySize)
	test.AssertNoError(t, err)
	test.AssertNoError(t, req.Err)
	test.AssertBytes(t, []byte("hello"), req.Body)
}

func TestRequestParseTransportError(t *testing.T) {
	boom := errors.New("connection reset")

	req, err := ParseRequest(iotest.ErrReader(boom), DefaultHeadLimit, DefaultMaxBodySize)
	test.AssertTrue(t, req == nil, "no request on transport error")
	test.AssertErrorIs(t, err, boom)

	raw := "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"
	reader := io.MultiReader(strings.NewReader(raw), iotest.ErrReader(boom))
	req, err = ParseRequest(reader, DefaultHeadLimit, DefaultMaxBodySize)
	test.AssertTrue(t, req == nil, "no request on transport error")
	test.AssertErrorIs(t, err, boom)
}

func TestRequestParseIsIdempotent(t *testing.T) {
	raw := []byte(multipartRequest("B", "--B\r\nContent-Disposition: form-data; name=\"title\"\r\n\r\nhello\r\n--B--\r\n"))

	first, err := ParseRequest(bytes.NewReader(bytes.Clone(raw)), DefaultHeadLimit, DefaultMaxBodySize)
	test.AssertNoError(t, err)
	second, err := ParseRequest(bytes.NewReader(bytes.Clone(raw)), DefaultHeadLimit, DefaultMaxBodySize)
	test.AssertNoError(t, err)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("parsing the same bytes twice differs:\n%+v\n%+v", first, second)
	}
}

func TestHeaderValue(t *testing.T) {
	headers := []string{
		"Content-Lengthy: 1",
		"Content-Length: 42 ",
		"Content-Length: 7",
		"X-Spaced :  padded ",
		"Content-Type:text/plain",
	}

	testCases := []struct {
		name     string
		expected string
		found    bool
	}{
		{"Content-Length", "42", true},
		{"X-Spaced", "padded", true},
		{"Content-Type", "text/plain", true},
		{"content-length", "", false},
		{"Host", "", false},
	}

	for _, tc := range testCases {
		value, found := headerValue(headers, tc.name)
		test.AssertEqual(t, tc.found, found)
		test.AssertEqual(t, tc.expected, value)
	}
}

func TestRequestHeadersKeepOrderAndDuplicates(t *testing.T) {
	req := parse(t, "GET / HTTP/1.1\r\nX-A: 1\r\nX-B: 2\r\nX-A: 3\r\n\r\n")

	test.AssertEqual(t, 3, len(req.Headers))
	test.AssertEqual(t, "X-A: 1", req.Headers[0])
	test.AssertEqual(t, "X-B: 2", req.Headers[1])
	test.AssertEqual(t, "X-A: 3", req.Headers[2])

	value, _ := req.HeaderValue("X-A")
	test.AssertEqual(t, "1", value)
}

func BenchmarkRequestParse(b *testing.B) {
	reqMsg := []byte("GET /test HTTP/1.1\r\nAccept: text/css\r\nConnection: keep-alive\r\nContent-Length: 0\r\n\r\n")
	reader := bytes.NewReader(reqMsg)

	for i := 0; i < b.N; i++ {
		reader.Reset(reqMsg)

		if _, err := ParseRequest(reader, DefaultHeadLimit, DefaultMaxBodySize); err != nil {
			b.Error(err)
		}
	}
}
