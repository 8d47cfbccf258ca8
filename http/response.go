package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Response is the sink a handler writes raw response bytes to. Handlers own
// the status line, headers and flushing; the helpers below cover the usual
// single-shot shape.
type Response struct {
	w       *bufio.Writer
	status  uint16
	written int64
}

func NewResponse(w *bufio.Writer) *Response {
	return &Response{w: w}
}

// Status is the code passed to WriteHead, or 0 if the handler wrote its
// head by hand.
func (res *Response) Status() uint16 {
	return res.status
}

// Written counts the bytes handed to the sink, head included.
func (res *Response) Written() int64 {
	return res.written
}

// WriteHead writes the status line, Content-Type (when not empty),
// Content-Length and Connection: close followed by the blank line.
func (res *Response) WriteHead(status uint16, contentType string, contentLength int64) error {
	res.status = status

	buf := make([]byte, 0, 128)
	buf = append(buf, protocol11...)
	buf = append(buf, ' ')
	buf = strconv.AppendUint(buf, uint64(status), 10)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(status)...)
	buf = append(buf, crlf...)
	if contentType != "" {
		buf = append(buf, headerContentType+": "...)
		buf = append(buf, contentType...)
		buf = append(buf, crlf...)
	}
	buf = append(buf, headerContentLength+": "...)
	buf = strconv.AppendInt(buf, contentLength, 10)
	buf = append(buf, crlf...)
	buf = append(buf, "Connection: close\r\n\r\n"...)

	_, err := res.Write(buf)
	return err
}

func (res *Response) Write(p []byte) (int, error) {
	n, err := res.w.Write(p)
	res.written += int64(n)
	return n, err
}

func (res *Response) WriteString(s string) (int, error) {
	n, err := res.w.WriteString(s)
	res.written += int64(n)
	return n, err
}

func (res *Response) ReadFrom(r io.Reader) (int64, error) {
	n, err := res.w.ReadFrom(r)
	res.written += n
	return n, err
}

func (res *Response) Flush() error {
	return res.w.Flush()
}

// WithBytes writes a complete response and flushes it.
func (res *Response) WithBytes(status uint16, contentType string, body []byte) error {
	if err := res.WriteHead(status, contentType, int64(len(body))); err != nil {
		return err
	}
	if _, err := res.Write(body); err != nil {
		return err
	}
	return res.Flush()
}

func (res *Response) WithText(status uint16, payload string) error {
	return res.WithBytes(status, "text/plain; charset=utf-8", []byte(payload))
}

func (res *Response) WithJson(status uint16, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("http: encoding response to json: %w", err)
	}
	return res.WithBytes(status, "application/json", body)
}
