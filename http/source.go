package http

import (
	"errors"
	"io"
)

// source is a rewindable cursor over the request head. The head is read
// into memory once; reads past the buffered bytes continue on the stream.
type source struct {
	r    io.Reader
	buf  []byte
	off  int
	mark int
}

func newSource(r io.Reader, limit int) *source {
	return &source{
		r:   r,
		buf: make([]byte, 0, limit),
	}
}

// fill reads until the header terminator is buffered, the buffer is full or
// the peer stops sending. A clean EOF is not an error.
func (s *source) fill() error {
	scanned := 0
	for len(s.buf) < cap(s.buf) {
		if IndexOf(s.buf, crlfCrlf, scanned, len(s.buf)) >= 0 {
			return nil
		}
		if len(s.buf) > len(crlfCrlf) {
			scanned = len(s.buf) - len(crlfCrlf) + 1
		}

		n, err := s.r.Read(s.buf[len(s.buf):cap(s.buf)])
		s.buf = s.buf[:len(s.buf)+n]
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *source) head() []byte {
	return s.buf
}

func (s *source) setMark() {
	s.mark = s.off
}

func (s *source) reset() {
	s.off = s.mark
}

func (s *source) skip(n int) error {
	if remaining := len(s.buf) - s.off; n > remaining {
		s.off = len(s.buf)
		_, err := io.CopyN(io.Discard, s.r, int64(n-remaining))
		return err
	}
	s.off += n
	return nil
}

// readFull returns exactly n bytes, buffered bytes first.
func (s *source) readFull(n int) ([]byte, error) {
	out := make([]byte, n)
	c := copy(out, s.buf[s.off:])
	s.off += c
	if c == n {
		return out, nil
	}

	read, err := io.ReadFull(s.r, out[c:])
	return out[:c+read], err
}
