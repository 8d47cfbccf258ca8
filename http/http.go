package http

import "time"

const (
	DefaultHeadLimit       = 4096             // 4kB
	DefaultMaxBodySize     = 10 * 1024 * 1024 // 10MB
	DefaultWorkerPoolSize  = 64
	DefaultQueueSize       = 1024
	DefaultWriteBufferSize = 4096 // 4kB
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
)

// Method is one of the request methods the parser accepts.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

var allowedMethods = []Method{MethodGet, MethodPost}

var (
	crlf       = []byte("\r\n")
	crlfCrlf   = []byte("\r\n\r\n")
	dashDash   = "--"
	protocol11 = "HTTP/1.1"

	// Pre-computed responses written by the dispatcher itself
	response400 = []byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
	response404 = []byte("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
)

const (
	headerContentLength      = "Content-Length"
	headerContentType        = "Content-Type"
	headerContentDisposition = "Content-Disposition"
	mediaMultipartFormData   = "multipart/form-data"
)
