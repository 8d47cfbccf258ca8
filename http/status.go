// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package http

const (
	StatusOK        uint16 = 200 // RFC 7231, 6.3.1
	StatusCreated   uint16 = 201 // RFC 7231, 6.3.2
	StatusAccepted  uint16 = 202 // RFC 7231, 6.3.3
	StatusNoContent uint16 = 204 // RFC 7231, 6.3.5

	StatusMovedPermanently  uint16 = 301 // RFC 7231, 6.4.2
	StatusFound             uint16 = 302 // RFC 7231, 6.4.3
	StatusSeeOther          uint16 = 303 // RFC 7231, 6.4.4
	StatusNotModified       uint16 = 304 // RFC 7232, 4.1
	StatusTemporaryRedirect uint16 = 307 // RFC 7231, 6.4.7
	StatusPermanentRedirect uint16 = 308 // RFC 7538, 3

	StatusBadRequest            uint16 = 400 // RFC 7231, 6.5.1
	StatusUnauthorized          uint16 = 401 // RFC 7235, 3.1
	StatusForbidden             uint16 = 403 // RFC 7231, 6.5.3
	StatusNotFound              uint16 = 404 // RFC 7231, 6.5.4
	StatusMethodNotAllowed      uint16 = 405 // RFC 7231, 6.5.5
	StatusRequestTimeout        uint16 = 408 // RFC 7231, 6.5.7
	StatusLengthRequired        uint16 = 411 // RFC 7231, 6.5.10
	StatusRequestEntityTooLarge uint16 = 413 // RFC 7231, 6.5.11
	StatusRequestURITooLong     uint16 = 414 // RFC 7231, 6.5.12
	StatusUnsupportedMediaType  uint16 = 415 // RFC 7231, 6.5.13
	StatusUnprocessableEntity   uint16 = 422 // RFC 4918, 11.2
	StatusTooManyRequests       uint16 = 429 // RFC 6585, 4

	StatusInternalServerError     uint16 = 500 // RFC 7231, 6.6.1
	StatusNotImplemented          uint16 = 501 // RFC 7231, 6.6.2
	StatusServiceUnavailable      uint16 = 503 // RFC 7231, 6.6.4
	StatusHTTPVersionNotSupported uint16 = 505 // RFC 7231, 6.6.6
)

const unknownStatusCode = "Unknown Status Code"

var statusMessages = []string{
	StatusOK:        "OK",
	StatusCreated:   "Created",
	StatusAccepted:  "Accepted",
	StatusNoContent: "No Content",

	StatusMovedPermanently:  "Moved Permanently",
	StatusFound:             "Found",
	StatusSeeOther:          "See Other",
	StatusNotModified:       "Not Modified",
	StatusTemporaryRedirect: "Temporary Redirect",
	StatusPermanentRedirect: "Permanent Redirect",

	StatusBadRequest:            "Bad Request",
	StatusUnauthorized:          "Unauthorized",
	StatusForbidden:             "Forbidden",
	StatusNotFound:              "Not Found",
	StatusMethodNotAllowed:      "Method Not Allowed",
	StatusRequestTimeout:        "Request Timeout",
	StatusLengthRequired:        "Length Required",
	StatusRequestEntityTooLarge: "Request Entity Too Large",
	StatusRequestURITooLong:     "Request URI Too Long",
	StatusUnsupportedMediaType:  "Unsupported Media Type",
	StatusUnprocessableEntity:   "Unprocessable Entity",
	StatusTooManyRequests:       "Too Many Requests",

	StatusInternalServerError:     "Internal Server Error",
	StatusNotImplemented:          "Not Implemented",
	StatusServiceUnavailable:      "Service Unavailable",
	StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
}

// StatusText returns the reason phrase for a status code.
func StatusText(status uint16) string {
	if int(status) < len(statusMessages) && statusMessages[status] != "" {
		return statusMessages[status]
	}
	return unknownStatusCode
}
