package http

import "strings"

// Part is one segment of a multipart/form-data body.
type Part struct {
	RawHeaders         string
	Name               string
	Filename           string
	ContentDisposition string
	ContentType        string
	Value              []byte

	hasFilename bool
}

// IsFile reports whether the part carried a filename parameter.
func (part Part) IsFile() bool {
	return part.hasFilename
}

// ParseMultipart splits body on the boundary and decodes every segment.
// Segments that cannot be decoded are counted in dropped.
func ParseMultipart(body []byte, boundary string) (parts []Part, dropped int) {
	return DecodeParts(SplitMultipart(body, boundary))
}

// SplitMultipart returns the raw bytes between consecutive boundary
// delimiters. The closing delimiter is not treated specially, so a body
// with fewer than two delimiters has no parts.
func SplitMultipart(body []byte, boundary string) [][]byte {
	delimiter := []byte(dashDash + boundary)

	first := IndexOf(body, delimiter, 0, len(body))
	if first < 0 {
		return nil
	}

	var segments [][]byte
	start := first + len(delimiter) + len(crlf)
	for {
		next := IndexOf(body, delimiter, start, len(body))
		if next < 0 {
			break
		}

		// Adjacent delimiters yield an empty segment, which decoding drops.
		segments = append(segments, body[start:max(next-len(crlf), start)])
		start = next + len(delimiter) + len(crlf)
	}

	return segments
}

// DecodeParts turns raw segments into parts, skipping any without a header
// block or a Content-Disposition naming the field.
func DecodeParts(segments [][]byte) (parts []Part, dropped int) {
	for _, segment := range segments {
		part, ok := decodePart(segment)
		if !ok {
			dropped++
			continue
		}
		parts = append(parts, part)
	}
	return parts, dropped
}

func decodePart(segment []byte) (Part, bool) {
	headersEnd := IndexOf(segment, crlfCrlf, 0, len(segment))
	if headersEnd < 0 {
		return Part{}, false
	}

	rawHeaders := string(segment[:headersEnd])
	lines := strings.Split(rawHeaders, "\r\n")

	disposition, found := headerValue(lines, headerContentDisposition)
	if !found {
		return Part{}, false
	}
	contentType, _ := headerValue(lines, headerContentType)

	part := Part{
		RawHeaders:         rawHeaders,
		ContentDisposition: disposition,
		ContentType:        contentType,
		Value:              segment[headersEnd+len(crlfCrlf):],
	}

	var named bool
	for _, param := range strings.Split(disposition, "; ") {
		if value, ok := strings.CutPrefix(param, "name="); ok {
			part.Name = unquote(value)
			named = true
		}
		if value, ok := strings.CutPrefix(param, "filename="); ok {
			part.Filename = unquote(value)
			part.hasFilename = true
		}
	}
	if !named {
		return Part{}, false
	}

	return part, true
}

// unquote strips one pair of surrounding double quotes, if present.
func unquote(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}
