package http

import "bytes"

// IndexOf returns the index of the first occurrence of needle in
// haystack[start:end], or -1. The match never extends past end.
func IndexOf(haystack, needle []byte, start, end int) int {
	if end > len(haystack) {
		end = len(haystack)
	}
	if start < 0 {
		start = 0
	}
	if start > end-len(needle) {
		return -1
	}

	i := bytes.Index(haystack[start:end], needle)
	if i < 0 {
		return -1
	}
	return start + i
}
