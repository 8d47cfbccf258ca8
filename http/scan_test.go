package http

import (
	"bytes"
	"testing"
)

func TestIndexOf(t *testing.T) {
	testCases := []struct {
		name     string
		haystack string
		needle   string
		start    int
		end      int
		expected int
	}{
		{"found at start", "\r\nabc", "\r\n", 0, 5, 0},
		{"found in middle", "GET / HTTP/1.1\r\nHost", "\r\n", 0, 20, 14},
		{"not found", "abcdef", "xy", 0, 6, -1},
		{"respects start", "a\r\nb\r\n", "\r\n", 2, 6, 4},
		{"match ending exactly at end", "abc\r\n", "\r\n", 0, 5, 3},
		{"match crossing end is ignored", "abc\r\n", "\r\n", 0, 4, -1},
		{"end clamped to length", "abc\r\n", "\r\n", 0, 100, 3},
		{"start past window", "abc", "c", 3, 3, -1},
		{"needle longer than window", "ab", "abc", 0, 2, -1},
		{"empty needle", "abc", "", 1, 3, 1},
		{"negative start", "abc", "a", -5, 3, 0},
		{"exact byte match only", "\r\r\n\n", "\r\n\r\n", 0, 4, -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := IndexOf([]byte(tc.haystack), []byte(tc.needle), tc.start, tc.end)
			if got != tc.expected {
				t.Errorf("IndexOf(%q, %q, %d, %d) = %d, want %d", tc.haystack, tc.needle, tc.start, tc.end, got, tc.expected)
			}
		})
	}
}

func TestIndexOfAgreesWithBytesIndex(t *testing.T) {
	haystack := []byte("--B\r\nfield\r\n--B\r\nvalue\r\n--B--\r\n")
	needle := []byte("--B")

	for start := 0; start <= len(haystack); start++ {
		for end := start; end <= len(haystack); end++ {
			got := IndexOf(haystack, needle, start, end)

			want := bytes.Index(haystack[start:end], needle)
			if want >= 0 {
				want += start
			}
			if got != want {
				t.Fatalf("IndexOf(start=%d, end=%d) = %d, want %d", start, end, got, want)
			}
		}
	}
}

func BenchmarkIndexOf(b *testing.B) {
	head := []byte("GET /test HTTP/1.1\r\nAccept: text/css\r\nUser-Agent: bench\r\nContent-Length: 0\r\n\r\n")

	for i := 0; i < b.N; i++ {
		IndexOf(head, crlfCrlf, 0, len(head))
	}
}
