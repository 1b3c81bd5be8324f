package logging

import "strings"

// FormatWirePayload normalizes a raw request or response body from the
// reporting service for trace output. The protocol is line-oriented text,
// so control characters are made visible instead of breaking the log line.
func FormatWirePayload(raw []byte) string {
	value := strings.TrimRight(string(raw), "\r\n")
	value = strings.ReplaceAll(value, "\r", `\r`)
	value = strings.ReplaceAll(value, "\n", `\n`)
	if strings.TrimSpace(value) == "" {
		return "<empty>"
	}
	if len(value) > clipLimit {
		return value[:clipLimit] + "..."
	}
	return value
}
