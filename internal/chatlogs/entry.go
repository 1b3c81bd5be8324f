package chatlogs

import (
	"regexp"
	"strings"
	"time"
)

// Entry is one parsed intel report from a channel log, timestamped in UTC.
type Entry struct {
	Channel string
	Time    time.Time
	Message string
}

var linePattern = regexp.MustCompile(`^\[ ([0-9]{4}\.[0-9]{2}\.[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}) \] (.*)$`)

type ParsedLine struct {
	Time    time.Time
	Message string
}

// ParseLine extracts the timestamp and body from one log line. The line must
// match `[ YYYY.MM.DD HH:MM:SS ] body`; a single stray byte-order mark before
// the bracket is stripped. Headers, control messages, and lines with
// out-of-range calendar fields simply do not match. Never an error: the
// caller skips non-matching lines silently.
func ParseLine(line string) (ParsedLine, bool) {
	line = strings.TrimPrefix(line, "\ufeff")
	match := linePattern.FindStringSubmatch(line)
	if len(match) < 3 {
		return ParsedLine{}, false
	}
	parsedTime, err := time.ParseInLocation("2006.01.02 15:04:05", match[1], time.UTC)
	if err != nil {
		return ParsedLine{}, false
	}
	// The body is passed through untouched; only a blank body is a no-match.
	message := match[2]
	if strings.TrimSpace(message) == "" {
		return ParsedLine{}, false
	}
	return ParsedLine{Time: parsedTime, Message: message}, true
}
