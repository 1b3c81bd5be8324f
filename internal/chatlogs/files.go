package chatlogs

import (
	"path/filepath"
	"strings"
	"time"
)

type logFileMeta struct {
	ChannelName string
	Timestamp   time.Time
}

// parseLogFileName extracts the channel name and embedded timestamp from a
// chat log filename of the form `<channel>_<YYYYMMDD>_<HHMMSS>.txt`. Channel
// names may themselves contain underscores; the last two segments are always
// the timestamp.
func parseLogFileName(path string) (logFileMeta, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, ".txt") {
		return logFileMeta{}, false
	}

	stem := strings.TrimSuffix(base, ext)
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return logFileMeta{}, false
	}

	channelName := strings.TrimSpace(strings.Join(parts[:len(parts)-2], "_"))
	datePart := strings.TrimSpace(parts[len(parts)-2])
	timePart := strings.TrimSpace(parts[len(parts)-1])
	if channelName == "" || len(datePart) != 8 || len(timePart) != 6 {
		return logFileMeta{}, false
	}

	ts, err := time.ParseInLocation("20060102 150405", datePart+" "+timePart, time.UTC)
	if err != nil {
		return logFileMeta{}, false
	}

	return logFileMeta{ChannelName: channelName, Timestamp: ts}, true
}

func foldChannelName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
