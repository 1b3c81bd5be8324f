package client

import (
	"strconv"
	"strings"
)

type wireResponse struct {
	Code   int
	Fields []string
}

// parseWireResponse splits the single response line into its numeric status
// code and the whitespace-separated fields after it.
func parseWireResponse(line string) (wireResponse, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return wireResponse{}, false
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return wireResponse{}, false
	}
	return wireResponse{Code: code, Fields: fields[1:]}, true
}

// isServiceError reports whether the response is a 50x ERROR line.
func (r wireResponse) isServiceError() bool {
	return r.Code >= 500 && r.Code <= 509 && len(r.Fields) > 0 && strings.EqualFold(r.Fields[0], "ERROR")
}

func (r wireResponse) errorText() string {
	if len(r.Fields) < 2 {
		return ""
	}
	return strings.Join(r.Fields[1:], " ")
}
