package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"eve-intel-reporter/internal/config"
	"eve-intel-reporter/internal/logging"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func textResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func quietLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func newTestClient(transport roundTripFunc) *Client {
	return New(
		&http.Client{Transport: transport},
		config.Endpoints{
			ReportURL:      "https://example.test/report.pl",
			ChannelListURL: "https://example.test/intelchannels.pl",
		},
		"1.0.0-test",
		quietLogger(),
	)
}

func TestFetchChannelList_ParsesFirstCommaField(t *testing.T) {
	body := "Alpha Intel,Region A\r\n\r\nBeta Intel , Region B\nGamma\n"
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %q, want GET", r.Method)
		}
		return textResponse(r, http.StatusOK, body), nil
	})

	names, err := c.FetchChannelList(context.Background())
	if err != nil {
		t.Fatalf("FetchChannelList() error = %v", err)
	}
	want := []string{"Alpha Intel", "Beta Intel", "Gamma"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestFetchChannelList_EmptyBodyIsUnavailable(t *testing.T) {
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		return textResponse(r, http.StatusOK, "\n\n"), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.FetchChannelList(ctx); err == nil {
		t.Fatalf("expected error for empty channel list")
	}
}

func TestFetchChannelList_RetriesTransportFailure(t *testing.T) {
	calls := 0
	c := newTestClient(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return textResponse(r, http.StatusBadGateway, "bad gateway"), nil
		}
		return textResponse(r, http.StatusOK, "Alpha Intel,Region A\n"), nil
	})

	names, err := c.FetchChannelList(context.Background())
	if err != nil {
		t.Fatalf("FetchChannelList() error = %v", err)
	}
	if calls < 2 {
		t.Fatalf("calls = %d, want retry after failure", calls)
	}
	if len(names) != 1 || names[0] != "Alpha Intel" {
		t.Fatalf("names = %v", names)
	}
}
