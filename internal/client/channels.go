package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"eve-intel-reporter/internal/logging"
)

const (
	listRetryInitial = 2 * time.Second
	listRetryMax     = 20 * time.Second
	listRetryBudget  = 1 * time.Minute
)

// FetchChannelList downloads the authoritative channel-name list. The body
// is newline-delimited; the first comma-separated field of each line is a
// channel name, blank lines are skipped. Transient transport failures are
// retried with exponential backoff within one fetch cycle; an empty result
// is returned as an error so the caller treats the list as unavailable.
func (c *Client) FetchChannelList(ctx context.Context) ([]string, error) {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = listRetryInitial
	retry.MaxInterval = listRetryMax

	names, err := backoff.Retry(ctx, func() ([]string, error) {
		return c.fetchChannelListOnce(ctx)
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxElapsedTime(listRetryBudget),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("retrying channel list download",
				logging.Field("error", err),
				logging.Field("next_retry", next.String()))
		}),
	)
	if err != nil {
		return nil, err
	}
	c.logger.Info("channel list downloaded", logging.Field("count", len(names)))
	return names, nil
}

func (c *Client) fetchChannelListOnce(ctx context.Context) ([]string, error) {
	c.logger.Debug("fetching channel list", logging.Field("url", c.endpoints.ChannelListURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.ChannelListURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	c.logger.Debugf("GET %s -> %s", c.endpoints.ChannelListURL, resp.Status)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("channel list request failed: %s", resp.Status)
	}

	names := []string{}
	scanner := bufio.NewScanner(io.LimitReader(resp.Body, responseLimit))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, _, _ := strings.Cut(line, ",")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, scanErr
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("channel list is empty")
	}
	return names, nil
}
