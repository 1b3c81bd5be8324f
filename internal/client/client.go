package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eve-intel-reporter/internal/config"
	"eve-intel-reporter/internal/logging"
)

const (
	authSuccessCode   = 200
	logoffSuccessCode = 201
	intelSuccessCode  = 202
	aliveSuccessCode  = 203

	sessionExpiredCode = 502

	defaultErrorCeiling = 3

	responseLimit = 1 << 16
)

type Client struct {
	http      *http.Client
	endpoints config.Endpoints
	version   string
	logger    *logging.Logger
	now       func() time.Time
}

func New(httpClient *http.Client, endpoints config.Endpoints, version string, logger *logging.Logger) *Client {
	if logger == nil {
		panic("client.New: logger must not be nil")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, endpoints: endpoints, version: version, logger: logger, now: time.Now}
}

// SetClock replaces the time source used to stamp session activity, so
// callers measuring idleness with their own clock stay consistent with it.
func (c *Client) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Authenticate performs the AUTH verb and returns a live session on success.
// A 50x ERROR response is an authentication failure (AuthError), distinct
// from transport failures.
func (c *Client) Authenticate(ctx context.Context, username string, passwordHash string) (*Session, error) {
	form := []formField{
		{"username", username},
		{"password", passwordHash},
		{"action", "AUTH"},
		{"version", c.version},
	}
	resp, err := c.post(ctx, form)
	if err != nil {
		return nil, err
	}
	if resp.isServiceError() {
		return nil, &AuthError{Message: resp.errorText()}
	}
	// 200 AUTH <token> <users>
	if resp.Code != authSuccessCode || len(resp.Fields) < 3 || !strings.EqualFold(resp.Fields[0], "AUTH") {
		return nil, &ProtocolError{Verb: "AUTH", Response: fmt.Sprintf("%d %s", resp.Code, strings.Join(resp.Fields, " "))}
	}
	users, err := strconv.Atoi(resp.Fields[2])
	if err != nil {
		return nil, &ProtocolError{Verb: "AUTH", Response: fmt.Sprintf("%d %s", resp.Code, strings.Join(resp.Fields, " "))}
	}

	session := &Session{
		client:   c,
		username: username,
		token:    resp.Fields[1],
		ceiling:  defaultErrorCeiling,
	}
	session.connected = true
	session.users = users
	c.logger.Info("authenticated with reporting service",
		logging.Field("username", username),
		logging.Field("users", users),
	)
	return session, nil
}

// post sends one form-encoded request to the reporting endpoint and parses
// the single-line response. Request and response bodies are traced with the
// << and >> prefixes.
func (c *Client) post(ctx context.Context, fields []formField) (wireResponse, error) {
	body := encodeForm(fields)
	c.logger.Debug("<< " + logging.Truncate(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.ReportURL, strings.NewReader(body))
	if err != nil {
		return wireResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return wireResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
	if err != nil {
		return wireResponse{}, err
	}
	c.logger.Debug(">> " + logging.FormatWirePayload(data))

	line, _, _ := strings.Cut(string(data), "\n")
	parsed, ok := parseWireResponse(line)
	if !ok {
		verb := ""
		for _, field := range fields {
			if field.key == "action" {
				verb = field.value
			}
		}
		return wireResponse{}, &ProtocolError{Verb: verb, Response: logging.FormatWirePayload(data)}
	}
	return parsed, nil
}
