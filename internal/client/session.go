package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"eve-intel-reporter/internal/logging"
)

// Session is one authenticated conversation with the reporting service,
// identified by the token issued at AUTH. The server protocol is sequential
// per token, so calls are serialized internally: only one ALIVE, INTEL, or
// LOGOFF request is in flight at a time.
type Session struct {
	client   *Client
	username string
	token    string
	ceiling  int

	mu           sync.Mutex
	connected    bool
	users        int
	reports      int
	consecErrors int
	lastReport   time.Time
	onClosed     func()
	closedFired  bool
}

// SetOnClosed registers the callback fired exactly once when the session
// transitions to closed, whether from the error ceiling, expiry, or logoff.
func (s *Session) SetOnClosed(fn func()) {
	s.mu.Lock()
	s.onClosed = fn
	s.mu.Unlock()
}

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users
}

func (s *Session) Reports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports
}

// LastReportAt returns the time of the most recent successful INTEL, or the
// zero time if none has been sent yet. The reporter uses it for the idle
// timeout.
func (s *Session) LastReportAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// KeepAlive performs the ALIVE verb and refreshes the reported-user count.
func (s *Session) KeepAlive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrSessionClosed
	}

	resp, err := s.client.post(ctx, []formField{
		{"session", s.token},
		{"action", "ALIVE"},
	})
	if err != nil {
		return s.recordFailureLocked("ALIVE", err)
	}
	if resp.Code == sessionExpiredCode {
		s.closeLocked("session expired")
		return ErrSessionExpired
	}
	// 203 ALIVE <users>
	if resp.Code != aliveSuccessCode || len(resp.Fields) < 2 || !strings.EqualFold(resp.Fields[0], "ALIVE") {
		return s.recordFailureLocked("ALIVE", &ProtocolError{Verb: "ALIVE", Response: responseText(resp)})
	}
	users, convErr := strconv.Atoi(resp.Fields[1])
	if convErr != nil {
		return s.recordFailureLocked("ALIVE", &ProtocolError{Verb: "ALIVE", Response: responseText(resp)})
	}
	s.users = users
	s.consecErrors = 0
	return nil
}

// Report performs the INTEL verb for one parsed log entry. The entry time
// is transmitted as integer-truncated Unix seconds and the message carries
// the trailing carriage return the service expects.
func (s *Session) Report(ctx context.Context, channel string, entryTime time.Time, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrSessionClosed
	}

	resp, err := s.client.post(ctx, []formField{
		{"session", s.token},
		{"inteltime", strconv.FormatInt(entryTime.Unix(), 10)},
		{"action", "INTEL"},
		{"region", channel},
		{"intel", message + "\r"},
	})
	if err != nil {
		return s.recordFailureLocked("INTEL", err)
	}
	if resp.Code == sessionExpiredCode {
		s.closeLocked("session expired")
		return ErrSessionExpired
	}
	if resp.Code != intelSuccessCode {
		return s.recordFailureLocked("INTEL", &ProtocolError{Verb: "INTEL", Response: responseText(resp)})
	}
	s.reports++
	s.consecErrors = 0
	s.lastReport = s.client.now()
	return nil
}

// Logoff performs the LOGOFF verb. The session closes regardless of the
// response; a non-201 answer is only surfaced for diagnosis.
func (s *Session) Logoff(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrSessionClosed
	}

	resp, err := s.client.post(ctx, []formField{
		{"username", s.username},
		{"session", s.token},
		{"action", "LOGOFF"},
	})
	s.closeLocked("logged off")
	if err != nil {
		return err
	}
	if resp.Code != logoffSuccessCode {
		return &ProtocolError{Verb: "LOGOFF", Response: responseText(resp)}
	}
	return nil
}

// recordFailureLocked counts one transport or protocol failure against the
// consecutive-error ceiling and closes the session when the ceiling is hit.
func (s *Session) recordFailureLocked(verb string, err error) error {
	s.consecErrors++
	s.client.logger.Warn("reporting call failed",
		logging.Field("verb", verb),
		logging.Field("error", err),
		logging.Field("consecutive_errors", s.consecErrors),
	)
	if s.consecErrors >= s.ceiling {
		s.closeLocked(fmt.Sprintf("error ceiling reached (%d)", s.ceiling))
	}
	return err
}

func (s *Session) closeLocked(reason string) {
	if !s.connected {
		return
	}
	s.connected = false
	s.client.logger.Info("reporting session closed", logging.Field("reason", reason))
	if s.onClosed != nil && !s.closedFired {
		s.closedFired = true
		fn := s.onClosed
		go fn()
	}
}

func responseText(resp wireResponse) string {
	return fmt.Sprintf("%d %s", resp.Code, strings.Join(resp.Fields, " "))
}
