package client

import "errors"

// ErrSessionExpired reports that the service answered 502 to ALIVE or INTEL,
// meaning the session token is no longer valid. This is expected lifecycle,
// not a fault: it never counts toward the consecutive-error ceiling.
var ErrSessionExpired = errors.New("reporting session expired")

// ErrSessionClosed reports a call against a session that already closed.
var ErrSessionClosed = errors.New("reporting session closed")

// AuthError is the terminal authentication failure returned when the
// service answers a 50x ERROR line to AUTH. It is distinct from transport
// failures and must not be retried until the credentials change or the
// retry window elapses.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e == nil || e.Message == "" {
		return "authentication rejected"
	}
	return "authentication rejected: " + e.Message
}

// ProtocolError reports a response body that does not match the expected
// grammar for the verb. It counts toward the consecutive-error ceiling the
// same as a transport failure, but is logged distinctly.
type ProtocolError struct {
	Verb     string
	Response string
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return "unexpected protocol response"
	}
	return "unexpected " + e.Verb + " response: " + e.Response
}

func IsAuthenticationError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
