package session

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by the exchanges. Match with errors.Is.
var (
	// ErrRejected means the authority refused the login credentials or answered
	// with a body that could not be interpreted.
	ErrRejected = errors.New("credentials rejected")

	// ErrRefreshRejected means the refresh token is no longer accepted.
	ErrRefreshRejected = errors.New("refresh token rejected")

	// ErrTransport covers network failures and per-call timeouts.
	ErrTransport = errors.New("transport failure")

	// ErrNoSession is returned when a token is requested before login.
	ErrNoSession = errors.New("no active session")
)

// AuthError describes a failed exchange with the authority.
type AuthError struct {
	// Exchange is "login" or "refresh".
	Exchange string
	// Kind is one of ErrRejected, ErrRefreshRejected or ErrTransport.
	Kind error
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int
	// Message is the error message reported by the authority, if any.
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString(e.Exchange)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
