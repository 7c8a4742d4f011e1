package session

import (
	"time"

	"golang.org/x/oauth2"
)

// Credentials are supplied once at startup and presented to the login exchange.
type Credentials struct {
	Username string
	Password string
}

// TokenPair is the result of a login or refresh exchange.
// A zero expiry means the authority did not send a hint.
type TokenPair struct {
	AccessToken   string
	RefreshToken  string
	AccessExpiry  time.Time
	RefreshExpiry time.Time
}

// OAuth2 converts the pair into a bearer token for use with oauth2.Transport.
func (p TokenPair) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  p.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: p.RefreshToken,
		Expiry:       p.AccessExpiry,
	}
}

// expiryAfter turns a relative "expires in seconds" hint into an absolute time.
func expiryAfter(now time.Time, seconds int) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(seconds) * time.Second)
}
