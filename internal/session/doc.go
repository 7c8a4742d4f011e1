// Package session obtains and refreshes the access/refresh token pair used to
// authorize poll actions.
//
// The remote authority is an ABP-style service that wraps every response in
// an envelope and deviates from OAuth2 in two ways that rule out
// golang.org/x/oauth2's token endpoint handling:
//   - Login posts a JSON username/password body instead of a form grant
//   - Refresh presents the access token as a bearer credential and the refresh
//     token in a "RefreshToken" request header
//
// # Exchanges
//
// Client performs the two raw exchanges against the authority:
//
//	client, err := session.NewClient("http://sxz.api6.zykj.org",
//		session.WithTimeout(10*time.Second),
//	)
//
// # Manager
//
// Manager owns the current TokenPair and implements oauth2.TokenSource, so it
// can back an oauth2.Transport. Refresh swaps the pair atomically; every
// request issued after a successful refresh carries the new access token.
//
//	manager, err := session.NewManager(client)
//	if _, err := manager.Login(ctx, creds); err != nil { ... }
//	httpClient := &http.Client{Transport: &oauth2.Transport{Source: manager}}
package session
