// Package poller repeats a single star action against a page on a fixed
// interval, recovering from access-token expiry through a session refresh.
//
// Each iteration issues one request and classifies the answer:
//   - confirmed: the success counter is incremented and the loop waits one interval
//   - unauthorized: the session is refreshed and the attempt is retried at once
//   - anything else: Run returns the error
//
// The counter therefore equals the number of confirmed attempts, never the
// number of requests issued.
package poller
