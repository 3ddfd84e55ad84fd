package amis

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSessionExpired reports that the server stopped honoring the session
// mid-call. Callers may re-login exactly once and retry.
var ErrSessionExpired = errors.New("amis: session expired")

// AuthError reports rejected credentials or an unreachable login endpoint.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	msg := "amis login failed"
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		msg += ": " + reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError reports that no record matched the requested identifier.
type NotFoundError struct {
	RecordID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("amis record %q not found", e.RecordID)
}

// DownloadError reports a file download that failed after exhausting the
// retry budget.
type DownloadError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("amis download %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

type httpStatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is the server-requested delay, when the response carried one.
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("amis request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}
