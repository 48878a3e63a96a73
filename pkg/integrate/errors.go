package integrate

import (
	"errors"
	"fmt"
)

// Authentication failures. None of these are retried; they all propagate to
// the caller of Login.
var (
	// ErrCredentialMissing is returned before any network call when the
	// api_token or api_secret is empty.
	ErrCredentialMissing = errors.New("integrate: api_token and api_secret are required")

	// ErrOTPRequired is returned when no otp code was supplied and no TOTP
	// secret is configured to derive one.
	ErrOTPRequired = errors.New("integrate: otp code required (provide a totp secret or pass an otp code)")
)

// AuthStepError wraps a transport failure during one of the two login steps.
type AuthStepError struct {
	Step int // 1 or 2
	Err  error
}

func (e *AuthStepError) Error() string {
	return fmt.Sprintf("integrate: auth step %d failed: %v", e.Step, e.Err)
}

func (e *AuthStepError) Unwrap() error { return e.Err }

// TOTPError wraps a failure deriving a time-based code from the configured secret.
type TOTPError struct {
	Err error
}

func (e *TOTPError) Error() string {
	return fmt.Sprintf("integrate: totp generation failed: %v", e.Err)
}

func (e *TOTPError) Unwrap() error { return e.Err }

// SessionKeyError is returned when the step-2 response carries no session key
// under any known field name. RawBody holds the server response for diagnosis.
type SessionKeyError struct {
	RawBody []byte
}

func (e *SessionKeyError) Error() string {
	return fmt.Sprintf("integrate: login response missing api_session_key: %s", e.RawBody)
}

// APIError is returned for any non-2xx broker response. Network faults are
// returned as-is from the underlying http client.
type APIError struct {
	Status int
	URL    string
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("integrate: %s returned HTTP %d: %s", e.URL, e.Status, truncate(e.Body, 256))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
