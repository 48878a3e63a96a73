package integrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/pquerna/otp/totp"
)

// Field-name fallback chains for the login responses. Different API versions
// deliver the same logical field under different names; all extraction runs
// through these ordered lists.
var (
	otpTokenKeys   = []string{"otp_token", "otpToken", "otp_request_token", "request_token"}
	sessionKeyKeys = []string{"api_session_key", "apiSessionKey", "api_key", "apiKey"}
	suserTokenKeys = []string{"susertoken"}
	uidKeys        = []string{"uid", "user", "actid"}
	actIDKeys      = []string{"actid"}
)

// Authenticator drives the two-step credential/OTP handshake and yields a
// session-bound Client. The state machine is linear:
//
//	INIT -> STEP1_SENT -> (OTP resolved) -> STEP2_SENT -> AUTHENTICATED
//
// with FAILED reachable from any state. Neither step is retried, and nothing
// is persisted locally.
type Authenticator struct {
	cfg        Config
	totpSecret string

	// now is the clock used for TOTP derivation, replaceable in tests.
	now func() time.Time
}

// NewAuthenticator creates an Authenticator. totpSecret may be empty, in
// which case callers must pass an otp code to Login.
func NewAuthenticator(cfg Config, totpSecret string) *Authenticator {
	cfg.applyDefaults()
	return &Authenticator{cfg: cfg, totpSecret: totpSecret, now: time.Now}
}

// Login performs both auth steps and returns a Client bound to the new
// session. If otpCode is empty and a TOTP secret is configured, the code is
// derived at call time. The unauthenticated client used for the handshake is
// discarded on success.
func (a *Authenticator) Login(ctx context.Context, otpCode string) (*Client, Session, error) {
	if a.cfg.APIToken == "" || a.cfg.APISecret == "" {
		return nil, Session{}, ErrCredentialMissing
	}

	boot := NewClient(a.cfg)

	s1, err := boot.AuthStep1(ctx)
	if err != nil {
		return nil, Session{}, &AuthStepError{Step: 1, Err: err}
	}

	// Absent otp-token candidates are tolerated: some deployments issue the
	// challenge out of band and accept an empty token in step 2.
	otpToken := ProbeString(s1, otpTokenKeys)

	if otpCode == "" && a.totpSecret != "" {
		otpCode, err = totp.GenerateCode(a.totpSecret, a.now())
		if err != nil {
			return nil, Session{}, &TOTPError{Err: err}
		}
	}
	if otpCode == "" {
		return nil, Session{}, ErrOTPRequired
	}

	s2, raw, err := boot.AuthStep2(ctx, otpToken, otpCode)
	if err != nil {
		return nil, Session{}, &AuthStepError{Step: 2, Err: err}
	}

	sess := Session{
		APISessionKey: ProbeString(s2, sessionKeyKeys),
		SUserToken:    ProbeString(s2, suserTokenKeys),
		UID:           ProbeString(s2, uidKeys),
	}
	sess.ActID = ProbeString(s2, actIDKeys)
	if sess.ActID == "" {
		sess.ActID = sess.UID
	}
	if sess.APISessionKey == "" {
		return nil, Session{}, &SessionKeyError{RawBody: raw}
	}

	slog.Info("session created", slog.String("uid", sess.UID))
	return NewClient(a.cfg).WithSession(sess), sess, nil
}
