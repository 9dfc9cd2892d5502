package biometric

import (
	"context"
	"time"
)

// Mode records which comparison path produced a decision.
type Mode string

const (
	// ModeVerify is a 1:1 comparison against one identity's stored embedding.
	ModeVerify Mode = "verify"
	// ModeIdentify is a 1:N search over all embedded enrollments.
	ModeIdentify Mode = "identify"
	// ModeFallback is a direct photo-to-photo comparison used when the
	// identity has a reference photo but no embedding yet.
	ModeFallback Mode = "fallback"
)

// Decision is the outcome of a verification or identification attempt.
type Decision struct {
	// AttemptID uniquely labels this attempt for audit logging.
	AttemptID string `json:"attempt_id"`
	Mode      Mode   `json:"mode"`
	Matched   bool   `json:"matched"`

	// Distance is the L2 distance between probe and reference embedding.
	// Nil in fallback mode when the comparison service reports no distance.
	Distance  *float64 `json:"distance,omitempty"`
	Threshold float64  `json:"threshold"`

	// IdentityID is the verified subject (verify) or the matched identity
	// (identify). Empty when identification found no match.
	IdentityID  string `json:"identity_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Model       string `json:"model,omitempty"`
}

// Session is an authenticated session minted after a successful match.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenIssuer mints sessions for identities that passed a biometric check.
// Implemented by the auth package; kept as an interface so match logic never
// depends on token mechanics.
type TokenIssuer interface {
	Issue(ctx context.Context, identityID string, attemptID string) (*Session, error)
}
