package models

import "time"

// PasswordReset is a pending one-time reset code for an email address.
type PasswordReset struct {
	ID        int64
	Email     string
	OTP       string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the code is no longer usable at now.
// The expiry instant itself already counts as expired.
func (p *PasswordReset) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
