// Package tokeninfo reads claims from JWT-shaped bearer tokens without
// verifying them. The client never trusts these values for authorization;
// they only feed status output and diagnostics.
package tokeninfo

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Info struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasExpiry reports whether the token carried an exp claim.
func (i Info) HasExpiry() bool {
	return !i.ExpiresAt.IsZero()
}

// Expired reports whether exp lies at or before now. Tokens without exp
// never expire from the client's point of view.
func (i Info) Expired(now time.Time) bool {
	return i.HasExpiry() && !now.Before(i.ExpiresAt)
}

// Inspect parses token as an unverified JWT. ok is false for opaque tokens.
func Inspect(token string) (Info, bool) {
	if token == "" {
		return Info{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Info{}, false
	}

	info := Info{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	return info, true
}

// Describe renders the expiry for humans.
func Describe(token string, now time.Time) string {
	info, ok := Inspect(token)
	switch {
	case !ok:
		return "opaque token, expiry unknown"
	case !info.HasExpiry():
		return "no expiry"
	case info.Expired(now):
		return "expired " + now.Sub(info.ExpiresAt).Round(time.Second).String() + " ago"
	default:
		return "expires in " + info.ExpiresAt.Sub(now).Round(time.Second).String()
	}
}
