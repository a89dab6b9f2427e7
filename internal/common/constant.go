// Package common contains shared constants and sentinel errors used across
// inboxpilot components.
package common

// AuthorizationHeader carries the bearer credential on outbound HTTP and
// websocket handshake requests.
const AuthorizationHeader = "Authorization"

// BearerPrefix precedes the token in the Authorization header value.
const BearerPrefix = "Bearer "

// TokenQueryParam is the one-shot bootstrap credential parameter that the
// OAuth flow appends to the landing URL.
const TokenQueryParam = "token"

// BearerValue formats token as an Authorization header value.
func BearerValue(token string) string {
	return BearerPrefix + token
}
