package cli

import "errors"

var (
	ErrNotSignedIn = errors.New("not signed in")
	ErrNoToken     = errors.New("no token found")
	ErrForbidden   = errors.New("permission denied")
	ErrSession     = errors.New("session error")
	ErrUsage       = errors.New("usage")
)
