// Package location models the address the client was opened with and
// strips one-shot bootstrap credentials from it.
package location

import (
	"net/url"
	"sync"

	"github.com/dmitrijs2005/inboxpilot/internal/common"
)

// Location is the current address plus the ability to rewrite it in place
// without adding a history entry.
type Location interface {
	URL() *url.URL
	Replace(u *url.URL)
}

// MemoryLocation keeps the address in memory. History records every URL the
// location has held, so tests can assert a token never stayed visible.
type MemoryLocation struct {
	mu      sync.Mutex
	current *url.URL
	history []string
}

func NewMemoryLocation(u *url.URL) *MemoryLocation {
	c := *u
	return &MemoryLocation{current: &c, history: []string{c.String()}}
}

func Parse(raw string) (*MemoryLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return NewMemoryLocation(u), nil
}

func (l *MemoryLocation) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *l.current
	return &c
}

// Replace swaps the current entry; like history.replaceState it does not
// append, so the previous address is no longer reachable.
func (l *MemoryLocation) Replace(u *url.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *u
	l.current = &c
	l.history[len(l.history)-1] = c.String()
}

func (l *MemoryLocation) String() string {
	return l.URL().String()
}

// History returns the reachable entries, oldest first.
func (l *MemoryLocation) History() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.history...)
}

// ExtractAuthToken reads and removes the token query parameter, keeping every
// other parameter, the path and the fragment. It returns "" when there is no
// token, so a second call is harmless.
func ExtractAuthToken(loc Location) string {
	u := loc.URL()
	q := u.Query()
	if !q.Has(common.TokenQueryParam) {
		return ""
	}

	token := q.Get(common.TokenQueryParam)
	u.RawQuery = removeParam(u.RawQuery, common.TokenQueryParam)
	loc.Replace(u)

	return token
}

// ExtractAuthTokenFromString is ExtractAuthToken for a pasted address. It
// returns the token and the cleaned address.
func ExtractAuthTokenFromString(raw string) (string, string, error) {
	loc, err := Parse(raw)
	if err != nil {
		return "", "", err
	}
	token := ExtractAuthToken(loc)
	return token, loc.String(), nil
}
