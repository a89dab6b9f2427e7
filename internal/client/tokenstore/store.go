// Package tokenstore maps workspaces to bearer tokens on top of a
// storage.Storage and migrates the legacy single-token layout.
//
// Reads never fail: storage and parse errors degrade to the empty state.
// Writes are best effort: failures are logged and swallowed, so callers must
// not assume persistence succeeded.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/inboxpilot/internal/client/storage"
	"github.com/dmitrijs2005/inboxpilot/internal/common"
	"github.com/dmitrijs2005/inboxpilot/internal/logging"
)

const (
	// StateKey holds the current-generation JSON state.
	StateKey = "inboxpilot.workspaces"
	// LegacyTokenKey holds a bare token written by older clients.
	LegacyTokenKey = "authToken"
	// DefaultWorkspaceID tags a token whose workspace is not known yet.
	DefaultWorkspaceID = "default"
)

var ErrWorkspaceNotFound = errors.New("workspace not found")

type Store struct {
	mu      sync.Mutex
	storage storage.Storage
	log     logging.Logger
}

func New(s storage.Storage, log logging.Logger) *Store {
	return &Store{storage: s, log: log.With("component", "tokenstore")}
}

// State loads the persisted workspace state, synthesizing a one-entry state
// from the legacy key when the current key is absent.
func (s *Store) State(ctx context.Context) State {
	data, err := s.storage.Get(ctx, StateKey)
	switch {
	case err == nil:
		st, derr := decodeState(data)
		if derr != nil {
			s.log.Warn(ctx, "discarding unreadable workspace state", "error", derr)
			return emptyState()
		}
		return st
	case errors.Is(err, common.ErrNotFound):
		return s.legacyState(ctx)
	default:
		s.log.Warn(ctx, "workspace state unavailable", "error", err)
		return emptyState()
	}
}

func (s *Store) legacyState(ctx context.Context) State {
	token := s.legacyToken(ctx)
	if token == "" {
		return emptyState()
	}
	return State{
		ActiveWorkspaceID: DefaultWorkspaceID,
		Workspaces: map[string]Account{
			DefaultWorkspaceID: {InstagramID: DefaultWorkspaceID, Token: token},
		},
	}
}

func (s *Store) legacyToken(ctx context.Context) string {
	v, err := s.storage.Get(ctx, LegacyTokenKey)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "legacy token unavailable", "error", err)
		}
		return ""
	}
	return string(v)
}

// Persist writes st under the current key and drops the legacy key.
func (s *Store) Persist(ctx context.Context, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist(ctx, st)
}

func (s *Store) persist(ctx context.Context, st State) {
	st = st.clone()
	st.normalize()

	data, err := json.Marshal(st)
	if err != nil {
		s.log.Warn(ctx, "encode workspace state", "error", err)
		return
	}
	if err := s.storage.Set(ctx, StateKey, data); err != nil {
		s.log.Warn(ctx, "persist workspace state", "error", err)
		return
	}
	if err := s.storage.Remove(ctx, LegacyTokenKey); err != nil {
		s.log.Warn(ctx, "remove legacy token", "error", err)
	}
}

// AuthToken returns the active workspace token, falling back to the legacy
// key; "" means no token.
func (s *Store) AuthToken(ctx context.Context) string {
	if acc, ok := s.State(ctx).Active(); ok {
		return acc.Token
	}
	return s.legacyToken(ctx)
}

// ActiveAccount returns the record of the active workspace.
func (s *Store) ActiveAccount(ctx context.Context) (Account, bool) {
	return s.State(ctx).Active()
}

// PersistAuthToken stores token for the active workspace (or the default
// slot). An empty token clears every stored credential.
func (s *Store) PersistAuthToken(ctx context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" {
		if err := s.storage.Remove(ctx, StateKey, LegacyTokenKey); err != nil {
			s.log.Warn(ctx, "clear stored credentials", "error", err)
		}
		return
	}

	st := s.State(ctx)
	id := st.ActiveWorkspaceID
	if id == "" {
		id = DefaultWorkspaceID
	}

	acc := st.Workspaces[id]
	acc.InstagramID = id
	acc.Token = token
	st.Workspaces[id] = acc
	st.ActiveWorkspaceID = id

	s.persist(ctx, st)
}

// StagePendingToken parks a freshly obtained token in the default slot and
// makes it active, leaving every known workspace untouched. RememberAccount
// moves it under the real key once the user is resolved.
func (s *Store) StagePendingToken(ctx context.Context, token string) {
	if token == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.State(ctx)
	st.Workspaces[DefaultWorkspaceID] = Account{InstagramID: DefaultWorkspaceID, Token: token}
	st.ActiveWorkspaceID = DefaultWorkspaceID
	s.persist(ctx, st)
}

// SetActiveWorkspace marks id active; id must already have a record.
func (s *Store) SetActiveWorkspace(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.State(ctx)
	if _, ok := st.Workspaces[id]; !ok {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	st.ActiveWorkspaceID = id
	s.persist(ctx, st)
	return nil
}

// RememberAccount upserts acc after a successful resolution and makes it
// active. Empty optional fields keep their previous values. The default
// slot is folded into acc's key when it is the active one or holds the same
// token.
func (s *Store) RememberAccount(ctx context.Context, acc Account) {
	if !acc.valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.State(ctx)
	if def, ok := st.Workspaces[DefaultWorkspaceID]; ok && acc.InstagramID != DefaultWorkspaceID &&
		(def.Token == acc.Token || st.ActiveWorkspaceID == DefaultWorkspaceID) {
		delete(st.Workspaces, DefaultWorkspaceID)
	}

	prev := st.Workspaces[acc.InstagramID]
	if acc.Username == "" {
		acc.Username = prev.Username
	}
	if acc.AccountType == "" {
		acc.AccountType = prev.AccountType
	}
	if acc.LastLoginAt == "" {
		acc.LastLoginAt = prev.LastLoginAt
	}

	st.Workspaces[acc.InstagramID] = acc
	st.ActiveWorkspaceID = acc.InstagramID
	s.persist(ctx, st)
}

// RemoveWorkspace forgets one workspace. Removing the last one clears the
// store entirely.
func (s *Store) RemoveWorkspace(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.State(ctx)
	if _, ok := st.Workspaces[id]; !ok {
		return
	}
	delete(st.Workspaces, id)

	if len(st.Workspaces) == 0 {
		if err := s.storage.Remove(ctx, StateKey, LegacyTokenKey); err != nil {
			s.log.Warn(ctx, "clear stored credentials", "error", err)
		}
		return
	}
	s.persist(ctx, st)
}
