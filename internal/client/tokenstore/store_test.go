package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dmitrijs2005/inboxpilot/internal/client/storage"
	"github.com/dmitrijs2005/inboxpilot/internal/common"
	"github.com/dmitrijs2005/inboxpilot/internal/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	return New(mem, logging.Discard()), mem
}

func seed(t *testing.T, mem *storage.Memory, key, value string) {
	t.Helper()
	require.NoError(t, mem.Set(context.Background(), key, []byte(value)))
}

func has(t *testing.T, mem *storage.Memory, key string) bool {
	t.Helper()
	_, err := mem.Get(context.Background(), key)
	if errors.Is(err, common.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

// failingStorage refuses every write and optionally every read.
type failingStorage struct {
	storage.Storage
	failReads bool
}

var errQuota = errors.New("quota exceeded")

func (f failingStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failReads {
		return nil, errQuota
	}
	return f.Storage.Get(ctx, key)
}
func (f failingStorage) Set(context.Context, string, []byte) error { return errQuota }
func (f failingStorage) Remove(context.Context, ...string) error   { return errQuota }

func TestState_EmptyWhenNothingStored(t *testing.T) {
	s, _ := newStore(t)
	st := s.State(context.Background())
	assert.Empty(t, st.ActiveWorkspaceID)
	assert.Empty(t, st.Workspaces)
	assert.NotNil(t, st.Workspaces)
}

func TestState_DanglingActiveIsRepaired(t *testing.T) {
	tests := []struct {
		name       string
		stored     string
		wantActive string
	}{
		{
			name:       "falls back to first remaining key",
			stored:     `{"activeWorkspaceId":"gone","workspaces":{"b":{"instagramId":"b","token":"tb"},"a":{"instagramId":"a","token":"ta"}}}`,
			wantActive: "a",
		},
		{
			name:       "falls back to null when map is empty",
			stored:     `{"activeWorkspaceId":"gone","workspaces":{}}`,
			wantActive: "",
		},
		{
			name:       "active pointing at a dropped corrupt entry",
			stored:     `{"activeWorkspaceId":"bad","workspaces":{"bad":{"instagramId":"bad"},"ok":{"instagramId":"ok","token":"t"}}}`,
			wantActive: "ok",
		},
		{
			name:       "null active picks first key",
			stored:     `{"activeWorkspaceId":null,"workspaces":{"z":{"instagramId":"z","token":"t"}}}`,
			wantActive: "z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mem := newStore(t)
			seed(t, mem, StateKey, tt.stored)

			st := s.State(context.Background())
			assert.Equal(t, tt.wantActive, st.ActiveWorkspaceID)
			if st.ActiveWorkspaceID != "" {
				assert.Contains(t, st.Workspaces, st.ActiveWorkspaceID)
			}
		})
	}
}

func TestState_CorruptEntriesAreDroppedIndividually(t *testing.T) {
	s, mem := newStore(t)
	seed(t, mem, StateKey, `{
		"activeWorkspaceId": "good",
		"workspaces": {
			"good":    {"instagramId": "good", "token": "t1", "username": "shop"},
			"notoken": {"instagramId": "notoken"},
			"noid":    {"token": "t2"},
			"typed":   {"instagramId": 42, "token": "t3"},
			"scalar":  "garbage"
		}
	}`)

	st := s.State(context.Background())

	want := State{
		ActiveWorkspaceID: "good",
		Workspaces: map[string]Account{
			"good": {InstagramID: "good", Token: "t1", Username: "shop"},
		},
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestState_UnparseableJSONYieldsEmpty(t *testing.T) {
	s, mem := newStore(t)
	seed(t, mem, StateKey, `{not json`)
	seed(t, mem, LegacyTokenKey, "legacy")

	st := s.State(context.Background())
	assert.Empty(t, st.Workspaces)
	assert.Empty(t, st.ActiveWorkspaceID)
}

func TestState_StorageReadFailureYieldsEmpty(t *testing.T) {
	s := New(failingStorage{Storage: storage.NewMemory(), failReads: true}, logging.Discard())

	st := s.State(context.Background())
	assert.Empty(t, st.Workspaces)
	assert.Equal(t, "", s.AuthToken(context.Background()))
}

func TestLegacyMigration(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	seed(t, mem, LegacyTokenKey, "legacy-token")

	st := s.State(ctx)
	require.Len(t, st.Workspaces, 1)
	assert.Equal(t, DefaultWorkspaceID, st.ActiveWorkspaceID)
	assert.Equal(t, "legacy-token", st.Workspaces[DefaultWorkspaceID].Token)
	assert.Equal(t, "legacy-token", s.AuthToken(ctx))

	s.Persist(ctx, st)

	assert.False(t, has(t, mem, LegacyTokenKey), "legacy key must be gone after persist")
	assert.True(t, has(t, mem, StateKey))
	assert.Equal(t, "legacy-token", s.AuthToken(ctx))
}

func TestAuthToken_FallsBackToLegacyWithoutActive(t *testing.T) {
	s, mem := newStore(t)
	seed(t, mem, StateKey, `{"activeWorkspaceId":null,"workspaces":{}}`)
	seed(t, mem, LegacyTokenKey, "raw")

	assert.Equal(t, "raw", s.AuthToken(context.Background()))
}

func TestPersistAuthToken_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	s.PersistAuthToken(ctx, "t1")
	assert.Equal(t, "t1", s.AuthToken(ctx))
	assert.Equal(t, DefaultWorkspaceID, s.State(ctx).ActiveWorkspaceID)

	s.PersistAuthToken(ctx, "t2")
	assert.Equal(t, "t2", s.AuthToken(ctx))
}

func TestPersistAuthToken_MergesIntoActiveKeepingProfile(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.Persist(ctx, State{
		ActiveWorkspaceID: "ig1",
		Workspaces: map[string]Account{
			"ig1": {InstagramID: "ig1", Token: "old", Username: "shop", AccountType: "BUSINESS", LastLoginAt: "2026-01-02T03:04:05Z"},
			"ig2": {InstagramID: "ig2", Token: "other"},
		},
	})

	s.PersistAuthToken(ctx, "fresh")

	st := s.State(ctx)
	assert.Equal(t, Account{InstagramID: "ig1", Token: "fresh", Username: "shop", AccountType: "BUSINESS", LastLoginAt: "2026-01-02T03:04:05Z"}, st.Workspaces["ig1"])
	assert.Equal(t, "other", st.Workspaces["ig2"].Token)
}

func TestPersistAuthToken_EmptyClearsEverything(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	s.RememberAccount(ctx, Account{InstagramID: "a", Token: "ta"})
	s.RememberAccount(ctx, Account{InstagramID: "b", Token: "tb"})
	seed(t, mem, LegacyTokenKey, "legacy")

	s.PersistAuthToken(ctx, "")

	assert.Empty(t, s.State(ctx).Workspaces)
	assert.Equal(t, "", s.AuthToken(ctx))
	assert.False(t, has(t, mem, StateKey))
	assert.False(t, has(t, mem, LegacyTokenKey))
}

func TestWrites_SwallowStorageFailures(t *testing.T) {
	ctx := context.Background()
	s := New(failingStorage{Storage: storage.NewMemory()}, logging.Discard())

	assert.NotPanics(t, func() {
		s.PersistAuthToken(ctx, "t")
		s.PersistAuthToken(ctx, "")
		s.Persist(ctx, State{})
		s.RememberAccount(ctx, Account{InstagramID: "a", Token: "t"})
	})
	assert.Equal(t, "", s.AuthToken(ctx))
}

func TestSetActiveWorkspace(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.RememberAccount(ctx, Account{InstagramID: "A", Token: "tA"})
	s.RememberAccount(ctx, Account{InstagramID: "B", Token: "tB"})
	require.Equal(t, "tB", s.AuthToken(ctx))

	require.NoError(t, s.SetActiveWorkspace(ctx, "A"))
	assert.Equal(t, "tA", s.AuthToken(ctx))

	err := s.SetActiveWorkspace(ctx, "C")
	require.ErrorIs(t, err, ErrWorkspaceNotFound)
	assert.Equal(t, "tA", s.AuthToken(ctx))
}

func TestRememberAccount_FoldsDefaultSlot(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.PersistAuthToken(ctx, "boot")

	s.RememberAccount(ctx, Account{InstagramID: "1784", Token: "boot", Username: "shop"})

	st := s.State(ctx)
	assert.NotContains(t, st.Workspaces, DefaultWorkspaceID)
	assert.Equal(t, "1784", st.ActiveWorkspaceID)
	assert.Equal(t, "shop", st.Workspaces["1784"].Username)
}

func TestStagePendingToken_LeavesKnownWorkspaces(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.RememberAccount(ctx, Account{InstagramID: "a", Token: "ta", Username: "shop"})

	s.StagePendingToken(ctx, "")
	assert.Equal(t, "ta", s.AuthToken(ctx))

	s.StagePendingToken(ctx, "tb")
	assert.Equal(t, "tb", s.AuthToken(ctx))
	st := s.State(ctx)
	assert.Equal(t, DefaultWorkspaceID, st.ActiveWorkspaceID)
	assert.Equal(t, "ta", st.Workspaces["a"].Token)

	// the backend rotated the staged token
	s.RememberAccount(ctx, Account{InstagramID: "b", Token: "tb2"})
	st = s.State(ctx)
	assert.Equal(t, []string{"a", "b"}, st.IDs())
	assert.Equal(t, "b", st.ActiveWorkspaceID)
	assert.Equal(t, "ta", st.Workspaces["a"].Token)
	assert.Equal(t, "tb2", st.Workspaces["b"].Token)
}

func TestRememberAccount_KeepsKnownProfileFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	s.RememberAccount(ctx, Account{InstagramID: "a", Token: "t1", Username: "shop", AccountType: "CREATOR"})
	s.RememberAccount(ctx, Account{InstagramID: "a", Token: "t2"})

	acc, ok := s.ActiveAccount(ctx)
	require.True(t, ok)
	assert.Equal(t, Account{InstagramID: "a", Token: "t2", Username: "shop", AccountType: "CREATOR"}, acc)
}

func TestRememberAccount_IgnoresInvalid(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	s.RememberAccount(ctx, Account{InstagramID: "a"})
	assert.False(t, has(t, mem, StateKey))
}

func TestRemoveWorkspace(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	s.RememberAccount(ctx, Account{InstagramID: "a", Token: "ta"})
	s.RememberAccount(ctx, Account{InstagramID: "b", Token: "tb"})

	s.RemoveWorkspace(ctx, "b")
	st := s.State(ctx)
	assert.Equal(t, "a", st.ActiveWorkspaceID)
	assert.Equal(t, []string{"a"}, st.IDs())

	s.RemoveWorkspace(ctx, "missing")
	s.RemoveWorkspace(ctx, "a")
	assert.False(t, has(t, mem, StateKey))
	assert.Equal(t, "", s.AuthToken(ctx))
}

func TestStoredLayout(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)
	s.RememberAccount(ctx, Account{InstagramID: "a", Token: "ta", Username: "shop"})

	raw, err := mem.Get(ctx, StateKey)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "a", decoded["activeWorkspaceId"])
	assert.JSONEq(t, `{"a":{"instagramId":"a","token":"ta","username":"shop"}}`, mustJSON(t, decoded["workspaces"]))

	s.PersistAuthToken(ctx, "")
	s.Persist(ctx, State{})
	raw, err = mem.Get(ctx, StateKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"activeWorkspaceId":null,"workspaces":{}}`, string(raw))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
