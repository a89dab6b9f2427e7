package tokenstore

import (
	"encoding/json"
	"sort"
)

// Account is one persisted credential record, keyed by InstagramID.
type Account struct {
	InstagramID string `json:"instagramId"`
	Token       string `json:"token"`
	Username    string `json:"username,omitempty"`
	AccountType string `json:"accountType,omitempty"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
}

func (a Account) valid() bool {
	return a.InstagramID != "" && a.Token != ""
}

// State is the full persisted structure. An empty ActiveWorkspaceID means no
// workspace is active.
type State struct {
	ActiveWorkspaceID string
	Workspaces        map[string]Account
}

func emptyState() State {
	return State{Workspaces: map[string]Account{}}
}

// IDs returns the workspace keys in ascending order.
func (s State) IDs() []string {
	ids := make([]string, 0, len(s.Workspaces))
	for id := range s.Workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Active returns the active account, if any.
func (s State) Active() (Account, bool) {
	if s.ActiveWorkspaceID == "" {
		return Account{}, false
	}
	acc, ok := s.Workspaces[s.ActiveWorkspaceID]
	return acc, ok
}

// normalize repairs a dangling active reference: it falls back to the first
// key in ascending order, or to none when the map is empty.
func (s *State) normalize() {
	if s.Workspaces == nil {
		s.Workspaces = map[string]Account{}
	}
	if _, ok := s.Workspaces[s.ActiveWorkspaceID]; ok {
		return
	}
	s.ActiveWorkspaceID = ""
	if ids := s.IDs(); len(ids) > 0 {
		s.ActiveWorkspaceID = ids[0]
	}
}

func (s State) clone() State {
	out := State{ActiveWorkspaceID: s.ActiveWorkspaceID, Workspaces: make(map[string]Account, len(s.Workspaces))}
	for k, v := range s.Workspaces {
		out.Workspaces[k] = v
	}
	return out
}

// stateJSON is the stored layout; the active id is null when unset.
type stateJSON struct {
	ActiveWorkspaceID *string                    `json:"activeWorkspaceId"`
	Workspaces        map[string]json.RawMessage `json:"workspaces"`
}

func (s State) MarshalJSON() ([]byte, error) {
	out := struct {
		ActiveWorkspaceID *string            `json:"activeWorkspaceId"`
		Workspaces        map[string]Account `json:"workspaces"`
	}{Workspaces: s.Workspaces}
	if out.Workspaces == nil {
		out.Workspaces = map[string]Account{}
	}
	if s.ActiveWorkspaceID != "" {
		id := s.ActiveWorkspaceID
		out.ActiveWorkspaceID = &id
	}
	return json.Marshal(out)
}

// decodeState parses the stored layout. Entries failing shape validation are
// dropped one by one; only a broken envelope fails the whole decode.
func decodeState(data []byte) (State, error) {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, err
	}

	st := emptyState()
	if raw.ActiveWorkspaceID != nil {
		st.ActiveWorkspaceID = *raw.ActiveWorkspaceID
	}

	for key, entry := range raw.Workspaces {
		var acc Account
		if err := json.Unmarshal(entry, &acc); err != nil || !acc.valid() {
			continue
		}
		if acc.InstagramID != key && st.ActiveWorkspaceID == key {
			st.ActiveWorkspaceID = acc.InstagramID
		}
		st.Workspaces[acc.InstagramID] = acc
	}

	st.normalize()
	return st, nil
}
