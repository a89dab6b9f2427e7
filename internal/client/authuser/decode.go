package authuser

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidPayload = errors.New("invalid user payload")

// wireUser is the union of both variants as the backend sends them;
// isTeamMember selects the variant.
type wireUser struct {
	IsTeamMember bool `json:"isTeamMember"`

	InstagramID string `json:"instagramId"`
	Username    string `json:"username"`
	AccountType string `json:"accountType"`

	ID                string `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	Role              string `json:"role"`
	WorkspaceID       string `json:"workspaceId"`
	WorkspaceUsername string `json:"workspaceUsername"`

	LastLoginAt string `json:"lastLoginAt"`
	Token       string `json:"token"`
}

// Decode validates a user object and returns the matching variant. Any shape
// problem yields an error wrapping ErrInvalidPayload.
func Decode(data []byte) (User, error) {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if w.IsTeamMember {
		role := MemberRole(w.Role)
		switch {
		case w.ID == "":
			return nil, fmt.Errorf("%w: team member without id", ErrInvalidPayload)
		case w.Email == "":
			return nil, fmt.Errorf("%w: team member without email", ErrInvalidPayload)
		case w.WorkspaceID == "":
			return nil, fmt.Errorf("%w: team member without workspaceId", ErrInvalidPayload)
		case !role.Valid():
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidPayload, w.Role)
		}
		return TeamMember{
			ID:                w.ID,
			Email:             w.Email,
			Name:              w.Name,
			Role:              role,
			Workspace:         w.WorkspaceID,
			WorkspaceUsername: w.WorkspaceUsername,
			LastLoginAt:       w.LastLoginAt,
			Token:             w.Token,
		}, nil
	}

	if w.InstagramID == "" || w.Username == "" {
		return nil, fmt.Errorf("%w: owner without instagramId or username", ErrInvalidPayload)
	}
	return Owner{
		InstagramID: w.InstagramID,
		Username:    w.Username,
		AccountType: w.AccountType,
		LastLoginAt: w.LastLoginAt,
		Token:       w.Token,
	}, nil
}

// DecodeEnvelope unwraps {"data": <user>} and decodes the user.
func DecodeEnvelope(body []byte) (User, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidPayload)
	}
	return Decode(env.Data)
}
