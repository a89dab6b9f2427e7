// Package authuser holds the signed-in identity. User is a closed sum type:
// an Owner is the Instagram account holder, a TeamMember was invited into
// an owner's workspace. Code that needs to tell them apart uses a type
// switch over both variants.
package authuser

type MemberRole string

const (
	MemberAdmin  MemberRole = "admin"
	MemberEditor MemberRole = "editor"
	MemberViewer MemberRole = "viewer"
)

func (r MemberRole) Valid() bool {
	switch r {
	case MemberAdmin, MemberEditor, MemberViewer:
		return true
	}
	return false
}

type User interface {
	// WorkspaceID is the Instagram account id the session is scoped to.
	WorkspaceID() string
	// DisplayName is a short human label for prompts and logs.
	DisplayName() string
	// RefreshedToken is the token the backend handed back with the user,
	// or "" when it did not rotate it.
	RefreshedToken() string

	sealed()
}

type Owner struct {
	InstagramID string
	Username    string
	AccountType string
	LastLoginAt string
	Token       string
}

func (o Owner) WorkspaceID() string    { return o.InstagramID }
func (o Owner) DisplayName() string    { return "@" + o.Username }
func (o Owner) RefreshedToken() string { return o.Token }
func (Owner) sealed()                  {}

type TeamMember struct {
	ID                string
	Email             string
	Name              string
	Role              MemberRole
	Workspace         string
	WorkspaceUsername string
	LastLoginAt       string
	Token             string
}

func (m TeamMember) WorkspaceID() string { return m.Workspace }

func (m TeamMember) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Email
}

func (m TeamMember) RefreshedToken() string { return m.Token }
func (TeamMember) sealed()                  {}
