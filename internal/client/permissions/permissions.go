// Package permissions maps the signed-in user to the capabilities the
// dashboard gates on. It is pure and safe to call on every render.
package permissions

import (
	"github.com/dmitrijs2005/inboxpilot/internal/client/authuser"
)

type Role string
type Permission string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

const (
	ViewDashboard       Permission = "view_dashboard"
	ViewConversations   Permission = "view_conversations"
	ManageConversations Permission = "manage_conversations"
	ViewAnalytics       Permission = "view_analytics"
	ViewPrompts         Permission = "view_prompts"
	EditPrompts         Permission = "edit_prompts"
	ViewSettings        Permission = "view_settings"
	EditSettings        Permission = "edit_settings"
	ManageTeam          Permission = "manage_team"
)

// All lists every permission in display order.
var All = []Permission{
	ViewDashboard,
	ViewConversations,
	ManageConversations,
	ViewAnalytics,
	ViewPrompts,
	EditPrompts,
	ViewSettings,
	EditSettings,
	ManageTeam,
}

var readOnly = []Permission{
	ViewDashboard,
	ViewConversations,
	ViewAnalytics,
	ViewPrompts,
	ViewSettings,
}

var table = map[Role]map[Permission]struct{}{
	RoleOwner:  setOf(All...),
	RoleAdmin:  setOf(All...),
	RoleEditor: setOf(without(All, ManageTeam)...),
	RoleViewer: setOf(readOnly...),
}

// UserRole returns the role of u, or "" for no user. Owners always resolve
// to RoleOwner. Pointer variants are accepted; a nil pointer has no role.
func UserRole(u authuser.User) Role {
	switch v := u.(type) {
	case authuser.Owner:
		return RoleOwner
	case *authuser.Owner:
		if v != nil {
			return RoleOwner
		}
	case authuser.TeamMember:
		return Role(v.Role)
	case *authuser.TeamMember:
		if v != nil {
			return Role(v.Role)
		}
	}
	return ""
}

func HasPermission(u authuser.User, p Permission) bool {
	_, ok := table[UserRole(u)][p]
	return ok
}

func HasAllPermissions(u authuser.User, ps ...Permission) bool {
	for _, p := range ps {
		if !HasPermission(u, p) {
			return false
		}
	}
	return true
}

func HasAnyPermission(u authuser.User, ps ...Permission) bool {
	for _, p := range ps {
		if HasPermission(u, p) {
			return true
		}
	}
	return false
}

// PermissionsFor returns the permission set of role in display order.
func PermissionsFor(role Role) []Permission {
	set := table[role]
	out := make([]Permission, 0, len(set))
	for _, p := range All {
		if _, ok := set[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func setOf(ps ...Permission) map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(ps))
	for _, p := range ps {
		m[p] = struct{}{}
	}
	return m
}

func without(ps []Permission, drop Permission) []Permission {
	out := make([]Permission, 0, len(ps))
	for _, p := range ps {
		if p != drop {
			out = append(out, p)
		}
	}
	return out
}
