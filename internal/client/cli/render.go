package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dmitrijs2005/inboxpilot/internal/client/authuser"
	"github.com/dmitrijs2005/inboxpilot/internal/client/countdown"
	"github.com/dmitrijs2005/inboxpilot/internal/client/permissions"
	"github.com/dmitrijs2005/inboxpilot/internal/client/realtime"
	"github.com/dmitrijs2005/inboxpilot/internal/client/tokeninfo"
	"github.com/dmitrijs2005/inboxpilot/internal/client/tokenstore"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Width(12)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func row(key, value string) string {
	return keyStyle.Render(key) + " " + value
}

func renderUser(u authuser.User, token string, now time.Time) string {
	lines := []string{titleStyle.Render(u.DisplayName())}

	switch v := u.(type) {
	case authuser.Owner:
		lines = append(lines,
			row("kind", "owner"),
			row("workspace", v.InstagramID),
		)
		if v.AccountType != "" {
			lines = append(lines, row("account", v.AccountType))
		}
	case authuser.TeamMember:
		lines = append(lines,
			row("kind", "team member"),
			row("email", v.Email),
			row("workspace", v.Workspace+" (@"+v.WorkspaceUsername+")"),
		)
	}

	lines = append(lines,
		row("role", string(permissions.UserRole(u))),
		row("token", tokeninfo.Describe(token, now)),
	)
	return strings.Join(lines, "\n")
}

func renderPermissions(u authuser.User) string {
	var b strings.Builder
	for _, p := range permissions.All {
		if permissions.HasPermission(u, p) {
			b.WriteString(okStyle.Render("✓ " + string(p)))
		} else {
			b.WriteString(mutedStyle.Render("✗ " + string(p)))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderWorkspaces(st tokenstore.State) string {
	ids := st.IDs()
	if len(ids) == 0 {
		return mutedStyle.Render("No workspaces signed in on this device.")
	}
	sort.Strings(ids)

	lines := []string{titleStyle.Render("Workspaces")}
	for _, id := range ids {
		acc := st.Workspaces[id]
		marker := "  "
		if id == st.ActiveWorkspaceID {
			marker = okStyle.Render("* ")
		}
		label := id
		if acc.Username != "" {
			label += " @" + acc.Username
		}
		if acc.LastLoginAt != "" {
			label += mutedStyle.Render("  last login " + acc.LastLoginAt)
		}
		lines = append(lines, marker+label)
	}
	return strings.Join(lines, "\n")
}

func renderQueue(items []QueuedMessage, entries []countdown.Entry) string {
	if len(entries) == 0 {
		return mutedStyle.Render("Queue is empty.")
	}
	byID := make(map[string]QueuedMessage, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		it := byID[e.ID]
		lines = append(lines, fmt.Sprintf("%s  %s  %s",
			okStyle.Render(countdown.Format(e.Remaining)),
			it.Username,
			mutedStyle.Render(truncate(it.Content, 60)),
		))
	}
	return strings.Join(lines, "\n")
}

func renderEvent(ev realtime.Event, unread int) string {
	ts := mutedStyle.Render(ev.ReceivedAt.Format("15:04:05"))
	switch {
	case ev.Message != nil:
		return fmt.Sprintf("%s %s %s %s: %s %s", ts,
			titleStyle.Render(string(ev.Name)),
			ev.Message.ConversationID,
			ev.Message.Role,
			truncate(ev.Message.Content, 80),
			mutedStyle.Render(fmt.Sprintf("(unread %d)", unread)),
		)
	default:
		return fmt.Sprintf("%s %s %s", ts, titleStyle.Render(string(ev.Name)), truncate(string(ev.Data), 80))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
