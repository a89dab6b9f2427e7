package cli

import (
	"context"
	"strings"
)

func (a *App) Workspaces(ctx context.Context) error {
	a.println(renderWorkspaces(a.store.State(ctx)))
	return nil
}

// Switch activates a workspace already signed in on this device.
func (a *App) Switch(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		var err error
		id, err = GetSimpleText(a.reader, "Workspace id", a.out)
		if err != nil {
			return err
		}
	}
	if !a.session.SwitchWorkspace(ctx, id) {
		return a.sessionError()
	}
	a.println(okStyle.Render("Switched to " + a.session.State().User.DisplayName()))
	return nil
}
