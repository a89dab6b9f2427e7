package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/inboxpilot/internal/client/permissions"
)

func parsePermissions(names []string) ([]permissions.Permission, error) {
	known := make(map[string]permissions.Permission, len(permissions.All))
	for _, p := range permissions.All {
		known[string(p)] = p
	}

	out := make([]permissions.Permission, 0, len(names))
	for _, n := range names {
		p, ok := known[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrUsage, n)
		}
		out = append(out, p)
	}
	return out, nil
}

// Can reports whether the signed-in user holds every named permission.
// Without names it lists the whole table for the user.
func (a *App) Can(ctx context.Context, names []string) error {
	wanted, err := parsePermissions(names)
	if err != nil {
		return err
	}
	if err := a.ensureSession(ctx); err != nil {
		return err
	}
	u := a.session.State().User

	if len(wanted) == 0 {
		a.println(renderPermissions(u))
		return nil
	}
	if permissions.HasAllPermissions(u, wanted...) {
		a.println(okStyle.Render("allowed"))
		return nil
	}
	a.println(errStyle.Render("denied"))
	return ErrForbidden
}
