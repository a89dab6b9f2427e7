package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/inboxpilot/internal/client/apiclient"
)

// Fetch sends an authorized request and prints the status and body. JSON
// bodies are indented.
func (a *App) Fetch(ctx context.Context, method, path, body string) error {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}

	var rd io.Reader
	var opts []apiclient.Option
	if body != "" {
		rd = strings.NewReader(body)
		opts = append(opts, apiclient.WithJSON())
	}

	resp, err := a.session.AuthorizedFetch(ctx, method, path, rd, opts...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	status := fmt.Sprintf("%s %s -> %s", method, path, resp.Status)
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		a.println(okStyle.Render(status))
	} else {
		a.println(errStyle.Render(status))
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		a.println(pretty.String())
	} else if len(data) > 0 {
		a.println(string(data))
	}
	return nil
}
