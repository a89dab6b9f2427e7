package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/client/apiclient"
	"github.com/dmitrijs2005/inboxpilot/internal/client/countdown"
)

const QueuePath = "/api/queue"

// QueuedMessage is an outbound reply waiting for its send slot.
type QueuedMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Username       string    `json:"username"`
	Content        string    `json:"content"`
	ScheduledFor   time.Time `json:"scheduledFor"`
}

// countdownInterval is shortened in tests.
var countdownInterval = time.Second

func (a *App) fetchQueue(ctx context.Context) ([]QueuedMessage, error) {
	resp, err := a.session.AuthorizedFetch(ctx, http.MethodGet, QueuePath, nil)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	var items []QueuedMessage
	if err := apiclient.DecodeEnvelope(resp, &items); err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	return items, nil
}

// Queue prints the send countdown for queued messages. With follow it
// redraws every second until the queue drains or ctx ends.
func (a *App) Queue(ctx context.Context, follow bool) error {
	items, err := a.fetchQueue(ctx)
	if err != nil {
		return err
	}

	due := make([]countdown.Item, 0, len(items))
	for _, it := range items {
		due = append(due, countdown.Item{ID: it.ID, DueAt: it.ScheduledFor})
	}

	cd := countdown.New(countdown.WithInterval(countdownInterval), countdown.WithClock(a.now))
	if !follow {
		a.println(renderQueue(items, cd.Pending(due)))
		return nil
	}

	rendered := false
	cd.Run(ctx, due, func(entries []countdown.Entry) {
		if rendered {
			a.println(mutedStyle.Render("---"))
		}
		a.println(renderQueue(items, entries))
		rendered = true
	})
	if !rendered {
		a.println(renderQueue(items, nil))
	}
	return nil
}
