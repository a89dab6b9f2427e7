package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/inboxpilot/internal/client/metrics"
	"github.com/dmitrijs2005/inboxpilot/internal/common"
	"github.com/dmitrijs2005/inboxpilot/internal/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	DefaultHandshakeTimeout  = 10 * time.Second

	eventBuffer = 64
)

var (
	ErrRejected      = errors.New("realtime: server rejected credentials")
	ErrUnexpectedAck = errors.New("realtime: unexpected handshake reply")
)

type Options struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
	ClientID          string
	Dialer            *websocket.Dialer
	Metrics           *metrics.Metrics
}

type Notifier struct {
	opts Options
	log  logging.Logger

	connected atomic.Bool
	unread    atomic.Int64
	events    chan Event
}

// New builds a Notifier; zero-valued options get defaults and an empty
// ClientID gets a random one.
func New(opts Options, log logging.Logger) *Notifier {
	if opts.ReconnectAttempts < 0 {
		opts.ReconnectAttempts = 0
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		}
	}
	return &Notifier{
		opts:   opts,
		log:    log.With("component", "realtime", "client_id", opts.ClientID),
		events: make(chan Event, eventBuffer),
	}
}

func (n *Notifier) IsConnected() bool { return n.connected.Load() }

func (n *Notifier) UnreadCount() int { return int(n.unread.Load()) }

func (n *Notifier) ClearUnread() {
	n.unread.Store(0)
	n.observeUnread(0)
}

func (n *Notifier) IncrementUnread() {
	n.observeUnread(n.unread.Add(1))
}

// Events delivers decoded pushes. Events are dropped while the reader lags.
// The channel is never closed.
func (n *Notifier) Events() <-chan Event { return n.events }

// Run holds at most one connection open for the latest credentials received
// on creds. Each change tears down the previous connection before the next
// one is dialed. Run returns when ctx is done or creds is closed.
func (n *Notifier) Run(ctx context.Context, creds <-chan Credentials) {
	var (
		current Credentials
		cancel  context.CancelFunc
		done    chan struct{}
	)
	stop := func() {
		if cancel == nil {
			return
		}
		cancel()
		<-done
		cancel, done = nil, nil
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-creds:
			if !ok {
				return
			}
			if c == current {
				continue
			}
			stop()
			current = c
			if !c.Valid() {
				n.log.Debug(ctx, "realtime idle, no credentials")
				continue
			}

			var sctx context.Context
			sctx, cancel = context.WithCancel(ctx)
			done = make(chan struct{})
			go func(d chan struct{}) {
				defer close(d)
				n.hold(sctx, c)
			}(done)
		}
	}
}

// hold keeps one workspace channel up until ctx ends, the server rejects the
// credentials, or the reconnect budget runs out.
func (n *Notifier) hold(ctx context.Context, c Credentials) {
	log := n.log.With("workspace_id", c.WorkspaceID)
	retries := 0

	for {
		conn, err := n.dial(ctx, c)
		if err == nil {
			retries = 0
			n.setConnected(true)
			log.Info(ctx, "realtime connected")

			err = n.read(ctx, conn, c)

			n.setConnected(false)
			_ = conn.Close()
		}

		if ctx.Err() != nil {
			log.Debug(ctx, "realtime closed")
			return
		}
		if final(err) {
			log.Warn(ctx, "realtime credentials rejected", "error", err)
			return
		}

		retries++
		if retries > n.opts.ReconnectAttempts {
			log.Error(ctx, "realtime giving up", "attempts", retries-1, "error", err)
			return
		}
		log.Warn(ctx, "realtime connection lost",
			"attempt", retries,
			"sleep", n.opts.ReconnectDelay,
			"error", err,
		)

		timer := time.NewTimer(n.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// final reports errors that retrying cannot fix. Close errors arrive wrapped,
// which websocket.IsCloseError does not see through.
func final(err error) bool {
	if errors.Is(err, ErrRejected) {
		return true
	}
	var ce *websocket.CloseError
	return errors.As(err, &ce) && ce.Code == websocket.ClosePolicyViolation
}

func (n *Notifier) dial(ctx context.Context, c Credentials) (*websocket.Conn, error) {
	target, err := url.Parse(n.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	q := target.Query()
	q.Set("workspaceId", c.WorkspaceID)
	target.RawQuery = q.Encode()

	header := http.Header{}
	header.Set(common.AuthorizationHeader, common.BearerValue(c.Token))

	conn, resp, err := n.opts.Dialer.DialContext(ctx, target.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		n.observeDial("error")
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}

	if err := n.handshake(conn, c); err != nil {
		n.observeDial("rejected")
		_ = conn.Close()
		return nil, err
	}
	n.observeDial("ok")
	return conn, nil
}

func (n *Notifier) handshake(conn *websocket.Conn, c Credentials) error {
	deadline := time.Now().Add(n.opts.HandshakeTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(authFrame{
		Type:        frameAuth,
		Token:       c.Token,
		WorkspaceID: c.WorkspaceID,
		ClientID:    n.opts.ClientID,
	}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	_ = conn.SetReadDeadline(deadline)
	var ack frame
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch EventName(ack.Type) {
	case EventConnected:
		return nil
	case EventError:
		return fmt.Errorf("%w: %s", ErrRejected, ack.Message)
	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedAck, ack.Type)
	}
}

func (n *Notifier) read(ctx context.Context, conn *websocket.Conn, c Credentials) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				n.log.Warn(ctx, "realtime dropped malformed frame", "error", err)
				continue
			}
			return err
		}
		n.handle(ctx, f, c)
	}
}

func (n *Notifier) handle(ctx context.Context, f frame, c Credentials) {
	ev := Event{
		Name:        EventName(f.Type),
		WorkspaceID: c.WorkspaceID,
		Data:        f.Data,
		ReceivedAt:  time.Now(),
	}

	switch ev.Name {
	case EventMessageCreated:
		var msg Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			n.log.Warn(ctx, "realtime message payload unreadable", "error", err)
			return
		}
		ev.Message = &msg
		if msg.Role == RoleUser {
			n.IncrementUnread()
		}
	case EventQueueUpdated, EventConversationUpserted:
	case EventError:
		n.log.Warn(ctx, "realtime server error", "message", f.Message)
		return
	default:
		n.log.Debug(ctx, "realtime ignored frame", "type", f.Type)
		return
	}

	if n.opts.Metrics != nil {
		n.opts.Metrics.RealtimeEventsTotal.WithLabelValues(string(ev.Name)).Inc()
	}

	select {
	case n.events <- ev:
	default:
		n.log.Debug(ctx, "realtime event dropped, consumer lagging", "event", ev.Name)
	}
}

func (n *Notifier) setConnected(v bool) {
	if n.opts.Metrics != nil {
		if v {
			n.opts.Metrics.RealtimeConnected.Set(1)
		} else {
			n.opts.Metrics.RealtimeConnected.Set(0)
		}
	}
	n.connected.Store(v)
}

func (n *Notifier) observeDial(result string) {
	if n.opts.Metrics != nil {
		n.opts.Metrics.RealtimeDialsTotal.WithLabelValues(result).Inc()
	}
}

func (n *Notifier) observeUnread(v int64) {
	if n.opts.Metrics != nil {
		n.opts.Metrics.RealtimeUnreadMessages.Set(float64(v))
	}
}
