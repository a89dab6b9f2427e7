package realtime

import (
	"encoding/json"
	"time"
)

type EventName string

const (
	EventConnected            EventName = "connected"
	EventError                EventName = "error"
	EventMessageCreated       EventName = "message:created"
	EventQueueUpdated         EventName = "queue:updated"
	EventConversationUpserted EventName = "conversation:upserted"
)

const frameAuth = "auth"

// Inbound message roles. Only RoleUser counts toward the unread badge.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type frame struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type authFrame struct {
	Type        string `json:"type"`
	Token       string `json:"token"`
	WorkspaceID string `json:"workspaceId"`
	ClientID    string `json:"clientId"`
}

// Message is the payload of message:created.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"createdAt"`
}

// Event is one decoded server push. Message is set for message:created only;
// Data always holds the raw payload.
type Event struct {
	Name        EventName
	WorkspaceID string
	Message     *Message
	Data        json.RawMessage
	ReceivedAt  time.Time
}

// Credentials select the workspace channel to hold open. The zero value
// means "no channel".
type Credentials struct {
	Token       string
	WorkspaceID string
}

func (c Credentials) Valid() bool {
	return c.Token != "" && c.WorkspaceID != ""
}
