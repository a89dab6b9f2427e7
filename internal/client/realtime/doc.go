// Package realtime keeps a websocket channel to the backend open for the
// signed-in workspace and turns its frames into typed events.
//
// Protocol, in order:
//
//	dial     GET <url>?workspaceId=<id>, Authorization: Bearer <token>
//	client   {"type":"auth","token":...,"workspaceId":...,"clientId":...}
//	server   {"type":"connected"}            (or {"type":"error","message":...})
//	server   {"type":"message:created","data":{...}} and friends
//
// The Notifier counts as connected only after the acknowledgment frame.
// A lost connection is retried a bounded number of times with a fixed delay;
// after that the Notifier stays disconnected until the credentials change.
package realtime
