// Package broadcast defines the port for pushing real-time events to
// connected operator clients. Broadcasting is a best-effort side channel:
// a failed delivery is never surfaced to the caller.
package broadcast

import "context"

// Broadcaster sends a typed event to all connected clients.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
