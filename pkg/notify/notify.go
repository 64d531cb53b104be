// Package notify pushes capture events to subscribed users. The serving
// engine publishes fire-and-forget; the admin API's websocket endpoint
// subscribes per user. The in-process Hub serves single-node runs, the
// Redis bus fans out across replicas.
package notify

import (
	"context"

	"github.com/mockbird/mockbird/pkg/capture"
)

// EventTypeCaptured is emitted for every recorded request.
const EventTypeCaptured = "request.captured"

// Event is one notification pushed to a user's subscribers.
type Event struct {
	Type    string           `json:"type"`
	Capture *capture.Capture `json:"capture"`
}

// Bus publishes events to per-user channels and hands out
// subscriptions. Publish never blocks on slow subscribers.
type Bus interface {
	// Publish delivers an event to every subscriber of the user.
	Publish(ctx context.Context, userID string, ev *Event) error

	// Subscribe returns a channel of events for a user and a cancel
	// function that releases the subscription and closes the channel.
	Subscribe(ctx context.Context, userID string) (<-chan *Event, func(), error)

	// Close releases the bus.
	Close() error
}
