package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// TypeNotification is the only event type acted upon.
const TypeNotification = "notification"

// ErrClosed is returned by Recv after the subscription has been closed.
var ErrClosed = errors.New("push subscription closed")

// Event is one message from the push channel.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Subscriber opens a push subscription scoped to one project.
type Subscriber interface {
	Subscribe(ctx context.Context, projectID int) (Subscription, error)
}

// Subscription delivers events until it fails or is closed.
type Subscription interface {
	// Recv blocks for the next event. Any error ends the subscription.
	Recv(ctx context.Context) (Event, error)
	Close() error
}

func decodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode push event: %w", err)
	}
	return ev, nil
}
