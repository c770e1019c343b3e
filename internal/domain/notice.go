package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notice is a transient message raised by a push notification.
type Notice struct {
	ID         uuid.UUID
	ProjectID  int
	Message    string
	ReceivedAt time.Time
	Seen       bool
}
