package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a relay activity event
type EventType string

const (
	EventChatCompleted  EventType = "chat.completed"
	EventChatFailed     EventType = "chat.failed"
	EventImageGenerated EventType = "image.generated"
	EventImageFailed    EventType = "image.failed"
)

// Event records the outcome of one relay call. It never carries message text or image data.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	DurationMs int64     `json:"duration_ms"`
	Messages   int       `json:"messages,omitempty"`
	Chars      int       `json:"chars,omitempty"`
	MimeType   string    `json:"mime_type,omitempty"`
	ImageBytes int       `json:"image_bytes,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NewEvent stamps a new event of the given type.
func NewEvent(t EventType, started time.Time) Event {
	now := time.Now().UTC()
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: now,
		DurationMs: now.Sub(started).Milliseconds(),
	}
}
