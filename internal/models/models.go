package models

import (
	"github.com/google/uuid"
)

// Role is the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one turn of the conversation. Insertion order is turn order.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage returns a message with a fresh id.
func NewMessage(role Role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content}
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// ImageRequest is the body of POST /api/images
type ImageRequest struct {
	Message    string     `json:"message"`
	Size       ImageSize  `json:"size,omitempty"`
	Resolution Resolution `json:"resolution,omitempty"`
}

// ImageResult is an encoded image as returned by the image relay.
// Image is opaque: it is stored and rendered exactly as received.
type ImageResult struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

// Chunk is one piece of a streamed completion. A chunk with Err set is the last one sent.
type Chunk struct {
	Text string
	Err  error
}

// ErrorResponse is the JSON error body returned by the relays
type ErrorResponse struct {
	Error string `json:"error"`
}
