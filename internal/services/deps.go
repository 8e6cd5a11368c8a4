package services

import (
	"context"

	"github.com/snappy-loop/paintchat/internal/llm"
	"github.com/snappy-loop/paintchat/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// EventPublisher publishes relay events (e.g. to Kafka). May be nil to skip publishing.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev models.Event) error
}

// chatModel is the subset of llms.Model used by ChatService.
type chatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// imageGenerator is the image backend used by ImageService.
type imageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, opts llm.ImageOptions) (*llm.Image, error)
}
