package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/llm"
	"github.com/snappy-loop/paintchat/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// ErrInvalidRequest marks malformed caller input. Nothing is sent to a backend when it is returned.
var ErrInvalidRequest = errors.New("invalid request")

const publishTimeout = 5 * time.Second

// ChatService relays a conversation to the chat backend and streams the reply back.
type ChatService struct {
	model     chatModel
	publisher EventPublisher
}

// NewChatService creates a ChatService. publisher may be nil.
func NewChatService(model chatModel, publisher EventPublisher) *ChatService {
	return &ChatService{model: model, publisher: publisher}
}

// ValidateChatRequest checks messages and temperature.
func ValidateChatRequest(req *models.ChatRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages is required", ErrInvalidRequest)
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: messages[%d]: unknown role %q", ErrInvalidRequest, i, m.Role)
		}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 1) {
		return fmt.Errorf("%w: temperature must be between 0 and 1", ErrInvalidRequest)
	}
	return nil
}

// StreamChat validates req, then starts the backend call and returns the reply as a stream.
// Chunks arrive in backend order; empty chunks are dropped. On failure the last chunk
// carries Err (wrapping llm.ErrGenerationFailed). The channel is closed when the reply ends
// or ctx is cancelled.
func (s *ChatService) StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.Chunk, error) {
	if err := ValidateChatRequest(req); err != nil {
		return nil, err
	}

	content := buildMessages(req.Messages)
	var opts []llms.CallOption
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}

	out := make(chan models.Chunk)
	go s.run(ctx, content, opts, len(req.Messages), out)
	return out, nil
}

func (s *ChatService) run(ctx context.Context, content []llms.MessageContent, opts []llms.CallOption, callerMessages int, out chan<- models.Chunk) {
	defer close(out)
	started := time.Now()

	send := func(c models.Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	chars := 0
	streamed := false
	opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		streamed = true
		chars += len(chunk)
		if !send(models.Chunk{Text: string(chunk)}) {
			return ctx.Err()
		}
		return nil
	}))

	resp, err := s.model.GenerateContent(ctx, content, opts...)
	if err == nil && !streamed {
		// Backend ignored streaming; relay the whole completion as one chunk.
		if text := firstChoice(resp); text != "" {
			chars = len(text)
			if !send(models.Chunk{Text: text}) {
				err = ctx.Err()
			}
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			log.Info().Err(err).Msg("Chat stream cancelled by caller")
		} else {
			log.Error().Err(err).Int("messages", callerMessages).Msg("Chat backend failed")
		}
		send(models.Chunk{Err: fmt.Errorf("%w: %v", llm.ErrGenerationFailed, err)})
		ev := models.NewEvent(models.EventChatFailed, started)
		ev.Messages = callerMessages
		ev.Chars = chars
		ev.Error = err.Error()
		s.publish(ctx, ev)
		return
	}

	log.Info().
		Int("messages", callerMessages).
		Int("chars", chars).
		Dur("duration", time.Since(started)).
		Msg("Chat reply relayed")
	ev := models.NewEvent(models.EventChatCompleted, started)
	ev.Messages = callerMessages
	ev.Chars = chars
	s.publish(ctx, ev)
}

func (s *ChatService) publish(ctx context.Context, ev models.Event) {
	publishEvent(ctx, s.publisher, ev)
}

// buildMessages prepends the persona preamble to the caller's messages.
func buildMessages(msgs []models.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(PersonaPreamble)+len(msgs))
	for _, p := range PersonaPreamble {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, p))
	}
	for _, m := range msgs {
		out = append(out, llms.TextParts(messageType(m.Role), m.Content))
	}
	return out
}

func messageType(r models.Role) llms.ChatMessageType {
	switch r {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func firstChoice(resp *llms.ContentResponse) string {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return ""
	}
	return resp.Choices[0].Content
}

// publishEvent publishes ev without letting a cancelled request context drop it.
func publishEvent(ctx context.Context, p EventPublisher, ev models.Event) {
	if p == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.PublishEvent(pctx, ev); err != nil {
		log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to publish relay event")
	}
}

// isBlank reports whether s has no visible characters.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
