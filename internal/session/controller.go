package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/models"
)

// ChatStreamer is the Completion Relay as seen by the controller.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.Chunk, error)
}

// ImageGenerator is the Image Relay as seen by the controller.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *models.ImageRequest) (*models.ImageResult, error)
}

// Controller owns one design session: the conversation, the user's selections and the flow state.
// It is safe for concurrent use; the lock is never held while waiting on a relay.
type Controller struct {
	chat   ChatStreamer
	images ImageGenerator

	mu       sync.Mutex
	state    State
	messages []models.Message
	settings models.Settings
	epoch    int // bumped by Reset; stale relay results are dropped
}

// NewController creates a controller in StylePicking with default settings.
func NewController(chat ChatStreamer, images ImageGenerator) *Controller {
	return &Controller{
		chat:     chat,
		images:   images,
		state:    StylePicking{},
		settings: models.DefaultSettings(),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns the name of the current state.
func (c *Controller) Mode() Mode {
	return c.State().Mode()
}

// Messages returns a copy of the conversation.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Settings returns the current selections.
func (c *Controller) Settings() models.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Image returns the generated image once the session reached ImageShown.
func (c *Controller) Image() (models.ImageResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	shown, ok := c.state.(ImageShown)
	return shown.Image, ok
}

// Description returns the last assistant message, the text sent to the Image Relay.
func (c *Controller) Description() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAssistant()
}

// CanPickStyle reports whether the style picker should be offered.
func (c *Controller) CanPickStyle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, picking := c.state.(StylePicking)
	return picking && len(c.messages) == 0
}

// CanGenerate reports whether "generate painting" should be offered.
func (c *Controller) CanGenerate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canGenerate()
}

func (c *Controller) canGenerate() bool {
	switch c.state.(type) {
	case ReadyForImage, ImageFailed:
		return len(c.messages) == 2
	default:
		return false
	}
}

// SelectStyle picks a style from the catalogue. Only allowed before the conversation starts.
func (c *Controller) SelectStyle(name string) error {
	style, ok := models.LookupStyle(name)
	if !ok {
		return fmt.Errorf("%w: unknown style %q", ErrInvalidSetting, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, picking := c.state.(StylePicking); !picking || len(c.messages) > 0 {
		return fmt.Errorf("%w: style can only be chosen before the conversation starts", ErrInvalidTransition)
	}
	c.settings.Style = style.Value
	return nil
}

// SetImageSize sets small, medium or large.
func (c *Controller) SetImageSize(s string) error {
	size, err := models.ParseImageSize(s)
	if err != nil || size == "" {
		return fmt.Errorf("%w: image size %q", ErrInvalidSetting, s)
	}
	c.mu.Lock()
	c.settings.ImageSize = size
	c.mu.Unlock()
	return nil
}

// SetBatchSize sets 1, 2 or 3.
func (c *Controller) SetBatchSize(s string) error {
	n, err := models.ParseBatchSize(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	c.mu.Lock()
	c.settings.BatchSize = n
	c.mu.Unlock()
	return nil
}

// SetResolution sets low, medium or high.
func (c *Controller) SetResolution(s string) error {
	res, err := models.ParseResolution(s)
	if err != nil || res == "" {
		return fmt.Errorf("%w: resolution %q", ErrInvalidSetting, s)
	}
	c.mu.Lock()
	c.settings.Resolution = res
	c.mu.Unlock()
	return nil
}

// SetTemperature sets the sampling temperature, a decimal string in [0,1].
func (c *Controller) SetTemperature(s string) error {
	if _, err := models.ParseTemperature(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	c.mu.Lock()
	c.settings.Temperature = strings.TrimSpace(s)
	c.mu.Unlock()
	return nil
}

// DesignPainting submits the selected style as the first user message and streams the reply
// into the conversation. onChunk, if set, sees every chunk in arrival order.
// On failure the partial reply is kept and the session moves to ChatFailed.
func (c *Controller) DesignPainting(ctx context.Context, onChunk func(string)) error {
	c.mu.Lock()
	style := c.settings.Style
	if style == "" {
		c.mu.Unlock()
		return fmt.Errorf("%w: no style selected", ErrInvalidSetting)
	}
	next, err := Transition(c.state, StyleSubmitted{Style: style})
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.messages = append(c.messages, models.NewMessage(models.RoleUser, style))
	req := &models.ChatRequest{Messages: c.copyMessages()}
	if t, err := models.ParseTemperature(c.settings.Temperature); err == nil {
		req.Temperature = &t
	}
	epoch := c.epoch
	c.mu.Unlock()

	log.Debug().Str("style", style).Msg("Submitting style")

	stream, err := c.chat.StreamChat(ctx, req)
	if err != nil {
		return c.finishReply(epoch, err)
	}

	var streamErr error
	started := false
	for chunk := range stream {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			continue
		}
		if !started {
			c.messages = append(c.messages, models.NewMessage(models.RoleAssistant, ""))
			started = true
		}
		c.messages[len(c.messages)-1].Content += chunk.Text
		c.mu.Unlock()
		if onChunk != nil {
			onChunk(chunk.Text)
		}
	}
	if streamErr == nil && ctx.Err() != nil {
		streamErr = ctx.Err()
	}
	return c.finishReply(epoch, streamErr)
}

func (c *Controller) finishReply(epoch int, streamErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return errors.Join(streamErr, fmt.Errorf("%w: session was reset during the reply", ErrInvalidTransition))
	}

	var ev Event = ReplyCompleted{Messages: len(c.messages)}
	if streamErr != nil {
		ev = ReplyFailed{Err: streamErr}
	}
	next, err := Transition(c.state, ev)
	if err != nil {
		return errors.Join(streamErr, err)
	}
	c.state = next
	if streamErr != nil {
		log.Warn().Err(streamErr).Int("messages", len(c.messages)).Msg("Reply failed")
		return streamErr
	}
	return nil
}

// GeneratePainting sends the last assistant message to the Image Relay and stores the result.
// Allowed from ReadyForImage and, as a retry, from ImageFailed.
func (c *Controller) GeneratePainting(ctx context.Context) (models.ImageResult, error) {
	c.mu.Lock()
	if !c.canGenerate() {
		mode, n := c.state.Mode(), len(c.messages)
		c.mu.Unlock()
		return models.ImageResult{}, fmt.Errorf("%w: generate requested in %s with %d messages", ErrInvalidTransition, mode, n)
	}
	next, err := Transition(c.state, PaintingRequested{})
	if err != nil {
		c.mu.Unlock()
		return models.ImageResult{}, err
	}
	c.state = next
	req := &models.ImageRequest{
		Message:    c.lastAssistant(),
		Size:       c.settings.ImageSize,
		Resolution: c.settings.Resolution,
	}
	epoch := c.epoch
	c.mu.Unlock()

	res, genErr := c.images.GenerateImage(ctx, req)
	if genErr == nil && res == nil {
		genErr = errors.New("image relay returned no image")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return models.ImageResult{}, errors.Join(genErr, fmt.Errorf("%w: session was reset during generation", ErrInvalidTransition))
	}
	var ev Event
	if genErr != nil {
		ev = PaintingFailed{Err: genErr}
	} else {
		ev = PaintingReceived{Image: *res}
	}
	if next, err = Transition(c.state, ev); err != nil {
		return models.ImageResult{}, errors.Join(genErr, err)
	}
	c.state = next
	if genErr != nil {
		log.Warn().Err(genErr).Msg("Painting failed")
		return models.ImageResult{}, genErr
	}
	return *res, nil
}

// Reset clears the conversation, the selections and any image.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, _ = Transition(c.state, ResetRequested{})
	c.epoch++
	c.messages = nil
	c.settings = models.DefaultSettings()
}

func (c *Controller) copyMessages() []models.Message {
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Controller) lastAssistant() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == models.RoleAssistant {
			return c.messages[i].Content
		}
	}
	return ""
}
