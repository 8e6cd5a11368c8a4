package session

import (
	"errors"
	"fmt"

	"github.com/snappy-loop/paintchat/internal/models"
)

var (
	// ErrInvalidTransition is returned when an event is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidSetting is returned when a user selection fails validation.
	ErrInvalidSetting = errors.New("invalid setting")
)

// Mode is the name of a State, as shown to users and sent to the browser.
type Mode string

const (
	ModeStylePicking  Mode = "style_picking"
	ModeChatting      Mode = "chatting"
	ModeChatFailed    Mode = "chat_failed"
	ModeReadyForImage Mode = "ready_for_image"
	ModeImageLoading  Mode = "image_loading"
	ModeImageShown    Mode = "image_shown"
	ModeImageFailed   Mode = "image_failed"
)

// State is one node of the design flow. The set of implementations is closed.
type State interface {
	Mode() Mode
	isState()
}

type StylePicking struct{}

// Chatting is entered when a style is submitted. Streaming is false once the reply
// finished without producing the expected two-message conversation.
type Chatting struct {
	Streaming bool
}

type ChatFailed struct {
	Err error
}

type ReadyForImage struct{}

type ImageLoading struct{}

// ImageShown holds the image exactly as the relay returned it.
type ImageShown struct {
	Image models.ImageResult
}

type ImageFailed struct {
	Err error
}

func (StylePicking) Mode() Mode  { return ModeStylePicking }
func (Chatting) Mode() Mode      { return ModeChatting }
func (ChatFailed) Mode() Mode    { return ModeChatFailed }
func (ReadyForImage) Mode() Mode { return ModeReadyForImage }
func (ImageLoading) Mode() Mode  { return ModeImageLoading }
func (ImageShown) Mode() Mode    { return ModeImageShown }
func (ImageFailed) Mode() Mode   { return ModeImageFailed }

func (StylePicking) isState()  {}
func (Chatting) isState()      {}
func (ChatFailed) isState()    {}
func (ReadyForImage) isState() {}
func (ImageLoading) isState()  {}
func (ImageShown) isState()    {}
func (ImageFailed) isState()   {}

// Event drives a Transition.
type Event interface {
	eventName() string
}

type StyleSubmitted struct {
	Style string
}

// ReplyCompleted reports the message count once the reply stream ended cleanly.
type ReplyCompleted struct {
	Messages int
}

type ReplyFailed struct {
	Err error
}

type PaintingRequested struct{}

type PaintingReceived struct {
	Image models.ImageResult
}

type PaintingFailed struct {
	Err error
}

type ResetRequested struct{}

func (StyleSubmitted) eventName() string    { return "style_submitted" }
func (ReplyCompleted) eventName() string    { return "reply_completed" }
func (ReplyFailed) eventName() string       { return "reply_failed" }
func (PaintingRequested) eventName() string { return "painting_requested" }
func (PaintingReceived) eventName() string  { return "painting_received" }
func (PaintingFailed) eventName() string    { return "painting_failed" }
func (ResetRequested) eventName() string    { return "reset_requested" }

// Transition is the only place the flow changes state.
func Transition(s State, e Event) (State, error) {
	if _, ok := e.(ResetRequested); ok {
		return StylePicking{}, nil
	}

	switch st := s.(type) {
	case StylePicking:
		if _, ok := e.(StyleSubmitted); ok {
			return Chatting{Streaming: true}, nil
		}
	case Chatting:
		if !st.Streaming {
			break
		}
		switch ev := e.(type) {
		case ReplyCompleted:
			if ev.Messages == 2 {
				return ReadyForImage{}, nil
			}
			return Chatting{Streaming: false}, nil
		case ReplyFailed:
			return ChatFailed{Err: ev.Err}, nil
		}
	case ReadyForImage, ImageFailed:
		if _, ok := e.(PaintingRequested); ok {
			return ImageLoading{}, nil
		}
	case ImageLoading:
		switch ev := e.(type) {
		case PaintingReceived:
			return ImageShown{Image: ev.Image}, nil
		case PaintingFailed:
			return ImageFailed{Err: ev.Err}, nil
		}
	}

	mode := Mode("none")
	if s != nil {
		mode = s.Mode()
	}
	return s, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, e.eventName(), mode)
}
