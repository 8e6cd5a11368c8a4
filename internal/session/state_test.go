package session

import (
	"errors"
	"testing"

	"github.com/snappy-loop/paintchat/internal/models"
)

func TestTransition_Table(t *testing.T) {
	boom := errors.New("boom")
	img := models.ImageResult{Image: "abc=", MimeType: "image/png"}

	tests := []struct {
		name    string
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{"style submitted", StylePicking{}, StyleSubmitted{Style: "Cubism"}, Chatting{Streaming: true}, false},
		{"reply completes a turn", Chatting{Streaming: true}, ReplyCompleted{Messages: 2}, ReadyForImage{}, false},
		{"reply completes without assistant text", Chatting{Streaming: true}, ReplyCompleted{Messages: 1}, Chatting{Streaming: false}, false},
		{"reply fails", Chatting{Streaming: true}, ReplyFailed{Err: boom}, ChatFailed{Err: boom}, false},
		{"generate", ReadyForImage{}, PaintingRequested{}, ImageLoading{}, false},
		{"retry after failure", ImageFailed{Err: boom}, PaintingRequested{}, ImageLoading{}, false},
		{"image received", ImageLoading{}, PaintingReceived{Image: img}, ImageShown{Image: img}, false},
		{"image failed", ImageLoading{}, PaintingFailed{Err: boom}, ImageFailed{Err: boom}, false},

		{"reset from picking", StylePicking{}, ResetRequested{}, StylePicking{}, false},
		{"reset from chatting", Chatting{Streaming: true}, ResetRequested{}, StylePicking{}, false},
		{"reset from shown", ImageShown{Image: img}, ResetRequested{}, StylePicking{}, false},
		{"reset from chat failure", ChatFailed{Err: boom}, ResetRequested{}, StylePicking{}, false},

		{"style twice", Chatting{Streaming: true}, StyleSubmitted{Style: "Cubism"}, Chatting{Streaming: true}, true},
		{"generate while streaming", Chatting{Streaming: true}, PaintingRequested{}, Chatting{Streaming: true}, true},
		{"generate before chat", StylePicking{}, PaintingRequested{}, StylePicking{}, true},
		{"generate while loading", ImageLoading{}, PaintingRequested{}, ImageLoading{}, true},
		{"generate again after shown", ImageShown{Image: img}, PaintingRequested{}, ImageShown{Image: img}, true},
		{"reply after stream ended", Chatting{Streaming: false}, ReplyCompleted{Messages: 2}, Chatting{Streaming: false}, true},
		{"image without request", ReadyForImage{}, PaintingReceived{Image: img}, ReadyForImage{}, true},
		{"retry chat failure", ChatFailed{Err: boom}, StyleSubmitted{Style: "Cubism"}, ChatFailed{Err: boom}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Transition(%#v, %#v) = %#v, want %#v", tt.from, tt.event, got, tt.want)
			}
		})
	}
}

func TestModes(t *testing.T) {
	tests := []struct {
		state State
		want  Mode
	}{
		{StylePicking{}, ModeStylePicking},
		{Chatting{Streaming: true}, ModeChatting},
		{ChatFailed{}, ModeChatFailed},
		{ReadyForImage{}, ModeReadyForImage},
		{ImageLoading{}, ModeImageLoading},
		{ImageShown{}, ModeImageShown},
		{ImageFailed{}, ModeImageFailed},
	}
	for _, tt := range tests {
		if got := tt.state.Mode(); got != tt.want {
			t.Errorf("%T.Mode() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
