package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/snappy-loop/paintchat/internal/apiclient"
	"github.com/snappy-loop/paintchat/internal/config"
	"github.com/snappy-loop/paintchat/internal/handlers"
	"github.com/snappy-loop/paintchat/internal/kafka"
	"github.com/snappy-loop/paintchat/internal/llm"
	"github.com/snappy-loop/paintchat/internal/models"
	"github.com/snappy-loop/paintchat/internal/services"
)

func init() {
	color.NoColor = true
}

type scriptedModel struct {
	chunks []string
	err    error
	temps  []float64
}

func (m *scriptedModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.temps = append(m.temps, opts.Temperature)
	for _, c := range m.chunks {
		if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
			return nil, err
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: strings.Join(m.chunks, "")}}}, nil
}

type scriptedImages struct {
	img     *llm.Image
	err     error
	prompts []string
}

func (g *scriptedImages) GenerateImage(_ context.Context, prompt string, _ llm.ImageOptions) (*llm.Image, error) {
	g.prompts = append(g.prompts, prompt)
	return g.img, g.err
}

// newTestServer runs the real relays over scripted backends.
func newTestServer(t *testing.T, model *scriptedModel, images *scriptedImages) *httptest.Server {
	t.Helper()
	h := handlers.NewHandler(services.NewChatService(model, nil), services.NewImageService(images, nil), 1<<20)
	r := mux.NewRouter()
	r.HandleFunc("/api/styles", h.Styles).Methods(http.MethodGet)
	r.HandleFunc("/api/chat", h.Chat).Methods(http.MethodPost)
	r.HandleFunc("/api/images", h.Images).Methods(http.MethodPost)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(events eventSource) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &App{
		Out:    out,
		Err:    out,
		Config: &config.Config{ServerURL: "http://127.0.0.1:1", KafkaTopicEvents: "paintchat.events.v1", KafkaConsumerGroup: "test"},
		NewRelay: func(serverURL string) relay {
			return apiclient.NewClient(serverURL, nil)
		},
		RunEvents: events,
	}, out
}

func execute(app *App, args ...string) error {
	cmd := newRootCmd(app)
	cmd.SetArgs(args)
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)
	return cmd.Execute()
}

func TestStylesCommand(t *testing.T) {
	srv := newTestServer(t, &scriptedModel{}, &scriptedImages{})
	app, out := newTestApp(nil)

	require.NoError(t, execute(app, "styles", "--server", srv.URL))
	for _, s := range models.Styles() {
		assert.Contains(t, out.String(), s.Value)
	}
}

func TestDesignCommand_WritesPainting(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	model := &scriptedModel{chunks: []string{"Style: Cubism\n", "Title: Fractured Dawn\n", "Prompt: planes of light"}}
	images := &scriptedImages{img: &llm.Image{Data: base64.StdEncoding.EncodeToString(png), MimeType: "image/png"}}
	srv := newTestServer(t, model, images)
	app, out := newTestApp(nil)
	path := filepath.Join(t.TempDir(), "cubism.png")

	err := execute(app, "design", "--server", srv.URL, "--style", "cubism", "--temperature", "0.7", "--out", path)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Designing a Cubism painting")
	assert.Contains(t, out.String(), "Title: Fractured Dawn")
	assert.Contains(t, out.String(), "Saved: "+path)

	require.Len(t, model.temps, 1)
	assert.InDelta(t, 0.7, model.temps[0], 1e-9)
	require.Len(t, images.prompts, 1)
	assert.Equal(t, "Style: Cubism\nTitle: Fractured Dawn\nPrompt: planes of light", images.prompts[0])

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, png, written)
}

func TestDesignCommand_NoImage(t *testing.T) {
	model := &scriptedModel{chunks: []string{"Title: Blue Guitar"}}
	images := &scriptedImages{}
	srv := newTestServer(t, model, images)
	app, out := newTestApp(nil)

	require.NoError(t, execute(app, "design", "--server", srv.URL, "--style", "Fauvism", "--no-image"))
	assert.Contains(t, out.String(), "Title: Blue Guitar")
	assert.Empty(t, images.prompts)
}

func TestDesignCommand_Failures(t *testing.T) {
	tests := []struct {
		name    string
		model   *scriptedModel
		images  *scriptedImages
		args    []string
		wantErr string
	}{
		{
			name:    "unknown style",
			model:   &scriptedModel{},
			images:  &scriptedImages{},
			args:    []string{"--style", "Brutalism"},
			wantErr: "unknown style",
		},
		{
			name:    "temperature out of range",
			model:   &scriptedModel{},
			images:  &scriptedImages{},
			args:    []string{"--style", "Cubism", "--temperature", "1.5"},
			wantErr: "out of range",
		},
		{
			name:    "bad batch size",
			model:   &scriptedModel{},
			images:  &scriptedImages{},
			args:    []string{"--style", "Cubism", "--batch", "4"},
			wantErr: "batch size",
		},
		{
			name:    "chat backend down",
			model:   &scriptedModel{err: errors.New("connection refused")},
			images:  &scriptedImages{},
			args:    []string{"--style", "Cubism"},
			wantErr: "design failed",
		},
		{
			name:    "image backend down",
			model:   &scriptedModel{chunks: []string{"Title: Dusk"}},
			images:  &scriptedImages{err: errors.New("quota exceeded")},
			args:    []string{"--style", "Cubism", "--out", filepath.Join(os.TempDir(), "unused.png")},
			wantErr: "painting failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.model, tt.images)
			app, _ := newTestApp(nil)
			args := append([]string{"design", "--server", srv.URL}, tt.args...)
			err := execute(app, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDesignCommand_RequiresStyle(t *testing.T) {
	app, _ := newTestApp(nil)
	err := execute(app, "design")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "style")
}

func TestEventsCommand_PrintsEvents(t *testing.T) {
	var gotBrokers []string
	var gotFromStart bool
	app, out := newTestApp(func(ctx context.Context, brokers []string, topic, group string, fromStart bool, handler kafka.EventHandler) error {
		gotBrokers, gotFromStart = brokers, fromStart
		ok := models.NewEvent(models.EventImageGenerated, time.Now().Add(-2*time.Second))
		ok.MimeType, ok.ImageBytes = "image/png", 2048
		failed := models.NewEvent(models.EventChatFailed, time.Now())
		failed.Error = "generation failed: timeout"
		for _, ev := range []models.Event{ok, failed} {
			ev := ev
			if err := handler.HandleEvent(ctx, &ev); err != nil {
				return err
			}
		}
		return nil
	})

	require.NoError(t, execute(app, "events", "--brokers", "k1:9092,k2:9092", "--from-start"))
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, gotBrokers)
	assert.True(t, gotFromStart)
	assert.Contains(t, out.String(), "image.generated")
	assert.Contains(t, out.String(), "mime=image/png bytes=2048")
	assert.Contains(t, out.String(), "error=generation failed: timeout")
}

func TestEventsCommand_RequiresBrokers(t *testing.T) {
	app, _ := newTestApp(func(context.Context, []string, string, string, bool, kafka.EventHandler) error {
		t.Fatal("consumer should not start")
		return nil
	})
	err := execute(app, "events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Kafka brokers")
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".jpg", extensionFor("image/jpeg"))
	assert.Equal(t, ".webp", extensionFor("image/webp"))
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".png", extensionFor(""))
}
