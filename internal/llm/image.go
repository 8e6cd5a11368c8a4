package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"reflect"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/models"
	"google.golang.org/api/option"
)

const defaultGeminiImageModel = "gemini-2.5-flash-image"

// Image is a generated image. Data is base64 text and is never re-encoded downstream.
type Image struct {
	Data     string
	MimeType string
	Model    string
}

// ImageOptions are optional hints forwarded to the backend.
type ImageOptions struct {
	Size       models.ImageSize
	Resolution models.Resolution
}

// ImageGenerator turns a painting description into an image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, opts ImageOptions) (*Image, error)
}

// GeminiImageGenerator generates images with Gemini using strict IMAGE modality.
type GeminiImageGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiImageGenerator creates a Gemini image generator.
// apiEndpoint: optional Gemini API base URL; when set, all calls use this endpoint.
func NewGeminiImageGenerator(ctx context.Context, apiKey, model, apiEndpoint string) (*GeminiImageGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini image provider requires GEMINI_API_KEY")
	}
	if model == "" {
		model = defaultGeminiImageModel
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(apiEndpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}

	log.Info().Str("model", model).Str("api_endpoint", apiEndpoint).Msg("Gemini image generator initialized")
	return &GeminiImageGenerator{client: client, model: model}, nil
}

// GenerateImage asks Gemini for an image and returns the first blob it sends back.
// Size and resolution have no Gemini equivalent and are ignored.
func (g *GeminiImageGenerator) GenerateImage(ctx context.Context, prompt string, _ ImageOptions) (*Image, error) {
	log.Debug().Str("prompt", preview(prompt, 50)).Str("model", g.model).Msg("Generating image")

	model := g.client.GenerativeModel(g.model)
	setResponseModality(model, []string{"IMAGE"})

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", ErrGenerationFailed, err)
	}

	logResponse("GeminiImageGenerator", fmt.Sprintf("candidates=%d", len(resp.Candidates)))
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			blob, ok := part.(genai.Blob)
			if !ok || len(blob.Data) == 0 {
				continue
			}
			mimeType := blob.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			log.Info().
				Int("image_size_bytes", len(blob.Data)).
				Str("mime_type", mimeType).
				Str("model", g.model).
				Msg("Gemini image received")
			return &Image{
				Data:     base64.StdEncoding.EncodeToString(blob.Data),
				MimeType: mimeType,
				Model:    g.model,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: no image blob in gemini response", ErrGenerationFailed)
}

// setResponseModality sets model.ResponseModality when the genai SDK exposes it.
// Uses reflection so it no-ops on SDKs that don't have the field.
func setResponseModality(model *genai.GenerativeModel, modalities []string) {
	v := reflect.ValueOf(model).Elem()
	f := v.FieldByName("ResponseModality")
	if !f.IsValid() || !f.CanSet() {
		log.Debug().Msg("ResponseModality not available on GenerativeModel")
		return
	}
	if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String {
		f.Set(reflect.ValueOf(modalities))
	}
}
