package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const defaultImagenModel = "imagen-4.0-generate-001"

// ImagenGenerator generates images with Imagen through the unified genai SDK.
type ImagenGenerator struct {
	client *genai.Client
	model  string
}

// NewImagenGenerator creates an Imagen generator against the Gemini API backend.
func NewImagenGenerator(ctx context.Context, apiKey, model, apiEndpoint string) (*ImagenGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("imagen image provider requires GEMINI_API_KEY")
	}
	if model == "" {
		model = defaultImagenModel
	}

	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if apiEndpoint != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: apiEndpoint}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init unified genai client: %w", err)
	}

	log.Info().Str("model", model).Str("api_endpoint", apiEndpoint).Msg("Imagen generator initialized")
	return &ImagenGenerator{client: client, model: model}, nil
}

// GenerateImage requests a single square JPEG. Size and resolution hints are not forwarded.
func (g *ImagenGenerator) GenerateImage(ctx context.Context, prompt string, _ ImageOptions) (*Image, error) {
	log.Debug().Str("prompt", preview(prompt, 50)).Str("model", g.model).Msg("Generating image")

	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
		AspectRatio:    "1:1",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: imagen: %v", ErrGenerationFailed, err)
	}

	for _, gen := range resp.GeneratedImages {
		if gen == nil || gen.Image == nil || len(gen.Image.ImageBytes) == 0 {
			continue
		}
		mimeType := gen.Image.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		log.Info().
			Int("image_size_bytes", len(gen.Image.ImageBytes)).
			Str("mime_type", mimeType).
			Str("model", g.model).
			Msg("Imagen image received")
		return &Image{
			Data:     base64.StdEncoding.EncodeToString(gen.Image.ImageBytes),
			MimeType: mimeType,
			Model:    g.model,
		}, nil
	}

	return nil, fmt.Errorf("%w: imagen returned no images", ErrGenerationFailed)
}
