package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/models"
)

const defaultOpenAIImageModel = "dall-e-3"

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type openAIImageResponse struct {
	Data  []openAIImageData `json:"data"`
	Error *openAIError      `json:"error,omitempty"`
}

type openAIImageData struct {
	B64JSON string `json:"b64_json"`
}

type openAIError struct {
	Message string `json:"message"`
}

// OpenAIImageGenerator calls an OpenAI-compatible /images/generations endpoint and
// returns the b64_json payload as received.
type OpenAIImageGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIImageGenerator creates the generator. httpClient may be nil; the default client has no timeout.
func NewOpenAIImageGenerator(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIImageGenerator {
	if model == "" {
		model = defaultOpenAIImageModel
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIImageGenerator{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

// GenerateImage requests one image. Size and resolution hints are mapped to what the model accepts.
func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt string, opts ImageOptions) (*Image, error) {
	apiReq := openAIImageRequest{
		Model:          g.model,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: "b64_json",
	}
	apiReq.Size, apiReq.Quality = imageHints(g.model, opts)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal image request: %w", err)
	}

	url := g.baseURL + "/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	log.Debug().Str("url", url).Str("model", g.model).Str("prompt", preview(prompt, 50)).Msg("Generating image")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGenerationFailed, err)
	}

	var apiResp openAIImageResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logResponse("OpenAIImageGenerator", string(raw))
		if json.Unmarshal(raw, &apiResp) == nil && apiResp.Error != nil && apiResp.Error.Message != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrGenerationFailed, resp.StatusCode, apiResp.Error.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrGenerationFailed, err)
	}
	if len(apiResp.Data) == 0 || apiResp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: response carried no image", ErrGenerationFailed)
	}

	log.Info().Int("image_b64_len", len(apiResp.Data[0].B64JSON)).Str("model", g.model).Msg("Image generated")

	return &Image{
		Data:     apiResp.Data[0].B64JSON,
		MimeType: "image/png",
		Model:    g.model,
	}, nil
}

// imageHints maps the size and resolution hints to request fields. dall-e-3 only draws squares at
// 1024x1024 and dall-e-2 has no quality setting; other OpenAI-compatible servers get both as is.
func imageHints(model string, opts ImageOptions) (size, quality string) {
	m := strings.ToLower(model)
	if opts.Size != "" {
		size = opts.Size.Pixels()
		if strings.HasPrefix(m, "dall-e-3") {
			size = models.ImageSizeLarge.Pixels()
		}
	}
	if opts.Resolution != "" && !strings.HasPrefix(m, "dall-e-2") {
		quality = opts.Resolution.Quality()
	}
	return size, quality
}
