package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrUnknownProvider is returned when a configured provider name is not supported.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrGenerationFailed wraps every backend failure (transport, non-2xx, empty result).
	ErrGenerationFailed = errors.New("generation failed")
)

// maxResponseLogBytes is the max length of a backend response body to log in full (to avoid huge logs).
const maxResponseLogBytes = 8192

// httpClientForEndpoint returns an http.Client that rewrites request URLs to the given base endpoint (e.g. http://host.docker.internal:31300/gemini).
func httpClientForEndpoint(baseEndpoint string) *http.Client {
	base, err := url.Parse(baseEndpoint)
	if err != nil || base.Host == "" {
		log.Warn().Err(err).Str("endpoint", baseEndpoint).Msg("Invalid GEMINI_API_ENDPOINT, using default")
		return nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	return &http.Client{
		Transport: &endpointRoundTripper{base: base, next: http.DefaultTransport},
	}
}

// endpointRoundTripper rewrites request URLs to a custom base (scheme, host, path prefix).
type endpointRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

func (e *endpointRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = e.base.Scheme
	req2.URL.Host = e.base.Host
	req2.Host = e.base.Host
	req2.URL.Path = path.Join(e.base.Path, strings.TrimPrefix(req.URL.Path, "/"))
	return e.next.RoundTrip(req2)
}

// logResponse logs a backend response, truncating if over maxResponseLogBytes.
func logResponse(caller, raw string) {
	if len(raw) <= maxResponseLogBytes {
		log.Debug().Str("caller", caller).Str("response", raw).Msg("Backend response")
		return
	}
	log.Debug().
		Str("caller", caller).
		Str("response", raw[:maxResponseLogBytes]+"... [truncated]").
		Int("response_len", len(raw)).
		Msg("Backend response")
}

// NewChatModel builds the streaming chat backend selected by cfg.ChatProvider.
//
//   - openai: any OpenAI-compatible server at ChatBaseURL (the default points at a local proxy)
//   - googleai: Gemini through langchaingo, honoring GeminiAPIEndpoint
//   - ollama: a local Ollama server at ChatBaseURL
func NewChatModel(ctx context.Context, cfg *config.Config) (llms.Model, error) {
	var (
		model llms.Model
		err   error
	)

	switch cfg.ChatProvider {
	case "openai", "":
		opts := []openai.Option{
			openai.WithToken(cfg.ChatAPIKey),
			openai.WithModel(cfg.ChatModel),
		}
		if cfg.ChatBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ChatBaseURL))
		}
		model, err = openai.New(opts...)
	case "googleai", "gemini":
		apiKey := cfg.GeminiAPIKey
		if apiKey == "" {
			return nil, fmt.Errorf("googleai chat provider requires GEMINI_API_KEY")
		}
		opts := []googleai.Option{googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(cfg.ChatModel)}
		if cfg.GeminiAPIEndpoint != "" {
			if hc := httpClientForEndpoint(cfg.GeminiAPIEndpoint); hc != nil {
				opts = append(opts, googleai.WithHTTPClient(hc))
			}
		}
		model, err = googleai.New(ctx, opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.ChatModel)}
		if cfg.ChatBaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.ChatBaseURL))
		}
		model, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("%w: chat provider %q", ErrUnknownProvider, cfg.ChatProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.ChatProvider, err)
	}

	log.Info().
		Str("provider", cfg.ChatProvider).
		Str("model", cfg.ChatModel).
		Str("base_url", cfg.ChatBaseURL).
		Msg("Chat model initialized")

	return model, nil
}

// NewImageGenerator builds the image backend selected by cfg.ImageProvider.
func NewImageGenerator(ctx context.Context, cfg *config.Config) (ImageGenerator, error) {
	switch cfg.ImageProvider {
	case "openai", "":
		return NewOpenAIImageGenerator(cfg.ImageBaseURL, cfg.ImageAPIKey, cfg.ImageModel, nil), nil
	case "gemini":
		return NewGeminiImageGenerator(ctx, cfg.GeminiAPIKey, cfg.ImageModel, cfg.GeminiAPIEndpoint)
	case "imagen":
		return NewImagenGenerator(ctx, cfg.GeminiAPIKey, cfg.ImageModel, cfg.GeminiAPIEndpoint)
	default:
		return nil, fmt.Errorf("%w: image provider %q", ErrUnknownProvider, cfg.ImageProvider)
	}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
