package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/snappy-loop/paintchat/internal/models"
)

// ErrRelayFailed is returned for any non-2xx relay response or broken stream.
var ErrRelayFailed = errors.New("relay failed")

const (
	imageMimeTypeHeader = "X-Image-Mime-Type"
	streamBufferSize    = 4096
)

// Client calls the paintchat HTTP relays.
type Client struct {
	baseURL string
	httpCli *http.Client
}

// NewClient creates a client for the server at baseURL. httpCli may be nil.
// The client must not carry an overall timeout: replies stream for as long as the backend talks.
func NewClient(baseURL string, httpCli *http.Client) *Client {
	if httpCli == nil {
		httpCli = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpCli: httpCli,
	}
}

// StreamChat posts the conversation to /api/chat and returns the reply as a stream.
// Errors before the stream starts are returned directly; a broken stream ends with an Err chunk.
func (c *Client) StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.Chunk, error) {
	resp, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}

	out := make(chan models.Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		buf := make([]byte, streamBufferSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				select {
				case out <- models.Chunk{Text: string(buf[:n])}:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case out <- models.Chunk{Err: fmt.Errorf("%w: chat stream interrupted: %v", ErrRelayFailed, err)}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return out, nil
}

// GenerateImage posts a description to /api/images and returns the payload as received.
func (c *Client) GenerateImage(ctx context.Context, req *models.ImageRequest) (*models.ImageResult, error) {
	resp, err := c.post(ctx, "/api/images", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode image response: %v", ErrRelayFailed, err)
	}
	mimeType := resp.Header.Get(imageMimeTypeHeader)
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &models.ImageResult{Image: payload, MimeType: mimeType}, nil
}

// Styles fetches the style catalogue.
func (c *Client) Styles(ctx context.Context) ([]models.Style, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/styles", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpCli.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var styles []models.Style
	if err := json.NewDecoder(resp.Body).Decode(&styles); err != nil {
		return nil, fmt.Errorf("%w: decode styles: %v", ErrRelayFailed, err)
	}
	return styles, nil
}

// post sends a JSON body and returns the response when it is a 200. The caller closes the body.
func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpCli.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er models.ErrorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		return fmt.Errorf("%w: %s: %s", ErrRelayFailed, resp.Status, er.Error)
	}
	return fmt.Errorf("%w: %s", ErrRelayFailed, resp.Status)
}
