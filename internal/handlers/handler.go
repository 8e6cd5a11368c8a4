package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/models"
)

// chatService is the Completion Relay used by the chat endpoints.
type chatService interface {
	StreamChat(ctx context.Context, req *models.ChatRequest) (<-chan models.Chunk, error)
}

// imageService is the Image Relay used by the images endpoint.
type imageService interface {
	GenerateImage(ctx context.Context, req *models.ImageRequest) (*models.ImageResult, error)
}

// Handler handles HTTP requests
type Handler struct {
	chat            chatService
	images          imageService
	maxRequestBytes int64
}

// NewHandler creates a new Handler. maxRequestBytes <= 0 disables the body size limit.
func NewHandler(chat chatService, images imageService, maxRequestBytes int64) *Handler {
	return &Handler{
		chat:            chat,
		images:          images,
		maxRequestBytes: maxRequestBytes,
	}
}

// decodeBody decodes a size-limited JSON body into v. On failure it writes the error response
// and returns false.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if h.maxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Styles handles GET /api/styles
func (h *Handler) Styles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Styles())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
