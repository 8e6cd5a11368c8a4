package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/models"
	"github.com/snappy-loop/paintchat/internal/services"
)

// Chat handles POST /api/chat and relays the completion as a chunked text/plain stream.
// A backend failure before the first chunk is a 502; after it the response is aborted so
// the client sees a truncated body instead of a clean end.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	stream, err := h.chat.StreamChat(r.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to start chat stream")
		writeJSONError(w, http.StatusBadGateway, "chat backend unavailable")
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("Could not clear write deadline for chat stream")
	}

	started := false
	for chunk := range stream {
		if chunk.Err != nil {
			if !started {
				writeJSONError(w, http.StatusBadGateway, chunk.Err.Error())
				return
			}
			log.Warn().Err(chunk.Err).Msg("Chat stream failed mid-response, aborting")
			panic(http.ErrAbortHandler)
		}
		if !started {
			startTextStream(w)
			started = true
		}
		if _, err := io.WriteString(w, chunk.Text); err != nil {
			log.Debug().Err(err).Msg("Chat client went away")
			return
		}
		if err := rc.Flush(); err != nil {
			log.Debug().Err(err).Msg("Chat stream flush failed")
		}
	}

	if !started {
		startTextStream(w)
	}
}

func startTextStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
}
