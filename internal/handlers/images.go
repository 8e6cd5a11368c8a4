package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/models"
	"github.com/snappy-loop/paintchat/internal/services"
)

// ImageMimeTypeHeader carries the MIME type of the image returned by POST /api/images.
const ImageMimeTypeHeader = "X-Image-Mime-Type"

// Images handles POST /api/images. The body of a 200 is the encoded image as a JSON string.
func (h *Handler) Images(w http.ResponseWriter, r *http.Request) {
	var req models.ImageRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.images.GenerateImage(r.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to generate image")
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set(ImageMimeTypeHeader, res.MimeType)
	writeJSON(w, http.StatusOK, res.Image)
}
