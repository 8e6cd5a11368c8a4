package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/llm"
	"github.com/snappy-loop/paintchat/internal/models"
)

// ImageService forwards a painting description to the image backend.
type ImageService struct {
	generator imageGenerator
	publisher EventPublisher
}

// NewImageService creates an ImageService. publisher may be nil.
func NewImageService(generator imageGenerator, publisher EventPublisher) *ImageService {
	return &ImageService{generator: generator, publisher: publisher}
}

// ValidateImageRequest checks the description and normalizes the optional hints in place.
func ValidateImageRequest(req *models.ImageRequest) error {
	if req == nil || isBlank(req.Message) {
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	size, err := models.ParseImageSize(string(req.Size))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	res, err := models.ParseResolution(string(req.Resolution))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Size, req.Resolution = size, res
	return nil
}

// GenerateImage issues exactly one backend request and returns its payload unmodified.
func (s *ImageService) GenerateImage(ctx context.Context, req *models.ImageRequest) (*models.ImageResult, error) {
	if err := ValidateImageRequest(req); err != nil {
		return nil, err
	}

	started := time.Now()
	img, err := s.generator.GenerateImage(ctx, req.Message, llm.ImageOptions{
		Size:       req.Size,
		Resolution: req.Resolution,
	})
	if err == nil && (img == nil || img.Data == "") {
		err = errors.New("backend returned an empty image")
	}
	if err != nil {
		if !errors.Is(err, llm.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %v", llm.ErrGenerationFailed, err)
		}
		log.Error().Err(err).Int("description_len", len(req.Message)).Msg("Image backend failed")
		ev := models.NewEvent(models.EventImageFailed, started)
		ev.Error = err.Error()
		publishEvent(ctx, s.publisher, ev)
		return nil, err
	}

	log.Info().
		Str("mime_type", img.MimeType).
		Str("model", img.Model).
		Int("image_b64_len", len(img.Data)).
		Dur("duration", time.Since(started)).
		Msg("Image relayed")
	ev := models.NewEvent(models.EventImageGenerated, started)
	ev.MimeType = img.MimeType
	ev.ImageBytes = len(img.Data)
	publishEvent(ctx, s.publisher, ev)

	return &models.ImageResult{Image: img.Data, MimeType: img.MimeType}, nil
}
