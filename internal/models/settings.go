package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ImageSize is the requested painting size
type ImageSize string

const (
	ImageSizeSmall  ImageSize = "small"
	ImageSizeMedium ImageSize = "medium"
	ImageSizeLarge  ImageSize = "large"
)

// ParseImageSize validates s. The empty string is allowed and means "unset".
func ParseImageSize(s string) (ImageSize, error) {
	switch v := ImageSize(strings.ToLower(strings.TrimSpace(s))); v {
	case "", ImageSizeSmall, ImageSizeMedium, ImageSizeLarge:
		return v, nil
	default:
		return "", fmt.Errorf("invalid image size %q (want small, medium or large)", s)
	}
}

// Pixels maps the size to the square dimensions understood by OpenAI-compatible image APIs.
func (s ImageSize) Pixels() string {
	switch s {
	case ImageSizeSmall:
		return "256x256"
	case ImageSizeMedium:
		return "512x512"
	default:
		return "1024x1024"
	}
}

// Resolution is the requested image quality
type Resolution string

const (
	ResolutionLow    Resolution = "low"
	ResolutionMedium Resolution = "medium"
	ResolutionHigh   Resolution = "high"
)

// ParseResolution validates s. The empty string is allowed and means "unset".
func ParseResolution(s string) (Resolution, error) {
	switch v := Resolution(strings.ToLower(strings.TrimSpace(s))); v {
	case "", ResolutionLow, ResolutionMedium, ResolutionHigh:
		return v, nil
	default:
		return "", fmt.Errorf("invalid resolution %q (want low, medium or high)", s)
	}
}

// Quality maps the resolution to an OpenAI image quality value.
func (r Resolution) Quality() string {
	if r == ResolutionHigh {
		return "hd"
	}
	return "standard"
}

// Settings are the user's selections for one design session.
type Settings struct {
	Style       string     `json:"style"`
	ImageSize   ImageSize  `json:"image_size"`
	BatchSize   int        `json:"batch_size"`
	Resolution  Resolution `json:"resolution"`
	Temperature string     `json:"temperature"`
}

// DefaultSettings returns the selections a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		ImageSize:   ImageSizeMedium,
		BatchSize:   1,
		Resolution:  ResolutionMedium,
		Temperature: "0",
	}
}

// ParseBatchSize accepts 1, 2 or 3.
func ParseBatchSize(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 3 {
		return 0, fmt.Errorf("invalid batch size %q (want 1, 2 or 3)", s)
	}
	return n, nil
}

// ParseTemperature accepts a decimal string in [0,1].
func ParseTemperature(s string) (float64, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid temperature %q: %w", s, err)
	}
	if math.IsNaN(t) || t < 0 || t > 1 {
		return 0, fmt.Errorf("temperature %v out of range [0,1]", t)
	}
	return t, nil
}
