package models

import "strings"

// Style is one entry of the painting style picker
type Style struct {
	Value string `json:"value"`
	Emoji string `json:"emoji"`
}

var styles = []Style{
	{Value: "Realism", Emoji: "🖼️"},
	{Value: "Painterly", Emoji: "🖼️"},
	{Value: "Impressionism", Emoji: "🖼️"},
	{Value: "Expressionism", Emoji: "🖼️"},
	{Value: "Fauvism", Emoji: "🖼️"},
	{Value: "Photorealism", Emoji: "🖼️"},
	{Value: "Cubism", Emoji: "🖼️"},
}

// Styles returns the style catalogue in display order. The slice is a copy.
func Styles() []Style {
	out := make([]Style, len(styles))
	copy(out, styles)
	return out
}

// LookupStyle finds a style by name, ignoring case.
func LookupStyle(name string) (Style, bool) {
	for _, s := range styles {
		if strings.EqualFold(s.Value, strings.TrimSpace(name)) {
			return s, true
		}
	}
	return Style{}, false
}
