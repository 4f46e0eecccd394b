package generator

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantTitle string
		wantBody  string
	}{
		{name: "title prefix", in: "Title: The Owl's Riddle\n\nOnce upon a time.", wantTitle: "The Owl's Riddle", wantBody: "Once upon a time."},
		{name: "bold title", in: "**Title: Moonlight**\nText", wantTitle: "", wantBody: "**Title: Moonlight**\nText"},
		{name: "quoted title", in: "title: \"Moonlight\"\nText", wantTitle: "Moonlight", wantBody: "Text"},
		{name: "heading", in: "## The Harbor\nWaves.", wantTitle: "The Harbor", wantBody: "Waves."},
		{name: "no title", in: "  Once upon a time.  ", wantTitle: "", wantBody: "Once upon a time."},
		{name: "title only", in: "Title: Alone", wantTitle: "Alone", wantBody: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := SplitTitle(tt.in)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestDisabled(t *testing.T) {
	var g Generator = Disabled{}
	_, err := g.Generate(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "gemini-2.5-flash", zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
