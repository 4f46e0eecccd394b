// Package generator turns prompts into story text.
package generator

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConfigured is returned by Disabled and when no API key was supplied.
var ErrNotConfigured = errors.New("story generator not configured")

// ErrEmptyResponse means the model returned no text.
var ErrEmptyResponse = errors.New("generator returned an empty response")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Disabled is used when no model is configured. Every call fails with ErrNotConfigured.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) { return "", ErrNotConfigured }
func (Disabled) Model() string                                    { return "" }

// SplitTitle separates a leading "Title: ..." or markdown heading line from the story body.
// Text without one is returned unchanged with an empty title.
func SplitTitle(text string) (title, body string) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	line := strings.TrimSpace(first)

	switch {
	case strings.HasPrefix(strings.ToLower(line), "title:"):
		title = strings.TrimSpace(line[len("title:"):])
	case strings.HasPrefix(line, "#"):
		title = strings.TrimSpace(strings.TrimLeft(line, "#"))
	default:
		return "", text
	}
	title = strings.Trim(title, `*"`)
	return title, strings.TrimSpace(rest)
}
