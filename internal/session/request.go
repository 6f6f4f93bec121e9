package session

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Style enumerates supported video presentation styles.
type Style string

const (
	StyleProfessional  Style = "professional"
	StyleCasual        Style = "casual"
	StyleEducational   Style = "educational"
	StyleEntertainment Style = "entertainment"
	StyleDocumentary   Style = "documentary"
)

// Quality enumerates output quality presets.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra"
)

const (
	minPromptLength = 10
	maxPromptLength = 2000
	minDuration     = 10
	maxDuration     = 600
)

var validStyles = map[Style]struct{}{
	StyleProfessional:  {},
	StyleCasual:        {},
	StyleEducational:   {},
	StyleEntertainment: {},
	StyleDocumentary:   {},
}

var validQualities = map[Quality]struct{}{
	QualityLow:    {},
	QualityMedium: {},
	QualityHigh:   {},
	QualityUltra:  {},
}

// Request is the immutable input describing a video generation job.
// Validated at construction; invalid requests are never stored.
type Request struct {
	Prompt          string  `json:"prompt"`
	DurationSeconds int     `json:"duration_preference"`
	Style           Style   `json:"style"`
	Voice           string  `json:"voice_preference"`
	Quality         Quality `json:"quality"`
}

// NewRequest builds a request with default preferences for the given prompt.
func NewRequest(prompt string) Request {
	return Request{
		Prompt:          prompt,
		DurationSeconds: 60,
		Style:           StyleProfessional,
		Voice:           "neutral",
		Quality:         QualityHigh,
	}
}

// Normalize trims and unicode-normalizes the prompt and lowercases enums.
func (r *Request) Normalize() {
	r.Prompt = strings.TrimSpace(norm.NFC.String(r.Prompt))
	r.Style = Style(strings.ToLower(strings.TrimSpace(string(r.Style))))
	r.Quality = Quality(strings.ToLower(strings.TrimSpace(string(r.Quality))))
	r.Voice = strings.TrimSpace(r.Voice)
	if r.Style == "" {
		r.Style = StyleProfessional
	}
	if r.Quality == "" {
		r.Quality = QualityHigh
	}
	if r.Voice == "" {
		r.Voice = "neutral"
	}
	if r.DurationSeconds == 0 {
		r.DurationSeconds = 60
	}
}

// Validate checks the request bounds. Callers should Normalize first.
func (r Request) Validate() error {
	prompt := strings.TrimSpace(r.Prompt)
	if prompt == "" {
		return fmt.Errorf("prompt must not be blank")
	}
	if len(prompt) < minPromptLength || len(prompt) > maxPromptLength {
		return fmt.Errorf("prompt length %d outside range %d-%d", len(prompt), minPromptLength, maxPromptLength)
	}
	if r.DurationSeconds < minDuration || r.DurationSeconds > maxDuration {
		return fmt.Errorf("duration %ds outside range %d-%ds", r.DurationSeconds, minDuration, maxDuration)
	}
	if _, ok := validStyles[r.Style]; !ok {
		return fmt.Errorf("unknown style %q", r.Style)
	}
	if _, ok := validQualities[r.Quality]; !ok {
		return fmt.Errorf("unknown quality %q", r.Quality)
	}
	return nil
}
