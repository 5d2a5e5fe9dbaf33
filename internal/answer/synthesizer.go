package answer

import (
	"context"
	"strings"

	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/logger"
)

// Apology is returned to the user when the completion capability fails.
// A provider outage degrades one turn instead of crashing the session.
const Apology = "Sorry, something went wrong while generating the answer. Please try again."

// Synthesizer turns an assembled prompt into answer text through the
// completion capability.
type Synthesizer struct {
	completer   core.Completer
	model       string
	maxTokens   int
	temperature float32
}

// NewSynthesizer creates a Synthesizer. model is only used for diagnostics
// when the completer fails.
func NewSynthesizer(completer core.Completer, model string, maxTokens int, temperature float32) *Synthesizer {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Synthesizer{
		completer:   completer,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Generate invokes the completion capability and returns the trimmed answer
// text. Provider failures are logged with the model name and converted into
// the fixed apology; they never propagate to the caller.
func (s *Synthesizer) Generate(ctx context.Context, prompt string) string {
	text, err := s.completer.Complete(ctx, prompt, s.maxTokens, s.temperature)
	if err != nil {
		logger.Error("Completion with model %s failed: %v", s.model, err)
		return Apology
	}
	text = strings.TrimSpace(text)
	if text == "" {
		logger.Error("Completion with model %s returned empty text", s.model)
		return Apology
	}
	return text
}
