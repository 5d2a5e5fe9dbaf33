package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/logger"
)

// passageDelimiter separates retrieved passages inside the context section.
const passageDelimiter = "\n\n---\n\n"

// NoContextMarker is the phrase a fallback prompt instructs the model to
// answer with. Tests and callers can detect the fallback path through it.
const NoContextMarker = "no relevant information in the video transcript"

const ragTemplate = `You are an expert assistant for analyzing YouTube video content. Answer the question precisely and helpfully using ONLY the context provided below.

Important instructions:
- Use ONLY the information from the provided context
- If the context does not contain the needed information, say so explicitly
- Structure the answer logically and keep it concise but complete
- Quote specific parts of the context when asked

Conversation context:
%s

Context from the video:
%s

Current question:
%s

Answer:`

const fallbackTemplate = `You are a helpful assistant. No passage of the video transcript matched this question.

Question: %s

Answer: State that there is ` + NoContextMarker + ` to answer this question, and invite the user to ask something related to the video content. Do not invent an answer.`

// Builder assembles bounded prompts from retrieved passages and recent
// conversation turns.
type Builder struct {
	historyWindow int
	maxChars      int
}

// NewBuilder creates a Builder. historyWindow is the number of trailing
// conversation turns included (default 3); maxChars bounds the rune length
// of the assembled prompt (default 12000).
func NewBuilder(historyWindow, maxChars int) *Builder {
	if historyWindow <= 0 {
		historyWindow = 3
	}
	if maxChars <= 0 {
		maxChars = 12000
	}
	return &Builder{historyWindow: historyWindow, maxChars: maxChars}
}

// Build returns the completion prompt for question. With no passages it
// produces the fallback template that forbids open-ended answers; otherwise
// passages are joined in rank order, and if the assembled prompt would
// exceed the budget, whole passages are dropped from the lowest rank up.
// Passages are never cut mid-text.
func (b *Builder) Build(question string, passages []core.RetrievedResult, history []core.ConversationTurn) string {
	if len(passages) == 0 {
		return fmt.Sprintf(fallbackTemplate, question)
	}

	conversation := b.formatHistory(history)

	kept := len(passages)
	prompt := b.assemble(question, passages[:kept], conversation)
	for kept > 1 && utf8.RuneCountInString(prompt) > b.maxChars {
		kept--
		prompt = b.assemble(question, passages[:kept], conversation)
	}
	if dropped := len(passages) - kept; dropped > 0 {
		logger.Debug("Dropped %d lowest-ranked passages to fit prompt budget of %d", dropped, b.maxChars)
	}
	return prompt
}

func (b *Builder) assemble(question string, passages []core.RetrievedResult, conversation string) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return fmt.Sprintf(ragTemplate, conversation, strings.Join(texts, passageDelimiter), question)
}

// formatHistory renders the last historyWindow turns as "role: content"
// lines, oldest first.
func (b *Builder) formatHistory(history []core.ConversationTurn) string {
	if len(history) == 0 {
		return "No prior conversation."
	}
	start := len(history) - b.historyWindow
	if start < 0 {
		start = 0
	}
	var sb strings.Builder
	for i, turn := range history[start:] {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
	}
	return sb.String()
}
