package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// defaultSeparators orders boundaries from coarsest to finest: paragraph
// break, line break, sentence end, word boundary, single character.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts text into chunks of at most MaxSize runes, with consecutive
// chunks sharing roughly Overlap runes of context. Splitting always prefers
// the coarsest separator that keeps a chunk within bounds and only descends
// to finer separators for pieces that are still too large.
//
// Splitting is deterministic: the same (text, MaxSize, Overlap) always
// produces the same chunks, in source order.
type Splitter struct {
	maxSize    int
	overlap    int
	separators []string
}

// New creates a Splitter. maxSize must be positive and overlap must satisfy
// 0 <= overlap < maxSize.
func New(maxSize, overlap int) (*Splitter, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunker: max size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("chunker: overlap must be in [0, %d), got %d", maxSize, overlap)
	}
	return &Splitter{
		maxSize:    maxSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}, nil
}

// Split returns the ordered chunks of text. Empty or whitespace-only input
// yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the coarsest separator present in the text. The final ""
	// always matches and degrades to per-rune splitting.
	sep := separators[len(separators)-1]
	remaining := []string{}
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			remaining = separators[i+1:]
			break
		}
	}

	var chunks []string
	var fitting []string
	for _, piece := range splitKeep(text, sep) {
		if utf8.RuneCountInString(piece) <= s.maxSize {
			fitting = append(fitting, piece)
			continue
		}
		// Flush what fit so far, then descend into the oversized piece
		// with the finer separators.
		chunks = append(chunks, s.merge(fitting)...)
		fitting = nil
		chunks = append(chunks, s.split(piece, remaining)...)
	}
	return append(chunks, s.merge(fitting)...)
}

// merge greedily joins consecutive pieces into chunks of at most maxSize
// runes. When a chunk closes, leading pieces are dropped until at most
// overlap runes remain; those carry into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0
	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if total+n > s.maxSize && total > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(window) > 0 && (total > s.overlap || total+n > s.maxSize) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeep splits text on sep, keeping the separator attached to the piece
// that precedes it so no characters are lost when pieces are rejoined. An
// empty separator splits into individual runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		parts := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	parts := strings.SplitAfter(text, sep)
	// SplitAfter may leave a trailing empty piece when text ends with sep.
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
