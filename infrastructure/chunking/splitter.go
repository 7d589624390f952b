// Package chunking provides the text splitter implementations behind the
// chunking stage configurations.
package chunking

import (
	"strings"

	"github.com/embedq/embedq/domain/vectorizer"
)

// Splitter splits parsed text into ordered, embedding-sized chunks.
// Implementations operate on runes so multi-byte content never splits
// mid-character.
type Splitter interface {
	Split(text string) []string
}

// ForConfig returns the Splitter implementing the given chunking config.
// The config is assumed validated.
func ForConfig(c vectorizer.Chunking) Splitter {
	switch cfg := c.(type) {
	case vectorizer.ChunkingCharacter:
		return &characterSplitter{
			size:      cfg.ChunkSize,
			overlap:   cfg.ChunkOverlap,
			separator: cfg.Separator,
		}
	case vectorizer.ChunkingRecursive:
		return &recursiveSplitter{
			size:       cfg.ChunkSize,
			overlap:    cfg.ChunkOverlap,
			separators: cfg.Separators,
		}
	default:
		return wholeTextSplitter{}
	}
}

// wholeTextSplitter emits the entire text as a single chunk. It backs the
// "none" chunking implementation used with column destinations.
type wholeTextSplitter struct{}

func (wholeTextSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

// characterSplitter splits on a single separator and packs the pieces into
// chunks of at most size runes with overlap runes carried between
// consecutive chunks.
type characterSplitter struct {
	size      int
	overlap   int
	separator string
}

func (s *characterSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	pieces := splitKeepingText(text, s.separator)
	return mergePieces(pieces, s.separator, s.size, s.overlap)
}

// recursiveSplitter tries a cascade of separators: the first separator
// present in the text splits it, oversized pieces recurse with the
// remaining separators, and sibling pieces merge back into chunks.
type recursiveSplitter struct {
	size       int
	overlap    int
	separators []string
}

func (s *recursiveSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *recursiveSplitter) split(text string, separators []string) []string {
	separator := ""
	rest := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	pieces := splitKeepingText(text, separator)

	var final []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			final = append(final, mergePieces(pending, separator, s.size, s.overlap)...)
			pending = nil
		}
	}
	for _, piece := range pieces {
		if runeLen(piece) <= s.size {
			pending = append(pending, piece)
			continue
		}
		flush()
		if len(rest) == 0 {
			final = append(final, piece)
			continue
		}
		final = append(final, s.split(piece, rest)...)
	}
	flush()
	return final
}

// splitKeepingText splits text on separator; an empty separator splits into
// individual runes. Empty pieces are dropped.
func splitKeepingText(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = strings.Split(text, "")
	} else {
		parts = strings.Split(text, separator)
	}
	pieces := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// mergePieces packs pieces into chunks of at most size runes, joined with
// separator, carrying at most overlap runes of trailing pieces into the
// next chunk.
func mergePieces(pieces []string, separator string, size, overlap int) []string {
	sepLen := runeLen(separator)

	var chunks []string
	var current []string
	total := 0

	appendChunk := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(current, separator))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		pieceLen := runeLen(piece)
		if total+pieceLen+joinLen(len(current), sepLen) > size && total > 0 {
			appendChunk()
			// Drop leading pieces until the retained tail fits the overlap
			// and leaves room for the incoming piece.
			for total > overlap || (total+pieceLen+joinLen(len(current), sepLen) > size && total > 0) {
				total -= runeLen(current[0]) + joinLen(len(current)-1, sepLen)
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += pieceLen + joinLen(len(current)-1, sepLen)
	}
	appendChunk()
	return chunks
}

// joinLen returns the separator cost of appending to a group of n pieces.
func joinLen(n, sepLen int) int {
	if n > 0 {
		return sepLen
	}
	return 0
}

func runeLen(s string) int {
	return len([]rune(s))
}
