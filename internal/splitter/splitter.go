package splitter

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/helper"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

// Span is a piece of a text. Start is the rune offset of Text in the parent,
// -1 if unknown.
type Span struct {
	Text  string
	Start int
}

// Splitter cuts a text into spans. Implementations are deterministic.
type Splitter interface {
	Split(text string) ([]Span, error)
}

// New returns the splitter registered under name ("window" or "recursive").
func New(name string, chunkSize, chunkOverlap int) (Splitter, error) {
	if chunkSize <= 0 {
		return nil, &models.ConfigurationError{Key: "database.chunk_size", Reason: "must be positive"}
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, &models.ConfigurationError{Key: "database.chunk_overlap", Reason: "must be >= 0 and smaller than chunk_size"}
	}
	switch name {
	case "", "window":
		return Window{Size: chunkSize, Overlap: chunkOverlap}, nil
	case "recursive":
		return NewRecursive(chunkSize, chunkOverlap), nil
	}
	return nil, &models.ConfigurationError{Key: "database.splitter", Reason: fmt.Sprintf("unknown splitter %q", name)}
}

// SplitDocuments splits every document and returns the chunks in document
// order. Each chunk carries its parent's metadata plus its start offset.
func SplitDocuments(docs []models.Document, s Splitter) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, doc := range docs {
		spans, err := s.Split(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", doc.Metadata[models.MetaSource], err)
		}
		for i, span := range spans {
			meta := make(map[string]string, len(doc.Metadata)+2)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta[models.MetaStartIndex] = strconv.Itoa(span.Start)
			meta[models.MetaChunkIndex] = strconv.Itoa(i)

			chunks = append(chunks, models.Chunk{
				ID:         helper.ChunkID(meta[models.MetaSource], meta[models.MetaPage], span.Start, i),
				Content:    span.Text,
				Metadata:   meta,
				StartIndex: span.Start,
				ChunkIndex: i,
			})
		}
	}
	log.Info().Msgf("Split %d documents into %d chunks.", len(docs), len(chunks))
	return chunks, nil
}

// Window is a fixed size sliding window measured in runes. The cut is moved
// back to a space, newline or period found in the last tenth of the window;
// the next window starts Overlap runes before the cut.
type Window struct {
	Size    int
	Overlap int
}

func (w Window) Split(text string) ([]Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	runes := []rune(text)
	n := len(runes)
	if n <= w.Size {
		return []Span{{Text: text, Start: 0}}, nil
	}

	var spans []Span
	start := 0
	for {
		end := min(start+w.Size, n)
		if end < n {
			lookBack := w.Size / 10
			for i := end - 1; i >= end-lookBack && i > start+w.Overlap; i-- {
				if isBreak(runes[i]) {
					end = i + 1
					break
				}
			}
		}
		spans = append(spans, Span{Text: string(runes[start:end]), Start: start})
		if end >= n {
			break
		}
		start = end - w.Overlap
	}
	return spans, nil
}

func isBreak(r rune) bool {
	return r == ' ' || r == '\n' || r == '.'
}

// Recursive wraps langchaingo's recursive character splitter, which prefers
// paragraph, then line, then word boundaries.
type Recursive struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursive(chunkSize, chunkOverlap int) Recursive {
	return Recursive{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}
}

func (r Recursive) Split(text string) ([]Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts, err := r.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	spans := make([]Span, 0, len(parts))
	// search from just after the previous hit, chunks may overlap
	from := 0
	for _, part := range parts {
		start := -1
		if from <= len(text) {
			if i := strings.Index(text[from:], part); i >= 0 {
				byteStart := from + i
				start = utf8.RuneCountInString(text[:byteStart])
				_, size := utf8.DecodeRuneInString(text[byteStart:])
				from = byteStart + max(size, 1)
			}
		}
		spans = append(spans, Span{Text: part, Start: start})
	}
	return spans, nil
}
