package splitter

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

const sampleText = `The keeper climbed the spiral stairs of the lighthouse every evening before dusk.
He trimmed the wick, polished the great lens and wound the clockwork that turned the beam.

Ships passing the headland counted the flashes to know which coast they were near.
In winter storms the keeper stayed awake all night, feeding the lamp with oil and listening to the sea.
His logbook recorded every vessel, every gale and every repair made to the old tower.
When the keeper retired, the light was automated and the logbook went to the village museum.`

func longText(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(sampleText)
		b.WriteString("\n\n")
	}
	return b.String()[:n]
}

func TestWindowShortDocumentIsOneChunk(t *testing.T) {
	w := Window{Size: 300, Overlap: 100}
	text := "A short note about lighthouses."
	spans, err := w.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Text != text || spans[0].Start != 0 {
		t.Errorf("expected whole document at 0, got %+v", spans[0])
	}
}

func TestWindowEmptyDocument(t *testing.T) {
	spans, err := Window{Size: 10, Overlap: 2}.Split("  \n ")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("expected no spans, got %d", len(spans))
	}
}

func TestWindowScenario(t *testing.T) {
	text := longText(1000)
	w := Window{Size: 300, Overlap: 100}
	spans, err := w.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(spans) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(spans))
	}
	for i := 1; i < len(spans); i++ {
		prev := []rune(spans[i-1].Text)
		cur := []rune(spans[i].Text)
		tail := string(prev[len(prev)-100:])
		head := string(cur[:100])
		if tail != head {
			t.Errorf("chunk %d does not overlap previous by 100 runes:\n%q\n%q", i, tail, head)
		}
	}
}

func TestWindowCoverage(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
		text          string
	}{
		{"ascii", 300, 100, longText(1000)},
		{"no overlap", 120, 0, longText(777)},
		{"large overlap", 50, 48, longText(400)},
		{"multibyte", 40, 10, strings.Repeat("Fyrvokteren går opp trappene. ", 12)},
		{"no breaks", 64, 16, strings.Repeat("x", 500)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spans, err := Window{Size: tc.size, Overlap: tc.overlap}.Split(tc.text)
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			runes := []rune(tc.text)

			var rebuilt []rune
			for i, s := range spans {
				chunk := []rune(s.Text)
				if len(chunk) > tc.size {
					t.Errorf("chunk %d has %d runes, limit %d", i, len(chunk), tc.size)
				}
				if got := string(runes[s.Start : s.Start+len(chunk)]); got != s.Text {
					t.Fatalf("chunk %d is not the substring at %d", i, s.Start)
				}
				if s.Start > len(rebuilt) {
					t.Fatalf("gap before chunk %d: start %d, covered %d", i, s.Start, len(rebuilt))
				}
				rebuilt = append(rebuilt[:s.Start], chunk...)
			}
			if string(rebuilt) != tc.text {
				t.Errorf("chunks do not reconstruct the document")
			}
		})
	}
}

func TestSplitDocumentsDeterministic(t *testing.T) {
	docs := []models.Document{
		{Content: longText(1000), Metadata: map[string]string{models.MetaSource: "data/keeper.md"}},
		{Content: longText(450), Metadata: map[string]string{models.MetaSource: "data/tower.md"}},
	}
	for _, name := range []string{"window", "recursive"} {
		t.Run(name, func(t *testing.T) {
			s, err := New(name, 300, 100)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			first, err := SplitDocuments(docs, s)
			if err != nil {
				t.Fatalf("SplitDocuments: %v", err)
			}
			second, err := SplitDocuments(docs, s)
			if err != nil {
				t.Fatalf("SplitDocuments: %v", err)
			}
			if !reflect.DeepEqual(first, second) {
				t.Errorf("chunking is not deterministic")
			}
			for _, c := range first {
				if c.Metadata[models.MetaSource] == "" {
					t.Errorf("chunk %s lost its source metadata", c.ID)
				}
				if c.Metadata[models.MetaStartIndex] == "" {
					t.Errorf("chunk %s has no start_index", c.ID)
				}
			}
		})
	}
}

func TestRecursiveStartIndex(t *testing.T) {
	text := longText(1000)
	spans, err := NewRecursive(300, 100).Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(spans) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(spans))
	}
	runes := []rune(text)
	for i, s := range spans {
		if s.Start < 0 {
			continue
		}
		n := len([]rune(s.Text))
		if string(runes[s.Start:s.Start+n]) != s.Text {
			t.Errorf("span %d not found at its start index %d", i, s.Start)
		}
	}
}

// The recursive splitter trims surrounding whitespace from its chunks, so a
// short document comes back as one chunk equal to the trimmed text.
func TestRecursiveShortDocumentIsTrimmed(t *testing.T) {
	text := "Line one.\n\nSecond   paragraph here.\n"
	spans, err := NewRecursive(300, 100).Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(spans))
	}
	if spans[0].Text != strings.TrimSpace(text) || spans[0].Start != 0 {
		t.Errorf("unexpected chunk %q at %d", spans[0].Text, spans[0].Start)
	}

	window, err := Window{Size: 300, Overlap: 100}.Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(window) != 1 || window[0].Text != text {
		t.Errorf("window splitter must keep the document intact, got %q", window)
	}
}

func TestNewRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name          string
		splitter      string
		size, overlap int
	}{
		{"zero size", "window", 0, 0},
		{"overlap equals size", "window", 100, 100},
		{"negative overlap", "window", 100, -1},
		{"unknown splitter", "sentence", 100, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.splitter, tc.size, tc.overlap)
			var cfgErr *models.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}
