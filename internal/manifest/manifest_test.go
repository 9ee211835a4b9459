package manifest

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	want := Manifest{
		Backend:           "chromem",
		Collection:        "documents",
		ChunkSize:         300,
		ChunkOverlap:      100,
		Splitter:          "window",
		FileType:          "markdown",
		EmbeddingProvider: "hash",
		Documents:         2,
		Chunks:            7,
		BuiltAt:           time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	sources := map[string]int{"data/b.md": 3, "data/a.md": 4}
	if err := Write(path, want, sources); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.BuiltAt.Equal(want.BuiltAt) {
		t.Errorf("BuiltAt = %v, want %v", got.BuiltAt, want.BuiltAt)
	}
	got.BuiltAt, want.BuiltAt = time.Time{}, time.Time{}
	if *got != want {
		t.Errorf("Read = %+v, want %+v", *got, want)
	}

	list, err := Sources(path)
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if len(list) != 2 || list[0].Source != "data/a.md" || list[0].Chunks != 4 || list[1].Chunks != 3 {
		t.Errorf("unexpected sources: %+v", list)
	}
}

func TestWriteReplacesPreviousBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := Write(path, Manifest{Chunks: 10}, map[string]int{"old.md": 10}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(path, Manifest{Chunks: 1}, map[string]int{"new.md": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	m, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.Chunks != 1 {
		t.Errorf("expected chunks 1, got %d", m.Chunks)
	}
	list, _ := Sources(path)
	if len(list) != 1 || list[0].Source != "new.md" {
		t.Errorf("stale sources left behind: %+v", list)
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), FileName))
	if !errors.Is(err, models.ErrStoreNotBuilt) {
		t.Fatalf("expected ErrStoreNotBuilt, got %v", err)
	}
}
