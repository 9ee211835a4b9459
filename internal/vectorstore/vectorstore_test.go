package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/embedding"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("401 unauthorized")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("429 rate limited")
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Backend:           "chromem",
		Path:              filepath.Join(t.TempDir(), "chroma"),
		Collection:        "documents",
		ChunkSize:         300,
		ChunkOverlap:      100,
		Splitter:          "window",
		FileType:          "md",
		EmbeddingProvider: "hash",
	}
}

func testChunks() []models.Chunk {
	texts := []string{
		"The keeper climbed the spiral stairs of the lighthouse every evening before dusk.",
		"He trimmed the wick and polished the great lens of the tower.",
		"Ships passing the headland counted the flashes to know which coast they were near.",
		"Bakers in the village rose before dawn to knead bread and light their ovens.",
	}
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			ID:      "chunk-" + string(rune('a'+i)),
			Content: text,
			Metadata: map[string]string{
				models.MetaSource:     "data/keeper.md",
				models.MetaStartIndex: "0",
				models.MetaChunkIndex: "0",
			},
		}
	}
	return chunks
}

func TestBuildAndQuery(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	store, err := Build(ctx, opts, testChunks(), embedding.NewHashEmbedder(256))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer store.Close()

	results, err := store.Query(ctx, "keeper climbed the spiral stairs of the lighthouse", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "chunk-a" {
		t.Errorf("expected chunk-a first, got %s", results[0].Chunk.ID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted best first: %f < %f", results[0].Score, results[1].Score)
	}
	if results[0].Chunk.Source() != "data/keeper.md" {
		t.Errorf("metadata lost: %+v", results[0].Chunk.Metadata)
	}
}

func TestQueryClampsK(t *testing.T) {
	ctx := context.Background()
	store, err := Build(ctx, testOptions(t), testChunks(), embedding.NewHashEmbedder(256))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	results, err := store.Query(ctx, "lighthouse", 50)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("expected all 4 chunks, got %d", len(results))
	}
}

func TestBuildEmpty(t *testing.T) {
	ctx := context.Background()
	store, err := Build(ctx, testOptions(t), nil, embedding.NewHashEmbedder(64))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	results, err := store.Query(ctx, "anything", 4)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestOpenWithoutBuild(t *testing.T) {
	_, err := Open(context.Background(), testOptions(t), embedding.NewHashEmbedder(64))
	if !errors.Is(err, models.ErrStoreNotBuilt) {
		t.Fatalf("expected ErrStoreNotBuilt, got %v", err)
	}
}

func TestQueryClosedStore(t *testing.T) {
	var s *Store
	if _, err := s.Query(context.Background(), "q", 1); !errors.Is(err, models.ErrStoreNotBuilt) {
		t.Fatalf("expected ErrStoreNotBuilt for nil store, got %v", err)
	}

	store, err := Build(context.Background(), testOptions(t), testChunks(), embedding.NewHashEmbedder(64))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	store.Close()
	if _, err := store.Query(context.Background(), "q", 1); !errors.Is(err, models.ErrStoreNotBuilt) {
		t.Fatalf("expected ErrStoreNotBuilt after Close, got %v", err)
	}
}

func TestOpenUsesManifestNotConfig(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	embedder := embedding.NewHashEmbedder(256)
	built, err := Build(ctx, opts, testChunks(), embedder)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want, _ := built.Query(ctx, "polished the great lens", 3)
	built.Close()

	reopen := Options{Backend: "chromem", Path: opts.Path, EmbeddingProvider: "hash"}
	store, err := Open(ctx, reopen, embedder)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if m := store.Manifest(); m.ChunkSize != 300 || m.ChunkOverlap != 100 || m.Chunks != 4 {
		t.Errorf("unexpected manifest: %+v", m)
	}
	got, err := store.Query(ctx, "polished the great lens", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	assertSameResults(t, want, got)
}

func TestBuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	embedder := embedding.NewHashEmbedder(256)

	first, err := Build(ctx, opts, testChunks(), embedder)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	a, err := first.Query(ctx, "ships counted the flashes near the coast", 4)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	first.Close()

	second, err := Build(ctx, opts, testChunks(), embedder)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := second.Query(ctx, "ships counted the flashes near the coast", 4)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	assertSameResults(t, a, b)
}

func TestBuildDeletesPreviousIndex(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	embedder := embedding.NewHashEmbedder(256)

	if _, err := Build(ctx, opts, testChunks(), embedder); err != nil {
		t.Fatalf("Build: %v", err)
	}
	stray := filepath.Join(opts.Path, "stray.txt")
	if err := os.WriteFile(stray, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Build(ctx, opts, testChunks()[:1], embedder)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("expected 1 chunk after rebuild, got %d", n)
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Errorf("rebuild left old files behind")
	}
}

func TestBuildEmbeddingFailure(t *testing.T) {
	_, err := Build(context.Background(), testOptions(t), testChunks(), failingEmbedder{})
	var upErr *models.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestQueryEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	if _, err := Build(ctx, opts, testChunks(), embedding.NewHashEmbedder(64)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	store, err := Open(ctx, opts, failingEmbedder{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err = store.Query(ctx, "q", 1)
	var upErr *models.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestOpenBackendMismatch(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	if _, err := Build(ctx, opts, testChunks(), embedding.NewHashEmbedder(64)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	opts.Backend = "pgvector"
	_, err := Open(ctx, opts, embedding.NewHashEmbedder(64))
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func assertSameResults(t *testing.T, want, got []models.ScoredResult) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("result count differs: %d vs %d", len(want), len(got))
	}
	for i := range want {
		if want[i].Chunk.ID != got[i].Chunk.ID || want[i].Score != got[i].Score {
			t.Errorf("result %d differs: %s/%f vs %s/%f",
				i, want[i].Chunk.ID, want[i].Score, got[i].Chunk.ID, got[i].Score)
		}
	}
}
