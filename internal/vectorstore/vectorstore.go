package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/chromemdb"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/config"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/db"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/helper"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/manifest"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

const vectorsDir = "vectors"

// backend is the persistent index a Store queries.
type backend interface {
	Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredResult, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Options locate the index and describe the build.
type Options struct {
	Backend     string
	Path        string
	PostgresDSN string
	Collection  string
	Debug       bool

	// Build information recorded in the manifest.
	ChunkSize         int
	ChunkOverlap      int
	Splitter          string
	FileType          string
	Documents         int
	EmbeddingProvider string
	EmbeddingModel    string
}

// OptionsFromConfig fills Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Backend:           cfg.Database.Backend,
		Path:              cfg.Database.ChromaPath,
		PostgresDSN:       cfg.Database.PostgresDSN,
		Collection:        cfg.Database.Collection,
		Debug:             cfg.Database.Debug,
		ChunkSize:         cfg.Database.ChunkSize,
		ChunkOverlap:      cfg.Database.ChunkOverlap,
		Splitter:          cfg.Database.Splitter,
		FileType:          cfg.Database.FileType,
		EmbeddingProvider: cfg.Embedding.Provider,
		EmbeddingModel:    cfg.Embedding.Model,
	}
}

// Store answers similarity queries against a built index.
type Store struct {
	backend  backend
	embedder embeddings.Embedder
	manifest *manifest.Manifest
}

// Build replaces the index at opts.Path with the given chunks. Everything
// previously stored there is deleted first, with no backup.
func Build(ctx context.Context, opts Options, chunks []models.Chunk, embedder embeddings.Embedder) (*Store, error) {
	log.Warn().Str("path", opts.Path).Msg("Rebuilding vector store, existing index will be deleted")
	if err := os.RemoveAll(opts.Path); err != nil {
		return nil, fmt.Errorf("failed to clear index directory: %w", err)
	}
	if err := helper.CreateFolder(opts.Path); err != nil {
		return nil, err
	}

	be, err := createBackend(ctx, opts, embedder)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			be.Close()
			return nil, &models.UpstreamError{Op: "embedding", Err: err}
		}
		if len(vectors) != len(texts) {
			be.Close()
			return nil, &models.UpstreamError{Op: "embedding", Err: fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(texts))}
		}
	}
	if err := be.Add(ctx, chunks, vectors); err != nil {
		be.Close()
		return nil, err
	}

	m := manifest.Manifest{
		Backend:           opts.Backend,
		Collection:        opts.Collection,
		ChunkSize:         opts.ChunkSize,
		ChunkOverlap:      opts.ChunkOverlap,
		Splitter:          opts.Splitter,
		FileType:          opts.FileType,
		EmbeddingProvider: opts.EmbeddingProvider,
		EmbeddingModel:    opts.EmbeddingModel,
		Documents:         opts.Documents,
		Chunks:            len(chunks),
		BuiltAt:           time.Now().UTC(),
	}
	if err := manifest.Write(ManifestPath(opts.Path), m, countSources(chunks)); err != nil {
		be.Close()
		return nil, err
	}

	log.Info().Msgf("Saved %d chunks to %s.", len(chunks), opts.Path)
	return &Store{backend: be, embedder: embedder, manifest: &m}, nil
}

// Open loads a previously built index without embedding anything. Chunking
// settings are taken from the manifest, not from opts.
func Open(ctx context.Context, opts Options, embedder embeddings.Embedder) (*Store, error) {
	m, err := manifest.Read(ManifestPath(opts.Path))
	if err != nil {
		return nil, err
	}
	if m.Backend != opts.Backend {
		return nil, &models.ConfigurationError{
			Key:    "database.backend",
			Reason: fmt.Sprintf("index at %s was built with backend %q", opts.Path, m.Backend),
		}
	}
	if m.EmbeddingProvider != opts.EmbeddingProvider || m.EmbeddingModel != opts.EmbeddingModel {
		log.Warn().
			Str("built_with", m.EmbeddingProvider+"/"+m.EmbeddingModel).
			Str("configured", opts.EmbeddingProvider+"/"+opts.EmbeddingModel).
			Msg("Embedding model differs from the one the index was built with")
	}
	opts.Collection = m.Collection

	be, err := openBackend(ctx, opts, embedder)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("chunks", m.Chunks).
		Int("chunk_size", m.ChunkSize).
		Int("chunk_overlap", m.ChunkOverlap).
		Time("built_at", m.BuiltAt).
		Msgf("Loaded vector store from %s", opts.Path)
	return &Store{backend: be, embedder: embedder, manifest: m}, nil
}

// Query embeds text and returns up to k stored chunks, most similar first.
func (s *Store) Query(ctx context.Context, text string, k int) ([]models.ScoredResult, error) {
	if s == nil || s.backend == nil {
		return nil, models.ErrStoreNotBuilt
	}
	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &models.UpstreamError{Op: "embedding", Err: err}
	}
	return s.backend.Query(ctx, vec, k)
}

// Manifest describes the build the store was created from.
func (s *Store) Manifest() *manifest.Manifest {
	if s == nil {
		return nil
	}
	return s.manifest
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.backend == nil {
		return 0, models.ErrStoreNotBuilt
	}
	return s.backend.Count(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}

// ManifestPath is where the build manifest of the index at path lives.
func ManifestPath(path string) string {
	return filepath.Join(path, manifest.FileName)
}

func createBackend(ctx context.Context, opts Options, embedder embeddings.Embedder) (backend, error) {
	switch opts.Backend {
	case config.BackendChromem, "":
		m, err := chromemdb.NewVectorDBManager(filepath.Join(opts.Path, vectorsDir), opts.Collection, embeddingFunc(embedder))
		if err != nil {
			return nil, err
		}
		if err := m.CreateCollection(map[string]string{
			"chunk_size":    strconv.Itoa(opts.ChunkSize),
			"chunk_overlap": strconv.Itoa(opts.ChunkOverlap),
		}); err != nil {
			return nil, err
		}
		return m, nil
	case config.BackendPgvector:
		s, err := db.Open(ctx, opts.PostgresDSN, opts.Debug)
		if err != nil {
			return nil, err
		}
		if err := s.Reset(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, unknownBackend(opts.Backend)
}

func openBackend(ctx context.Context, opts Options, embedder embeddings.Embedder) (backend, error) {
	switch opts.Backend {
	case config.BackendChromem, "":
		m, err := chromemdb.NewVectorDBManager(filepath.Join(opts.Path, vectorsDir), opts.Collection, embeddingFunc(embedder))
		if err != nil {
			return nil, err
		}
		if err := m.OpenCollection(); err != nil {
			return nil, err
		}
		return m, nil
	case config.BackendPgvector:
		s, err := db.Open(ctx, opts.PostgresDSN, opts.Debug)
		if err != nil {
			return nil, err
		}
		if _, err := s.Count(ctx); err != nil {
			s.Close()
			if errors.Is(err, models.ErrStoreNotBuilt) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to open documents table: %w", err)
		}
		return s, nil
	}
	return nil, unknownBackend(opts.Backend)
}

func unknownBackend(name string) error {
	return &models.ConfigurationError{Key: "database.backend", Reason: fmt.Sprintf("unknown backend %q", name)}
}

// embeddingFunc adapts a langchaingo embedder to chromem.
func embeddingFunc(e embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}

func countSources(chunks []models.Chunk) map[string]int {
	counts := make(map[string]int)
	for _, c := range chunks {
		counts[c.Source()]++
	}
	return counts
}
