package chromemdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

const compress = false

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	embed          chromem.EmbeddingFunc
	dbPath         string
}

// NewVectorDBManager opens (or creates) the persistent database at dbPath.
// embed is used by chromem only for documents or queries given as text.
func NewVectorDBManager(dbPath, collectionName string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return &VectorDBManager{
		db:             db,
		collectionName: collectionName,
		embed:          embed,
		dbPath:         dbPath,
	}, nil
}

// CreateCollection starts an empty collection, dropping a previous one of the same name.
func (m *VectorDBManager) CreateCollection(metadata map[string]string) error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c, err := m.db.CreateCollection(m.collectionName, metadata, m.embed)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	m.collection = c
	return nil
}

// OpenCollection attaches to an existing collection.
func (m *VectorDBManager) OpenCollection() error {
	c := m.db.GetCollection(m.collectionName, m.embed)
	if c == nil {
		return fmt.Errorf("%w: collection %q not found in %s", models.ErrStoreNotBuilt, m.collectionName, m.dbPath)
	}
	m.collection = c
	return nil
}

// Add stores chunks with their precomputed embeddings.
func (m *VectorDBManager) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if m.collection == nil {
		return models.ErrStoreNotBuilt
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d embeddings", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  c.Metadata,
			Embedding: vectors[i],
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Msgf("Added %d documents to collection %s", len(docs), m.collectionName)
	return nil
}

// Query returns the k nearest chunks to the embedding, most similar first.
func (m *VectorDBManager) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredResult, error) {
	if m.collection == nil {
		return nil, models.ErrStoreNotBuilt
	}
	// chromem rejects nResults larger than the collection
	k = min(k, m.collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.ScoredResult, len(results))
	for i, r := range results {
		out[i] = models.ScoredResult{
			Chunk: models.ChunkFromMetadata(r.ID, r.Content, r.Metadata),
			Score: r.Similarity,
		}
	}
	return out, nil
}

func (m *VectorDBManager) Count(context.Context) (int, error) {
	if m.collection == nil {
		return 0, models.ErrStoreNotBuilt
	}
	return m.collection.Count(), nil
}

// Close is a no-op, chromem writes every document to disk as it is added.
func (m *VectorDBManager) Close() error {
	m.collection = nil
	return nil
}
