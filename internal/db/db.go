package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

const insertBatchSize = 500

// Document is one stored chunk row.
type Document struct {
	bun.BaseModel `bun:"table:rag_documents,alias:d"`
	ID            string            `bun:"id,pk"`
	Content       string            `bun:"content,notnull"`
	Source        string            `bun:"source"`
	StartIndex    int               `bun:"start_index"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	Embedding     pgvector.Vector   `bun:"embedding,notnull,type:vector"`
}

type scoredDocument struct {
	ID       string            `bun:"id"`
	Content  string            `bun:"content"`
	Metadata map[string]string `bun:"metadata"`
	Score    float64           `bun:"score"`
}

// Store is a pgvector backed chunk index.
type Store struct {
	db *bun.DB
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Open connects to Postgres and checks the connection.
func Open(ctx context.Context, dsn string, debug bool) (*Store, error) {
	db := NewDB(ConnectDB(dsn), debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// Reset drops the documents table and creates it again, empty.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := s.db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop documents: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*Document)(nil)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents: %w", err)
	}
	return nil
}

// Add inserts chunks with their embeddings in batches.
func (s *Store) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d embeddings", len(chunks), len(vectors))
	}
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{
			ID:         c.ID,
			Content:    c.Content,
			Source:     c.Source(),
			StartIndex: c.StartIndex,
			Metadata:   c.Metadata,
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}
	for start := 0; start < len(docs); start += insertBatchSize {
		batch := docs[start:min(start+insertBatchSize, len(docs))]
		if _, err := s.db.NewInsert().Model(&batch).Exec(ctx); err != nil {
			return fmt.Errorf("failed to store documents: %w", err)
		}
	}
	log.Debug().Msgf("Stored %d documents in postgres", len(docs))
	return nil
}

// Query ranks rows by cosine distance; the score is 1 - distance.
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredResult, error) {
	if k <= 0 {
		return nil, nil
	}
	q := pgvector.NewVector(embedding)

	var rows []scoredDocument
	err := s.db.NewSelect().
		Model((*Document)(nil)).
		Column("id", "content", "metadata").
		ColumnExpr("1 - (embedding <=> ?) AS score", q).
		OrderExpr("embedding <=> ?", q).
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, s.mapError(err)
	}

	out := make([]models.ScoredResult, len(rows))
	for i, r := range rows {
		out[i] = models.ScoredResult{
			Chunk: models.ChunkFromMetadata(r.ID, r.Content, r.Metadata),
			Score: float32(r.Score),
		}
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
	if err != nil {
		return 0, s.mapError(err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// mapError turns "relation does not exist" into ErrStoreNotBuilt.
func (s *Store) mapError(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "42P01" {
		return fmt.Errorf("%w: %v", models.ErrStoreNotBuilt, err)
	}
	return err
}
