package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

// Querier is the part of the vector store the retriever needs.
type Querier interface {
	Query(ctx context.Context, text string, k int) ([]models.ScoredResult, error)
}

// Retriever gates vector store results on a minimum relevance score.
type Retriever struct {
	store Querier
	// FilterBelowThreshold also drops lower ranked results under the
	// threshold. By default only the best result is checked.
	FilterBelowThreshold bool
}

func NewRetriever(store Querier, filterBelowThreshold bool) *Retriever {
	return &Retriever{store: store, FilterBelowThreshold: filterBelowThreshold}
}

// Search returns the k most similar chunks. It fails with models.ErrNoMatch
// when nothing was found or the best score is below threshold.
func (r *Retriever) Search(ctx context.Context, query string, k int, threshold float32) ([]models.ScoredResult, error) {
	if r == nil || r.store == nil {
		return nil, models.ErrStoreNotBuilt
	}
	results, err := r.store.Query(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, models.ErrNoMatch
	}
	if best := results[0].Score; best < threshold {
		log.Debug().Float32("best_score", best).Float32("threshold", threshold).Msg("Best result below threshold")
		return nil, fmt.Errorf("%w: best score %.3f is below %.3f", models.ErrNoMatch, best, threshold)
	}

	if r.FilterBelowThreshold {
		kept := results[:1]
		for _, res := range results[1:] {
			if res.Score >= threshold {
				kept = append(kept, res)
			}
		}
		results = kept
	}

	for i, res := range results {
		log.Debug().Int("rank", i+1).Float32("score", res.Score).Str("source", res.Chunk.Source()).Msg("Retrieved chunk")
	}
	return results, nil
}
