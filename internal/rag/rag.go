package rag

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

// Completer is the chat model the prompt is sent to.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

type Options struct {
	K                   int
	SimilarityThreshold float32
	ModelName           string
}

// RAG runs retrieve, prompt and complete for one question.
type RAG struct {
	retriever *Retriever
	prompt    *PromptBuilder
	llm       Completer
	opts      Options
}

func NewRAG(retriever *Retriever, prompt *PromptBuilder, llm Completer, opts Options) *RAG {
	return &RAG{retriever: retriever, prompt: prompt, llm: llm, opts: opts}
}

// Query answers query from the indexed documents. models.ErrNoMatch is
// returned as is so callers can tell "no answer" from a failure.
func (r *RAG) Query(ctx context.Context, query string) (*models.PromptResponse, error) {
	results, err := r.retriever.Search(ctx, query, r.opts.K, r.opts.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	prompt, err := r.prompt.Build(query, results)
	if err != nil {
		return nil, err
	}
	log.Debug().Msg(prompt)

	content, err := r.llm.Complete(ctx, prompt, r.opts.ModelName)
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   query,
		Prompt:  prompt,
		Sources: sources(results),
		Content: content,
	}, nil
}

// sources lists the distinct source files in rank order.
func sources(results []models.ScoredResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range results {
		src := r.Chunk.Source()
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}
