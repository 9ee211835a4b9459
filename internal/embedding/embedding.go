package embedding

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/config"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

const defaultHashDimension = 512

// NewEmbedder creates the embedder selected by cfg.Provider. apiKey is only
// used by the openai provider.
func NewEmbedder(cfg *config.EmbeddingConfig, apiKey string) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]any{
		"provider":   cfg.Provider,
		"model":      cfg.Model,
		"base_url":   cfg.BaseURL,
		"batch_size": cfg.BatchSize,
	}).Msg("Creating embedder")

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(apiKey, cfg.BaseURL, cfg.Model, cfg.BatchSize)
	case config.ProviderOllama:
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.BatchSize)
	case config.ProviderHash:
		return NewHashEmbedder(defaultHashDimension), nil
	}
	return nil, &models.ConfigurationError{Key: "embedding.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
}

// NewOpenAIEmbedder creates an embedder backed by an OpenAI compatible API.
func NewOpenAIEmbedder(apiKey, baseURL, model string, batchSize int) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return newEmbedder(llm, batchSize)
}

// new ollama embedder
func NewOllamaEmbedder(serverURL, model string, batchSize int) (*embeddings.EmbedderImpl, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return newEmbedder(llm, batchSize)
}

func newEmbedder(client embeddings.EmbedderClient, batchSize int) (*embeddings.EmbedderImpl, error) {
	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
