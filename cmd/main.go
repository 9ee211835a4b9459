package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/config"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/embedding"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/helper"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/llmservice"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/manifest"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/parser"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/rag"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/splitter"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/vectorstore"
)

const defaultConfigPath = "configs/configs.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Error running command")
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "rag-tutorial <query_text>",
		Short:         "Answer a question from a folder of documents",
		Long:          "Answers a question using the chunks of the local document collection that are most similar to it as context for a chat model.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), cfg, args[0])
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the YAML config file")
	rootCmd.AddCommand(createIngestCommand(&configPath))
	rootCmd.AddCommand(createChatCommand(&configPath))
	return rootCmd
}

func createIngestCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the vector store from the data directory",
		Long:  "Deletes the existing index, loads and splits every document in the data directory, embeds the chunks and saves them.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			embedder, err := newEmbedder(cfg)
			if err != nil {
				return err
			}

			store, err := generateDataStore(cmd.Context(), cfg, embedder)
			if err != nil {
				return fmt.Errorf("failed to build vector store: %w", err)
			}
			defer store.Close()

			helper.PrettyPrint(store.Manifest())
			sources, err := manifest.Sources(vectorstore.ManifestPath(cfg.Database.ChromaPath))
			if err != nil {
				return fmt.Errorf("failed to read manifest: %w", err)
			}
			helper.PrettyPrint(sources)
			return nil
		},
	}
}

func createChatCommand(configPath *string) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Send a prompt straight to the chat model",
		Long:  "Sends the prompt to the chat model as is, without looking up any documents, and logs the reply.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			apiKey, err := cfg.APIKey()
			if err != nil {
				return err
			}
			llm, err := llmservice.NewCompleter(&cfg.App, apiKey)
			if err != nil {
				return err
			}
			if model == "" {
				model = cfg.App.ModelName
			}

			reply := llmservice.Chat(cmd.Context(), llm, args[0], model)
			log.Info().Str("model", model).Msgf("Response: %s", reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Chat model to use, e.g. gpt-4o-mini or gpt-3.5-turbo (defaults to app.model_name)")
	return cmd
}

func runQuery(ctx context.Context, cfg *config.Config, query string) error {
	apiKey, err := cfg.APIKey()
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	llm, err := llmservice.NewCompleter(&cfg.App, apiKey)
	if err != nil {
		return err
	}
	return answer(ctx, cfg, embedder, llm, query)
}

// answer prepares the vector store and runs the query through it. Finding no
// relevant chunk is reported in the log and is not an error.
func answer(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, llm rag.Completer, query string) error {
	store, err := prepareStore(ctx, cfg, embedder)
	if err != nil {
		return fmt.Errorf("failed to prepare vector store: %w", err)
	}
	defer store.Close()

	prompt, err := rag.NewPromptBuilder(models.PromptTemplates[cfg.App.PromptTemplate])
	if err != nil {
		return err
	}

	pipeline := rag.NewRAG(rag.NewRetriever(store, cfg.App.FilterBelowThreshold), prompt, llm, rag.Options{
		K:                   cfg.App.K,
		SimilarityThreshold: cfg.App.SimilarityThreshold,
		ModelName:           cfg.App.ModelName,
	})
	response, err := pipeline.Query(ctx, query)
	if errors.Is(err, models.ErrNoMatch) {
		log.Info().Msg("Unable to find matching results.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to answer query: %w", err)
	}

	log.Info().Strs("sources", response.Sources).Msgf("Response: %s", response.Content)
	return nil
}

// prepareStore rebuilds the index when app.create_db is set and opens the
// existing one otherwise.
func prepareStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (*vectorstore.Store, error) {
	if cfg.App.CreateDB {
		return generateDataStore(ctx, cfg, embedder)
	}
	return vectorstore.Open(ctx, vectorstore.OptionsFromConfig(cfg), embedder)
}

// setup loads .env and the config file and applies the configured log level.
func setup(configPath string) (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.App.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Interface("config", cfg).Msg("Loaded config")
	return cfg, nil
}

func newEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	var apiKey string
	if cfg.Embedding.Provider == config.ProviderOpenAI {
		key, err := cfg.APIKey()
		if err != nil {
			return nil, err
		}
		apiKey = key
	}
	embedder, err := embedding.NewEmbedder(&cfg.Embedding, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return embedder, nil
}

// generateDataStore loads, splits and indexes the data directory, replacing
// any existing index.
func generateDataStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (*vectorstore.Store, error) {
	fileType, err := parser.ParseFileType(cfg.Database.FileType)
	if err != nil {
		return nil, err
	}
	docs, err := parser.LoadDocuments(cfg.Database.DataPath, fileType)
	if err != nil {
		return nil, err
	}
	split, err := splitter.New(cfg.Database.Splitter, cfg.Database.ChunkSize, cfg.Database.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	chunks, err := splitter.SplitDocuments(docs, split)
	if err != nil {
		return nil, err
	}

	opts := vectorstore.OptionsFromConfig(cfg)
	opts.Documents = len(docs)
	return vectorstore.Build(ctx, opts, chunks, embedder)
}
