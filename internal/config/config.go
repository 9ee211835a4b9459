package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/parser"
)

const (
	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"

	SplitterWindow    = "window"
	SplitterRecursive = "recursive"

	LLMClientLangchain = "langchaingo"
	LLMClientGoOpenAI  = "go-openai"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

type DatabaseConfig struct {
	Backend      string `yaml:"backend"`
	ChromaPath   string `yaml:"chroma_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	Collection   string `yaml:"collection"`
	DataPath     string `yaml:"data_path"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	FileType     string `yaml:"file_type"`
	Splitter     string `yaml:"splitter"`
	Debug        bool   `yaml:"debug"`
}

type AppConfig struct {
	CreateDB             bool    `yaml:"create_db"`
	ModelName            string  `yaml:"model_name"`
	K                    int     `yaml:"k"`
	SimilarityThreshold  float32 `yaml:"similarity_threshold"`
	FilterBelowThreshold bool    `yaml:"filter_below_threshold"`
	LLMClient            string  `yaml:"llm_client"`
	LLMBaseURL           string  `yaml:"llm_base_url"`
	PromptTemplate       string  `yaml:"prompt_template"`
	LogLevel             string  `yaml:"log_level"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	BatchSize int    `yaml:"batch_size"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	App       AppConfig       `yaml:"app"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &models.ConfigurationError{Key: "config", Reason: err.Error()}
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	db := &cfg.Database
	if db.Backend == "" {
		db.Backend = BackendChromem
	}
	if db.ChromaPath == "" {
		db.ChromaPath = "chroma"
	}
	if db.Collection == "" {
		db.Collection = "documents"
	}
	if db.DataPath == "" {
		db.DataPath = "data"
	}
	if db.ChunkSize == 0 {
		db.ChunkSize = 300
	}
	if db.FileType == "" {
		db.FileType = "md"
	}
	if db.Splitter == "" {
		db.Splitter = SplitterWindow
	}

	app := &cfg.App
	if app.ModelName == "" {
		app.ModelName = "gpt-4o-mini"
	}
	if app.K == 0 {
		app.K = 4
	}
	if app.LLMClient == "" {
		app.LLMClient = LLMClientLangchain
	}
	if app.PromptTemplate == "" {
		app.PromptTemplate = models.PromptDefault
	}
	if app.LogLevel == "" {
		app.LogLevel = "info"
	}

	emb := &cfg.Embedding
	if emb.Provider == "" {
		emb.Provider = ProviderOpenAI
	}
	if emb.Model == "" && emb.Provider == ProviderOpenAI {
		emb.Model = "text-embedding-3-small"
	}
	if emb.BatchSize == 0 {
		emb.BatchSize = 64
	}
	if emb.APIKeyEnv == "" {
		emb.APIKeyEnv = "OPENAI_API_KEY"
	}
}

// Validate checks every value the pipeline depends on. The data file type is
// checked here so that an unsupported type fails before any data file is read.
func (c *Config) Validate() error {
	db := c.Database
	if db.ChunkSize <= 0 {
		return invalid("database.chunk_size", "must be positive")
	}
	if db.ChunkOverlap < 0 || db.ChunkOverlap >= db.ChunkSize {
		return invalid("database.chunk_overlap", "must be >= 0 and smaller than chunk_size")
	}
	if _, err := parser.ParseFileType(db.FileType); err != nil {
		return err
	}
	switch db.Splitter {
	case SplitterWindow, SplitterRecursive:
	default:
		return invalid("database.splitter", fmt.Sprintf("unknown splitter %q", db.Splitter))
	}
	switch db.Backend {
	case BackendChromem:
	case BackendPgvector:
		if db.PostgresDSN == "" {
			return invalid("database.postgres_dsn", "required for the pgvector backend")
		}
	default:
		return invalid("database.backend", fmt.Sprintf("unknown backend %q", db.Backend))
	}
	if db.ChromaPath == "" {
		return invalid("database.chroma_path", "must not be empty")
	}

	if c.App.K <= 0 {
		return invalid("app.k", "must be positive")
	}
	if c.App.ModelName == "" {
		return invalid("app.model_name", "must not be empty")
	}
	switch c.App.LLMClient {
	case LLMClientLangchain, LLMClientGoOpenAI:
	default:
		return invalid("app.llm_client", fmt.Sprintf("unknown client %q", c.App.LLMClient))
	}
	if _, ok := models.PromptTemplates[c.App.PromptTemplate]; !ok {
		return invalid("app.prompt_template", fmt.Sprintf("unknown template %q (want default or concise)", c.App.PromptTemplate))
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderHash:
	case ProviderOllama:
		if c.Embedding.Model == "" {
			return invalid("embedding.model", "required for the ollama provider")
		}
	default:
		return invalid("embedding.provider", fmt.Sprintf("unknown provider %q", c.Embedding.Provider))
	}
	if c.Embedding.BatchSize < 0 {
		return invalid("embedding.batch_size", "must not be negative")
	}
	return nil
}

// APIKey returns the provider credential from the environment.
func (c *Config) APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(c.Embedding.APIKeyEnv))
	if key == "" {
		return "", invalid(c.Embedding.APIKeyEnv, "environment variable is not set")
	}
	return key, nil
}

func invalid(key, reason string) error {
	return &models.ConfigurationError{Key: key, Reason: reason}
}
