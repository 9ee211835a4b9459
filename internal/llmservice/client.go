package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/config"
	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

const opCompletion = "chat completion"

var errNoChoices = errors.New("response has no choices")

// Completer sends a single-turn prompt to a hosted chat model.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// NewCompleter returns the client selected by app.llm_client.
func NewCompleter(app *config.AppConfig, apiKey string) (Completer, error) {
	log.Debug().Str("client", app.LLMClient).Str("model", app.ModelName).Msg("Creating LLM client")
	switch app.LLMClient {
	case config.LLMClientLangchain, "":
		return NewLangchainClient(apiKey, app.LLMBaseURL), nil
	case config.LLMClientGoOpenAI:
		return NewOpenAIClient(apiKey, app.LLMBaseURL), nil
	}
	return nil, &models.ConfigurationError{Key: "app.llm_client", Reason: fmt.Sprintf("unknown client %q", app.LLMClient)}
}

// Chat sends prompt to the model on its own, without retrieved context. A
// failure is logged and returned as text to show in place of an answer.
func Chat(ctx context.Context, c Completer, prompt, model string) string {
	answer, err := c.Complete(ctx, prompt, model)
	if err != nil {
		log.Error().Err(err).Str("model", model).Msg("Chat completion failed")
		return fmt.Sprintf("An error occurred: %v", err)
	}
	return answer
}

// LangchainClient calls the chat API through langchaingo.
type LangchainClient struct {
	token   string
	baseURL string
}

func NewLangchainClient(apiKey, baseURL string) *LangchainClient {
	return &LangchainClient{token: strings.TrimPrefix(apiKey, "Bearer "), baseURL: baseURL}
}

func (c *LangchainClient) Complete(ctx context.Context, prompt, model string) (string, error) {
	opts := []openai.Option{openai.WithToken(c.token), openai.WithModel(model)}
	if c.baseURL != "" {
		opts = append(opts, openai.WithBaseURL(c.baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return "", &models.UpstreamError{Op: opCompletion, Err: err}
	}

	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	res, err := llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", &models.UpstreamError{Op: opCompletion, Err: err}
	}
	if len(res.Choices) == 0 {
		return "", &models.UpstreamError{Op: opCompletion, Err: errNoChoices}
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}

// OpenAIClient calls the chat API with the go-openai SDK.
type OpenAIClient struct {
	client *goopenai.Client
}

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := goopenai.DefaultConfig(strings.TrimPrefix(apiKey, "Bearer "))
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: goopenai.NewClientWithConfig(cfg)}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt, model string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", &models.UpstreamError{Op: opCompletion, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &models.UpstreamError{Op: opCompletion, Err: errNoChoices}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
