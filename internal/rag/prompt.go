package rag

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

// PromptBuilder fills a fixed template with the retrieved context and the question.
type PromptBuilder struct {
	template prompts.PromptTemplate
}

// NewPromptBuilder parses tmpl, which must use the "context" and "question"
// variables. A template that does not render is rejected here rather than
// at query time.
func NewPromptBuilder(tmpl string) (*PromptBuilder, error) {
	pt := prompts.NewPromptTemplate(tmpl, []string{"context", "question"})
	probe, err := pt.Format(map[string]any{"context": "\x00context\x00", "question": "\x00question\x00"})
	if err != nil {
		return nil, &models.ConfigurationError{Key: "prompt_template", Reason: err.Error()}
	}
	for _, v := range []string{"context", "question"} {
		if !strings.Contains(probe, "\x00"+v+"\x00") {
			return nil, &models.ConfigurationError{Key: "prompt_template", Reason: fmt.Sprintf("template does not use %q", v)}
		}
	}
	return &PromptBuilder{template: pt}, nil
}

// BuildContext joins the chunk texts in rank order.
func BuildContext(results []models.ScoredResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Content
	}
	return strings.Join(texts, models.ContextSeparator)
}

func (b *PromptBuilder) Build(question string, results []models.ScoredResult) (string, error) {
	return b.template.Format(map[string]any{
		"context":  BuildContext(results),
		"question": question,
	})
}
