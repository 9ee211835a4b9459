package models

const (
	// ContextSeparator joins retrieved chunk texts inside the prompt context.
	ContextSeparator = "\n\n---\n\n"

	MetaSource     = "source"
	MetaFileType   = "file_type"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaStartIndex = "start_index"
	MetaChunkIndex = "chunk_index"
)

const (
	PromptDefault = "default"
	PromptConcise = "concise"
)

var (
	PromptTemplate = `
Answer the question based only on the following context:

{{.context}}

---

Answer the question based on the above context: {{.question}}
`

	// ConcisePromptTemplate asks for a short answer and an explicit
	// "don't know" when the context does not contain one.
	ConcisePromptTemplate = `
Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
Keep the answer as concise as possible:

{{.context}}

---

Question: {{.question}}
`

	// PromptTemplates maps app.prompt_template names to templates.
	PromptTemplates = map[string]string{
		PromptDefault: PromptTemplate,
		PromptConcise: ConcisePromptTemplate,
	}
)
