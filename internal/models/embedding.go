package models

import "strconv"

// Document is the text of one loaded file (or PDF page) with its source metadata.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Chunk is a substring of a parent Document. StartIndex is the rune offset in
// the parent text, or -1 when the splitter could not locate it.
type Chunk struct {
	ID         string
	Content    string
	Metadata   map[string]string
	StartIndex int
	ChunkIndex int
}

// Source returns the path of the file the chunk came from.
func (c Chunk) Source() string {
	return c.Metadata[MetaSource]
}

// ChunkFromMetadata rebuilds a chunk from stored content and metadata.
func ChunkFromMetadata(id, content string, metadata map[string]string) Chunk {
	start, err := strconv.Atoi(metadata[MetaStartIndex])
	if err != nil {
		start = -1
	}
	idx, _ := strconv.Atoi(metadata[MetaChunkIndex])
	return Chunk{
		ID:         id,
		Content:    content,
		Metadata:   metadata,
		StartIndex: start,
		ChunkIndex: idx,
	}
}

type ScoredResult struct {
	Chunk Chunk
	Score float32
}

type PromptResponse struct {
	Query   string
	Prompt  string
	Sources []string
	Content string
}
