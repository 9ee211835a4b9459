package parser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

// FileType selects which files of the data directory are loaded and how.
type FileType int

const (
	Markdown FileType = iota + 1
	Text
	PDF
)

func (t FileType) String() string {
	switch t {
	case Markdown:
		return "markdown"
	case Text:
		return "text"
	case PDF:
		return "pdf"
	}
	return "unknown"
}

// ParseFileType maps a config value to a FileType.
func ParseFileType(s string) (FileType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md", "markdown":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	case "pdf":
		return PDF, nil
	}
	return 0, &models.ConfigurationError{
		Key:    "database.file_type",
		Reason: fmt.Sprintf("unsupported file type %q (want markdown, text or pdf)", s),
	}
}

// Loader turns one file into zero or more documents.
type Loader interface {
	Extensions() []string
	Load(path string) ([]models.Document, error)
}

// LoaderFor returns the loader of a file type.
func LoaderFor(t FileType) (Loader, error) {
	switch t {
	case Markdown:
		return markdownLoader{}, nil
	case Text:
		return textLoader{}, nil
	case PDF:
		return pdfLoader{}, nil
	}
	return nil, &models.ConfigurationError{
		Key:    "database.file_type",
		Reason: fmt.Sprintf("no loader for file type %d", int(t)),
	}
}

// LoadDocuments reads every file of the given type under dir, in lexical path
// order. A missing or empty directory yields no documents and no error.
func LoadDocuments(dir string, t FileType) ([]models.Document, error) {
	loader, err := LoaderFor(t)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("dir", dir).Msg("Data directory does not exist, no documents loaded")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path %s is not a directory", dir)
	}

	var docs []models.Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExtension(path, loader.Extensions()) {
			return nil
		}
		loaded, err := loader.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("Loaded %d %s documents from %s", len(docs), t, dir)
	return docs, nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func newDocument(content, path string, t FileType) models.Document {
	return models.Document{
		Content: content,
		Metadata: map[string]string{
			models.MetaSource:   path,
			models.MetaFileType: t.String(),
		},
	}
}

type textLoader struct{}

func (textLoader) Extensions() []string { return []string{".txt"} }

func (textLoader) Load(path string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []models.Document{newDocument(string(data), path, Text)}, nil
}

type markdownLoader struct{}

func (markdownLoader) Extensions() []string { return []string{".md", ".markdown"} }

func (markdownLoader) Load(path string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := markdownToText(data)
	if content == "" {
		return nil, nil
	}
	return []models.Document{newDocument(content, path, Markdown)}, nil
}

type pdfLoader struct{}

func (pdfLoader) Extensions() []string { return []string{".pdf"} }

// Load returns one document per page that has extractable text.
func (pdfLoader) Load(path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var docs []models.Document
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		doc := newDocument(pageText, path, PDF)
		doc.Metadata[models.MetaPage] = strconv.Itoa(i)
		doc.Metadata[models.MetaTotalPages] = strconv.Itoa(numPages)
		docs = append(docs, doc)
	}
	return docs, nil
}
