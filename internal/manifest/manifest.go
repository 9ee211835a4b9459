package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Inthuch95/langchain-rag-tutorial/internal/models"
)

// FileName is the manifest file inside the index directory.
const FileName = "manifest.db"

var (
	bucketBuild   = []byte("build")
	bucketSources = []byte("sources")
	keyManifest   = []byte("manifest")
)

// Manifest describes how an index was built. It is written once per build
// and lets a later run open the index without the chunking settings.
type Manifest struct {
	Backend           string    `json:"backend"`
	Collection        string    `json:"collection"`
	ChunkSize         int       `json:"chunk_size"`
	ChunkOverlap      int       `json:"chunk_overlap"`
	Splitter          string    `json:"splitter"`
	FileType          string    `json:"file_type"`
	EmbeddingProvider string    `json:"embedding_provider"`
	EmbeddingModel    string    `json:"embedding_model"`
	Documents         int       `json:"documents"`
	Chunks            int       `json:"chunks"`
	BuiltAt           time.Time `json:"built_at"`
}

// SourceCount is the number of chunks stored for one source file.
type SourceCount struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

func open(path string, readOnly bool) (*bbolt.DB, error) {
	return bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second, ReadOnly: readOnly})
}

// Write stores m and the per-source chunk counts, replacing any previous content.
func Write(path string, m Manifest, sources map[string]int) error {
	db, err := open(path, false)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketBuild, bucketSources} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}
		build, err := tx.CreateBucket(bucketBuild)
		if err != nil {
			return err
		}
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := build.Put(keyManifest, data); err != nil {
			return err
		}

		src, err := tx.CreateBucket(bucketSources)
		if err != nil {
			return err
		}
		for source, n := range sources {
			if source == "" {
				continue
			}
			data, err := json.Marshal(SourceCount{Source: source, Chunks: n})
			if err != nil {
				return err
			}
			if err := src.Put([]byte(source), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Read loads the manifest at path. A missing file or manifest means the
// index was never built and yields models.ErrStoreNotBuilt.
func Read(path string) (*Manifest, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no manifest at %s", models.ErrStoreNotBuilt, path)
	}
	db, err := open(path, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer db.Close()

	var m Manifest
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBuild)
		if b == nil {
			return models.ErrStoreNotBuilt
		}
		data := b.Get(keyManifest)
		if data == nil {
			return models.ErrStoreNotBuilt
		}
		return json.Unmarshal(data, &m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Sources lists the chunk count per source file, sorted by source.
func Sources(path string) ([]SourceCount, error) {
	db, err := open(path, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer db.Close()

	var out []SourceCount
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSources)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var sc SourceCount
			if err := json.Unmarshal(v, &sc); err != nil {
				return err
			}
			out = append(out, sc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}
