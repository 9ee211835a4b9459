package helper

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var chunkNamespace = uuid.MustParse("6f1c1a52-3f0e-4d5e-9b0c-6b8a2e7f4c11")

// ChunkID derives a stable UUID for a chunk from where it came from, so that
// rebuilding the index from the same files yields the same ids.
func ChunkID(source, page string, start, index int) string {
	name := source + "\x00" + page + "\x00" + strconv.Itoa(start) + "\x00" + strconv.Itoa(index)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// CreateFolder creates path and its parents if missing.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}
