package htmlstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"newscollector/internal/ports"
)

// Store keeps raw article HTML on disk, content-addressed by sha256 so the
// same page body is written only once.
type Store struct {
	dir string
}

var _ ports.HTMLStore = (*Store)(nil)

// New creates the store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Put writes html to <dir>/<sha256>.html if not already present and
// returns the digest and the file path.
func (s *Store) Put(html string) (string, string, error) {
	sum := sha256.Sum256([]byte(html))
	digest := hex.EncodeToString(sum[:])
	path := filepath.Join(s.dir, digest+".html")

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create html dir: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return digest, path, nil
	}

	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", "", fmt.Errorf("write html file: %w", err)
	}
	return digest, path, nil
}
