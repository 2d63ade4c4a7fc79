package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// CSVStore writes result tables into a directory served under baseURL.
type CSVStore struct {
	dir     string
	baseURL string
}

// NewCSVStore creates dir if needed. baseURL is the public prefix the
// directory is served under, e.g. "http://localhost:8080/results".
func NewCSVStore(dir, baseURL string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &CSVStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// SaveCSV writes data under a unique file name and returns its URL.
// Names are unguessable so links can be handed out without auth.
func (s *CSVStore) SaveCSV(_ context.Context, name string, data []byte) (string, error) {
	file := fmt.Sprintf("%s-%s.csv", name, uuid.NewString())
	tmp := filepath.Join(s.dir, "."+file)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, file)); err != nil {
		return "", fmt.Errorf("publish csv: %w", err)
	}
	return s.baseURL + "/" + file, nil
}

// Dir is the directory files are written to.
func (s *CSVStore) Dir() string {
	return s.dir
}
