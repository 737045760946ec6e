package history

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	coreerrors "kalafw/internal/core/errors"
)

// FileStore keeps one command per line in a plain text file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Load returns the stored entries. Lines of any length are accepted.
func (s *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, coreerrors.NewHistoryError("failed to read history file", err)
	}

	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	return entries, nil
}

func (s *FileStore) Save(_ context.Context, entries []string) error {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.path, []byte(b.String()), 0600); err != nil {
		return coreerrors.NewHistoryError("failed to write history file", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
