package tts

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes audio files into a directory served under a URL prefix.
type Store struct {
	dir       string
	urlPrefix string
}

func NewStore(dir, urlPrefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	return &Store{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Save writes data as speech_<id>.<ext> and returns its path and public URL.
func (s *Store) Save(data []byte, ext string) (string, string, error) {
	if len(data) == 0 {
		return "", "", ErrEmptyAudio
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	filename := fmt.Sprintf("speech_%s.%s", id, ext)
	full := filepath.Join(s.dir, filename)

	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write audio file: %w", err)
	}

	return full, path.Join(s.urlPrefix, filename), nil
}

// Resolve maps a URL produced by Save back to its file path. It rejects URLs
// outside the prefix and any attempt to leave the directory.
func (s *Store) Resolve(url string) (string, error) {
	name, ok := strings.CutPrefix(url, s.urlPrefix+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return "", fmt.Errorf("not a stored audio url: %s", url)
	}
	full := filepath.Join(s.dir, name)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}
	return full, nil
}
