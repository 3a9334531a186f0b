// Package avatars lists the face images available for video rendering.
package avatars

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tahcohcat/talkinghead-web/internal/logger"
)

var ErrNotFound = errors.New("avatar image not found")

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type Avatar struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Catalog struct {
	dir       string
	urlPrefix string
	logger    *logger.Log
}

func NewCatalog(dir, urlPrefix string) *Catalog {
	return &Catalog{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		logger:    logger.New().WithField("component", "avatars"),
	}
}

// List returns the images in the catalog directory sorted by name. A missing
// directory yields an empty list.
func (c *Catalog) List() ([]Avatar, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Debug(fmt.Sprintf("avatars directory %s does not exist", c.dir))
			return []Avatar{}, nil
		}
		return nil, fmt.Errorf("failed to read avatars directory: %w", err)
	}

	avatars := make([]Avatar, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(file.Name()))] {
			continue
		}
		avatars = append(avatars, Avatar{
			Name: file.Name(),
			URL:  c.urlPrefix + "/" + file.Name(),
		})
	}

	sort.Slice(avatars, func(i, j int) bool {
		return avatars[i].Name < avatars[j].Name
	})

	return avatars, nil
}

// Resolve maps an image name to its path on disk. Names with directory
// components are rejected.
func (c *Catalog) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	p := filepath.Join(c.dir, name)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p, nil
}
