package engine

import (
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// Resolver maps a file identifier from a request to a filesystem path.
type Resolver interface {
	Resolve(id string) (string, error)
}

// DirResolver confines identifiers to Root. Absolute identifiers and
// identifiers that escape Root with ".." are rejected.
type DirResolver struct {
	Root string
}

func (r DirResolver) Resolve(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", dataset.NotFound(nil, "empty file identifier")
	}
	rel := filepath.FromSlash(id)
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", dataset.NotFound(nil, "file %q must be relative to the data directory", id)
	}
	rel = filepath.Clean(rel)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", dataset.NotFound(nil, "file %q is outside the data directory", id)
	}
	root, err := filepath.Abs(r.Root)
	if err != nil {
		return "", dataset.NotFound(err, "data directory %s", r.Root)
	}
	return filepath.Join(root, rel), nil
}

// PathResolver treats identifiers as paths relative to the working directory.
type PathResolver struct{}

func (PathResolver) Resolve(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", dataset.NotFound(nil, "empty file identifier")
	}
	p, err := filepath.Abs(id)
	if err != nil {
		return "", dataset.NotFound(err, "file %s", id)
	}
	return p, nil
}
