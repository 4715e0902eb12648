package publisher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/idlab-discover/emotune-cli/internal/hub"
)

// ErrNotRepository is returned when the artifact directory exists, is not
// empty and is not a clone or workspace of the target repository.
var ErrNotRepository = errors.New("not a repository")

const (
	markerDir  = ".hub"
	markerFile = "repo.yaml"
)

// Marker is the workspace record written after every publish.
type Marker struct {
	RepoID   string    `yaml:"repo_id"`
	URL      string    `yaml:"url,omitempty"`
	Revision string    `yaml:"revision"`
	Commit   string    `yaml:"commit,omitempty"`
	Updated  time.Time `yaml:"updated"`
}

// Workspace is the local artifact directory mirroring a hub repository.
type Workspace struct {
	Dir    string
	RepoID string
}

// NewWorkspace places the workspace for repoID under parent, named after the
// repository name.
func NewWorkspace(parent, repoID string) Workspace {
	_, name := hub.SplitRepoID(repoID)
	return Workspace{Dir: filepath.Join(parent, name), RepoID: repoID}
}

func (w Workspace) markerPath() string { return filepath.Join(w.Dir, markerDir, markerFile) }

// Check enforces the precondition for publishing: the directory is absent,
// empty, a git clone, or a workspace previously published to the same
// repository. It performs no network access.
func (w Workspace) Check() error {
	entries, err := os.ReadDir(w.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("workspace %s: %w", w.Dir, err)
	}
	if len(entries) == 0 {
		return nil
	}
	if fi, err := os.Stat(filepath.Join(w.Dir, ".git")); err == nil && fi != nil {
		return nil
	}
	m, err := w.ReadMarker()
	if err != nil {
		return fmt.Errorf("%s exists and is not empty: %w", w.Dir, ErrNotRepository)
	}
	if !sameRepo(m.RepoID, w.RepoID) {
		return fmt.Errorf("%s is a workspace of %s, not %s: %w", w.Dir, m.RepoID, w.RepoID, ErrNotRepository)
	}
	return nil
}

// sameRepo compares ids, ignoring the namespace when either side omits it.
func sameRepo(a, b string) bool {
	nsA, nameA := hub.SplitRepoID(a)
	nsB, nameB := hub.SplitRepoID(b)
	if nameA != nameB {
		return false
	}
	return nsA == "" || nsB == "" || strings.EqualFold(nsA, nsB)
}

// ReadMarker reads .hub/repo.yaml.
func (w Workspace) ReadMarker() (*Marker, error) {
	b, err := os.ReadFile(w.markerPath())
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", w.markerPath(), err)
	}
	return &m, nil
}

// WriteMarker records the last published state.
func (w Workspace) WriteMarker(m Marker) error {
	if err := os.MkdirAll(filepath.Dir(w.markerPath()), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(w.markerPath(), b, 0o644)
}

// Files returns every publishable file, keyed by slash-separated path.
// Version-control and marker directories are skipped.
func (w Workspace) Files() ([]hub.CommitFile, error) {
	var out []hub.CommitFile
	err := filepath.WalkDir(w.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.Dir && (d.Name() == ".git" || d.Name() == markerDir) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(w.Dir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out = append(out, hub.CommitFile{Path: filepath.ToSlash(rel), Content: b})
		return nil
	})
	return out, err
}
