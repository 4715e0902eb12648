package tokenizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/idlab-discover/emotune-cli/internal/hub"
)

// Downloader is the subset of the hub client used to fetch tokenizer files.
type Downloader interface {
	DownloadFile(ctx context.Context, repoID, revision, filename, dst string) error
}

// FromPretrained returns the tokenizer of a hub model (e.g.
// "distilbert-base-uncased"). Files are cached under cacheDir/<modelID>; an
// existing vocab.txt there is reused without network access.
func FromPretrained(ctx context.Context, dl Downloader, modelID, revision, cacheDir string, maxLength int) (*Tokenizer, error) {
	modelID = strings.Trim(strings.TrimSpace(modelID), "/")
	if modelID == "" {
		return nil, fmt.Errorf("empty model id")
	}
	dir := filepath.Join(cacheDir, filepath.FromSlash(modelID))

	if _, err := os.Stat(filepath.Join(dir, VocabFile)); err == nil {
		logf(modelID, "using cached vocabulary in %s", dir)
		return Load(dir, maxLength)
	}

	logf(modelID, "downloading %s", VocabFile)
	if err := dl.DownloadFile(ctx, modelID, revision, VocabFile, filepath.Join(dir, VocabFile)); err != nil {
		return nil, err
	}
	if err := dl.DownloadFile(ctx, modelID, revision, ConfigFile, filepath.Join(dir, ConfigFile)); err != nil {
		// Many repos ship only vocab.txt; defaults apply.
		if !hub.IsNotFound(err) {
			return nil, err
		}
		logf(modelID, "%s not found, using defaults", ConfigFile)
	}
	return Load(dir, maxLength)
}
