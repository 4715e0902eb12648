package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// FileURL returns the resolve URL of filename in repoID at revision.
func (c *Client) FileURL(repoID, revision, filename string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL(), repoPath(repoID), revisionOrDefault(revision), url.PathEscape(filename))
}

// Download fetches a single repository file into memory.
func (c *Client) Download(ctx context.Context, repoID, revision, filename string) ([]byte, error) {
	u := c.FileURL(repoID, revision, filename)
	logf(repoID, "GET resolve/%s/%s", revisionOrDefault(revision), filename)

	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newHFError(resp)
	}
	return io.ReadAll(resp.Body)
}

// DownloadFile fetches a repository file and stores it at dst, creating
// parent directories. Existing files are overwritten.
func (c *Client) DownloadFile(ctx context.Context, repoID, revision, filename, dst string) error {
	b, err := c.Download(ctx, repoID, revision, filename)
	if err != nil {
		return fmt.Errorf("download %s/%s: %w", repoID, filename, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}
