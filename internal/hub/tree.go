package hub

import (
	"context"
	"fmt"
)

// RepoFile is one entry of GET /api/models/:id/tree/:rev.
type RepoFile struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	// OID is the git blob sha1 of the stored object (the pointer file for LFS).
	OID string `json:"oid"`
	LFS *struct {
		OID  string `json:"oid"` // sha256 of the real content
		Size int64  `json:"size"`
	} `json:"lfs,omitempty"`
}

// ListFiles returns every file of the repository at revision. A missing
// revision (404) is reported as an empty listing so that a fresh repository
// diffs as "everything changed".
func (c *Client) ListFiles(ctx context.Context, repoID, revision string) ([]RepoFile, error) {
	u := fmt.Sprintf("%s/api/models/%s/tree/%s?recursive=true", c.baseURL(), repoPath(repoID), revisionOrDefault(revision))

	var entries []RepoFile
	if err := c.doJSON(ctx, "GET", u, nil, &entries); err != nil {
		if IsNotFound(err) {
			logf(repoID, "revision %s not found, treating as empty", revisionOrDefault(revision))
			return nil, nil
		}
		return nil, fmt.Errorf("list files %s: %w", repoID, err)
	}

	files := entries[:0]
	for _, e := range entries {
		if e.Type == "file" || e.Type == "" {
			files = append(files, e)
		}
	}
	logf(repoID, "remote has %d file(s)", len(files))
	return files, nil
}
