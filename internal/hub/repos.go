package hub

import (
	"context"
	"fmt"
	"strings"
)

// RepoURL describes a model repository on the hub.
type RepoURL struct {
	RepoID  string
	URL     string
	Created bool
}

type createRepoRequest struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Private      bool   `json:"private"`
	Type         string `json:"type"`
}

// SplitRepoID splits "namespace/name"; namespace is empty for bare names.
func SplitRepoID(repoID string) (namespace, name string) {
	repoID = strings.Trim(strings.TrimSpace(repoID), "/")
	if ns, n, ok := strings.Cut(repoID, "/"); ok {
		return ns, n
	}
	return "", repoID
}

// CreateRepo creates a model repository, or reuses it when it already exists
// (HTTP 409), in which case Created is false.
func (c *Client) CreateRepo(ctx context.Context, repoID string, private bool) (*RepoURL, error) {
	ns, name := SplitRepoID(repoID)
	if name == "" {
		return nil, fmt.Errorf("invalid repo id %q", repoID)
	}
	req := createRepoRequest{Name: name, Organization: ns, Private: private, Type: "model"}

	var resp struct {
		URL string `json:"url"`
	}
	err := c.doJSON(ctx, "POST", c.baseURL()+"/api/repos/create", req, &resp)
	switch {
	case err == nil:
		logf(repoID, "repository created")
		return &RepoURL{RepoID: repoID, URL: resp.URL, Created: true}, nil
	case IsConflict(err):
		logf(repoID, "repository exists, reusing")
		return &RepoURL{RepoID: repoID, URL: c.baseURL() + "/" + repoPath(repoID)}, nil
	default:
		return nil, fmt.Errorf("create repo %s: %w", repoID, err)
	}
}
