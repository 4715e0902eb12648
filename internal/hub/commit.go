package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// CommitFile is one file added or updated by a commit.
type CommitFile struct {
	Path    string
	Content []byte
}

// CommitInfo is the hub's reply to a successful commit.
type CommitInfo struct {
	OID string `json:"commitOid"`
	URL string `json:"commitUrl"`
}

type uploadMode struct {
	Path         string `json:"path"`
	UploadMode   string `json:"uploadMode"`
	ShouldIgnore bool   `json:"shouldIgnore"`
}

type ndjsonLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Commit uploads files to repoID at revision in a single commit. Files the hub
// asks to store in LFS are uploaded through the LFS batch API first.
func (c *Client) Commit(ctx context.Context, repoID, revision, summary string, files []CommitFile) (*CommitInfo, error) {
	if !c.HasToken() {
		return nil, ErrNoToken
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("commit %s: no files", repoID)
	}

	modes, err := c.preupload(ctx, repoID, revision, files)
	if err != nil {
		return nil, err
	}

	var lfsFiles []CommitFile
	for _, f := range files {
		if modes[f.Path].UploadMode == "lfs" {
			lfsFiles = append(lfsFiles, f)
		}
	}
	if len(lfsFiles) > 0 {
		if err := c.uploadLFS(ctx, repoID, lfsFiles); err != nil {
			return nil, err
		}
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	lines := []ndjsonLine{{Key: "header", Value: map[string]string{"summary": summary, "description": ""}}}
	for _, f := range files {
		m := modes[f.Path]
		if m.ShouldIgnore {
			logf(repoID, "hub ignores %s, skipping", f.Path)
			continue
		}
		if m.UploadMode == "lfs" {
			lines = append(lines, ndjsonLine{Key: "lfsFile", Value: map[string]any{
				"path": f.Path, "algo": "sha256", "oid": SHA256Hex(f.Content), "size": len(f.Content),
			}})
			continue
		}
		lines = append(lines, ndjsonLine{Key: "file", Value: map[string]string{
			"path": f.Path, "encoding": "base64", "content": base64.StdEncoding.EncodeToString(f.Content),
		}})
	}
	for _, l := range lines {
		if err := enc.Encode(l); err != nil {
			return nil, err
		}
	}

	u := fmt.Sprintf("%s/api/models/%s/commit/%s", c.baseURL(), repoPath(repoID), revisionOrDefault(revision))
	req, err := c.newRequest(ctx, http.MethodPost, u, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Accept", "application/json")

	var info CommitInfo
	if err := c.send(req, &info); err != nil {
		return nil, fmt.Errorf("commit %s: %w", repoID, err)
	}
	logf(repoID, "committed %d file(s) as %s", len(lines)-1, info.OID)
	return &info, nil
}

func (c *Client) preupload(ctx context.Context, repoID, revision string, files []CommitFile) (map[string]uploadMode, error) {
	type preFile struct {
		Path   string `json:"path"`
		Size   int    `json:"size"`
		Sample string `json:"sample"`
	}
	in := struct {
		Files []preFile `json:"files"`
	}{}
	for _, f := range files {
		sample := f.Content
		if len(sample) > 512 {
			sample = sample[:512]
		}
		in.Files = append(in.Files, preFile{Path: f.Path, Size: len(f.Content), Sample: base64.StdEncoding.EncodeToString(sample)})
	}

	var out struct {
		Files []uploadMode `json:"files"`
	}
	u := fmt.Sprintf("%s/api/models/%s/preupload/%s", c.baseURL(), repoPath(repoID), revisionOrDefault(revision))
	if err := c.doJSON(ctx, http.MethodPost, u, in, &out); err != nil {
		return nil, fmt.Errorf("preupload %s: %w", repoID, err)
	}

	modes := make(map[string]uploadMode, len(out.Files))
	for _, m := range out.Files {
		modes[m.Path] = m
	}
	return modes, nil
}

type lfsAction struct {
	Href   string            `json:"href"`
	Header map[string]string `json:"header"`
}

type lfsObject struct {
	OID     string `json:"oid"`
	Size    int    `json:"size"`
	Actions *struct {
		Upload *lfsAction `json:"upload"`
		Verify *lfsAction `json:"verify"`
	} `json:"actions,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// uploadLFS negotiates uploads with the git-lfs batch endpoint and PUTs the
// objects the server does not have yet.
func (c *Client) uploadLFS(ctx context.Context, repoID string, files []CommitFile) error {
	byOID := make(map[string]CommitFile, len(files))
	in := struct {
		Operation string      `json:"operation"`
		Transfers []string    `json:"transfers"`
		HashAlgo  string      `json:"hash_algo"`
		Objects   []lfsObject `json:"objects"`
	}{Operation: "upload", Transfers: []string{"basic"}, HashAlgo: "sha256"}
	for _, f := range files {
		oid := SHA256Hex(f.Content)
		byOID[oid] = f
		in.Objects = append(in.Objects, lfsObject{OID: oid, Size: len(f.Content)})
	}

	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s.git/info/lfs/objects/batch", c.baseURL(), repoPath(repoID))
	req, err := c.newRequest(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.git-lfs+json")
	req.Header.Set("Content-Type", "application/vnd.git-lfs+json")

	var out struct {
		Objects []lfsObject `json:"objects"`
	}
	if err := c.send(req, &out); err != nil {
		return fmt.Errorf("lfs batch %s: %w", repoID, err)
	}

	for _, obj := range out.Objects {
		if obj.Error != nil {
			return fmt.Errorf("lfs object %s: %d %s", obj.OID, obj.Error.Code, obj.Error.Message)
		}
		if obj.Actions == nil || obj.Actions.Upload == nil {
			logf(repoID, "lfs object %s already stored", shortOID(obj.OID))
			continue
		}
		f := byOID[obj.OID]
		if err := c.lfsAction(ctx, http.MethodPut, obj.Actions.Upload, bytes.NewReader(f.Content), ""); err != nil {
			return fmt.Errorf("lfs upload %s: %w", f.Path, err)
		}
		if obj.Actions.Verify != nil {
			vb, _ := json.Marshal(map[string]any{"oid": obj.OID, "size": obj.Size})
			if err := c.lfsAction(ctx, http.MethodPost, obj.Actions.Verify, bytes.NewReader(vb), "application/vnd.git-lfs+json"); err != nil {
				return fmt.Errorf("lfs verify %s: %w", f.Path, err)
			}
		}
		logf(repoID, "lfs uploaded %s (%d bytes)", f.Path, len(f.Content))
	}
	return nil
}

// lfsAction performs a transfer action. Only the headers supplied by the
// batch reply are sent; the hub token is not forwarded.
func (c *Client) lfsAction(ctx context.Context, method string, a *lfsAction, body *bytes.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, method, a.Href, body)
	if err != nil {
		return err
	}
	for k, v := range a.Header {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.send(req, nil)
}

func shortOID(oid string) string {
	oid = strings.TrimSpace(oid)
	if len(oid) > 12 {
		return oid[:12]
	}
	return oid
}
