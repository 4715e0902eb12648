// Package hub talks to the Hugging Face Hub: identity, repository creation,
// file listing, commits (regular and LFS), file downloads, and dataset rows
// served by the datasets-server.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL           = "https://huggingface.co"
	DefaultDatasetsServerURL = "https://datasets-server.huggingface.co"
	DefaultRevision          = "main"
)

// NewHTTPClient creates an *http.Client for hub calls with a per-request
// deadline (0 = no timeout). Credentials are attached per request by Client,
// never by the transport, so LFS uploads to presigned storage URLs go out
// without the hub token.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Client is a thin Hub API client. The zero value talks to the public hub
// anonymously with http.DefaultClient.
type Client struct {
	HTTP              *http.Client
	Token             string
	BaseURL           string // optional; defaults to DefaultBaseURL
	DatasetsServerURL string // optional; defaults to DefaultDatasetsServerURL
}

// NewClient returns a Client that authenticates hub calls with token.
func NewClient(timeout time.Duration, token string) *Client {
	return &Client{HTTP: NewHTTPClient(timeout), Token: strings.TrimSpace(token)}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) baseURL() string {
	b := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if b == "" {
		return DefaultBaseURL
	}
	return b
}

func (c *Client) datasetsURL() string {
	b := strings.TrimRight(strings.TrimSpace(c.DatasetsServerURL), "/")
	if b == "" {
		return DefaultDatasetsServerURL
	}
	return b
}

// HasToken reports whether the client carries credentials.
func (c *Client) HasToken() bool { return strings.TrimSpace(c.Token) != "" }

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if tok := strings.TrimSpace(c.Token); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// doJSON sends a request with an optional JSON body and decodes a JSON reply
// into out (when non-nil). Non-2xx replies become *HFError.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHFError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// repoPath escapes each segment of "namespace/name".
func repoPath(repoID string) string {
	parts := strings.Split(strings.Trim(strings.TrimSpace(repoID), "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func revisionOrDefault(rev string) string {
	if strings.TrimSpace(rev) == "" {
		return DefaultRevision
	}
	return url.PathEscape(strings.TrimSpace(rev))
}
