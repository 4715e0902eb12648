package hub_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/idlab-discover/emotune-cli/internal/hub"
	"github.com/idlab-discover/emotune-cli/internal/hub/hubtest"
)

func newClient(srv *hubtest.Server, token string) *hub.Client {
	c := hub.NewClient(5*time.Second, token)
	c.BaseURL = srv.URL
	c.DatasetsServerURL = srv.URL
	return c
}

func TestWhoAmI(t *testing.T) {
	srv := hubtest.NewServer()
	defer srv.Close()

	t.Run("valid token", func(t *testing.T) {
		id, err := newClient(srv, hubtest.Token).WhoAmI(context.Background())
		if err != nil {
			t.Fatalf("WhoAmI error: %v", err)
		}
		if id.Name != hubtest.User || !id.CanWrite() {
			t.Fatalf("unexpected identity %#v", id)
		}
		if ns := id.Namespaces(); len(ns) != 2 || ns[1] != "test-org" {
			t.Fatalf("namespaces = %v", ns)
		}
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := newClient(srv, "nope").WhoAmI(context.Background())
		if !hub.IsUnauthorized(err) {
			t.Fatalf("expected unauthorized, got %v", err)
		}
	})

	t.Run("no token never hits the network", func(t *testing.T) {
		before := srv.Requests()
		_, err := newClient(srv, "").WhoAmI(context.Background())
		if !errors.Is(err, hub.ErrNoToken) {
			t.Fatalf("expected ErrNoToken, got %v", err)
		}
		if srv.Requests() != before {
			t.Fatalf("expected no request")
		}
	})
}

func TestCreateRepo_CreatesThenReuses(t *testing.T) {
	srv := hubtest.NewServer()
	defer srv.Close()
	c := newClient(srv, hubtest.Token)

	first, err := c.CreateRepo(context.Background(), "tester/emotion-clf", false)
	if err != nil {
		t.Fatalf("CreateRepo error: %v", err)
	}
	if !first.Created {
		t.Fatalf("expected Created on first call")
	}

	second, err := c.CreateRepo(context.Background(), "tester/emotion-clf", false)
	if err != nil {
		t.Fatalf("CreateRepo (reuse) error: %v", err)
	}
	if second.Created {
		t.Fatalf("expected reuse on second call")
	}
}

func TestCommit_RegularAndLFS(t *testing.T) {
	srv := hubtest.NewServer()
	defer srv.Close()
	c := newClient(srv, hubtest.Token)
	ctx := context.Background()

	if _, err := c.CreateRepo(ctx, "tester/m", false); err != nil {
		t.Fatalf("CreateRepo: %v", err)
	}
	weights := bytes.Repeat([]byte{1, 2, 3}, 1000)
	files := []hub.CommitFile{
		{Path: "README.md", Content: []byte("# card\n")},
		{Path: "model.bin", Content: weights},
	}
	info, err := c.Commit(ctx, "tester/m", "", "Upload model", files)
	if err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if info.OID == "" {
		t.Fatalf("expected commit oid")
	}
	if got, _ := srv.File("tester/m", "model.bin"); !bytes.Equal(got, weights) {
		t.Fatalf("lfs content not stored")
	}

	remote, err := c.ListFiles(ctx, "tester/m", "main")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	byPath := map[string]hub.RepoFile{}
	for _, f := range remote {
		byPath[f.Path] = f
	}
	if !hub.SameContent(byPath["README.md"], []byte("# card\n")) {
		t.Fatalf("regular file digest mismatch: %#v", byPath["README.md"])
	}
	if !hub.SameContent(byPath["model.bin"], weights) {
		t.Fatalf("lfs file digest mismatch: %#v", byPath["model.bin"])
	}
	if hub.SameContent(byPath["README.md"], []byte("# other\n")) {
		t.Fatalf("different content must not match")
	}
}

func TestListFiles_MissingRepoIsEmpty(t *testing.T) {
	srv := hubtest.NewServer()
	defer srv.Close()

	files, err := newClient(srv, hubtest.Token).ListFiles(context.Background(), "tester/none", "")
	if err != nil || len(files) != 0 {
		t.Fatalf("expected empty listing, got %v %v", files, err)
	}
}

func TestDownloadFile(t *testing.T) {
	srv := hubtest.NewServer()
	defer srv.Close()
	srv.PutFile("distilbert-base-uncased", "vocab.txt", []byte("[PAD]\n[UNK]\n"))

	dst := filepath.Join(t.TempDir(), "nested", "vocab.txt")
	c := newClient(srv, "")
	if err := c.DownloadFile(context.Background(), "distilbert-base-uncased", "", "vocab.txt", dst); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "[PAD]\n[UNK]\n" {
		t.Fatalf("downloaded content = %q, %v", b, err)
	}

	_, err = c.Download(context.Background(), "distilbert-base-uncased", "", "missing.txt")
	if !hub.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDatasetRows(t *testing.T) {
	srv := hubtest.NewServer()
	defer srv.Close()
	srv.AddDatasetRows("emotion", "train",
		map[string]any{"text": "i feel great", "label": 1},
		map[string]any{"text": "i feel low", "label": 0},
	)

	page, err := newClient(srv, "").DatasetRows(context.Background(), "emotion", "split", "train", 1, 10)
	if err != nil {
		t.Fatalf("DatasetRows: %v", err)
	}
	if page.NumRowsTotal != 2 || len(page.Rows) != 1 || page.Rows[0].RowIdx != 1 {
		t.Fatalf("unexpected page %#v", page)
	}
}

func TestHFError_DecodesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"gated repo"}`))
	}))
	defer srv.Close()

	c := &hub.Client{BaseURL: srv.URL, Token: "x"}
	_, err := c.WhoAmI(context.Background())
	var he *hub.HFError
	if !errors.As(err, &he) || he.StatusCode != http.StatusForbidden || he.Message != "gated repo" {
		t.Fatalf("unexpected error %#v", err)
	}
	if !hub.IsUnauthorized(err) || hub.IsNotFound(err) || hub.IsConflict(err) {
		t.Fatalf("classification helpers disagree for %v", err)
	}
}

func TestGitBlobSHA1_KnownValue(t *testing.T) {
	// git hash-object of an empty file
	if got := hub.GitBlobSHA1(nil); got != "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391" {
		t.Fatalf("GitBlobSHA1(empty) = %s", got)
	}
}

func TestSplitRepoID(t *testing.T) {
	ns, name := hub.SplitRepoID(" org/model ")
	if ns != "org" || name != "model" {
		t.Fatalf("SplitRepoID = %q %q", ns, name)
	}
	ns, name = hub.SplitRepoID("model")
	if ns != "" || name != "model" {
		t.Fatalf("SplitRepoID bare = %q %q", ns, name)
	}
}
