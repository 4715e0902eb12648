// Package hubtest provides an in-memory Hugging Face Hub for tests.
package hubtest

import (
	"bufio"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Token is the only bearer token the fake hub accepts.
const Token = "hf_test_token"

// User is the identity returned for Token.
const User = "tester"

type file struct {
	content []byte
	lfs     bool
}

// Server is a fake hub backed by memory.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	repos    map[string]map[string]file
	lfs      map[string][]byte
	commits  map[string]int
	datasets map[string][]json.RawMessage

	requests atomic.Int64
}

// NewServer starts a fake hub. Close it with s.Close().
func NewServer() *Server {
	s := &Server{
		repos:    map[string]map[string]file{},
		lfs:      map[string][]byte{},
		commits:  map[string]int{},
		datasets: map[string][]json.RawMessage{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Commits returns the number of commits pushed to repoID.
func (s *Server) Commits(repoID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits[repoID]
}

// File returns the stored content of path in repoID.
func (s *Server) File(repoID, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.repos[repoID][path]
	return f.content, ok
}

// PutFile seeds a repository file without a commit being recorded.
func (s *Server) PutFile(repoID, path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repos[repoID] == nil {
		s.repos[repoID] = map[string]file{}
	}
	s.repos[repoID][path] = file{content: content}
}

// AddDatasetRows seeds rows for dataset/split; each row is marshaled to JSON.
func (s *Server) AddDatasetRows(dataset, split string, rows ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dataset + "/" + split
	for _, r := range rows {
		b, _ := json.Marshal(r)
		s.datasets[key] = append(s.datasets[key], b)
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	p := r.URL.Path

	switch {
	case p == "/rows":
		s.rows(w, r)
	case strings.HasPrefix(p, "/lfs-upload/"):
		s.lfsPut(w, r)
	case !s.authorized(r) && r.Method != http.MethodGet:
		writeErr(w, http.StatusUnauthorized, "Invalid credentials in Authorization header")
	case p == "/api/whoami-v2":
		s.whoami(w, r)
	case p == "/api/repos/create":
		s.createRepo(w, r)
	case strings.HasPrefix(p, "/api/models/"):
		s.models(w, r, strings.TrimPrefix(p, "/api/models/"))
	case strings.HasSuffix(p, ".git/info/lfs/objects/batch"):
		s.lfsBatch(w, r, strings.TrimSuffix(strings.TrimPrefix(p, "/"), ".git/info/lfs/objects/batch"))
	case strings.Contains(p, "/resolve/"):
		s.resolve(w, r)
	default:
		writeErr(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+Token
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeErr(w, http.StatusUnauthorized, "Invalid credentials in Authorization header")
		return
	}
	writeJSON(w, map[string]any{
		"name": User,
		"type": "user",
		"orgs": []map[string]string{{"name": "test-org"}},
		"auth": map[string]any{"accessToken": map[string]string{"displayName": "ci", "role": "write"}},
	})
}

func (s *Server) createRepo(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name         string `json:"name"`
		Organization string `json:"organization"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	ns := in.Organization
	if ns == "" {
		ns = User
	}
	id := ns + "/" + in.Name

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.repos[id]; ok {
		writeErr(w, http.StatusConflict, "You already created this model repo")
		return
	}
	s.repos[id] = map[string]file{".gitattributes": {content: []byte("*.bin filter=lfs diff=lfs merge=lfs -text\n")}}
	writeJSON(w, map[string]string{"url": s.URL + "/" + id})
}

// models dispatches /api/models/{ns}/{name}/{tree|preupload|commit}/{rev}.
func (s *Server) models(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.SplitN(rest, "/", 4)
	if len(parts) < 4 {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}
	id := parts[0] + "/" + parts[1]

	s.mu.Lock()
	_, exists := s.repos[id]
	s.mu.Unlock()
	if !exists {
		writeErr(w, http.StatusNotFound, "Repository not found")
		return
	}

	switch parts[2] {
	case "tree":
		s.tree(w, id)
	case "preupload":
		s.preupload(w, r)
	case "commit":
		s.commit(w, r, id)
	default:
		writeErr(w, http.StatusNotFound, "not found")
	}
}

func gitOID(b []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(b)) + "\x00"))
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

func shaHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *Server) tree(w http.ResponseWriter, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for path, f := range s.repos[id] {
		e := map[string]any{"type": "file", "path": path, "size": len(f.content), "oid": gitOID(f.content)}
		if f.lfs {
			pointer := fmt.Sprintf("version https://git-lfs.github.com/spec/v1\noid sha256:%s\nsize %d\n", shaHex(f.content), len(f.content))
			e["oid"] = gitOID([]byte(pointer))
			e["lfs"] = map[string]any{"oid": shaHex(f.content), "size": len(f.content)}
		}
		out = append(out, e)
	}
	writeJSON(w, out)
}

func (s *Server) preupload(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Files []struct {
			Path string `json:"path"`
		} `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	out := []map[string]any{}
	for _, f := range in.Files {
		mode := "regular"
		if strings.HasSuffix(f.Path, ".bin") || strings.HasSuffix(f.Path, ".safetensors") {
			mode = "lfs"
		}
		out = append(out, map[string]any{"path": f.Path, "uploadMode": mode, "shouldIgnore": false})
	}
	writeJSON(w, map[string]any{"files": out})
}

func (s *Server) lfsBatch(w http.ResponseWriter, r *http.Request, id string) {
	var in struct {
		Objects []struct {
			OID  string `json:"oid"`
			Size int    `json:"size"`
		} `json:"objects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []map[string]any{}
	for _, o := range in.Objects {
		obj := map[string]any{"oid": o.OID, "size": o.Size}
		if _, ok := s.lfs[o.OID]; !ok {
			obj["actions"] = map[string]any{
				"upload": map[string]any{"href": s.URL + "/lfs-upload/" + o.OID, "header": map[string]string{"X-Upload": "1"}},
			}
		}
		out = append(out, obj)
	}
	w.Header().Set("Content-Type", "application/vnd.git-lfs+json")
	_ = json.NewEncoder(w).Encode(map[string]any{"objects": out})
}

func (s *Server) lfsPut(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		writeErr(w, http.StatusBadRequest, "storage does not accept hub tokens")
		return
	}
	oid := strings.TrimPrefix(r.URL.Path, "/lfs-upload/")
	b, _ := io.ReadAll(r.Body)
	if shaHex(b) != oid {
		writeErr(w, http.StatusBadRequest, "sha256 mismatch")
		return
	}
	s.mu.Lock()
	s.lfs[oid] = b
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) commit(w http.ResponseWriter, r *http.Request, id string) {
	if r.Header.Get("Content-Type") != "application/x-ndjson" {
		writeErr(w, http.StatusBadRequest, "expected ndjson")
		return
	}
	type line struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	staged := map[string]file{}
	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	for sc.Scan() {
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		switch l.Key {
		case "file":
			var v struct{ Path, Content, Encoding string }
			_ = json.Unmarshal(l.Value, &v)
			b, err := base64.StdEncoding.DecodeString(v.Content)
			if err != nil {
				writeErr(w, http.StatusBadRequest, err.Error())
				return
			}
			staged[v.Path] = file{content: b}
		case "lfsFile":
			var v struct {
				Path string `json:"path"`
				OID  string `json:"oid"`
			}
			_ = json.Unmarshal(l.Value, &v)
			s.mu.Lock()
			b, ok := s.lfs[v.OID]
			s.mu.Unlock()
			if !ok {
				writeErr(w, http.StatusUnprocessableEntity, "lfs object not uploaded: "+v.OID)
				return
			}
			staged[v.Path] = file{content: b, lfs: true}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for p, f := range staged {
		s.repos[id][p] = f
	}
	s.commits[id]++
	oid := fmt.Sprintf("%040d", s.commits[id])
	writeJSON(w, map[string]string{"commitOid": oid, "commitUrl": s.URL + "/" + id + "/commit/" + oid})
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	before, after, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/resolve/")
	_, name, ok := strings.Cut(after, "/")
	if !ok {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}
	s.mu.Lock()
	f, found := s.repos[before][name]
	s.mu.Unlock()
	if !found {
		writeErr(w, http.StatusNotFound, "Entry not found")
		return
	}
	_, _ = w.Write(f.content)
}

func (s *Server) rows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("dataset") + "/" + q.Get("split")
	offset, _ := strconv.Atoi(q.Get("offset"))
	length, _ := strconv.Atoi(q.Get("length"))

	s.mu.Lock()
	all, ok := s.datasets[key]
	s.mu.Unlock()
	if !ok {
		writeErr(w, http.StatusNotFound, "The dataset does not exist")
		return
	}
	rows := []map[string]any{}
	for i := offset; i < offset+length && i < len(all); i++ {
		rows = append(rows, map[string]any{"row_idx": i, "row": all[i], "truncated_cells": []string{}})
	}
	writeJSON(w, map[string]any{"rows": rows, "num_rows_total": len(all)})
}
