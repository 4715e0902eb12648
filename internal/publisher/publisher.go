// Package publisher serializes a trained checkpoint into a local workspace
// and pushes it, with its model card and AIBOM, to a hub repository.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/idlab-discover/emotune-cli/internal/aibom"
	"github.com/idlab-discover/emotune-cli/internal/hub"
	"github.com/idlab-discover/emotune-cli/internal/model"
	"github.com/idlab-discover/emotune-cli/internal/modelcard"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
)

// Hub is the subset of the hub client used for publishing.
type Hub interface {
	WhoAmI(ctx context.Context) (*hub.Identity, error)
	CreateRepo(ctx context.Context, repoID string, private bool) (*hub.RepoURL, error)
	ListFiles(ctx context.Context, repoID, revision string) ([]hub.RepoFile, error)
	Commit(ctx context.Context, repoID, revision, summary string, files []hub.CommitFile) (*hub.CommitInfo, error)
}

// Stage names a publishing step reported through Options.OnStage.
type Stage string

const (
	StagePreflight Stage = "preflight"
	StageSerialize Stage = "serialize"
	StageCard      Stage = "card"
	StageAIBOM     Stage = "aibom"
	StageAuth      Stage = "auth"
	StageRepo      Stage = "repo"
	StageDiff      Stage = "diff"
	StageUpload    Stage = "upload"
)

// Stages lists the steps in execution order.
var Stages = []Stage{StagePreflight, StageSerialize, StageAuth, StageCard, StageAIBOM, StageRepo, StageDiff, StageUpload}

// Options configures one publish.
type Options struct {
	// RepoID is "namespace/name"; a bare name is published under the
	// authenticated user.
	RepoID        string
	CheckpointDir string
	// WorkDir is the parent of the workspace directory, which is named
	// after the repository.
	WorkDir       string
	Revision      string
	Private       bool
	CommitMessage string
	Card          modelcard.Data

	// OnStage is called when a stage starts (done=false) and when it ends
	// (done=true, err set on failure).
	OnStage func(stage Stage, done bool, detail string, err error)
}

// Result describes the outcome of Publish.
type Result struct {
	RepoID    string
	URL       string
	Workspace string
	Created   bool
	NoOp      bool
	Changed   []string
	Commit    *hub.CommitInfo
}

// Publisher runs the publishing pipeline against a hub.
type Publisher struct {
	Hub Hub
}

// New returns a publisher using h.
func New(h Hub) *Publisher { return &Publisher{Hub: h} }

type stageRunner struct {
	fn func(Stage, bool, string, error)
}

func (s stageRunner) run(st Stage, f func() (string, error)) error {
	if s.fn != nil {
		s.fn(st, false, "", nil)
	}
	detail, err := f()
	if s.fn != nil {
		s.fn(st, true, detail, err)
	}
	return err
}

// Publish runs preflight and serialization, authenticates, generates the
// card and AIBOM for the resolved repo id, creates or reuses the repository
// and commits whatever differs from the remote. When nothing differs no
// commit is made and Result.NoOp is true.
func (p *Publisher) Publish(ctx context.Context, opts Options) (*Result, error) {
	if p.Hub == nil {
		return nil, errors.New("publisher has no hub client")
	}
	if opts.RepoID == "" {
		return nil, errors.New("publish: empty repo id")
	}
	stages := stageRunner{fn: opts.OnStage}
	ws := NewWorkspace(opts.WorkDir, opts.RepoID)
	res := &Result{RepoID: opts.RepoID, Workspace: ws.Dir}

	// No network before the workspace is known to be safe to write into.
	if err := stages.run(StagePreflight, func() (string, error) {
		if err := ws.Check(); err != nil {
			return ws.Dir, err
		}
		// Claim the directory so an interrupted publish can be resumed.
		if _, err := ws.ReadMarker(); err != nil {
			return ws.Dir, ws.WriteMarker(Marker{RepoID: opts.RepoID, Revision: revisionOrMain(opts.Revision), Updated: time.Now().UTC()})
		}
		return ws.Dir, nil
	}); err != nil {
		return nil, err
	}

	var (
		m   *model.Classifier
		tok *tokenizer.Tokenizer
	)
	if err := stages.run(StageSerialize, func() (string, error) {
		var err error
		if m, err = model.Load(opts.CheckpointDir); err != nil {
			return "", err
		}
		if tok, err = tokenizer.Load(opts.CheckpointDir, m.Config.MaxLength); err != nil {
			return "", fmt.Errorf("load tokenizer from %s: %w", opts.CheckpointDir, err)
		}
		return ws.Dir, Serialize(ws.Dir, m, tok)
	}); err != nil {
		return nil, err
	}

	repoID := opts.RepoID
	if err := stages.run(StageAuth, func() (string, error) {
		id, err := p.Hub.WhoAmI(ctx)
		if err != nil {
			return "", fmt.Errorf("authenticate: %w", err)
		}
		if !id.CanWrite() {
			return id.Name, fmt.Errorf("token of %s is read-only", id.Name)
		}
		if ns, name := hub.SplitRepoID(repoID); ns == "" {
			repoID = id.Name + "/" + name
		}
		return id.Name, nil
	}); err != nil {
		return nil, err
	}
	res.RepoID = repoID
	ws.RepoID = repoID

	// The card and AIBOM name the resolved repository, so a bare name and
	// its namespaced form produce identical files.
	if opts.Card.ModelID == "" || opts.Card.ModelID == opts.RepoID {
		opts.Card.ModelID = repoID
	}
	opts.RepoID = repoID

	if err := stages.run(StageCard, func() (string, error) {
		return modelcard.Write(ws.Dir, opts.Card)
	}); err != nil {
		return nil, err
	}

	if err := stages.run(StageAIBOM, func() (string, error) {
		return writeAIBOM(ws.Dir, opts, m)
	}); err != nil {
		return nil, err
	}

	if err := stages.run(StageRepo, func() (string, error) {
		r, err := p.Hub.CreateRepo(ctx, repoID, opts.Private)
		if err != nil {
			return "", err
		}
		res.URL, res.Created = r.URL, r.Created
		return r.URL, nil
	}); err != nil {
		return nil, err
	}

	var changed []hub.CommitFile
	if err := stages.run(StageDiff, func() (string, error) {
		remote, err := p.Hub.ListFiles(ctx, repoID, opts.Revision)
		if err != nil {
			return "", err
		}
		local, err := ws.Files()
		if err != nil {
			return "", fmt.Errorf("read workspace: %w", err)
		}
		changed = Diff(local, remote)
		for _, f := range changed {
			res.Changed = append(res.Changed, f.Path)
		}
		return fmt.Sprintf("%d of %d file(s) changed", len(changed), len(local)), nil
	}); err != nil {
		return nil, err
	}

	marker := Marker{RepoID: repoID, URL: res.URL, Revision: revisionOrMain(opts.Revision), Updated: time.Now().UTC()}
	if prev, err := ws.ReadMarker(); err == nil {
		marker.Commit = prev.Commit
	}

	if len(changed) == 0 {
		res.NoOp = true
		logf(repoID, "remote already up to date, nothing to commit")
		if stages.fn != nil {
			stages.fn(StageUpload, true, "up to date", nil)
		}
		return res, ws.WriteMarker(marker)
	}

	if err := stages.run(StageUpload, func() (string, error) {
		msg := opts.CommitMessage
		if msg == "" {
			msg = "Upload emotion classifier"
		}
		info, err := p.Hub.Commit(ctx, repoID, opts.Revision, msg, changed)
		if err != nil {
			return "", err
		}
		res.Commit = info
		marker.Commit = info.OID
		return info.OID, nil
	}); err != nil {
		return nil, err
	}
	return res, ws.WriteMarker(marker)
}

// Serialize writes the model weights, config and tokenizer files into dir.
func Serialize(dir string, m *model.Classifier, tok *tokenizer.Tokenizer) error {
	if err := m.Save(dir); err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}
	if err := tok.Save(dir); err != nil {
		return fmt.Errorf("serialize tokenizer: %w", err)
	}
	return nil
}

// Diff returns the local files whose content differs from, or is missing
// on, the remote. Remote-only files are left untouched.
func Diff(local []hub.CommitFile, remote []hub.RepoFile) []hub.CommitFile {
	byPath := make(map[string]hub.RepoFile, len(remote))
	for _, r := range remote {
		byPath[r.Path] = r
	}
	var out []hub.CommitFile
	for _, f := range local {
		r, ok := byPath[f.Path]
		if ok && hub.SameContent(r, f.Content) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func writeAIBOM(dir string, opts Options, m *model.Classifier) (string, error) {
	weights, err := os.ReadFile(filepath.Join(dir, model.WeightsFile))
	if err != nil {
		return "", err
	}
	sha := hub.SHA256Hex(weights)

	in := aibom.Input{
		ModelID:      opts.RepoID,
		BaseModel:    m.Config.BaseModel,
		Architecture: model.Architecture,
		Dataset:      opts.Card.Dataset,
		WeightsSHA:   sha,
		SerialSeed:   opts.RepoID + "@" + sha,
		Properties: map[string]string{
			"emotune:vocab_size": fmt.Sprint(m.Config.VocabSize),
			"emotune:num_labels": fmt.Sprint(m.Config.NumLabels),
			"emotune:max_length": fmt.Sprint(m.Config.MaxLength),
		},
	}
	if fi, err := os.Stat(filepath.Join(opts.CheckpointDir, model.WeightsFile)); err == nil {
		in.Timestamp = fi.ModTime().UTC().Truncate(time.Second)
	}
	if len(opts.Card.Results) > 0 {
		r := opts.Card.Results[len(opts.Card.Results)-1]
		in.Accuracy, in.Loss, in.EvalSplit = &r.Accuracy, &r.Loss, r.Split
	}
	if opts.Card.IntendedUse != "" {
		in.UseCases = []string{opts.Card.IntendedUse}
	}
	if opts.Card.Limitations != "" {
		in.Limitations = []string{opts.Card.Limitations}
	}
	if opts.Card.Ethics != "" {
		in.Ethics = []string{opts.Card.Ethics}
	}

	bom, err := aibom.Build(in)
	if err != nil {
		return "", err
	}
	if problems := aibom.Validate(bom); len(problems) > 0 {
		return "", fmt.Errorf("invalid AIBOM: %s", strings.Join(problems, "; "))
	}
	return aibom.Write(bom, dir)
}

func revisionOrMain(rev string) string {
	if rev == "" {
		return hub.DefaultRevision
	}
	return rev
}
