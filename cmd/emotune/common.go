package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/idlab-discover/emotune-cli/internal/aibom"
	"github.com/idlab-discover/emotune-cli/internal/dataset"
	"github.com/idlab-discover/emotune-cli/internal/hub"
	"github.com/idlab-discover/emotune-cli/internal/inference"
	"github.com/idlab-discover/emotune-cli/internal/metrics"
	"github.com/idlab-discover/emotune-cli/internal/model"
	"github.com/idlab-discover/emotune-cli/internal/publisher"
	"github.com/idlab-discover/emotune-cli/internal/runstore"
	"github.com/idlab-discover/emotune-cli/internal/tokenizer"
	"github.com/idlab-discover/emotune-cli/internal/trainer"
	"github.com/idlab-discover/emotune-cli/internal/ui"
)

const (
	modeOnline = "online"
	modeDummy  = "dummy"
)

// resolveLogLevel returns the effective log level (config, env or flag).
func resolveLogLevel() string {
	level := strings.ToLower(strings.TrimSpace(viper.GetString("log-level")))
	if level == "" {
		return "standard"
	}
	return level
}

// settings are the global options every command resolves first.
type settings struct {
	level string
	quiet bool
	mode  string
}

func resolveSettings(stderr io.Writer) (settings, error) {
	s := settings{level: resolveLogLevel()}
	switch s.level {
	case "quiet", "standard", "debug":
		// ok
	default:
		return s, fmt.Errorf("invalid --log-level %q (expected quiet|standard|debug)", s.level)
	}
	s.quiet = s.level == "quiet"

	s.mode = strings.ToLower(strings.TrimSpace(viper.GetString("hf-mode")))
	if s.mode == "" {
		s.mode = modeOnline
	}
	switch s.mode {
	case modeOnline, modeDummy:
		// ok
	default:
		return s, fmt.Errorf("invalid --hf-mode %q (expected online|dummy)", s.mode)
	}

	// Wire internal package logging for debug mode
	if s.level == "debug" {
		setPackageLoggers(stderr)
	} else {
		setPackageLoggers(nil)
	}
	return s, nil
}

func setPackageLoggers(w io.Writer) {
	aibom.SetLogger(w)
	dataset.SetLogger(w)
	hub.SetLogger(w)
	inference.SetLogger(w)
	model.SetLogger(w)
	publisher.SetLogger(w)
	runstore.SetLogger(w)
	tokenizer.SetLogger(w)
	trainer.SetLogger(w)
}

// newHubClient builds a hub client from the global hub settings.
func newHubClient() *hub.Client {
	timeout := viper.GetInt("hub-timeout")
	if timeout <= 0 {
		timeout = 30
	}
	c := hub.NewClient(time.Duration(timeout)*time.Second, viper.GetString("hub-token"))
	c.BaseURL = viper.GetString("hub-endpoint")
	c.DatasetsServerURL = viper.GetString("datasets-endpoint")
	return c
}

// newWorkflow returns nil in quiet mode; the helpers below accept nil.
func newWorkflow(s settings, w io.Writer) *ui.Workflow {
	if s.quiet {
		return nil
	}
	return ui.NewWorkflow(w)
}

type stage struct {
	wf  *ui.Workflow
	idx int
}

func addStage(wf *ui.Workflow, name string) stage {
	if wf == nil {
		return stage{idx: -1}
	}
	return stage{wf: wf, idx: wf.AddTask(name)}
}

func (s stage) start(msg string) {
	if s.wf != nil {
		s.wf.StartTask(s.idx, ui.Dim.Render(msg))
	}
}

func (s stage) update(msg string) {
	if s.wf != nil {
		s.wf.UpdateMessage(s.idx, ui.Dim.Render(msg))
	}
}

func (s stage) done(details string) {
	if s.wf != nil {
		s.wf.CompleteTask(s.idx, details)
	}
}

func (s stage) skip(reason string) {
	if s.wf != nil {
		s.wf.SkipTask(s.idx, reason)
	}
}

// finish marks the stage done or failed depending on err and returns err.
func (s stage) finish(details string, err error) error {
	if s.wf == nil {
		return err
	}
	if err != nil {
		s.wf.FailTask(s.idx, err.Error())
	} else {
		s.wf.CompleteTask(s.idx, details)
	}
	return err
}

func startWorkflow(wf *ui.Workflow) {
	if wf != nil {
		wf.Start()
	}
}

func stopWorkflow(wf *ui.Workflow) {
	if wf != nil {
		wf.Stop()
	}
}

// defaultRunsDB is $HOME/.emotune/runs.db, or ./runs.db without a home.
func defaultRunsDB() string {
	if p := viper.GetString("runs-db"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return runstore.FileName
	}
	return filepath.Join(home, ".emotune", runstore.FileName)
}

func openRunStore() (*runstore.Store, error) {
	return runstore.Open(defaultRunsDB())
}

func evalRows(results ...metrics.EvalResult) []ui.EvalRow {
	rows := make([]ui.EvalRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, ui.EvalRow{
			Split:    r.Split,
			Epoch:    r.Epoch,
			Step:     r.Step,
			Loss:     r.Loss,
			Accuracy: r.Accuracy,
			Samples:  r.Samples,
			Runtime:  r.Runtime,
		})
	}
	return rows
}
