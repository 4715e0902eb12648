package ui

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
)

func TestMain(m *testing.M) {
	Init(true)
	m.Run()
}

func TestColor(t *testing.T) {
	Init(false)
	defer Init(true)

	got := Color("hello", FgGreen)
	if want := FgGreen + "hello" + Reset; got != want {
		t.Fatalf("Color() = %q, want %q", got, want)
	}
	if got := Color("hello", ""); got != "hello" {
		t.Fatalf("Color with empty code = %q", got)
	}
}

func TestColorDisabled(t *testing.T) {
	if got := Color("hello", FgRed); got != "hello" {
		t.Fatalf("Color() = %q, want plain text", got)
	}
}

func TestFormatStatus(t *testing.T) {
	tests := []struct {
		status string
		icon   string
	}{
		{"success", "✓"},
		{"error", "✗"},
		{"warning", "⚠"},
		{"info", "ℹ"},
		{"other", "•"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := FormatStatus(tt.status, "msg")
			if got != tt.icon+" msg" {
				t.Fatalf("FormatStatus() = %q", got)
			}
		})
	}
}

func TestReportUI_PrintEvaluations(t *testing.T) {
	rows := []EvalRow{
		{Split: "validation", Epoch: 1, Step: 10, Loss: 0.5, Accuracy: 0.925, Samples: 100, Runtime: time.Second},
	}

	t.Run("standard", func(t *testing.T) {
		var buf bytes.Buffer
		NewReportUI(&buf, false).PrintEvaluations("Evaluation", rows)
		out := buf.String()
		for _, want := range []string{"Evaluation", "validation", "0.5000", "92.50%", "100.0"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})
	t.Run("quiet", func(t *testing.T) {
		var buf bytes.Buffer
		NewReportUI(&buf, true).PrintEvaluations("Evaluation", rows)
		if got, want := buf.String(), "validation\t10\t0.5000\t0.9250\n"; got != want {
			t.Fatalf("output = %q, want %q", got, want)
		}
	})
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		NewReportUI(&buf, false).PrintEvaluations("Evaluation", nil)
		if !strings.Contains(buf.String(), "no evaluations") {
			t.Fatalf("output = %q", buf.String())
		}
	})
}

func TestReportUI_PrintPredictions(t *testing.T) {
	rows := []PredictionRow{{Text: "i am so happy", Label: "joy", Score: 0.875}}

	var buf bytes.Buffer
	NewReportUI(&buf, true).PrintPredictions(rows)
	if got, want := buf.String(), "joy\t0.8750\ti am so happy\n"; got != want {
		t.Fatalf("quiet output = %q, want %q", got, want)
	}

	buf.Reset()
	NewReportUI(&buf, false).PrintPredictions(rows)
	if out := buf.String(); !strings.Contains(out, "joy") || !strings.Contains(out, "87.5%") {
		t.Fatalf("output = %q", out)
	}
}

func TestReportUI_PrintRuns(t *testing.T) {
	acc := 0.5
	rows := []RunRow{{
		ID:        "0123456789abcdef",
		Status:    "failed",
		BaseModel: "distilbert-base-uncased",
		Dataset:   "emotion",
		OutputDir: "results",
		Started:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Accuracy:  &acc,
		Error:     "device mismatch",
	}}

	var buf bytes.Buffer
	NewReportUI(&buf, false).PrintRuns(rows)
	out := buf.String()
	for _, want := range []string{"✗", "01234567", "distilbert-base-uncased on emotion", "50.00%", "device mismatch"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Error("run id not shortened")
	}
}

func TestReportUI_PrintPublish(t *testing.T) {
	tests := []struct {
		name string
		in   PublishSummary
		want string
	}{
		{"noop", PublishSummary{RepoID: "u/m", NoOp: true}, "already up to date"},
		{"created", PublishSummary{RepoID: "u/m", Created: true, Changed: []string{"model.bin"}}, "new repository"},
		{"update", PublishSummary{RepoID: "u/m", Changed: []string{"README.md"}}, "new revision"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewReportUI(&buf, false).PrintPublish(tt.in)
			if !strings.Contains(buf.String(), tt.want) {
				t.Fatalf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}

	var buf bytes.Buffer
	NewReportUI(&buf, true).PrintPublish(PublishSummary{URL: "https://huggingface.co/u/m"})
	if buf.String() != "https://huggingface.co/u/m\n" {
		t.Fatalf("quiet output = %q", buf.String())
	}
}

func TestWorkflow_FinalRender(t *testing.T) {
	var buf bytes.Buffer
	wf := NewWorkflow(&buf)
	load := wf.AddTask("Loading dataset")
	train := wf.AddTask("Training")
	upload := wf.AddTask("Uploading")
	wf.Start()
	wf.StartTask(load, "")
	wf.CompleteTask(load, "60 examples")
	wf.StartTask(train, "epoch 1")
	wf.FailTask(train, "device mismatch")
	wf.SkipTask(upload, "not requested")
	wf.Stop()

	out := buf.String()
	for _, want := range []string{"✓ Loading dataset → 60 examples", "✗ Training → device mismatch", "⊘ Uploading → not requested"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if wf.Status(train) != TaskFailed {
		t.Fatalf("Status = %v", wf.Status(train))
	}
	if wf.Status(99) != TaskPending {
		t.Fatal("out of range status should be pending")
	}
}

func TestCheckpointSelector(t *testing.T) {
	acc := 0.9
	opts := []CheckpointOption{
		{Path: "results/checkpoint-2", Step: 2, Epoch: 1},
		{Path: "results/checkpoint-4", Step: 4, Epoch: 2, Accuracy: &acc, Best: true},
	}

	item := checkpointItem{opts[1]}
	if !strings.Contains(item.Title(), "(best)") || !strings.Contains(item.Description(), "90.00%") {
		t.Fatalf("item = %q / %q", item.Title(), item.Description())
	}

	t.Run("enter selects", func(t *testing.T) {
		m := newCheckpointSelector("Checkpoints", opts)
		m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
		if !m.confirmed || m.chosen != "results/checkpoint-2" {
			t.Fatalf("confirmed=%v chosen=%q", m.confirmed, m.chosen)
		}
	})
	t.Run("esc cancels", func(t *testing.T) {
		m := newCheckpointSelector("Checkpoints", opts)
		m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
		if m.confirmed || !m.quitting {
			t.Fatalf("confirmed=%v quitting=%v", m.confirmed, m.quitting)
		}
	})
}

func TestSelectCheckpoint_Empty(t *testing.T) {
	if _, err := SelectCheckpoint("Checkpoints", nil); err == nil {
		t.Fatal("expected error for empty options")
	}
}

func TestTask_Duration(t *testing.T) {
	task := &Task{Name: "Training"}
	if task.Duration() != 0 {
		t.Fatal("pending task has a duration")
	}
	task.started = time.Now().Add(-3 * time.Second)
	task.end(TaskDone)
	d := task.Duration()
	if d < 3*time.Second {
		t.Fatalf("Duration = %v", d)
	}
	task.end(TaskDone)
	if task.Duration() != d {
		t.Fatal("ending twice moved the finish time")
	}

	wf := NewWorkflow(io.Discard)
	line := wf.renderTask(task, true)
	if !strings.Contains(line, "(3s)") && !strings.Contains(line, "(3.") {
		t.Fatalf("line = %q", line)
	}
}
