package ui

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// EvalRow mirrors metrics.EvalResult so ui stays free of domain imports.
type EvalRow struct {
	Split    string
	Epoch    float64
	Step     int
	Loss     float64
	Accuracy float64
	Samples  int
	Runtime  time.Duration
}

// PredictionRow is one classified sentence.
type PredictionRow struct {
	Text  string
	Label string
	Score float64
}

// RunRow is one entry of the run registry.
type RunRow struct {
	ID        string
	Status    string
	BaseModel string
	Dataset   string
	OutputDir string
	Started   time.Time
	Duration  time.Duration
	Accuracy  *float64
	Error     string
}

// PublishSummary describes a finished publish.
type PublishSummary struct {
	RepoID    string
	URL       string
	Workspace string
	Created   bool
	NoOp      bool
	Changed   []string
	Commit    string
}

// ReportUI prints command results. In quiet mode results are printed as
// plain tab-separated lines without decoration.
type ReportUI struct {
	writer io.Writer
	quiet  bool
}

// NewReportUI creates a report printer writing to w.
func NewReportUI(w io.Writer, quiet bool) *ReportUI {
	return &ReportUI{writer: w, quiet: quiet}
}

// PrintEvaluations renders evaluation results as a table.
func (r *ReportUI) PrintEvaluations(title string, rows []EvalRow) {
	if r.quiet {
		for _, e := range rows {
			fmt.Fprintf(r.writer, "%s\t%d\t%.4f\t%.4f\n", e.Split, e.Step, e.Loss, e.Accuracy)
		}
		return
	}
	if len(rows) == 0 {
		fmt.Fprintln(r.writer, FormatStatus("info", "no evaluations recorded"))
		return
	}

	var sb strings.Builder
	sb.WriteString(SectionHeader.Render(title))
	sb.WriteString("\n")
	sb.WriteString(Dim.Render(fmt.Sprintf("%-12s %6s %7s %8s %9s %8s %10s", "split", "epoch", "step", "loss", "accuracy", "samples", "samples/s")))
	for _, e := range rows {
		rate := 0.0
		if e.Runtime > 0 {
			rate = float64(e.Samples) / e.Runtime.Seconds()
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%-12s %6.2f %7d %8.4f ", e.Split, e.Epoch, e.Step, e.Loss))
		sb.WriteString(accuracyStyle(e.Accuracy).Render(fmt.Sprintf("%8.2f%%", e.Accuracy*100)))
		sb.WriteString(fmt.Sprintf(" %8d %10.1f", e.Samples, rate))
	}
	fmt.Fprintln(r.writer, Box.Render(sb.String()))
}

// PrintPredictions renders one line per sentence.
func (r *ReportUI) PrintPredictions(rows []PredictionRow) {
	for _, p := range rows {
		if r.quiet {
			fmt.Fprintf(r.writer, "%s\t%.4f\t%s\n", p.Label, p.Score, p.Text)
			continue
		}
		fmt.Fprintf(r.writer, "%s %s %s %s\n",
			GetBullet(),
			LabelStyle(p.Label).Render(fmt.Sprintf("%-9s", p.Label)),
			Dim.Render(fmt.Sprintf("%5.1f%%", p.Score*100)),
			truncate(p.Text, 80))
	}
}

// PrintRuns renders the run registry, newest first.
func (r *ReportUI) PrintRuns(rows []RunRow) {
	if r.quiet {
		for _, run := range rows {
			fmt.Fprintf(r.writer, "%s\t%s\t%s\t%s\n", run.ID, run.Status, run.Started.Format(time.RFC3339), run.OutputDir)
		}
		return
	}
	if len(rows) == 0 {
		fmt.Fprintln(r.writer, FormatStatus("info", "no runs recorded"))
		return
	}
	for _, run := range rows {
		fmt.Fprintf(r.writer, "%s %s %s\n", statusIcon(run.Status), Highlight.Render(shortID(run.ID)), Dim.Render(run.Started.Local().Format("2006-01-02 15:04")))
		fmt.Fprintf(r.writer, "    %s\n", FormatKeyValue("model", run.BaseModel+" on "+run.Dataset))
		fmt.Fprintf(r.writer, "    %s\n", FormatKeyValue("output", run.OutputDir))
		if run.Accuracy != nil {
			fmt.Fprintf(r.writer, "    %s\n", FormatKeyValue("best accuracy", accuracyStyle(*run.Accuracy).Render(fmt.Sprintf("%.2f%%", *run.Accuracy*100))))
		}
		if run.Duration > 0 {
			fmt.Fprintf(r.writer, "    %s\n", FormatKeyValue("duration", run.Duration.Round(time.Second).String()))
		}
		if run.Error != "" {
			fmt.Fprintf(r.writer, "    %s\n", Error.Render(run.Error))
		}
	}
}

// PrintPublish renders the outcome of a publish.
func (r *ReportUI) PrintPublish(s PublishSummary) {
	if r.quiet {
		fmt.Fprintln(r.writer, s.URL)
		return
	}
	var sb strings.Builder
	switch {
	case s.NoOp:
		sb.WriteString(FormatStatus("info", "Hub repository already up to date"))
	case s.Created:
		sb.WriteString(FormatStatus("success", "Published to new repository"))
	default:
		sb.WriteString(FormatStatus("success", "Published new revision"))
	}
	sb.WriteString("\n\n")
	sb.WriteString(FormatKeyValue("Repository", Highlight.Render(s.RepoID)))
	sb.WriteString("\n")
	sb.WriteString(FormatKeyValue("URL", s.URL))
	sb.WriteString("\n")
	sb.WriteString(FormatKeyValue("Workspace", s.Workspace))
	if s.Commit != "" {
		sb.WriteString("\n")
		sb.WriteString(FormatKeyValue("Commit", s.Commit))
	}
	if len(s.Changed) > 0 {
		sb.WriteString("\n")
		sb.WriteString(Dim.Render(fmt.Sprintf("Uploaded %d file(s):", len(s.Changed))))
		for _, f := range s.Changed {
			sb.WriteString("\n  ")
			sb.WriteString(GetBullet())
			sb.WriteString(" ")
			sb.WriteString(f)
		}
	}
	fmt.Fprintln(r.writer, Box.Render(sb.String()))
}

func accuracyStyle(acc float64) styleWrapper {
	switch {
	case acc >= 0.9:
		return Success
	case acc >= 0.6:
		return Warning
	default:
		return Error
	}
}

func statusIcon(status string) string {
	switch status {
	case "completed":
		return GetCheckMark()
	case "failed":
		return GetCrossMark()
	case "cancelled":
		return GetWarnMark()
	default:
		return Secondary.Render("●")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
