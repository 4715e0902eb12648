package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// TaskStatus represents the status of a pipeline stage
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskDone
	TaskFailed
	TaskSkipped
)

// Task is one stage of a pipeline (load dataset, train, upload, ...).
type Task struct {
	Name    string
	Status  TaskStatus
	Message string
	Details string

	started  time.Time
	finished time.Time
}

// Duration is how long the stage ran; zero until it has started.
func (t *Task) Duration() time.Duration {
	switch {
	case t.started.IsZero():
		return 0
	case t.finished.IsZero():
		return time.Since(t.started)
	default:
		return t.finished.Sub(t.started)
	}
}

func (t *Task) end(status TaskStatus) {
	t.Status = status
	if !t.started.IsZero() && t.finished.IsZero() {
		t.finished = time.Now()
	}
}

// Workflow renders pipeline stages with a spinner on the running stage.
// All methods are safe for concurrent use; the spinner runs in its own goroutine.
type Workflow struct {
	writer     io.Writer
	tasks      []*Task
	mu         sync.Mutex
	spinnerIdx int
	stopChan   chan struct{}
	doneChan   chan struct{}
	running    bool
	lastLines  int
}

// NewWorkflow creates a workflow that renders to w.
func NewWorkflow(w io.Writer) *Workflow {
	return &Workflow{
		writer:   w,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// AddTask appends a pending stage and returns its index.
func (wf *Workflow) AddTask(name string) int {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	wf.tasks = append(wf.tasks, &Task{Name: name, Status: TaskPending})
	return len(wf.tasks) - 1
}

func (wf *Workflow) update(idx int, fn func(*Task)) {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	if idx >= 0 && idx < len(wf.tasks) {
		fn(wf.tasks[idx])
	}
}

// StartTask marks a stage as running.
func (wf *Workflow) StartTask(idx int, message string) {
	wf.update(idx, func(t *Task) {
		t.Status, t.Message = TaskRunning, message
		if t.started.IsZero() {
			t.started = time.Now()
		}
	})
}

// UpdateMessage replaces the message of a stage.
func (wf *Workflow) UpdateMessage(idx int, message string) {
	wf.update(idx, func(t *Task) { t.Message = message })
}

// CompleteTask marks a stage as done.
func (wf *Workflow) CompleteTask(idx int, details string) {
	wf.update(idx, func(t *Task) { t.Details = details; t.end(TaskDone) })
}

// FailTask marks a stage as failed.
func (wf *Workflow) FailTask(idx int, errMsg string) {
	wf.update(idx, func(t *Task) { t.Message = errMsg; t.end(TaskFailed) })
}

// SkipTask marks a stage as skipped.
func (wf *Workflow) SkipTask(idx int, reason string) {
	wf.update(idx, func(t *Task) { t.Message = reason; t.end(TaskSkipped) })
}

// Status returns the status of a stage.
func (wf *Workflow) Status(idx int) TaskStatus {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	if idx < 0 || idx >= len(wf.tasks) {
		return TaskPending
	}
	return wf.tasks[idx].Status
}

// Start begins the spinner animation.
func (wf *Workflow) Start() {
	wf.mu.Lock()
	if wf.running {
		wf.mu.Unlock()
		return
	}
	wf.running = true
	wf.mu.Unlock()

	go func() {
		defer close(wf.doneChan)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-wf.stopChan:
				return
			case <-ticker.C:
				wf.mu.Lock()
				wf.spinnerIdx = (wf.spinnerIdx + 1) % len(spinnerFrames)
				wf.mu.Unlock()
				wf.render(false)
			}
		}
	}()
}

// Stop ends the animation and prints the final state of every stage.
func (wf *Workflow) Stop() {
	wf.mu.Lock()
	if !wf.running {
		wf.mu.Unlock()
		return
	}
	wf.running = false
	wf.mu.Unlock()

	close(wf.stopChan)
	<-wf.doneChan
	wf.render(true)
}

func (wf *Workflow) render(final bool) {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	var b strings.Builder
	// Move up over the previous frame and clear it.
	for i := 0; i < wf.lastLines; i++ {
		b.WriteString("\033[A\033[K")
	}

	for _, task := range wf.tasks {
		b.WriteString(wf.renderTask(task, final))
		b.WriteString("\n")
	}

	if final {
		wf.lastLines = 0
	} else {
		wf.lastLines = len(wf.tasks)
	}
	fmt.Fprint(wf.writer, b.String())
}

func (wf *Workflow) renderTask(task *Task, final bool) string {
	var icon string
	var nameStyle styleWrapper

	switch task.Status {
	case TaskRunning:
		if final {
			icon, nameStyle = Muted.Render("○"), StepPending
		} else {
			icon, nameStyle = Secondary.Render(spinnerFrames[wf.spinnerIdx]), StepRunning
		}
	case TaskDone:
		icon, nameStyle = GetCheckMark(), StepComplete
	case TaskFailed:
		icon, nameStyle = GetCrossMark(), StepFailed
	case TaskSkipped:
		icon, nameStyle = Warning.Render("⊘"), StepSkipped
	default:
		icon, nameStyle = Muted.Render("○"), StepPending
	}

	line := fmt.Sprintf("%s %s", icon, nameStyle.Render(task.Name))
	switch {
	case task.Status == TaskDone && task.Details != "":
		line += " " + Dim.Render("→ "+task.Details)
	case task.Status == TaskFailed && task.Message != "":
		line += " " + Error.Render("→ "+task.Message)
	case task.Status == TaskSkipped && task.Message != "":
		line += " " + Warning.Render("→ "+task.Message)
	case task.Status == TaskRunning && !final && task.Message != "":
		line += " " + Dim.Render(task.Message)
	}
	// Sub-second stages show no time.
	if d := task.Duration(); d >= time.Second && task.Status != TaskPending {
		line += " " + Muted.Render("("+d.Round(100*time.Millisecond).String()+")")
	}
	return line
}
