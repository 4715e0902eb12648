package ui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/list"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/idlab-discover/emotune-cli/internal/apperr"
)

// CheckpointOption is one selectable checkpoint directory.
type CheckpointOption struct {
	Path     string
	Step     int
	Epoch    float64
	Accuracy *float64
	Best     bool
}

type checkpointItem struct{ CheckpointOption }

func (i checkpointItem) Title() string {
	title := i.Path
	if i.Best {
		title += " " + Success.Render("(best)")
	}
	return title
}

func (i checkpointItem) Description() string {
	desc := fmt.Sprintf("step %d · epoch %.2f", i.Step, i.Epoch)
	if i.Accuracy != nil {
		desc += fmt.Sprintf(" · accuracy %.2f%%", *i.Accuracy*100)
	}
	return Dim.Render(desc)
}

func (i checkpointItem) FilterValue() string { return i.Path }

// checkpointSelector is the Bubble Tea model for picking one checkpoint.
type checkpointSelector struct {
	list      list.Model
	chosen    string
	confirmed bool
	quitting  bool
}

func newCheckpointSelector(title string, opts []CheckpointOption) *checkpointSelector {
	items := make([]list.Item, len(opts))
	for i, o := range opts {
		items[i] = checkpointItem{o}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorMark).
		BorderForeground(ColorAccent)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorTextDim).
		BorderForeground(ColorAccent)

	l := list.New(items, delegate, 80, 20)
	l.Title = title
	l.SetShowStatusBar(true)
	l.SetStatusBarItemName("checkpoint", "checkpoints")
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Padding(0, 0, 1, 0)

	return &checkpointSelector{list: l}
}

func (m *checkpointSelector) Init() tea.Cmd { return nil }

func (m *checkpointSelector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if m.list.SettingFilter() {
			break
		}
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if i, ok := m.list.SelectedItem().(checkpointItem); ok {
				m.chosen = i.Path
				m.confirmed = true
			}
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-4)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *checkpointSelector) View() tea.View {
	if m.quitting {
		return tea.NewView("")
	}
	var b strings.Builder
	b.WriteString(m.list.View())
	b.WriteString("\n")
	b.WriteString(Dim.Render("↑/↓: navigate · /: filter · enter: select · esc: cancel"))
	return tea.NewView(b.String())
}

// SelectCheckpoint shows an interactive list and returns the chosen path.
// Leaving without a choice returns apperr.ErrCancelled.
func SelectCheckpoint(title string, opts []CheckpointOption) (string, error) {
	if len(opts) == 0 {
		return "", apperr.User("no checkpoints to choose from")
	}
	p := tea.NewProgram(newCheckpointSelector(title, opts))
	m, err := p.Run()
	if err != nil {
		return "", err
	}
	sel := m.(*checkpointSelector)
	if !sel.confirmed {
		return "", apperr.ErrCancelled
	}
	return sel.chosen, nil
}
