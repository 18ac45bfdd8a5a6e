// Package tui renders a live view of one task.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"language-toolkit/models"
)

const maxLogLines = 10

// TaskUpdate carries a fresh task snapshot.
type TaskUpdate struct {
	Task *models.Task
}

// WatchError ends the watch with an error.
type WatchError struct {
	Err error
}

// watchDone is sent when the update stream closes.
type watchDone struct{}

type Model struct {
	taskID   string
	task     *models.Task
	updates  <-chan *models.Task
	errc     <-chan error
	err      error
	spinner  spinner.Model
	progress progress.Model
	width    int
	quit     bool
	started  time.Time
}

// NewModel watches taskID using the snapshots on updates. errc delivers a
// terminal polling error, if any, after updates closes.
func NewModel(taskID string, updates <-chan *models.Task, errc <-chan error) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		taskID:   taskID,
		updates:  updates,
		errc:     errc,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		width:    80,
		started:  time.Now(),
	}
}

// Task returns the last snapshot received, or nil.
func (m Model) Task() *models.Task {
	return m.task
}

// Err returns the error that ended the watch, if any.
func (m Model) Err() error {
	return m.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

func (m Model) waitForUpdate() tea.Cmd {
	updates, errc := m.updates, m.errc
	return func() tea.Msg {
		task, ok := <-updates
		if ok {
			return TaskUpdate{Task: task}
		}
		if errc != nil {
			if err := <-errc; err != nil {
				return WatchError{Err: err}
			}
		}
		return watchDone{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = maxInt(msg.Width-20, 10)

	case TaskUpdate:
		m.task = msg.Task
		if m.task.Status.IsTerminal() {
			m.quit = true
			return m, tea.Quit
		}
		return m, m.waitForUpdate()

	case WatchError:
		m.err = msg.Err
		m.quit = true
		return m, tea.Quit

	case watchDone:
		m.quit = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		if pm, ok := pm.(progress.Model); ok {
			m.progress = pm
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginBottom(1)
	s.WriteString(headerStyle.Render("Task " + m.taskID))
	s.WriteString("\n\n")

	if m.task == nil {
		if m.err != nil {
			s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
			s.WriteString("\n")
			return s.String()
		}
		s.WriteString(m.spinner.View() + " waiting for server...\n")
		return s.String()
	}

	t := m.task
	status := fmt.Sprintf("%s %-10s %s", t.Status.Icon(), t.Status, t.Kind)
	if !t.Status.IsTerminal() {
		status = m.spinner.View() + " " + status
	}
	s.WriteString(statusStyle(t.Status).Render(status))
	s.WriteString("  ")
	s.WriteString(mutedStyle.Render(time.Since(m.started).Round(time.Second).String()))
	s.WriteString("\n\n")
	s.WriteString(m.progress.ViewAs(float64(t.Progress) / 100))
	s.WriteString("\n\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(maxInt(m.width-2, 20))

	var log strings.Builder
	log.WriteString("Messages\n")
	msgs := t.Messages
	if len(msgs) > maxLogLines {
		msgs = msgs[len(msgs)-maxLogLines:]
	}
	for _, msg := range msgs {
		log.WriteString(fmt.Sprintf("[%s] %s\n", msg.Time.Format("15:04:05"), msg.Text))
	}
	s.WriteString(logStyle.Render(strings.TrimRight(log.String(), "\n")))
	s.WriteString("\n")

	switch {
	case t.Status == models.StatusFailed && t.Error != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("%s: %s", t.Error.Kind, t.Error.Message)))
		s.WriteString("\n")
	case t.Status == models.StatusCompleted:
		s.WriteString(doneStyle.Render(fmt.Sprintf("%d result file(s) ready", len(t.ResultFiles))))
		s.WriteString("\n")
	}
	if m.err != nil {
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		s.WriteString("\n")
	}
	if !m.quit {
		s.WriteString(mutedStyle.Render("Press 'q' to stop watching"))
		s.WriteString("\n")
	}
	return s.String()
}

var (
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

func statusStyle(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.StatusCompleted:
		return doneStyle
	case models.StatusFailed:
		return errorStyle
	case models.StatusPending:
		return mutedStyle
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
