// Package tui provides the interactive admin board for planboard.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 1)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// App is the main TUI application model.
type App struct {
	client       *Client
	tasks        []lifecycle.AdminTask
	selectedIdx  int
	filterIdx    int
	mode         viewMode
	current      *lifecycle.AdminTask
	history      []models.PDREntry
	cmdbar       *CmdBar
	keys         keyMap
	help         help.Model
	bars         progressBars
	width        int
	height       int
	message      string
	isError      bool
	loading      bool
	daemonOnline bool
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	return &App{
		client: NewClient(apiAddr),
		cmdbar: NewCmdBar(),
		keys:   defaultKeyMap(),
		help:   help.New(),
		bars:   newProgressBars(barWidth),
		width:  100,
		height: 30,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchTasks(),
		a.checkDaemon(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.cmdbar.Focused() {
			line, cmd := a.cmdbar.Update(msg)
			if line != "" {
				return a, Execute(a.client, line, a.selectedID())
			}
			return a, cmd
		}
		return a, a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.cmdbar.SetWidth(msg.Width - 6)
		a.help.Width = msg.Width

	case tasksLoadedMsg:
		a.loading = false
		a.daemonOnline = true
		a.tasks = msg.tasks
		if a.selectedIdx >= len(a.tasks) {
			a.selectedIdx = max(0, len(a.tasks)-1)
		}

	case taskDetailLoadedMsg:
		a.current = msg.task
		a.history = msg.history

	case taskUpdatedMsg:
		a.setMessage(msg.message, false)
		if a.mode == modeDetail && msg.task != nil {
			return a, tea.Batch(a.fetchTasks(), a.fetchTaskDetail(msg.task.ID))
		}
		return a, a.fetchTasks()

	case commandResultMsg:
		a.setMessage(msg.message, strings.HasPrefix(msg.message, "Error"))

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case errMsg:
		a.loading = false
		a.setMessage(describeError(msg.err), true)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return tea.Quit

	case key.Matches(msg, a.keys.Command):
		var targets []models.TaskStatus
		if t := a.selectedTask(); t != nil {
			targets = t.AllowedTransitions
		}
		a.cmdbar.SetTargets(targets)
		return a.cmdbar.Focus()

	case key.Matches(msg, a.keys.Back):
		if a.mode == modeDetail {
			a.mode = modeList
			a.current = nil
			a.history = nil
			return a.fetchTasks()
		}

	case key.Matches(msg, a.keys.Up):
		if a.mode == modeList && a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case key.Matches(msg, a.keys.Down):
		if a.mode == modeList && a.selectedIdx < len(a.tasks)-1 {
			a.selectedIdx++
		}

	case key.Matches(msg, a.keys.Open):
		if a.mode == modeList && len(a.tasks) > 0 {
			a.mode = modeDetail
			return a.fetchTaskDetail(a.tasks[a.selectedIdx].ID)
		}

	case key.Matches(msg, a.keys.Filter):
		a.filterIdx = (a.filterIdx + 1) % len(filters)
		a.selectedIdx = 0
		return a.fetchTasks()

	case key.Matches(msg, a.keys.Refresh):
		if a.mode == modeDetail && a.current != nil {
			return tea.Batch(a.fetchTasks(), a.fetchTaskDetail(a.current.ID))
		}
		return a.fetchTasks()

	case key.Matches(msg, a.keys.Activate):
		return a.transition(models.TaskStatusActive)

	case key.Matches(msg, a.keys.Complete):
		return a.transition(models.TaskStatusCompleted)

	case key.Matches(msg, a.keys.Cancel):
		return a.transition(models.TaskStatusCancelled)

	case key.Matches(msg, a.keys.Reopen):
		return a.taskAction("reopened", a.client.Reopen)

	case key.Matches(msg, a.keys.Approve):
		return a.taskAction("approved", a.client.Approve)
	}
	return nil
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}
	header := titleStyle.Render("PLANBOARD") + "  " + daemonStatus
	header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(fmt.Sprintf("[%d tasks]", len(a.tasks)))
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	contentHeight := a.height - 7
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case modeList:
		label := fmt.Sprintf(" Filter: [%s]", filterLabel(filters[a.filterIdx]))
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(label) + "\n")
		b.WriteString(a.renderTaskList(contentHeight - 1))
	case modeDetail:
		b.WriteString(a.renderTaskDetail(contentHeight))
	}

	b.WriteString("\n")
	if a.message != "" {
		style := lipgloss.NewStyle().Foreground(successColor)
		if a.isError {
			style = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString(style.Render(a.message))
	}
	b.WriteString("\n")

	if a.cmdbar.Focused() {
		b.WriteString(a.cmdbar.View(a.width) + "\n")
	} else {
		b.WriteString(a.help.View(a.keys) + "\n")
	}

	status := fmt.Sprintf(" Tasks: %d | Enter:detail | Esc:back", len(a.tasks))
	if a.mode == modeDetail && a.current != nil {
		status = fmt.Sprintf(" %s | %s | Esc:back", shortID(a.current.ID), a.current.Status)
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 1)).Render(status))

	return b.String()
}

func (a *App) setMessage(msg string, isError bool) {
	a.message = msg
	a.isError = isError
}

// selectedID is the task the action keys apply to: the open task in detail
// view, otherwise the highlighted row.
func (a *App) selectedTask() *lifecycle.AdminTask {
	if a.mode == modeDetail && a.current != nil {
		return a.current
	}
	if a.selectedIdx < len(a.tasks) {
		return &a.tasks[a.selectedIdx]
	}
	return nil
}

func (a *App) selectedID() string {
	if t := a.selectedTask(); t != nil {
		return t.ID
	}
	return ""
}

func (a *App) transition(status models.TaskStatus) tea.Cmd {
	id := a.selectedID()
	if id == "" {
		a.setMessage("No task selected", true)
		return nil
	}
	return func() tea.Msg {
		return statusChange(a.client, id, status)
	}
}

func (a *App) taskAction(verb string, fn func(id string) (*lifecycle.AdminTask, error)) tea.Cmd {
	id := a.selectedID()
	if id == "" {
		a.setMessage("No task selected", true)
		return nil
	}
	return func() tea.Msg {
		task, err := fn(id)
		if err != nil {
			return errMsg{err}
		}
		return taskUpdatedMsg{task, fmt.Sprintf("✓ %s %s, now %s", shortID(task.ID), verb, task.Status)}
	}
}

func (a *App) fetchTasks() tea.Cmd {
	a.loading = true
	status := filters[a.filterIdx]
	return func() tea.Msg {
		tasks, err := a.client.ListTasks(status)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

func (a *App) fetchTaskDetail(taskID string) tea.Cmd {
	return func() tea.Msg {
		task, err := a.client.GetTask(taskID)
		if err != nil {
			return errMsg{err}
		}
		history, _ := a.client.TaskHistory(taskID)
		return taskDetailLoadedMsg{task, history}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		health, err := a.client.CheckHealth()
		return daemonStatusMsg{online: err == nil && health.OK}
	}
}

// describeError turns API failures into a status line. Rejected transitions
// name both the current and the requested status.
func describeError(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "Error: " + err.Error()
	}
	if apiErr.IsRejectedTransition() {
		hint := ""
		switch {
		case apiErr.Current.IsTerminal():
			hint = " (press o to reopen)"
		case apiErr.Current == models.TaskStatusPendingApproval:
			hint = " (press p to approve)"
		}
		return fmt.Sprintf("Error: cannot move task from %s to %s%s", apiErr.Current, apiErr.Requested, hint)
	}
	return "Error: " + apiErr.Message
}
