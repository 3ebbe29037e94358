package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/planboard/internal/models"
)

var (
	cmdBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

// CmdBar is the ":" command input shown at the bottom of the board.
type CmdBar struct {
	input       textinput.Model
	focused     bool
	suggestions *Suggestions
}

// NewCmdBar creates a new command bar
func NewCmdBar() *CmdBar {
	ti := textinput.New()
	ti.Placeholder = "add <title> | progress <n>|clear | status <STATUS> | note <text>"
	ti.CharLimit = 256
	ti.Prompt = ""
	return &CmdBar{
		input:       ti,
		suggestions: NewSuggestions(),
	}
}

// Focused reports whether the bar is accepting input.
func (m *CmdBar) Focused() bool {
	return m.focused
}

// SetTargets sets the statuses suggested for the "status" command.
func (m *CmdBar) SetTargets(targets []models.TaskStatus) {
	m.suggestions.SetTargets(targets)
}

// Focus focuses the command bar
func (m *CmdBar) Focus() tea.Cmd {
	m.focused = true
	return m.input.Focus()
}

// Blur unfocuses the command bar
func (m *CmdBar) Blur() {
	m.focused = false
	m.input.Blur()
	m.input.SetValue("")
	m.suggestions.Update("")
}

// SetWidth sets the input width.
func (m *CmdBar) SetWidth(w int) {
	m.input.Width = w
}

// Update handles key input while focused. The returned string is a submitted
// command line, empty when nothing was submitted.
func (m *CmdBar) Update(msg tea.KeyMsg) (string, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Blur()
		return "", nil
	case "up":
		m.suggestions.Prev()
		return "", nil
	case "down":
		m.suggestions.Next()
		return "", nil
	case "tab":
		if selected := m.suggestions.Selected(); selected != nil {
			m.input.SetValue(selected.Text + " ")
			m.input.CursorEnd()
			m.suggestions.Update("")
		}
		return "", nil
	case "enter":
		line := strings.TrimSpace(m.input.Value())
		m.Blur()
		return line, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.suggestions.Update(m.input.Value())
	return "", cmd
}

// View renders the command bar
func (m *CmdBar) View(width int) string {
	if !m.focused {
		return ""
	}
	view := cmdBarStyle.Width(width).Render(promptStyle.Render(": ") + m.input.View())
	if m.suggestions.IsVisible() {
		view += "\n" + m.suggestions.Render(width)
	}
	return view
}

// Execute runs a command line against the selected task.
func Execute(client *Client, input string, taskID string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]
	rest := strings.Join(args, " ")

	return func() tea.Msg {
		switch cmd {
		case "add":
			if rest == "" {
				return commandResultMsg{"Usage: add <title>"}
			}
			task, err := client.CreateTask(models.NewTask{Title: rest})
			if err != nil {
				return errMsg{err}
			}
			return taskUpdatedMsg{task, fmt.Sprintf("✓ Created task %s", shortID(task.ID))}

		case "progress":
			if taskID == "" {
				return commandResultMsg{"No task selected"}
			}
			if len(args) != 1 {
				return commandResultMsg{"Usage: progress <percent>|clear"}
			}
			var patch models.TaskPatch
			if args[0] == "clear" {
				patch.ClearProgress = true
			} else {
				v, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
				if err != nil {
					return commandResultMsg{"Usage: progress <percent>|clear"}
				}
				patch.Progress = &v
			}
			task, err := client.PatchTask(taskID, patch)
			if err != nil {
				return errMsg{err}
			}
			return taskUpdatedMsg{task, fmt.Sprintf("✓ Progress now %d%%", task.Computed.DisplayProgress)}

		case "status":
			if taskID == "" {
				return commandResultMsg{"No task selected"}
			}
			status, err := models.ParseTaskStatus(rest)
			if err != nil {
				return commandResultMsg{"Usage: status <PENDING|ACTIVE|COMPLETED|CANCELLED>"}
			}
			return statusChange(client, taskID, status)

		case "note":
			if taskID == "" {
				return commandResultMsg{"No task selected"}
			}
			task, err := client.PatchTask(taskID, models.TaskPatch{InternalNotes: &rest})
			if err != nil {
				return errMsg{err}
			}
			return taskUpdatedMsg{task, "✓ Internal notes updated"}

		case "q", "quit":
			return tea.Quit()

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: add, progress, status, note)", cmd)}
		}
	}
}

func statusChange(client *Client, taskID string, status models.TaskStatus) tea.Msg {
	task, err := client.ChangeStatus(taskID, status)
	if err != nil {
		return errMsg{err}
	}
	return taskUpdatedMsg{task, fmt.Sprintf("✓ %s is now %s", shortID(task.ID), task.Status)}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
