package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
)

type viewMode int

const (
	modeList viewMode = iota
	modeDetail
)

// filters cycles through "all" followed by every status.
var filters = append([]models.TaskStatus{""}, models.AllStatuses()...)

func filterLabel(s models.TaskStatus) string {
	if s == "" {
		return "ALL"
	}
	return string(s)
}

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Back     key.Binding
	Activate key.Binding
	Complete key.Binding
	Cancel   key.Binding
	Reopen   key.Binding
	Approve  key.Binding
	Filter   key.Binding
	Refresh  key.Binding
	Command  key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "detail")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Activate: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activate")),
		Complete: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete")),
		Cancel:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel")),
		Reopen:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "reopen")),
		Approve:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "approve")),
		Filter:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Command:  key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "command")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Activate, k.Complete, k.Cancel, k.Reopen, k.Approve, k.Filter, k.Refresh, k.Command, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back},
		k.ShortHelp(),
	}
}

type tasksLoadedMsg struct {
	tasks []lifecycle.AdminTask
}

type taskDetailLoadedMsg struct {
	task    *lifecycle.AdminTask
	history []models.PDREntry
}

// taskUpdatedMsg follows any successful write.
type taskUpdatedMsg struct {
	task    *lifecycle.AdminTask
	message string
}

type commandResultMsg struct {
	message string
}

type daemonStatusMsg struct {
	online bool
}

type errMsg struct {
	err error
}
