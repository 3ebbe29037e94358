package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/planboard/internal/models"
)

// Suggestions provides autocomplete for command bar input.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool

	// targets are the statuses the selected task may move to; they
	// complete the argument of "status".
	targets []models.TaskStatus
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
}

var commandSuggestions = []SuggestionItem{
	{Text: "add", Description: "Create a new AUTO task"},
	{Text: "progress", Description: "Set the progress override on the selected task"},
	{Text: "progress clear", Description: "Remove the progress override"},
	{Text: "status", Description: "Request a status transition"},
	{Text: "note", Description: "Replace the internal notes"},
	{Text: "quit", Description: "Leave the board"},
}

const maxVisibleSuggestions = 5

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{items: commandSuggestions}
}

// SetTargets sets the statuses offered after "status ".
func (s *Suggestions) SetTargets(targets []models.TaskStatus) {
	s.targets = targets
}

// Update filters suggestions against the input. The first word completes
// against commands; the argument of "status" completes against the allowed
// targets. Anything else hides the list.
func (s *Suggestions) Update(input string) {
	s.filtered = s.filtered[:0]
	s.selectedIdx = 0
	s.visible = false

	if input == "" {
		return
	}
	if arg, ok := strings.CutPrefix(input, "status "); ok {
		if strings.Contains(arg, " ") {
			return
		}
		s.visible = true
		s.filterTargets(strings.ToUpper(arg))
		return
	}
	if strings.Contains(input, " ") {
		return
	}
	s.visible = true
	s.filter(strings.ToLower(input))
}

func (s *Suggestions) filterTargets(prefix string) {
	for _, target := range s.targets {
		if strings.HasPrefix(string(target), prefix) {
			s.filtered = append(s.filtered, SuggestionItem{
				Text:        "status " + string(target),
				Description: "allowed from the current status",
			})
		}
	}
}

func (s *Suggestions) filter(query string) {
	for _, item := range s.items {
		if strings.HasPrefix(item.Text, query) {
			s.filtered = append(s.filtered, item)
		}
	}
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.IsVisible() || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(max(width-4, 20))

	selected := lipgloss.NewStyle().
		Background(primaryColor).
		Foreground(fgColor).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(mutedColor).
		Italic(true)

	for i, item := range s.filtered {
		if i >= maxVisibleSuggestions {
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", len(s.filtered)-maxVisibleSuggestions)))
			break
		}
		if i == s.selectedIdx {
			b.WriteString(selected.Render("▶ "+item.Text) + " " + selected.Render(item.Description))
		} else {
			b.WriteString("  " + item.Text + " " + descStyle.Render(item.Description))
		}
		b.WriteString("\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
