package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)

	activeMilestoneStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	nextMilestoneStyle   = lipgloss.NewStyle().Foreground(cyanColor)
	reachedStyle         = lipgloss.NewStyle().Foreground(mutedColor)
)

const historyLimit = 5

func (a *App) renderTaskDetail(height int) string {
	t := a.current
	if t == nil {
		return "\n  Loading task details...\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(t.Title))
	b.WriteString("\n\n")

	b.WriteString(renderField("ID", t.ID))
	b.WriteString(renderField("Status", formatStatus(t.Status)))
	b.WriteString(renderField("Mode", string(t.ProgressMode)))
	if t.ClientID != "" {
		b.WriteString(renderField("Client", t.ClientID))
	}
	if t.PlanID != "" {
		b.WriteString(renderField("Plan", t.PlanID))
	}
	if t.Description != "" {
		b.WriteString(renderField("Description", t.Description))
	}
	b.WriteString(renderField("Progress", a.bars.Render(t.Computed)))
	if t.Progress != nil {
		b.WriteString(renderField("Override", fmt.Sprintf("%g%%", *t.Progress)))
	}
	if t.ProgressMode == models.ProgressModeManual {
		b.WriteString(renderField("Achieved", fmt.Sprintf("%s / %s", floatOrDash(t.ProgressAchieved), floatOrDash(t.ProgressTarget))))
	} else {
		b.WriteString(renderField("Window", fmt.Sprintf("%s → %s", dateOrDash(t.StartDate), dateOrDash(t.EndDate))))
	}
	if t.ClosedAt != nil {
		b.WriteString(renderField("Closed", t.ClosedAt.Format("2006-01-02 15:04")))
	}

	next := make([]string, 0, len(t.AllowedTransitions))
	for _, s := range t.AllowedTransitions {
		next = append(next, string(s))
	}
	if t.CanReopen {
		next = append(next, "reopen")
	}
	if len(next) > 0 {
		b.WriteString(renderField("Can move to", strings.Join(next, ", ")))
	}

	b.WriteString(sectionStyle.Render("Milestones"))
	b.WriteString("\n")
	b.WriteString(renderTimeline(t.Milestones, t.Computed))

	if len(a.history) > 0 {
		b.WriteString(sectionStyle.Render("History"))
		b.WriteString("\n")
		start := 0
		if len(a.history) > historyLimit {
			start = len(a.history) - historyLimit
		}
		for _, e := range a.history[start:] {
			line := fmt.Sprintf("  %s  %-18s %s", e.Timestamp.Format("01-02 15:04"), e.Action, e.Outcome)
			if e.Details != "" {
				line += "  " + labelStyle.Render(truncate(e.Details, 60))
			}
			b.WriteString(line + "\n")
		}
	}

	lines := strings.Split(b.String(), "\n")
	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

// renderTimeline lists milestones in threshold order, marking the one the task
// currently sits at and the next one ahead.
func renderTimeline(milestones []models.Milestone, view lifecycle.ProgressView) string {
	if len(milestones) == 0 {
		return labelStyle.Render("  No milestones") + "\n"
	}

	var b strings.Builder
	for _, m := range lifecycle.SortMilestones(milestones) {
		marker, style := "  ○", valueStyle
		switch {
		case sameMilestone(view.ActiveMilestone, m):
			marker, style = "  ◆", activeMilestoneStyle
		case sameMilestone(view.NextMilestone, m):
			marker, style = "  →", nextMilestoneStyle
		case m.Percentage <= view.Progress:
			marker, style = "  ●", reachedStyle
		}

		line := fmt.Sprintf("%s %5g%%  %s", marker, m.Percentage, m.Name)
		if m.ReachedAt != nil {
			line += "  " + m.ReachedAt.Format("2006-01-02")
		}
		b.WriteString(style.Render(line) + "\n")
	}
	return b.String()
}

func sameMilestone(ref *models.Milestone, m models.Milestone) bool {
	if ref == nil {
		return false
	}
	if ref.ID != "" || m.ID != "" {
		return ref.ID == m.ID
	}
	return ref.Name == m.Name && ref.Percentage == m.Percentage
}

func renderField(label, value string) string {
	return fmt.Sprintf("  %s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func floatOrDash(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *f)
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
