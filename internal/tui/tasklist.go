package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
)

const barWidth = 24

var (
	statusPendingApproval = lipgloss.NewStyle().Foreground(secondaryColor)
	statusPending         = lipgloss.NewStyle().Foreground(warningColor)
	statusActive          = lipgloss.NewStyle().Foreground(cyanColor)
	statusCompleted       = lipgloss.NewStyle().Foreground(successColor)
	statusCancelled       = lipgloss.NewStyle().Foreground(errorColor)

	overachievingStyle = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	percentStyle       = lipgloss.NewStyle().Foreground(fgColor)
)

// progressBars renders task progress. The fill is clamped to [0, 100] but the
// label always shows the unclamped percentage.
type progressBars struct {
	normal progress.Model
	over   progress.Model
}

func newProgressBars(width int) progressBars {
	return progressBars{
		normal: progress.New(
			progress.WithGradient(string(secondaryColor), string(primaryColor)),
			progress.WithWidth(width),
			progress.WithoutPercentage(),
		),
		over: progress.New(
			progress.WithSolidFill(string(warningColor)),
			progress.WithWidth(width),
			progress.WithoutPercentage(),
		),
	}
}

func (b progressBars) Render(view lifecycle.ProgressView) string {
	fill := lifecycle.BarWidth(view.Progress) / 100
	label := fmt.Sprintf("%4d%%", view.DisplayProgress)
	if view.Overachieving {
		return b.over.ViewAs(fill) + " " + overachievingStyle.Render(label+" ▲")
	}
	return b.normal.ViewAs(fill) + " " + percentStyle.Render(label)
}

func formatStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPendingApproval:
		return statusPendingApproval.Render("◇ APPROVAL")
	case models.TaskStatusPending:
		return statusPending.Render("○ PENDING ")
	case models.TaskStatusActive:
		return statusActive.Render("◑ ACTIVE  ")
	case models.TaskStatusCompleted:
		return statusCompleted.Render("● DONE    ")
	case models.TaskStatusCancelled:
		return statusCancelled.Render("✗ CANCELLED")
	default:
		return string(status)
	}
}

func (a *App) renderTaskList(height int) string {
	if a.loading && len(a.tasks) == 0 {
		return "\n  Loading tasks...\n"
	}
	if len(a.tasks) == 0 {
		return "\n  No tasks found. Type :add <title> to create one.\n"
	}

	lines := make([]string, 0, len(a.tasks))
	for i, task := range a.tasks {
		title := truncate(task.Title, 32)
		row := fmt.Sprintf("%s  %-32s  %s", formatStatus(task.Status), title, a.bars.Render(task.Computed))
		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render("▶ "+row))
		} else {
			lines = append(lines, taskItemStyle.Render("  "+row))
		}
	}

	if len(lines) > height && height > 0 {
		start := a.selectedIdx - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
