// Package report renders client-facing progress reports as PDF.
package report

import (
	"fmt"
	"time"

	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"
)

var (
	headers   = []string{"Task", "Status", "Progress", "Milestone", "Next"}
	gridSizes = []uint{4, 2, 2, 2, 2}

	overachievingColor = color.Color{Red: 245, Green: 158, Blue: 11}
)

// Rows turns client tasks into table rows. Progress is the raw rounded
// percentage, so an overachieving task reads above 100.
func Rows(tasks []lifecycle.ClientTask) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.Title,
			string(t.Status),
			fmt.Sprintf("%d%%", t.DisplayProgress),
			milestoneName(t.ActiveMilestone),
			milestoneName(t.NextMilestone),
		})
	}
	return rows
}

// Summary returns the mean progress across tasks and how many overachieve.
func Summary(tasks []lifecycle.ClientTask) (mean float64, overachieving int) {
	if len(tasks) == 0 {
		return 0, 0
	}
	var total float64
	for _, t := range tasks {
		total += t.Progress
		if t.Overachieving {
			overachieving++
		}
	}
	return total / float64(len(tasks)), overachieving
}

// WriteClientReport writes a PDF progress report for one client to path.
func WriteClientReport(path, clientID string, tasks []lifecycle.ClientTask, generatedAt time.Time) error {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text("Progress Report", props.Text{
					Top:   3,
					Style: consts.Bold,
					Align: consts.Center,
					Size:  16,
				})
			})
		})
		m.Row(8, func() {
			m.Col(12, func() {
				m.Text(fmt.Sprintf("Client %s, %s", clientID, generatedAt.Format("2006-01-02 15:04 MST")), props.Text{
					Top:   2,
					Style: consts.Normal,
					Align: consts.Center,
					Size:  10,
				})
			})
		})
	})

	if len(tasks) == 0 {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text("No tasks yet.", props.Text{Top: 5, Size: 11})
			})
		})
		return m.OutputFileAndClose(path)
	}

	m.TableList(headers, Rows(tasks), props.TableList{
		HeaderProp: props.TableListContent{
			Size:      10,
			GridSizes: gridSizes,
		},
		ContentProp: props.TableListContent{
			Size:      9,
			GridSizes: gridSizes,
		},
		Align:                consts.Left,
		AlternatedBackground: &color.Color{Red: 240, Green: 240, Blue: 240},
		HeaderContentSpace:   1,
		Line:                 false,
	})

	mean, over := Summary(tasks)
	m.Row(15, func() {
		m.Col(12, func() {
			m.Text(fmt.Sprintf("Average progress: %.0f%%", mean), props.Text{
				Top:   8,
				Style: consts.Bold,
				Align: consts.Right,
				Size:  11,
			})
		})
	})
	if over > 0 {
		m.Row(8, func() {
			m.Col(12, func() {
				m.Text(fmt.Sprintf("%d task(s) ahead of target", over), props.Text{
					Top:   1,
					Align: consts.Right,
					Size:  10,
					Color: overachievingColor,
				})
			})
		})
	}

	return m.OutputFileAndClose(path)
}

func milestoneName(m *models.Milestone) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%g%%)", m.Name, m.Percentage)
}
