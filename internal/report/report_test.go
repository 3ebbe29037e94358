package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
)

func sampleTasks() []lifecycle.ClientTask {
	launch := models.Milestone{Name: "Launch", Percentage: 100}
	half := models.Milestone{Name: "Halfway", Percentage: 50}
	return []lifecycle.ClientTask{
		{
			Title:  "Ad campaign",
			Status: models.TaskStatusActive,
			ProgressView: lifecycle.ProgressView{
				Progress: 150, DisplayProgress: 150, Overachieving: true,
				ActiveMilestone: &launch,
			},
		},
		{
			Title:  "Brand kit",
			Status: models.TaskStatusPending,
			ProgressView: lifecycle.ProgressView{
				Progress: 30, DisplayProgress: 30,
				NextMilestone: &half,
			},
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleTasks())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	want := []string{"Ad campaign", "ACTIVE", "150%", "Launch (100%)", "-"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("row 0 col %d = %q, want %q", i, rows[0][i], cell)
		}
	}
	if rows[1][3] != "-" || rows[1][4] != "Halfway (50%)" {
		t.Errorf("row 1 milestones = %q, %q", rows[1][3], rows[1][4])
	}
}

func TestSummary(t *testing.T) {
	mean, over := Summary(sampleTasks())
	if mean != 90 || over != 1 {
		t.Errorf("Summary = %v, %d; want 90, 1", mean, over)
	}
	if mean, over := Summary(nil); mean != 0 || over != 0 {
		t.Errorf("empty Summary = %v, %d", mean, over)
	}
}

func TestWriteClientReport(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, tasks := range map[string][]lifecycle.ClientTask{
		"full.pdf":  sampleTasks(),
		"empty.pdf": nil,
	} {
		path := filepath.Join(dir, name)
		if err := WriteClientReport(path, "c1", tasks, at); err != nil {
			t.Fatalf("WriteClientReport(%s) failed: %v", name, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !bytes.HasPrefix(data, []byte("%PDF")) {
			t.Errorf("%s is not a PDF", name)
		}
	}
}
