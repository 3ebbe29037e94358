package lifecycle

import (
	"sort"

	"github.com/fentz26/planboard/internal/models"
)

// Resolution is the position of a progress value on a milestone timeline.
type Resolution struct {
	Active *models.Milestone `json:"active"`
	Next   *models.Milestone `json:"next"`
}

// SortMilestones returns a copy of ms ordered by percentage. Equal
// percentages keep their insertion order.
func SortMilestones(ms []models.Milestone) []models.Milestone {
	sorted := models.CloneMilestones(ms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Percentage < sorted[j].Percentage
	})
	return sorted
}

// Resolve finds the active milestone (highest percentage <= progress) and the
// next one (lowest percentage > progress). Among equal percentages the first
// in insertion order wins. The input slice is not modified.
func Resolve(milestones []models.Milestone, progress float64) Resolution {
	var res Resolution
	sorted := SortMilestones(milestones)
	for i := range sorted {
		m := &sorted[i]
		if m.Percentage <= progress {
			if res.Active == nil || m.Percentage > res.Active.Percentage {
				res.Active = m
			}
			continue
		}
		res.Next = m
		break
	}
	return res
}

// Reached lists milestones whose threshold progress has crossed but which
// carry no reached_at yet, in timeline order. It only reports; the store
// performs the stamp.
func Reached(milestones []models.Milestone, progress float64) []models.Milestone {
	var out []models.Milestone
	for _, m := range SortMilestones(milestones) {
		if m.Percentage <= progress && m.ReachedAt == nil {
			out = append(out, m)
		}
	}
	return out
}

// CarryReached prepares a replacement milestone set for a task whose current
// set is current. Incoming reached_at values are dropped: a stamp only ever
// comes from progress crossing the threshold. A milestone that matches a
// current one, by id or else by name and percentage, keeps that milestone's
// id and stamp, provided its percentage is unchanged. Ids that match nothing
// on the task are cleared so storage issues fresh ones.
func CarryReached(current, incoming []models.Milestone) []models.Milestone {
	byID := make(map[string]int, len(current))
	for i, m := range current {
		byID[m.ID] = i
	}
	used := make([]bool, len(current))

	out := models.CloneMilestones(incoming)
	for i := range out {
		m := &out[i]
		m.ReachedAt = nil

		match := -1
		if j, ok := byID[m.ID]; ok && m.ID != "" && !used[j] {
			match = j
		} else {
			m.ID = ""
			for j, c := range current {
				if !used[j] && c.Name == m.Name && c.Percentage == m.Percentage {
					match = j
					break
				}
			}
		}
		if match < 0 {
			continue
		}

		used[match] = true
		m.ID = current[match].ID
		if current[match].Percentage == m.Percentage && current[match].ReachedAt != nil {
			at := *current[match].ReachedAt
			m.ReachedAt = &at
		}
	}
	return out
}
