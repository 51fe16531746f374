package report

import (
	"fmt"
	"time"

	"pmo-dashboard/internal/models"
)

// Bar is one Gantt bar of the roadmap.
type Bar struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Progress    int    `json:"progress"`
	CustomClass string `json:"custom_class"`
}

// Roadmap maps projects with both planned dates to Gantt bars.
func Roadmap(projects []models.Project) []Bar {
	bars := make([]Bar, 0, len(projects))
	for _, p := range projects {
		if p.PlannedStart == nil || *p.PlannedStart == "" || p.PlannedEnd == nil || *p.PlannedEnd == "" {
			continue
		}
		bars = append(bars, Bar{
			ID:          fmt.Sprintf("proj_%d", p.ID),
			Name:        p.Name,
			Start:       models.DatePart(*p.PlannedStart),
			End:         models.DatePart(*p.PlannedEnd),
			Progress:    100,
			CustomClass: "bar-status-" + p.Status.Slug(),
		})
	}
	return bars
}

// TaskItem is one row of the personal task list.
type TaskItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProjectID   int64  `json:"id_projeto"`
	ProjectName string `json:"nome_projeto"`
	End         string `json:"end"`
	Overdue     bool   `json:"atrasada"`
}

// MyTasks flags tasks whose end date is before today's midnight.
func MyTasks(tasks []models.Task, now time.Time) []TaskItem {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	items := make([]TaskItem, 0, len(tasks))
	for _, t := range tasks {
		name := t.ProjectName
		if name == "" {
			name = fmt.Sprintf("Projeto #%d", t.ProjectID)
		}
		item := TaskItem{
			ID:          t.ID,
			Name:        t.Name,
			ProjectID:   t.ProjectID,
			ProjectName: name,
			End:         t.End,
		}
		if end, ok := models.ParseTimestamp(t.End); ok {
			ey, em, ed := end.Date()
			item.Overdue = time.Date(ey, em, ed, 0, 0, 0, 0, now.Location()).Before(midnight)
		}
		items = append(items, item)
	}
	return items
}
