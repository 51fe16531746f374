package report

import (
	"strings"

	"pmo-dashboard/internal/models"
)

// Stats are the headline counters of the reports page.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"ativos"`
	Completed int `json:"concluidos"`
}

// Summarize counts total, active and completed projects.
func Summarize(projects []models.Project) Stats {
	s := Stats{Total: len(projects)}
	for _, p := range projects {
		if p.Status.IsCompleted() {
			s.Completed++
		}
		if p.Status.IsActive() {
			s.Active++
		}
	}
	return s
}

// OverviewData bundles the general reports view.
type OverviewData struct {
	Stats      Stats          `json:"stats"`
	ByStatus   FrequencyTable `json:"por_status"`
	ByPriority FrequencyTable `json:"por_prioridade"`
	ByOwner    FrequencyTable `json:"por_responsavel"`
	ByArea     FrequencyTable `json:"por_area"`
}

// Overview builds the stats and the four standard charts.
func Overview(projects []models.Project) OverviewData {
	return OverviewData{
		Stats:      Summarize(projects),
		ByStatus:   GroupBy(projects, KeyStatus),
		ByPriority: GroupBy(projects, KeyPriority),
		ByOwner:    GroupBy(projects, KeyOwner),
		ByArea:     GroupBy(projects, KeyArea),
	}
}

// AllStatuses is the status filter option that matches every project.
const AllStatuses = "Todos"

// Filters are the dashboard's search box and status pill.
type Filters struct {
	Search string `json:"busca"`
	Status string `json:"status"`
}

// Matches reports whether p passes both filters.
// Search is a case-insensitive substring of the project name or ticket number.
func (f Filters) Matches(p *models.Project) bool {
	if f.Status != "" && f.Status != AllStatuses && string(p.Status) != f.Status {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.TicketNumber), q)
}

// Filter returns the projects matching f, preserving order.
func Filter(projects []models.Project, f Filters) []models.Project {
	out := make([]models.Project, 0, len(projects))
	for i := range projects {
		if f.Matches(&projects[i]) {
			out = append(out, projects[i])
		}
	}
	return out
}

// StatusOptions returns "Todos" followed by the distinct statuses in first-seen order.
func StatusOptions(projects []models.Project) []string {
	opts := []string{AllStatuses}
	seen := make(map[models.ProjectStatus]bool)
	for _, p := range projects {
		if seen[p.Status] {
			continue
		}
		seen[p.Status] = true
		opts = append(opts, string(p.Status))
	}
	return opts
}
