package report

import (
	"sync"
	"time"

	"pmo-dashboard/internal/health"
	"pmo-dashboard/internal/models"
)

// Card is a dashboard project card with its health light.
type Card struct {
	ID           int64                `json:"id_projeto"`
	Name         string               `json:"nome_projeto"`
	TicketNumber string               `json:"numero_topdesk"`
	Status       models.ProjectStatus `json:"status_atual"`
	Priority     string               `json:"prioridade"`
	Owner        string               `json:"responsavel,omitempty"`
	PlannedEnd   string               `json:"data_fim_prevista,omitempty"`
	Health       health.Health        `json:"saude"`
}

// Cards converts projects into dashboard cards classified against now.
func Cards(projects []models.Project, now time.Time) []Card {
	cards := make([]Card, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		c := Card{
			ID:           p.ID,
			Name:         p.Name,
			TicketNumber: p.TicketNumber,
			Status:       p.Status,
			Priority:     p.Priority,
			Owner:        p.Owner.GetDisplayName(),
			Health:       health.Classify(p, now),
		}
		if p.PlannedEnd != nil {
			c.PlannedEnd = models.DatePart(*p.PlannedEnd)
		}
		cards = append(cards, c)
	}
	return cards
}

// View holds the loaded project list and the active filters of one dashboard session.
type View struct {
	mu       sync.RWMutex
	projects []models.Project
	filters  Filters
}

// NewView returns a view with no filters applied.
func NewView(projects []models.Project) *View {
	return &View{projects: projects, filters: Filters{Status: AllStatuses}}
}

// SetFilters replaces the active filters. An empty status means all statuses.
func (v *View) SetFilters(f Filters) {
	if f.Status == "" {
		f.Status = AllStatuses
	}
	v.mu.Lock()
	v.filters = f
	v.mu.Unlock()
}

// Filters returns the active filters.
func (v *View) Filters() Filters {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.filters
}

// Replace swaps the loaded project list, keeping the filters.
func (v *View) Replace(projects []models.Project) {
	v.mu.Lock()
	v.projects = projects
	v.mu.Unlock()
}

// Visible returns the projects passing the active filters.
func (v *View) Visible() []models.Project {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Filter(v.projects, v.filters)
}

// StatusOptions returns the status pills for the loaded list.
func (v *View) StatusOptions() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return StatusOptions(v.projects)
}
