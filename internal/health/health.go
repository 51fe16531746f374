// Package health classifies projects into traffic-light health levels.
package health

import (
	"fmt"
	"math"
	"time"

	"pmo-dashboard/internal/models"
)

// Level is the traffic-light colour of a project.
type Level string

const (
	Danger  Level = "danger"
	Warning Level = "warning"
	Success Level = "success"
)

// DeadlineWindow is the number of days before the planned end at which a project is flagged.
const DeadlineWindow = 7

// Health is the classification result for one project.
type Health struct {
	Level       Level  `json:"health"`
	Description string `json:"description"`
}

// Classify applies the health rules in order and returns the first that matches.
// Dates are compared as calendar days, with today taken from now's location.
func Classify(p *models.Project, now time.Time) Health {
	today := civilDay(now)
	end, hasEnd := plannedEnd(p)
	open := p.ActualEnd == nil || *p.ActualEnd == ""

	if hasEnd && open && end.Before(today) {
		return Health{Level: Danger, Description: "Projeto Atrasado"}
	}
	if p.Priority == models.PriorityCritica && p.Risk == models.RiskAlto {
		return Health{Level: Danger, Description: "Prioridade Crítica com Risco Alto"}
	}
	if p.Risk == models.RiskAlto {
		return Health{Level: Warning, Description: "Risco Alto"}
	}
	if p.Complexity == models.ComplexityAlta {
		return Health{Level: Warning, Description: "Complexidade Alta"}
	}
	if hasEnd && open {
		days := daysUntil(today, end)
		if days >= 0 && days <= DeadlineWindow {
			return Health{Level: Warning, Description: fmt.Sprintf("Prazo terminando em %d dia(s)", days)}
		}
	}
	return Health{Level: Success, Description: "No Prazo e com riscos controlados"}
}

// DaysBetween returns the whole days from start to end, rounded up.
// ok is false when either value is empty or unparseable.
func DaysBetween(start, end string) (days int, ok bool) {
	a, okA := models.ParseTimestamp(start)
	b, okB := models.ParseTimestamp(end)
	if !okA || !okB {
		return 0, false
	}
	return int(math.Ceil(b.Sub(a).Hours() / 24)), true
}

// Deadline labels a project's schedule position for the KPI panel.
func Deadline(p *models.Project, now time.Time) string {
	end, hasEnd := plannedEnd(p)
	if !hasEnd {
		return "N/D"
	}
	if p.ActualEnd != nil && *p.ActualEnd != "" {
		actual, ok := models.ParseTimestamp(*p.ActualEnd)
		if ok && daysUntil(end, civilDay(actual)) > 0 {
			return "Concluído com atraso"
		}
		return "Concluído no prazo"
	}
	if daysUntil(civilDay(now), end) < 0 {
		return "Atrasado"
	}
	return "No prazo"
}

func plannedEnd(p *models.Project) (time.Time, bool) {
	if p.PlannedEnd == nil {
		return time.Time{}, false
	}
	t, ok := models.ParseTimestamp(*p.PlannedEnd)
	if !ok {
		return time.Time{}, false
	}
	return civilDay(t), true
}

// civilDay drops the clock, keeping the calendar date as a UTC midnight.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysUntil(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}
