// Package workflow drives project status transitions: it picks the request
// protocol for a (current, target) pair, validates the evidence the protocol
// needs and runs the backend calls in order while reporting to a ui.Presenter.
package workflow

import "pmo-dashboard/internal/models"

// Protocol names the request sequence a transition needs.
type Protocol string

const (
	// DefaultTransition sends PUT /projetos/{id}/status with an optional observation.
	DefaultTransition Protocol = "default"
	// EnterHomologation starts a homologation cycle.
	EnterHomologation Protocol = "enter_homologation"
	// ExitHomologation finalizes the open cycle and optionally uploads its report.
	ExitHomologation Protocol = "exit_homologation"
)

// Edge is a (current, target) status pair.
type Edge struct {
	From models.ProjectStatus
	To   models.ProjectStatus
}

// Table maps every ordered pair of distinct workflow statuses to its protocol.
// Entering "Em Homologação" takes precedence over leaving it.
var Table = buildTable()

func buildTable() map[Edge]Protocol {
	table := make(map[Edge]Protocol, len(models.Workflow)*len(models.Workflow))
	for _, from := range models.Workflow {
		for _, to := range models.Workflow {
			if from == to {
				continue
			}
			p := DefaultTransition
			switch {
			case to == models.StatusEmHomologacao:
				p = EnterHomologation
			case from == models.StatusEmHomologacao:
				p = ExitHomologation
			}
			table[Edge{From: from, To: to}] = p
		}
	}
	return table
}

// ProtocolFor returns the protocol for moving from current to target.
// Statuses are compared exactly; pairs outside the table use DefaultTransition.
func ProtocolFor(current, target models.ProjectStatus) Protocol {
	if p, ok := Table[Edge{From: current, To: target}]; ok {
		return p
	}
	return DefaultTransition
}
