package models

import "strings"

// ProjectStatus is a step of the project workflow as named by the backend.
type ProjectStatus string

const (
	StatusEmDefinicao           ProjectStatus = "Em Definição"
	StatusEmEspecificacao       ProjectStatus = "Em Especificação"
	StatusEspecificacaoAprovada ProjectStatus = "Especificação Aprovada"
	StatusEmDesenvolvimento     ProjectStatus = "Em Desenvolvimento"
	StatusEmHomologacao         ProjectStatus = "Em Homologação"
	StatusPendenteImplantacao   ProjectStatus = "Pendente de Implantação"
	StatusPosGMUD               ProjectStatus = "Pós GMUD"
	StatusConcluido             ProjectStatus = "Projeto concluído"
	StatusCancelado             ProjectStatus = "Cancelado"
)

// Workflow lists every status in workflow order.
var Workflow = []ProjectStatus{
	StatusEmDefinicao,
	StatusEmEspecificacao,
	StatusEspecificacaoAprovada,
	StatusEmDesenvolvimento,
	StatusEmHomologacao,
	StatusPendenteImplantacao,
	StatusPosGMUD,
	StatusConcluido,
	StatusCancelado,
}

// IsValid reports whether s is one of the workflow statuses.
func (s ProjectStatus) IsValid() bool {
	for _, w := range Workflow {
		if w == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s ProjectStatus) IsTerminal() bool {
	return s == StatusConcluido || s == StatusCancelado
}

// IsCompleted reports whether s counts as delivered in dashboard statistics.
func (s ProjectStatus) IsCompleted() bool {
	return s == StatusPosGMUD || s == StatusConcluido
}

// IsActive reports whether s counts as in progress in dashboard statistics.
func (s ProjectStatus) IsActive() bool {
	return !s.IsCompleted() && s != StatusCancelado
}

// NextStatuses returns the backend's default successors of s: the next workflow
// step plus Cancelado. Terminal and unknown statuses have none.
func NextStatuses(s ProjectStatus) []ProjectStatus {
	if s.IsTerminal() {
		return nil
	}
	for i, w := range Workflow {
		if w != s || i+1 >= len(Workflow) {
			continue
		}
		next := []ProjectStatus{Workflow[i+1]}
		if next[0] != StatusCancelado {
			next = append(next, StatusCancelado)
		}
		return next
	}
	return nil
}

// Slug returns the lower-case, dash-separated form used in CSS class names.
func (s ProjectStatus) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "-")
}

// Priority levels.
const (
	PriorityBaixa   = "Baixa"
	PriorityMedia   = "Média"
	PriorityAlta    = "Alta"
	PriorityCritica = "Crítica"
)

// Risk levels.
const (
	RiskBaixo = "Baixo"
	RiskMedio = "Médio"
	RiskAlto  = "Alto"
)

// Complexity levels.
const (
	ComplexityBaixa = "Baixa"
	ComplexityMedia = "Média"
	ComplexityAlta  = "Alta"
)

// CycleResult is the final verdict of a homologation cycle.
type CycleResult string

const (
	ResultAprovado             CycleResult = "Aprovado"
	ResultReprovado            CycleResult = "Reprovado"
	ResultAprovadoComRessalvas CycleResult = "Aprovado com Ressalvas"
)

// ValidResults lists the accepted cycle results.
var ValidResults = []CycleResult{ResultAprovado, ResultReprovado, ResultAprovadoComRessalvas}

// IsValid reports whether r is an accepted cycle result.
func (r CycleResult) IsValid() bool {
	for _, v := range ValidResults {
		if v == r {
			return true
		}
	}
	return false
}

// NextStatus returns the project status the backend moves to when a cycle closes with r.
func (r CycleResult) NextStatus() ProjectStatus {
	if r == ResultAprovado || r == ResultAprovadoComRessalvas {
		return StatusPendenteImplantacao
	}
	return StatusEmDesenvolvimento
}

// TestTypes lists the test types offered when a homologation cycle starts.
var TestTypes = []string{
	"Manual",
	"Automatizado - API",
	"Automatizado - UI",
	"Performance",
}

// IsValidTestType checks if t is one of TestTypes
func IsValidTestType(t string) bool {
	for _, v := range TestTypes {
		if v == t {
			return true
		}
	}
	return false
}
