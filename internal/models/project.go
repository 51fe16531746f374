package models

import (
	"sort"
	"strings"
	"time"
)

// Area is the requesting business area of a project.
type Area struct {
	ID        int64  `json:"id_area"`
	Name      string `json:"nome_area"`
	ManagerID *int64 `json:"id_gestor,omitempty"`
	Manager   *User  `json:"gestor,omitempty"`
}

// Objective is a strategic objective projects can be attached to.
type Objective struct {
	ID          int64   `json:"id_objetivo"`
	Name        string  `json:"nome_objetivo"`
	Description *string `json:"descricao,omitempty"`
	FiscalYear  *int    `json:"ano_fiscal,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// StatusLogEntry is one append-only record of a status change.
type StatusLogEntry struct {
	ID          int64         `json:"id_log"`
	ProjectID   int64         `json:"id_projeto"`
	Status      ProjectStatus `json:"status"`
	Timestamp   string        `json:"data"`
	UserID      int64         `json:"id_usuario"`
	Observation string        `json:"observacao"`
	User        *User         `json:"usuario,omitempty"`
}

// Project mirrors the backend project payload.
type Project struct {
	ID                 int64               `json:"id_projeto"`
	Name               string              `json:"nome_projeto"`
	Description        string              `json:"descricao"`
	TicketNumber       string              `json:"numero_topdesk"`
	Status             ProjectStatus       `json:"status_atual"`
	Priority           string              `json:"prioridade"`
	Complexity         string              `json:"complexidade"`
	Risk               string              `json:"risco"`
	EstimatedCost      *float64            `json:"custo_estimado,omitempty"`
	ActualCost         *float64            `json:"custo_real,omitempty"`
	DocumentationLink  *string             `json:"link_documentacao,omitempty"`
	PlannedStart       *string             `json:"data_inicio_prevista,omitempty"`
	PlannedEnd         *string             `json:"data_fim_prevista,omitempty"`
	ActualEnd          *string             `json:"data_fim_real,omitempty"`
	CreatedAt          string              `json:"data_criacao,omitempty"`
	Owner              *User               `json:"responsavel,omitempty"`
	RequestingArea     *Area               `json:"area_solicitante,omitempty"`
	Team               []User              `json:"equipe,omitempty"`
	Objectives         []Objective         `json:"objetivos_estrategicos,omitempty"`
	StatusHistory      []StatusLogEntry    `json:"historico_status,omitempty"`
	HomologationCycles []HomologationCycle `json:"ciclos_homologacao,omitempty"`
	Tasks              []Task              `json:"tarefas,omitempty"`
	NextStatuses       []ProjectStatus     `json:"proximos_status,omitempty"`
}

// CanMoveTo reports whether the backend declared target as a legal next status.
func (p *Project) CanMoveTo(target ProjectStatus) bool {
	for _, s := range p.NextStatuses {
		if s == target {
			return true
		}
	}
	return false
}

// OwnerID returns the owner's user id, or 0 when the project has no owner.
func (p *Project) OwnerID() int64 {
	if p.Owner == nil {
		return 0
	}
	return p.Owner.ID
}

// History returns the status log ordered by timestamp, newest first.
// Entries whose timestamps cannot be parsed sort last, keeping their relative order.
func (p *Project) History() []StatusLogEntry {
	out := make([]StatusLogEntry, len(p.StatusHistory))
	copy(out, p.StatusHistory)
	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := ParseTimestamp(out[i].Timestamp)
		tj, okJ := ParseTimestamp(out[j].Timestamp)
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
	return out
}

// OpenCycle returns the most recently started cycle that has no result yet.
func (p *Project) OpenCycle() *HomologationCycle {
	var open *HomologationCycle
	var openStart time.Time
	for i := range p.HomologationCycles {
		c := &p.HomologationCycles[i]
		if !c.IsOpen() {
			continue
		}
		start, _ := ParseTimestamp(c.StartedAt)
		if open == nil || start.After(openStart) {
			open, openStart = c, start
		}
	}
	return open
}

// CreateProjectRequest is the body of POST /projetos and PUT /projetos/{id}.
type CreateProjectRequest struct {
	Name              string   `json:"nome_projeto"`
	Description       string   `json:"descricao"`
	TicketNumber      string   `json:"numero_topdesk"`
	OwnerID           int64    `json:"id_responsavel,omitempty"`
	AreaID            int64    `json:"id_area_solicitante,omitempty"`
	Priority          string   `json:"prioridade"`
	Complexity        string   `json:"complexidade"`
	Risk              string   `json:"risco"`
	EstimatedCost     *float64 `json:"custo_estimado,omitempty"`
	PlannedStart      *string  `json:"data_inicio_prevista,omitempty"`
	PlannedEnd        *string  `json:"data_fim_prevista,omitempty"`
	TeamIDs           []int64  `json:"equipe_ids,omitempty"`
	ObjectiveIDs      []int64  `json:"objetivos_ids,omitempty"`
	DocumentationLink *string  `json:"link_documentacao,omitempty"`
}

// StatusUpdateRequest is the body of PUT /projetos/{id}/status.
type StatusUpdateRequest struct {
	Status      ProjectStatus `json:"status"`
	Observation string        `json:"observacao"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
}

// ParseTimestamp parses the ISO-8601 and HTTP-date variants the backend emits.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DatePart returns the YYYY-MM-DD form of a timestamp.
// Unparseable values are cut at the time separator.
func DatePart(s string) string {
	if t, ok := ParseTimestamp(s); ok {
		return t.Format("2006-01-02")
	}
	date, _, _ := strings.Cut(s, "T")
	return date
}
