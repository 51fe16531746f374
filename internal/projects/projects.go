// Package projects implements the create, edit and delete flows for projects.
package projects

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/ui"
)

// ErrNotConfirmed is returned when a deletion is not confirmed.
var ErrNotConfirmed = errors.New("deletion not confirmed")

// ValidationError reports a form that cannot be submitted. No request is sent.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InvalidFields names the form fields to highlight.
func (e *ValidationError) InvalidFields() []string {
	return e.Fields
}

// API is the part of the backend client the project flows call.
type API interface {
	CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error)
	UpdateProject(ctx context.Context, id int64, req models.CreateProjectRequest) (*models.Project, error)
	DeleteProject(ctx context.Context, id int64) error
}

// Draft is the create and edit form. Dates are YYYY-MM-DD.
type Draft struct {
	Name              string   `json:"nome_projeto"`
	Description       string   `json:"descricao,omitempty"`
	TicketNumber      string   `json:"numero_topdesk,omitempty"`
	OwnerID           int64    `json:"id_responsavel,omitempty"`
	AreaID            int64    `json:"id_area_solicitante,omitempty"`
	Priority          string   `json:"prioridade,omitempty"`
	Complexity        string   `json:"complexidade,omitempty"`
	Risk              string   `json:"risco,omitempty"`
	EstimatedCost     *float64 `json:"custo_estimado,omitempty"`
	PlannedStart      string   `json:"data_inicio_prevista,omitempty"`
	PlannedEnd        string   `json:"data_fim_prevista,omitempty"`
	TeamIDs           []int64  `json:"equipe_ids,omitempty"`
	ObjectiveIDs      []int64  `json:"objetivos_ids,omitempty"`
	DocumentationLink string   `json:"link_documentacao,omitempty"`
}

var (
	priorities   = []string{models.PriorityBaixa, models.PriorityMedia, models.PriorityAlta, models.PriorityCritica}
	risks        = []string{models.RiskBaixo, models.RiskMedio, models.RiskAlto}
	complexities = []string{models.ComplexityBaixa, models.ComplexityMedia, models.ComplexityAlta}
)

// Validate requires a name. Levels must be known values when set, the
// cost cannot be negative and the planned end cannot precede the start.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Message: "Por favor, preencha todos os campos obrigatórios.", Fields: []string{"nome_projeto"}}
	}

	var bad []string
	for _, level := range []struct {
		field, value string
		allowed      []string
	}{
		{"prioridade", d.Priority, priorities},
		{"complexidade", d.Complexity, complexities},
		{"risco", d.Risk, risks},
	} {
		if level.value != "" && !slices.Contains(level.allowed, level.value) {
			bad = append(bad, level.field)
		}
	}
	if len(bad) > 0 {
		return &ValidationError{Message: "Valor inválido: " + strings.Join(bad, ", ") + ".", Fields: bad}
	}

	if d.EstimatedCost != nil && *d.EstimatedCost < 0 {
		return &ValidationError{Message: "O custo estimado não pode ser negativo.", Fields: []string{"custo_estimado"}}
	}

	start, okStart, errStart := parseDate(d.PlannedStart)
	end, okEnd, errEnd := parseDate(d.PlannedEnd)
	if errStart != nil || errEnd != nil {
		var fields []string
		if errStart != nil {
			fields = append(fields, "data_inicio_prevista")
		}
		if errEnd != nil {
			fields = append(fields, "data_fim_prevista")
		}
		return &ValidationError{Message: "Datas inválidas. Use o formato AAAA-MM-DD.", Fields: fields}
	}
	if okStart && okEnd && end.Before(start) {
		return &ValidationError{Message: "A data de fim não pode ser anterior à data de início.", Fields: []string{"data_fim_prevista"}}
	}
	return nil
}

func parseDate(s string) (t time.Time, set bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.DateOnly, s)
	return t, err == nil, err
}

// request builds the backend body. Dates are sent as midnight timestamps
// and blank optional text is left out.
func (d Draft) request() models.CreateProjectRequest {
	req := models.CreateProjectRequest{
		Name:          strings.TrimSpace(d.Name),
		Description:   strings.TrimSpace(d.Description),
		TicketNumber:  strings.TrimSpace(d.TicketNumber),
		OwnerID:       d.OwnerID,
		AreaID:        d.AreaID,
		Priority:      d.Priority,
		Complexity:    d.Complexity,
		Risk:          d.Risk,
		EstimatedCost: d.EstimatedCost,
		TeamIDs:       d.TeamIDs,
		ObjectiveIDs:  d.ObjectiveIDs,
	}
	if s := strings.TrimSpace(d.PlannedStart); s != "" {
		ts := s + "T00:00:00"
		req.PlannedStart = &ts
	}
	if s := strings.TrimSpace(d.PlannedEnd); s != "" {
		ts := s + "T00:00:00"
		req.PlannedEnd = &ts
	}
	if s := strings.TrimSpace(d.DocumentationLink); s != "" {
		req.DocumentationLink = &s
	}
	return req
}

// DraftFrom pre-fills the edit form with p's current values.
func DraftFrom(p *models.Project) Draft {
	d := Draft{
		Name:          p.Name,
		Description:   p.Description,
		TicketNumber:  p.TicketNumber,
		OwnerID:       p.OwnerID(),
		Priority:      p.Priority,
		Complexity:    p.Complexity,
		Risk:          p.Risk,
		EstimatedCost: p.EstimatedCost,
	}
	if p.RequestingArea != nil {
		d.AreaID = p.RequestingArea.ID
	}
	if p.PlannedStart != nil {
		d.PlannedStart = models.DatePart(*p.PlannedStart)
	}
	if p.PlannedEnd != nil {
		d.PlannedEnd = models.DatePart(*p.PlannedEnd)
	}
	if p.DocumentationLink != nil {
		d.DocumentationLink = *p.DocumentationLink
	}
	for _, u := range p.Team {
		d.TeamIDs = append(d.TeamIDs, u.ID)
	}
	for _, o := range p.Objectives {
		d.ObjectiveIDs = append(d.ObjectiveIDs, o.ID)
	}
	return d
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(prompt string) bool

// Flows runs the project forms against the backend.
type Flows struct {
	api         API
	presenter   ui.Presenter
	reloadDelay time.Duration
	logger      *zap.Logger
}

// Option configures Flows.
type Option func(*Flows)

// WithReloadDelay sets how long a successful flow waits before asking for a reload.
func WithReloadDelay(d time.Duration) Option {
	return func(f *Flows) { f.reloadDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Flows) { f.logger = l }
}

// New returns project flows reporting to presenter.
func New(api API, presenter ui.Presenter, opts ...Option) *Flows {
	f := &Flows{api: api, presenter: presenter, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create validates d and creates a project on behalf of actor.
// The result is nil when the backend answers without a body.
func (f *Flows) Create(ctx context.Context, actor *models.User, d Draft) (*models.Project, error) {
	if !auth.CanCreate(actor) {
		f.presenter.Notify(ui.LevelError, "Você não tem permissão para criar projetos.")
		return nil, auth.ErrForbidden
	}
	if err := d.Validate(); err != nil {
		f.presenter.Notify(ui.LevelError, err.Error())
		return nil, err
	}
	var created *models.Project
	err := f.submit("create", func() error {
		var err error
		created, err = f.api.CreateProject(ctx, d.request())
		return err
	}, "Erro ao criar projeto: ", func() string {
		name := strings.TrimSpace(d.Name)
		if created != nil && created.Name != "" {
			name = created.Name
		}
		return fmt.Sprintf("Projeto %q criado com sucesso!", name)
	})
	return created, err
}

// Edit validates d and replaces p's fields.
func (f *Flows) Edit(ctx context.Context, actor *models.User, p *models.Project, d Draft) (*models.Project, error) {
	if !auth.CanEdit(actor, p) {
		f.presenter.Notify(ui.LevelError, "Você não tem permissão para editar este projeto.")
		return nil, auth.ErrForbidden
	}
	if err := d.Validate(); err != nil {
		f.presenter.Notify(ui.LevelError, err.Error())
		return nil, err
	}
	var updated *models.Project
	err := f.submit("edit", func() error {
		var err error
		updated, err = f.api.UpdateProject(ctx, p.ID, d.request())
		return err
	}, "Erro ao atualizar projeto: ", func() string { return "Projeto atualizado com sucesso!" })
	return updated, err
}

// Delete removes p after confirm accepts the second confirmation prompt.
// A nil confirm counts as a refusal.
func (f *Flows) Delete(ctx context.Context, actor *models.User, p *models.Project, confirm ConfirmFunc) error {
	if !auth.CanDelete(actor, p) {
		f.presenter.Notify(ui.LevelError, "Você não tem permissão para excluir este projeto.")
		return auth.ErrForbidden
	}
	if confirm == nil || !confirm(fmt.Sprintf("Excluir permanentemente o projeto %q?", p.Name)) {
		f.presenter.Notify(ui.LevelInfo, "Exclusão cancelada.")
		return ErrNotConfirmed
	}
	return f.submit("delete", func() error {
		return f.api.DeleteProject(ctx, p.ID)
	}, "Erro ao excluir projeto: ", func() string { return "Projeto excluído com sucesso!" })
}

// submit disables the controls around call and reports its outcome.
func (f *Flows) submit(action string, call func() error, failure string, success func() string) error {
	f.presenter.SetBusy(true, action)
	if err := call(); err != nil {
		f.logger.Warn("project flow failed", zap.String("action", action), zap.Error(err))
		f.presenter.Notify(ui.LevelError, failure+err.Error())
		f.presenter.SetBusy(false, action)
		return err
	}
	f.presenter.Notify(ui.LevelSuccess, success())
	f.presenter.Reload(f.reloadDelay)
	return nil
}
