// Package tasks implements the create, edit and delete flows for project tasks.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

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

// API is the part of the backend client the task flows call.
type API interface {
	CreateTask(ctx context.Context, projectID int64, req models.CreateTaskRequest) (*models.Task, error)
	UpdateTask(ctx context.Context, taskID string, req models.UpdateTaskRequest) (*models.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
}

// Draft is the create form.
type Draft struct {
	Name        string `json:"nome_tarefa"`
	Start       string `json:"data_inicio"`
	End         string `json:"data_fim"`
	AssigneeID  *int64 `json:"id_responsavel_tarefa,omitempty"`
	Description string `json:"descricao,omitempty"`
}

// Validate requires a name and both dates, as YYYY-MM-DD with end not before start.
func (d Draft) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "nome_tarefa")
	}
	if strings.TrimSpace(d.Start) == "" {
		missing = append(missing, "data_inicio")
	}
	if strings.TrimSpace(d.End) == "" {
		missing = append(missing, "data_fim")
	}
	if len(missing) > 0 {
		return &ValidationError{Message: "Nome e datas da tarefa são obrigatórios.", Fields: missing}
	}

	start, errStart := time.Parse(time.DateOnly, d.Start)
	end, errEnd := time.Parse(time.DateOnly, d.End)
	if errStart != nil || errEnd != nil {
		return &ValidationError{Message: "Datas inválidas. Use o formato AAAA-MM-DD.", Fields: []string{"data_inicio", "data_fim"}}
	}
	if end.Before(start) {
		return &ValidationError{Message: "A data de fim não pode ser anterior à data de início.", Fields: []string{"data_fim"}}
	}
	return nil
}

func (d Draft) request() models.CreateTaskRequest {
	req := models.CreateTaskRequest{
		Name:  strings.TrimSpace(d.Name),
		Start: d.Start,
		End:   d.End,
	}
	if d.AssigneeID != nil && *d.AssigneeID > 0 {
		req.AssigneeID = d.AssigneeID
	}
	if d.Description != "" {
		desc := d.Description
		req.Description = &desc
	}
	return req
}

// Edit is the edit form. A nil AssigneeID clears the assignee.
type Edit struct {
	Name       string `json:"nome_tarefa"`
	Progress   *int   `json:"progresso"`
	AssigneeID *int64 `json:"id_responsavel_tarefa"`
}

// Validate requires a name and a progress between 0 and 100.
func (e Edit) Validate() error {
	if strings.TrimSpace(e.Name) == "" || e.Progress == nil {
		var fields []string
		if strings.TrimSpace(e.Name) == "" {
			fields = append(fields, "nome_tarefa")
		}
		if e.Progress == nil {
			fields = append(fields, "progresso")
		}
		return &ValidationError{Message: "Preencha os campos corretamente.", Fields: fields}
	}
	if *e.Progress < 0 || *e.Progress > 100 {
		return &ValidationError{Message: "O progresso deve estar entre 0 e 100.", Fields: []string{"progresso"}}
	}
	return nil
}

func (e Edit) request() models.UpdateTaskRequest {
	req := models.UpdateTaskRequest{
		Name:     strings.TrimSpace(e.Name),
		Progress: models.ClampProgress(*e.Progress),
	}
	if e.AssigneeID != nil && *e.AssigneeID > 0 {
		req.AssigneeID = e.AssigneeID
	}
	return req
}

// FromFailedTest pre-fills a bug-fix task for a failed test case.
// Dates are left for the user to fill.
func FromFailedTest(t models.ExecutedTest) Draft {
	return Draft{
		Name:        "[BUG] Corrigir: " + t.Name,
		Description: failureDescription(t),
	}
}

func failureDescription(t models.ExecutedTest) string {
	orNA := func(s *string) string {
		if s == nil || strings.TrimSpace(*s) == "" {
			return "N/A"
		}
		return *s
	}
	errMsg := "Nenhuma mensagem de erro detalhada."
	if t.ErrorMessage != nil && strings.TrimSpace(*t.ErrorMessage) != "" {
		errMsg = *t.ErrorMessage
	}
	return fmt.Sprintf("Teste Reprovado: %s\nFeature: %s\nSeveridade: %s\n---\nMensagem de Erro:\n%s",
		t.Name, orNA(t.Feature), orNA(t.Severity), errMsg)
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(prompt string) bool

// Flows runs the task forms against the backend.
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

// New returns task flows reporting to presenter. Reloads are immediate unless configured.
func New(api API, presenter ui.Presenter, opts ...Option) *Flows {
	f := &Flows{api: api, presenter: presenter, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create validates d and creates the task under projectID.
func (f *Flows) Create(ctx context.Context, projectID int64, d Draft) (*models.Task, error) {
	return f.create(ctx, projectID, d, "Tarefa criada com sucesso!")
}

// CreateFromFailedTest creates a bug-fix task drafted with FromFailedTest and
// completed by the caller with dates and assignee.
func (f *Flows) CreateFromFailedTest(ctx context.Context, projectID int64, d Draft) (*models.Task, error) {
	return f.create(ctx, projectID, d, "Tarefa de correção criada com sucesso!")
}

func (f *Flows) create(ctx context.Context, projectID int64, d Draft, success string) (*models.Task, error) {
	if err := d.Validate(); err != nil {
		f.presenter.Notify(ui.LevelError, err.Error())
		return nil, err
	}
	var task *models.Task
	err := f.submit("create", func() error {
		var err error
		task, err = f.api.CreateTask(ctx, projectID, d.request())
		return err
	}, "Erro ao criar tarefa: ", success)
	return task, err
}

// Edit validates e and updates the task.
func (f *Flows) Edit(ctx context.Context, taskID string, e Edit) (*models.Task, error) {
	if err := e.Validate(); err != nil {
		f.presenter.Notify(ui.LevelError, err.Error())
		return nil, err
	}
	var task *models.Task
	err := f.submit("edit", func() error {
		var err error
		task, err = f.api.UpdateTask(ctx, taskID, e.request())
		return err
	}, "Erro: ", "Tarefa atualizada!")
	return task, err
}

// Delete removes task after confirm accepts the second confirmation prompt.
// A nil confirm counts as a refusal.
func (f *Flows) Delete(ctx context.Context, task models.Task, confirm ConfirmFunc) error {
	if confirm == nil || !confirm(fmt.Sprintf("Excluir a tarefa %q?", task.Name)) {
		f.presenter.Notify(ui.LevelInfo, "Exclusão cancelada.")
		return ErrNotConfirmed
	}
	return f.submit("delete", func() error {
		return f.api.DeleteTask(ctx, task.ID)
	}, "Erro: ", "Tarefa excluída!")
}

// submit disables the controls around call and reports its outcome.
func (f *Flows) submit(action string, call func() error, failure, success string) error {
	f.presenter.SetBusy(true, action)
	if err := call(); err != nil {
		f.logger.Warn("task flow failed", zap.String("action", action), zap.Error(err))
		f.presenter.Notify(ui.LevelError, failure+err.Error())
		f.presenter.SetBusy(false, action)
		return err
	}
	f.presenter.Notify(ui.LevelSuccess, success)
	f.presenter.Reload(f.reloadDelay)
	return nil
}
