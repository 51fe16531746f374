package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/ui"
)

// ReloadDelay is how long a successful transition waits before asking for a reload.
const ReloadDelay = 1500 * time.Millisecond

var (
	// ErrTransitionNotAllowed is returned when the target is not among the
	// project's backend-declared next statuses.
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	// ErrForbidden is returned when the actor may not change the project's status.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrNoFinishedCycle is returned when a report is attached but the
	// finalized cycle cannot be identified, so there is nowhere to upload it.
	ErrNoFinishedCycle = errors.New("o ciclo finalizado não foi identificado; o relatório não foi enviado")
)

// API is the part of the backend client the workflow calls.
type API interface {
	Users(ctx context.Context) ([]models.User, error)
	UpdateProjectStatus(ctx context.Context, id int64, req models.StatusUpdateRequest) (*models.Project, error)
	StartHomologation(ctx context.Context, projectID int64, req models.StartCycleRequest) (*models.Project, error)
	FinishHomologation(ctx context.Context, projectID int64, req models.FinishCycleRequest) (*models.FinishCycleResponse, error)
	UploadReport(ctx context.Context, homologationID int64, filename string, r io.Reader) (*models.HomologationCycle, error)
}

// Request is one transition attempt.
type Request struct {
	Project *models.Project
	Target  models.ProjectStatus
	// Actor is checked with auth.CanChangeStatus when set.
	Actor    *models.User
	Evidence Evidence
}

// Result is what a successful transition produced.
type Result struct {
	Protocol       Protocol                  `json:"protocol"`
	Project        *models.Project           `json:"projeto,omitempty"`
	HomologationID int64                     `json:"id_homologacao,omitempty"`
	Report         *models.HomologationCycle `json:"relatorio,omitempty"`
}

// Executor runs transitions against the backend.
type Executor struct {
	api         API
	presenter   ui.Presenter
	reloadDelay time.Duration
	logger      *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithReloadDelay overrides ReloadDelay.
func WithReloadDelay(d time.Duration) Option {
	return func(e *Executor) { e.reloadDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor returns an Executor that reports to presenter.
func NewExecutor(api API, presenter ui.Presenter, opts ...Option) *Executor {
	e := &Executor{
		api:         api,
		presenter:   presenter,
		reloadDelay: ReloadDelay,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan loads tester candidates when needed and returns the form for the transition.
func (e *Executor) Plan(ctx context.Context, p *models.Project, target models.ProjectStatus) (*Form, error) {
	var testers []models.User
	if p.CanMoveTo(target) && ProtocolFor(p.Status, target) == EnterHomologation {
		users, err := e.api.Users(ctx)
		if err != nil {
			e.presenter.Notify(ui.LevelError, "Erro ao carregar lista de usuários.")
			return nil, fmt.Errorf("load tester candidates: %w", err)
		}
		for _, u := range users {
			if u.IsActive {
				testers = append(testers, u)
			}
		}
	}
	return Plan(p, target, testers)
}

// Execute validates req and runs the transition's requests.
//
// Validation failures notify the presenter and return a *ValidationError
// without touching the controls. Once requests start the controls are
// disabled; a failure re-enables them, a success schedules a reload.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	p := req.Project
	if p == nil {
		return nil, errors.New("project is required")
	}
	if !p.CanMoveTo(req.Target) {
		e.presenter.Notify(ui.LevelError, fmt.Sprintf("Transição de %q para %q não permitida.", p.Status, req.Target))
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, p.Status, req.Target)
	}
	if req.Actor != nil && !auth.CanChangeStatus(req.Actor, p) {
		e.presenter.Notify(ui.LevelError, "Você não tem permissão para alterar o status deste projeto.")
		return nil, ErrForbidden
	}

	protocol := ProtocolFor(p.Status, req.Target)
	evidence := deref(req.Evidence)
	if evidence == nil && protocol == DefaultTransition {
		evidence = DefaultEvidence{}
	}
	if err := checkEvidence(protocol, evidence); err != nil {
		e.presenter.Notify(ui.LevelError, err.Error())
		return nil, err
	}

	action := string(req.Target)
	e.presenter.SetBusy(true, action)

	log := e.logger.With(zap.Int64("project_id", p.ID), zap.String("from", string(p.Status)),
		zap.String("to", string(req.Target)), zap.String("protocol", string(protocol)))

	result, err := e.run(ctx, p, req.Target, protocol, evidence)
	if err != nil {
		log.Warn("transition failed", zap.Error(err))
		e.presenter.Notify(ui.LevelError, failurePrefix(protocol)+err.Error())
		e.presenter.SetBusy(false, action)
		return nil, err
	}

	log.Info("transition completed")
	e.presenter.Notify(ui.LevelSuccess, successMessage(protocol))
	e.presenter.Reload(e.reloadDelay)
	return result, nil
}

// deref turns pointer evidence into values so the protocol switch sees one shape.
func deref(ev Evidence) Evidence {
	switch v := ev.(type) {
	case *EnterHomologationEvidence:
		if v != nil {
			return *v
		}
	case *ExitHomologationEvidence:
		if v != nil {
			return *v
		}
	case *DefaultEvidence:
		if v != nil {
			return *v
		}
	default:
		return ev
	}
	return nil
}

func checkEvidence(protocol Protocol, evidence Evidence) error {
	if evidence == nil || evidence.Protocol() != protocol {
		return &ValidationError{Message: "Todos os campos são obrigatórios."}
	}
	return evidence.Validate()
}

func (e *Executor) run(ctx context.Context, p *models.Project, target models.ProjectStatus, protocol Protocol, evidence Evidence) (*Result, error) {
	result := &Result{Protocol: protocol}

	switch ev := evidence.(type) {
	case EnterHomologationEvidence:
		project, err := e.api.StartHomologation(ctx, p.ID, ev.request())
		if err != nil {
			return nil, err
		}
		result.Project = project
		if project != nil {
			if open := project.OpenCycle(); open != nil {
				result.HomologationID = open.ID
			}
		}

	case ExitHomologationEvidence:
		finished, err := e.api.FinishHomologation(ctx, p.ID, ev.request())
		if err != nil {
			return nil, err
		}
		if finished != nil {
			result.Project = finished.Project
			result.HomologationID = finished.HomologationID
		}
		// A bodiless answer still closed the cycle that was open.
		if result.HomologationID == 0 {
			if open := p.OpenCycle(); open != nil {
				result.HomologationID = open.ID
			}
		}
		if ev.Report != nil {
			if result.HomologationID == 0 {
				e.logger.Warn("finalized cycle has no id, report not sent", zap.Int64("project_id", p.ID))
				return nil, ErrNoFinishedCycle
			}
			e.presenter.Notify(ui.LevelInfo, "Enviando e processando relatório...")
			cycle, err := e.api.UploadReport(ctx, result.HomologationID, ev.Report.Name, ev.Report.Content)
			if err != nil {
				e.logger.Warn("report upload failed after cycle was finalized",
					zap.Int64("homologation_id", result.HomologationID), zap.Error(err))
				return nil, err
			}
			result.Report = cycle
		}

	case DefaultEvidence:
		project, err := e.api.UpdateProjectStatus(ctx, p.ID, models.StatusUpdateRequest{
			Status:      target,
			Observation: ev.Observation,
		})
		if err != nil {
			return nil, err
		}
		result.Project = project

	default:
		return nil, fmt.Errorf("unsupported evidence %T", evidence)
	}
	return result, nil
}

func successMessage(p Protocol) string {
	switch p {
	case EnterHomologation:
		return "Ciclo de homologação iniciado!"
	case ExitHomologation:
		return "Ciclo de homologação finalizado com sucesso!"
	default:
		return "Operação realizada com sucesso!"
	}
}

func failurePrefix(p Protocol) string {
	if p == ExitHomologation {
		return "Erro ao finalizar ciclo: "
	}
	return "Erro: "
}
