package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"pmo-dashboard/internal/models"
)

// ReportField is the multipart field name the backend reads report archives from.
const ReportField = "reportFile"

// Login authenticates and saves the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := call[models.LoginResponse](ctx, c, http.MethodPost, "/auth/login", "/auth/login",
		models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.AccessToken == "" {
		return "", errors.New("login response carried no access token")
	}
	if err := c.tokens.Save(resp.AccessToken); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Logout forgets the stored token.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return call[models.User](ctx, c, http.MethodPost, "/auth/register", "/auth/register", req)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	return get[models.User](ctx, c, "/auth/me", "/auth/me")
}

// CurrentUser is Me for callers that act as the user. A bodiless answer
// means the session resolves to nobody and is reported as ErrUnauthorized.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return nil, fmt.Errorf("usuário da sessão: %w", ErrUnauthorized)
	}
	return me, nil
}

// UpdateProfile edits the caller's own profile.
func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	return call[models.User](ctx, c, http.MethodPut, "/profile", "/profile", req)
}

// UpdateUserRole changes another user's role. Admin only on the backend.
func (c *Client) UpdateUserRole(ctx context.Context, userID int64, role string) (*models.User, error) {
	return call[models.User](ctx, c, http.MethodPut, "/admin/users/{id}/role",
		fmt.Sprintf("/admin/users/%d/role", userID), models.RoleUpdateRequest{Role: role})
}

// Users lists every user.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	return list[models.User](ctx, c, "/usuarios", "/usuarios")
}

// Areas lists the requesting areas.
func (c *Client) Areas(ctx context.Context) ([]models.Area, error) {
	return list[models.Area](ctx, c, "/areas", "/areas")
}

// Objectives lists the strategic objectives.
func (c *Client) Objectives(ctx context.Context) ([]models.Objective, error) {
	return list[models.Objective](ctx, c, "/objetivos", "/objetivos")
}

// ProjectSchema returns the create/edit form description.
func (c *Client) ProjectSchema(ctx context.Context) (*models.ProjectSchema, error) {
	return get[models.ProjectSchema](ctx, c, "/projetos/schema", "/projetos/schema")
}

// Projects lists every project visible to the caller.
func (c *Client) Projects(ctx context.Context) ([]models.Project, error) {
	return list[models.Project](ctx, c, "/projetos", "/projetos")
}

// Project fetches one project with history, cycles, tasks and next statuses.
func (c *Client) Project(ctx context.Context, id int64) (*models.Project, error) {
	return get[models.Project](ctx, c, "/projetos/{id}", fmt.Sprintf("/projetos/%d", id))
}

// FindProject is Project for callers that need the project: a bodiless
// answer becomes ErrNotFound.
func (c *Client) FindProject(ctx context.Context, id int64) (*models.Project, error) {
	p, err := c.Project(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("projeto %d: %w", id, ErrNotFound)
	}
	return p, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	return call[models.Project](ctx, c, http.MethodPost, "/projetos", "/projetos", req)
}

// UpdateProject edits a project's fields.
func (c *Client) UpdateProject(ctx context.Context, id int64, req models.CreateProjectRequest) (*models.Project, error) {
	return call[models.Project](ctx, c, http.MethodPut, "/projetos/{id}", fmt.Sprintf("/projetos/%d", id), req)
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/projetos/{id}", fmt.Sprintf("/projetos/%d", id), nil, nil)
	return err
}

// UpdateProjectStatus performs a plain status change.
func (c *Client) UpdateProjectStatus(ctx context.Context, id int64, req models.StatusUpdateRequest) (*models.Project, error) {
	return call[models.Project](ctx, c, http.MethodPut, "/projetos/{id}/status",
		fmt.Sprintf("/projetos/%d/status", id), req)
}

// StartHomologation opens a homologation cycle and moves the project into Em Homologação.
func (c *Client) StartHomologation(ctx context.Context, projectID int64, req models.StartCycleRequest) (*models.Project, error) {
	return call[models.Project](ctx, c, http.MethodPost, "/projetos/{id}/homologacao/iniciar",
		fmt.Sprintf("/projetos/%d/homologacao/iniciar", projectID), req)
}

// FinishHomologation closes the open cycle. The backend picks the next status from the result.
func (c *Client) FinishHomologation(ctx context.Context, projectID int64, req models.FinishCycleRequest) (*models.FinishCycleResponse, error) {
	return call[models.FinishCycleResponse](ctx, c, http.MethodPost, "/projetos/{id}/homologacao/finalizar",
		fmt.Sprintf("/projetos/%d/homologacao/finalizar", projectID), req)
}

// UploadReport sends a report archive for a finished cycle as multipart field reportFile.
func (c *Client) UploadReport(ctx context.Context, homologationID int64, filename string, r io.Reader) (*models.HomologationCycle, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(ReportField, filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy report: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	route := "/homologacoes/{id}/upload-zip"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/homologacoes/%d/upload-zip", c.baseURL, homologationID), &buf)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", route, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out models.HomologationCycle
	noContent, err := c.send(req, route, &out)
	if err != nil || noContent {
		return nil, err
	}
	return &out, nil
}

// ProcessReport asks the backend to (re)parse an uploaded report.
func (c *Client) ProcessReport(ctx context.Context, homologationID int64) (*models.HomologationCycle, error) {
	return call[models.HomologationCycle](ctx, c, http.MethodPost, "/homologacoes/{id}/processar-relatorio",
		fmt.Sprintf("/homologacoes/%d/processar-relatorio", homologationID), nil)
}

// CycleTests lists the executed tests of a cycle.
func (c *Client) CycleTests(ctx context.Context, homologationID int64) ([]models.ExecutedTest, error) {
	return list[models.ExecutedTest](ctx, c, "/homologacoes/{id}/testes",
		fmt.Sprintf("/homologacoes/%d/testes", homologationID))
}

// CreateTask adds a task to a project.
func (c *Client) CreateTask(ctx context.Context, projectID int64, req models.CreateTaskRequest) (*models.Task, error) {
	return call[models.Task](ctx, c, http.MethodPost, "/projetos/{id}/tarefas",
		fmt.Sprintf("/projetos/%d/tarefas", projectID), req)
}

// UpdateTask edits a task.
func (c *Client) UpdateTask(ctx context.Context, taskID string, req models.UpdateTaskRequest) (*models.Task, error) {
	return call[models.Task](ctx, c, http.MethodPut, "/tarefas/{id}", "/tarefas/"+url.PathEscape(taskID), req)
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/tarefas/{id}", "/tarefas/"+url.PathEscape(taskID), nil, nil)
	return err
}

// MyTasks lists open tasks assigned to the caller.
func (c *Client) MyTasks(ctx context.Context) ([]models.Task, error) {
	return list[models.Task](ctx, c, "/me/tarefas", "/me/tarefas")
}

// MyProjects lists active projects owned by the caller.
func (c *Client) MyProjects(ctx context.Context) ([]models.Project, error) {
	return list[models.Project](ctx, c, "/me/projetos", "/me/projetos")
}

// PortfolioReport returns projects grouped by strategic objective.
func (c *Client) PortfolioReport(ctx context.Context) ([]models.PortfolioObjective, error) {
	return list[models.PortfolioObjective](ctx, c, "/relatorios/portfolio", "/relatorios/portfolio")
}

// QAReport returns the QA dashboard payload.
func (c *Client) QAReport(ctx context.Context) (*models.QAReport, error) {
	return get[models.QAReport](ctx, c, "/relatorios/qa", "/relatorios/qa")
}
