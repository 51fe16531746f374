package internal

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/handlers"
	"pmo-dashboard/internal/health"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/report"
	"pmo-dashboard/internal/tasks"
	"pmo-dashboard/internal/workflow"
	"pmo-dashboard/pkg/xlsxexport"
)

// loginResponse is what POST /auth/login returns to the browser.
type loginResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// login relays credentials to the backend and hands its token to the browser,
// which then sends it as a bearer token on every protected route.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.SendError(w, "Invalid request body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		auth.SendError(w, "Email and password are required", "MISSING_CREDENTIALS", http.StatusBadRequest)
		return
	}

	token, err := s.client(r.Context()).Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.Logger.Info("login rejected", zap.String("email", req.Email), zap.Error(err))
		handlers.WriteError(w, err)
		return
	}

	resp := loginResponse{AccessToken: token}
	if claims, err := auth.Inspect(token, s.now()); err == nil && claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		resp.ExpiresAt = &exp
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

type dashboardResponse struct {
	Filters       report.Filters `json:"filtros"`
	StatusOptions []string       `json:"opcoes_status"`
	Stats         report.Stats   `json:"stats"`
	Projects      []report.Card  `json:"projetos"`
}

// dashboardView handles GET /views/dashboard?q=&status=.
// Stats cover every project; cards only the filtered ones.
func (s *Server) dashboardView(w http.ResponseWriter, r *http.Request) {
	projects, err := s.client(r.Context()).Projects(r.Context())
	if err != nil {
		handlers.WriteError(w, err)
		return
	}

	view := report.NewView(projects)
	view.SetFilters(parseFilters(r))

	handlers.WriteJSON(w, http.StatusOK, dashboardResponse{
		Filters:       view.Filters(),
		StatusOptions: view.StatusOptions(),
		Stats:         report.Summarize(projects),
		Projects:      report.Cards(view.Visible(), s.now()),
	})
}

type personalResponse struct {
	Tasks    []report.TaskItem `json:"tarefas"`
	Projects []report.Card     `json:"projetos"`
}

// personalView handles GET /views/me. Tasks and projects are fetched concurrently.
func (s *Server) personalView(w http.ResponseWriter, r *http.Request) {
	c := s.client(r.Context())

	var (
		myTasks    []models.Task
		myProjects []models.Project
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		myTasks, err = c.MyTasks(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		myProjects, err = c.MyProjects(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		handlers.WriteError(w, err)
		return
	}

	now := s.now()
	handlers.WriteJSON(w, http.StatusOK, personalResponse{
		Tasks:    report.MyTasks(myTasks, now),
		Projects: report.Cards(myProjects, now),
	})
}

// roadmapView handles GET /views/roadmap.
func (s *Server) roadmapView(w http.ResponseWriter, r *http.Request) {
	projects, err := s.client(r.Context()).Projects(r.Context())
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, report.Roadmap(report.Filter(projects, parseFilters(r))))
}

type overviewResponse struct {
	report.OverviewData
	Tables map[string]report.FrequencyTable `json:"tabelas,omitempty"`
}

// overviewReport handles GET /views/reports/overview?by=. The standard charts
// are always present; by adds one frequency table per requested key.
func (s *Server) overviewReport(w http.ResponseWriter, r *http.Request) {
	projects, err := s.client(r.Context()).Projects(r.Context())
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	projects = report.Filter(projects, parseFilters(r))

	resp := overviewResponse{OverviewData: report.Overview(projects)}
	if keys := parseGroupKeys(r.URL.Query().Get("by")); len(keys) > 0 {
		resp.Tables = make(map[string]report.FrequencyTable, len(keys))
		for _, key := range keys {
			resp.Tables[key] = report.GroupBy(projects, key)
		}
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

// exportProjects handles GET /views/export/projects.xlsx?q=&status=&by=.
func (s *Server) exportProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.client(r.Context()).Projects(r.Context())
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	projects = report.Filter(projects, parseFilters(r))

	var buf bytes.Buffer
	summary, err := xlsxexport.WriteProjects(&buf, projects, xlsxexport.Options{
		Now:     s.now(),
		GroupBy: parseGroupKeys(r.URL.Query().Get("by")),
	})
	if err != nil {
		s.Logger.Error("export failed", zap.Error(err))
		auth.SendError(w, "Failed to build spreadsheet", "EXPORT_FAILED", http.StatusInternalServerError)
		return
	}
	s.Logger.Debug("projects exported", zap.Int("projects", summary.Projects), zap.Int("sheets", len(summary.Sheets)))

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="projetos.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.Logger.Warn("write export", zap.Error(err))
	}
}

type transitionOption struct {
	Status   models.ProjectStatus `json:"status"`
	Protocol workflow.Protocol    `json:"protocol"`
}

type projectPermissions struct {
	Edit         bool `json:"editar"`
	Delete       bool `json:"excluir"`
	ChangeStatus bool `json:"alterar_status"`
}

type projectResponse struct {
	Project     *models.Project           `json:"projeto"`
	Health      health.Health             `json:"saude"`
	Deadline    string                    `json:"prazo"`
	History     []models.StatusLogEntry   `json:"historico"`
	OpenCycle   *models.HomologationCycle `json:"ciclo_aberto,omitempty"`
	Transitions []transitionOption        `json:"transicoes"`
	Permissions projectPermissions        `json:"permissoes"`
}

// projectView handles GET /views/projects/{id}: the KPI panel, the history
// newest first and the transitions the caller may start.
func (s *Server) projectView(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		auth.SendError(w, "project id must be a positive integer", "INVALID_ID", http.StatusBadRequest)
		return
	}

	p, me, err := s.projectAndActor(r, id)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	if !auth.CanView(me, p) {
		handlers.WriteError(w, auth.ErrForbidden)
		return
	}

	now := s.now()
	resp := projectResponse{
		Project:     p,
		Health:      health.Classify(p, now),
		Deadline:    health.Deadline(p, now),
		History:     p.History(),
		OpenCycle:   p.OpenCycle(),
		Transitions: []transitionOption{},
		Permissions: projectPermissions{
			Edit:         auth.CanEdit(me, p),
			Delete:       auth.CanDelete(me, p),
			ChangeStatus: auth.CanChangeStatus(me, p),
		},
	}
	if resp.Permissions.ChangeStatus {
		for _, next := range p.NextStatuses {
			resp.Transitions = append(resp.Transitions, transitionOption{
				Status:   next,
				Protocol: workflow.ProtocolFor(p.Status, next),
			})
		}
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

// projectAndActor loads project id and the calling user concurrently.
func (s *Server) projectAndActor(r *http.Request, id int64) (*models.Project, *models.User, error) {
	c := s.client(r.Context())
	var (
		p  *models.Project
		me *models.User
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		p, err = c.FindProject(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		me, err = c.CurrentUser(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return p, me, nil
}

type cycleTestsResponse struct {
	Tests  []models.ExecutedTest `json:"testes"`
	Failed []models.ExecutedTest `json:"reprovados"`
	// Drafts holds a pre-filled bug-fix task per failed test, in the same order.
	Drafts []tasks.Draft `json:"rascunhos"`
}

// cycleTestsView handles GET /views/homologations/{id}/tests.
func (s *Server) cycleTestsView(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		auth.SendError(w, "homologation id must be a positive integer", "INVALID_ID", http.StatusBadRequest)
		return
	}
	executed, err := s.client(r.Context()).CycleTests(r.Context(), id)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}

	resp := cycleTestsResponse{
		Tests:  executed,
		Failed: []models.ExecutedTest{},
		Drafts: []tasks.Draft{},
	}
	for _, t := range executed {
		if t.Failed() {
			resp.Failed = append(resp.Failed, t)
			resp.Drafts = append(resp.Drafts, tasks.FromFailedTest(t))
		}
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

type portfolioResponse struct {
	Objectives []models.PortfolioObjective `json:"objetivos"`
	Totals     report.PortfolioTotals      `json:"totais"`
}

// portfolioReport handles GET /views/reports/portfolio.
func (s *Server) portfolioReport(w http.ResponseWriter, r *http.Request) {
	objs, err := s.client(r.Context()).PortfolioReport(r.Context())
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, portfolioResponse{
		Objectives: objs,
		Totals:     report.SummarizePortfolio(objs),
	})
}

type qaResponse struct {
	Report  *models.QAReport    `json:"relatorio"`
	Summary report.QASummaryData `json:"resumo"`
}

// qaReport handles GET /views/reports/qa.
func (s *Server) qaReport(w http.ResponseWriter, r *http.Request) {
	qa, err := s.client(r.Context()).QAReport(r.Context())
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	resp := qaResponse{Report: qa}
	if qa != nil {
		resp.Summary = report.QASummary(*qa)
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}
