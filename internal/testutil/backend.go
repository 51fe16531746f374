package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"pmo-dashboard/internal/models"
)

// Default credentials accepted by the fake backend.
const (
	Email    = "ana@example.com"
	Password = "segredo"
	// SigningKey signs the access tokens the fake backend issues.
	SigningKey = "test-signing-key"
)

// TokenFor returns an HS256 access token shaped like the backend's: the user id
// as a string subject, expiring after ttl. A negative ttl yields an expired token.
func TokenFor(userID int64, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(userID, 10),
		"type":  "access",
		"fresh": false,
		"iat":   now.Add(-time.Minute).Unix(),
		"nbf":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(SigningKey))
	if err != nil {
		panic(fmt.Sprintf("sign test token: %v", err))
	}
	return signed
}

// Call is one request received by the fake backend.
type Call struct {
	Method      string
	Path        string
	Auth        string
	ContentType string
	Body        []byte
	Filename    string
	RequestID   string
}

// Decode unmarshals the recorded JSON body into v.
func (c Call) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(c.Body, v); err != nil {
		t.Fatalf("decode %s %s body: %v", c.Method, c.Path, err)
	}
}

type failure struct {
	status int
	body   string
}

// Backend is an in-memory stand-in for the REST backend, served over httptest.
type Backend struct {
	Server *httptest.Server

	// Token is the bearer token the backend issues and accepts.
	Token string
	// Me is the authenticated user.
	Me models.User

	mu        sync.Mutex
	calls     []Call
	failures  map[string]failure
	projects  map[int64]*models.Project
	tasks     map[string]*models.Task
	tests     map[int64][]models.ExecutedTest
	users     []models.User
	areas     []models.Area
	objs      []models.Objective
	portfolio []models.PortfolioObjective
	qa        models.QAReport
	nextID    int64
}

// NewBackend starts a fake backend that is closed when t finishes.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		Token:    TokenFor(1, time.Hour),
		Me:       models.User{ID: 1, FullName: "Ana Souza", Email: Email, Role: models.RoleAdmin, IsActive: true},
		failures: make(map[string]failure),
		projects: make(map[int64]*models.Project),
		tasks:    make(map[string]*models.Task),
		tests:    make(map[int64][]models.ExecutedTest),
		nextID:   100,
	}
	b.users = []models.User{b.Me}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the API base URL, including the /api prefix.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// AddProject stores p, filling proximos_status from the default workflow when empty.
func (b *Backend) AddProject(p models.Project) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(p.NextStatuses) == 0 {
		p.NextStatuses = models.NextStatuses(p.Status)
	}
	cp := p
	b.projects[p.ID] = &cp
	for i := range p.Tasks {
		task := p.Tasks[i]
		b.tasks[task.ID] = &task
	}
}

// Project returns a copy of the stored project.
func (b *Backend) Project(id int64) (models.Project, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.projects[id]
	if !ok {
		return models.Project{}, false
	}
	return *p, true
}

// AddUser registers an extra user.
func (b *Backend) AddUser(u models.User) {
	b.mu.Lock()
	b.users = append(b.users, u)
	b.mu.Unlock()
}

// SetAreas sets the /areas payload.
func (b *Backend) SetAreas(areas []models.Area) {
	b.mu.Lock()
	b.areas = areas
	b.mu.Unlock()
}

// SetObjectives sets the /objetivos payload.
func (b *Backend) SetObjectives(objs []models.Objective) {
	b.mu.Lock()
	b.objs = objs
	b.mu.Unlock()
}

// SetPortfolio sets the /relatorios/portfolio payload.
func (b *Backend) SetPortfolio(objs []models.PortfolioObjective) {
	b.mu.Lock()
	b.portfolio = objs
	b.mu.Unlock()
}

// SetQA sets the /relatorios/qa payload.
func (b *Backend) SetQA(r models.QAReport) {
	b.mu.Lock()
	b.qa = r
	b.mu.Unlock()
}

// SetTests sets the executed tests of a cycle.
func (b *Backend) SetTests(homologationID int64, tests []models.ExecutedTest) {
	b.mu.Lock()
	b.tests[homologationID] = tests
	b.mu.Unlock()
}

// FailWith makes every request to method+path answer status with body.
func (b *Backend) FailWith(method, path string, status int, body string) {
	b.mu.Lock()
	b.failures[method+" "+path] = failure{status: status, body: body}
	b.mu.Unlock()
}

// Calls returns every request received so far, in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallsTo returns the requests matching method and path.
func (b *Backend) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Paths returns "METHOD path" for every request, in order.
func (b *Backend) Paths() []string {
	calls := b.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method + " " + c.Path
	}
	return out
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", b.login)
		r.Post("/auth/register", b.register)

		r.Group(func(r chi.Router) {
			r.Use(b.requireToken)

			r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) { b.respondLocked(w, func() any { return b.Me }) })
			r.Put("/profile", b.updateProfile)
			r.Put("/admin/users/{id}/role", b.updateRole)
			r.Get("/usuarios", func(w http.ResponseWriter, r *http.Request) { b.respondLocked(w, func() any { return b.users }) })
			r.Get("/areas", func(w http.ResponseWriter, r *http.Request) { b.respondLocked(w, func() any { return nonNil(b.areas) }) })
			r.Get("/objetivos", func(w http.ResponseWriter, r *http.Request) { b.respondLocked(w, func() any { return nonNil(b.objs) }) })
			r.Get("/projetos/schema", b.schema)

			r.Get("/projetos", b.listProjects)
			r.Post("/projetos", b.createProject)
			r.Get("/projetos/{id}", b.getProject)
			r.Put("/projetos/{id}", b.updateProject)
			r.Delete("/projetos/{id}", b.deleteProject)
			r.Put("/projetos/{id}/status", b.updateStatus)
			r.Post("/projetos/{id}/homologacao/iniciar", b.startCycle)
			r.Post("/projetos/{id}/homologacao/finalizar", b.finishCycle)
			r.Post("/projetos/{id}/tarefas", b.createTask)

			r.Post("/homologacoes/{id}/upload-zip", b.uploadReport)
			r.Post("/homologacoes/{id}/processar-relatorio", b.processReport)
			r.Get("/homologacoes/{id}/testes", b.cycleTests)

			r.Put("/tarefas/{id}", b.updateTask)
			r.Delete("/tarefas/{id}", b.deleteTask)

			r.Get("/me/tarefas", b.myTasks)
			r.Get("/me/projetos", b.myProjects)
			r.Get("/relatorios/portfolio", func(w http.ResponseWriter, r *http.Request) {
				b.respondLocked(w, func() any { return nonNil(b.portfolio) })
			})
			r.Get("/relatorios/qa", func(w http.ResponseWriter, r *http.Request) { b.respondLocked(w, func() any { return b.qa }) })
		})
	})
	return r
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// record captures the call and short-circuits configured failures.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := Call{
			Method:      r.Method,
			Path:        strings.TrimPrefix(r.URL.Path, "/api"),
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
			RequestID:   r.Header.Get("X-Request-ID"),
		}
		if strings.HasPrefix(call.ContentType, "multipart/form-data") {
			if err := r.ParseMultipartForm(32 << 20); err == nil {
				if _, hdr, err := r.FormFile("reportFile"); err == nil {
					call.Filename = hdr.Filename
				}
			}
		} else if r.Body != nil {
			call.Body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(call.Body)))
		}

		b.mu.Lock()
		b.calls = append(b.calls, call)
		f, failing := b.failures[call.Method+" "+call.Path]
		b.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+b.Token {
			b.respond(w, http.StatusUnauthorized, map[string]string{"msg": "Missing Authorization Header"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) respondLocked(w http.ResponseWriter, fn func() any) {
	b.mu.Lock()
	v := fn()
	b.mu.Unlock()
	b.respond(w, http.StatusOK, v)
}

func (b *Backend) fail(w http.ResponseWriter, status int, message string) {
	b.respond(w, status, map[string]string{"message": message})
}

func idParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		b.fail(w, http.StatusBadRequest, "Email e senha são obrigatórios.")
		return
	}
	if req.Email != b.Me.Email || req.Password != Password {
		b.fail(w, http.StatusUnauthorized, "Credenciais inválidas.")
		return
	}
	b.respond(w, http.StatusOK, models.LoginResponse{AccessToken: b.Token})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.fail(w, http.StatusBadRequest, "Dados inválidos.")
		return
	}
	b.mu.Lock()
	b.nextID++
	u := models.User{ID: b.nextID, FullName: req.FullName, Email: req.Email, Role: models.RoleMembro, IsActive: true}
	b.users = append(b.users, u)
	b.mu.Unlock()
	b.respond(w, http.StatusCreated, u)
}

func (b *Backend) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.fail(w, http.StatusBadRequest, "Dados inválidos.")
		return
	}
	b.mu.Lock()
	if req.FullName != nil {
		b.Me.FullName = *req.FullName
	}
	b.Me.Position, b.Me.Phone = req.Position, req.Phone
	me := b.Me
	b.mu.Unlock()
	b.respond(w, http.StatusOK, me)
}

func (b *Backend) updateRole(w http.ResponseWriter, r *http.Request) {
	var req models.RoleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !models.IsValidRole(req.Role) {
		b.respond(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body", "role"}, "msg": "invalid role"}},
		})
		return
	}
	id := idParam(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.users {
		if b.users[i].ID == id {
			b.users[i].Role = req.Role
			b.respond(w, http.StatusOK, b.users[i])
			return
		}
	}
	b.fail(w, http.StatusNotFound, "Usuário não encontrado.")
}

func (b *Backend) schema(w http.ResponseWriter, r *http.Request) {
	b.respond(w, http.StatusOK, models.ProjectSchema{Form: []models.SchemaField{
		{Name: "nome_projeto", Label: "Nome do Projeto", Type: "text", Required: true},
		{Name: "prioridade", Label: "Prioridade", Type: "select",
			Options: []string{models.PriorityBaixa, models.PriorityMedia, models.PriorityAlta, models.PriorityCritica}},
		{Name: "id_responsavel", Label: "Responsável", Type: "select_api", Endpoint: "/usuarios",
			OptionValue: "id_usuario", OptionLabel: "nome_completo"},
	}})
}

func (b *Backend) sortedProjects(keep func(*models.Project) bool) []models.Project {
	out := []models.Project{}
	for _, p := range b.projects {
		if keep == nil || keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) listProjects(w http.ResponseWriter, r *http.Request) {
	b.respondLocked(w, func() any { return b.sortedProjects(nil) })
}

func (b *Backend) myProjects(w http.ResponseWriter, r *http.Request) {
	b.respondLocked(w, func() any {
		return b.sortedProjects(func(p *models.Project) bool {
			return p.OwnerID() == b.Me.ID && p.Status.IsActive()
		})
	})
}

func (b *Backend) getProject(w http.ResponseWriter, r *http.Request) {
	p, ok := b.Project(idParam(r))
	if !ok {
		b.fail(w, http.StatusNotFound, "Projeto não encontrado.")
		return
	}
	b.respond(w, http.StatusOK, p)
}

func (b *Backend) createProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		b.fail(w, http.StatusBadRequest, "Dados inválidos.")
		return
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	owner := b.Me
	p := models.Project{
		ID: id, Name: req.Name, Description: req.Description, TicketNumber: req.TicketNumber,
		Status: models.StatusEmDefinicao, Priority: req.Priority, Complexity: req.Complexity, Risk: req.Risk,
		EstimatedCost: req.EstimatedCost, PlannedStart: req.PlannedStart, PlannedEnd: req.PlannedEnd,
		Owner: &owner, CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	b.AddProject(p)
	created, _ := b.Project(id)
	b.respond(w, http.StatusCreated, created)
}

func (b *Backend) updateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.fail(w, http.StatusBadRequest, "Dados inválidos.")
		return
	}
	b.mu.Lock()
	p, ok := b.projects[idParam(r)]
	if ok {
		p.Name, p.Description, p.TicketNumber = req.Name, req.Description, req.TicketNumber
		p.Priority, p.Complexity, p.Risk = req.Priority, req.Complexity, req.Risk
	}
	b.mu.Unlock()
	if !ok {
		b.fail(w, http.StatusNotFound, "Projeto não encontrado.")
		return
	}
	updated, _ := b.Project(p.ID)
	b.respond(w, http.StatusOK, updated)
}

func (b *Backend) deleteProject(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	_, ok := b.projects[idParam(r)]
	delete(b.projects, idParam(r))
	b.mu.Unlock()
	if !ok {
		b.fail(w, http.StatusNotFound, "Projeto não encontrado.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// changeStatus moves p to status and appends a log entry. Callers hold b.mu.
func (b *Backend) changeStatus(p *models.Project, status models.ProjectStatus, observation string) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	p.Status = status
	b.nextID++
	p.StatusHistory = append(p.StatusHistory, models.StatusLogEntry{
		ID: b.nextID, ProjectID: p.ID, Status: status, Timestamp: now, UserID: b.Me.ID, Observation: observation,
	})
	if status == models.StatusConcluido {
		p.ActualEnd = &now
	}
	p.NextStatuses = models.NextStatuses(status)
}

func (b *Backend) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.fail(w, http.StatusBadRequest, "Corpo da requisição não pode ser vazio.")
		return
	}
	b.mu.Lock()
	p, ok := b.projects[idParam(r)]
	if !ok {
		b.mu.Unlock()
		b.fail(w, http.StatusNotFound, "Projeto não encontrado.")
		return
	}
	if !p.CanMoveTo(req.Status) {
		b.mu.Unlock()
		b.fail(w, http.StatusBadRequest, fmt.Sprintf("Status '%s' não é válido.", req.Status))
		return
	}
	b.changeStatus(p, req.Status, req.Observation)
	out := *p
	b.mu.Unlock()
	b.respond(w, http.StatusOK, out)
}

func (b *Backend) startCycle(w http.ResponseWriter, r *http.Request) {
	var req models.StartCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.fail(w, http.StatusBadRequest, "Corpo da requisição não pode ser vazio.")
		return
	}
	b.mu.Lock()
	p, ok := b.projects[idParam(r)]
	if !ok {
		b.mu.Unlock()
		b.fail(w, http.StatusNotFound, "Projeto não encontrado.")
		return
	}
	b.nextID++
	p.HomologationCycles = append(p.HomologationCycles, models.HomologationCycle{
		ID: b.nextID, ProjectID: p.ID, StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
		TesterID: req.TesterID, Environment: req.Environment, Version: req.Version, TestType: req.TestType,
	})
	b.changeStatus(p, models.StatusEmHomologacao, "Início do ciclo de homologação.")
	out := *p
	b.mu.Unlock()
	b.respond(w, http.StatusOK, out)
}

func (b *Backend) finishCycle(w http.ResponseWriter, r *http.Request) {
	var req models.FinishCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Result == "" {
		b.fail(w, http.StatusBadRequest, "O campo 'resultado' é obrigatório para finalizar um ciclo.")
		return
	}
	b.mu.Lock()
	p, ok := b.projects[idParam(r)]
	if !ok || p.Status != models.StatusEmHomologacao {
		b.mu.Unlock()
		b.fail(w, http.StatusBadRequest, "Projeto não encontrado ou não está em homologação.")
		return
	}
	cycle := p.OpenCycle()
	if cycle == nil {
		b.mu.Unlock()
		b.fail(w, http.StatusBadRequest, "Nenhum ciclo de homologação ativo encontrado para este projeto.")
		return
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result := req.Result
	cycle.EndedAt, cycle.Result = &now, &result
	cycle.Observations = &req.Observations
	cycle.TotalTests, cycle.ApprovedTests, cycle.FailedTests, cycle.BlockedTests = req.TotalTests, req.Approved, req.Failed, req.Blocked
	if rate, has := cycle.ComputedSuccessRate(); has {
		cycle.SuccessRate = &rate
	}
	cycleID := cycle.ID
	b.changeStatus(p, result.NextStatus(), fmt.Sprintf("Fim do ciclo de homologação. Resultado: %s.", result))
	out := *p
	b.mu.Unlock()
	b.respond(w, http.StatusOK, models.FinishCycleResponse{Project: &out, HomologationID: cycleID})
}

func (b *Backend) findCycle(id int64) *models.HomologationCycle {
	for _, p := range b.projects {
		for i := range p.HomologationCycles {
			if p.HomologationCycles[i].ID == id {
				return &p.HomologationCycles[i]
			}
		}
	}
	return nil
}

func (b *Backend) uploadReport(w http.ResponseWriter, r *http.Request) {
	var filename string
	if _, hdr, err := r.FormFile("reportFile"); err == nil {
		filename = hdr.Filename
	}
	if filename == "" {
		b.fail(w, http.StatusBadRequest, "Nenhum arquivo enviado.")
		return
	}
	if !strings.HasSuffix(filename, ".zip") {
		b.fail(w, http.StatusBadRequest, "Nenhum arquivo .zip selecionado.")
		return
	}
	b.mu.Lock()
	cycle := b.findCycle(idParam(r))
	if cycle == nil {
		b.mu.Unlock()
		b.fail(w, http.StatusBadRequest, "Ciclo de homologação não encontrado.")
		return
	}
	path := "uploads/" + filename
	cycle.ReportPath = &path
	out := *cycle
	b.mu.Unlock()
	b.respond(w, http.StatusOK, out)
}

func (b *Backend) processReport(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	cycle := b.findCycle(idParam(r))
	var out models.HomologationCycle
	if cycle != nil {
		out = *cycle
		out.ExecutedTests = b.tests[cycle.ID]
	}
	b.mu.Unlock()
	if cycle == nil {
		b.fail(w, http.StatusBadRequest, "Ciclo de homologação não encontrado.")
		return
	}
	b.respond(w, http.StatusOK, out)
}

func (b *Backend) cycleTests(w http.ResponseWriter, r *http.Request) {
	b.respondLocked(w, func() any { return nonNil(b.tests[idParam(r)]) })
}

func (b *Backend) createTask(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		b.respond(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body", "nome_tarefa"}, "msg": "field required"}},
		})
		return
	}
	b.mu.Lock()
	p, ok := b.projects[idParam(r)]
	if !ok {
		b.mu.Unlock()
		b.fail(w, http.StatusNotFound, "Projeto não encontrado.")
		return
	}
	b.nextID++
	task := models.Task{
		ID: strconv.FormatInt(b.nextID, 10), Name: req.Name, Description: req.Description,
		Start: req.Start, End: req.End, ProjectID: p.ID, ProjectName: p.Name,
	}
	if req.AssigneeID != nil {
		for _, u := range b.users {
			if u.ID == *req.AssigneeID {
				assignee := u
				task.Assignee = &assignee
			}
		}
	}
	p.Tasks = append(p.Tasks, task)
	stored := task
	b.tasks[task.ID] = &stored
	b.mu.Unlock()
	b.respond(w, http.StatusCreated, task)
}

func (b *Backend) updateTask(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.fail(w, http.StatusBadRequest, "Nenhum dado válido para atualização foi fornecido.")
		return
	}
	b.mu.Lock()
	task, ok := b.tasks[chi.URLParam(r, "id")]
	if ok {
		task.Name, task.Progress = req.Name, models.ClampProgress(req.Progress)
		task.Assignee = nil
		if req.AssigneeID != nil {
			for _, u := range b.users {
				if u.ID == *req.AssigneeID {
					assignee := u
					task.Assignee = &assignee
				}
			}
		}
	}
	var out models.Task
	if ok {
		out = *task
		b.replaceProjectTask(out.ProjectID, out.ID, &out)
	}
	b.mu.Unlock()
	if !ok {
		b.fail(w, http.StatusNotFound, "Tarefa não encontrada.")
		return
	}
	b.respond(w, http.StatusOK, out)
}

func (b *Backend) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	task, ok := b.tasks[id]
	if ok {
		b.replaceProjectTask(task.ProjectID, id, nil)
	}
	delete(b.tasks, id)
	b.mu.Unlock()
	if !ok {
		b.fail(w, http.StatusNotFound, fmt.Sprintf("Tarefa com ID %s não encontrada.", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// replaceProjectTask keeps the project's embedded task list in step with the
// task index. A nil task removes it. Callers hold b.mu.
func (b *Backend) replaceProjectTask(projectID int64, taskID string, task *models.Task) {
	p, ok := b.projects[projectID]
	if !ok {
		return
	}
	kept := p.Tasks[:0:0]
	for _, t := range p.Tasks {
		switch {
		case t.ID != taskID:
			kept = append(kept, t)
		case task != nil:
			kept = append(kept, *task)
		}
	}
	p.Tasks = kept
}

func (b *Backend) myTasks(w http.ResponseWriter, r *http.Request) {
	b.respondLocked(w, func() any {
		out := []models.Task{}
		for _, t := range b.tasks {
			if t.Assignee != nil && t.Assignee.ID == b.Me.ID && t.Progress < 100 {
				out = append(out, *t)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].End < out[j].End })
		return out
	})
}

// RequireIntegration skips the test unless INTEGRATION=1
func RequireIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION=1 to run.")
	}
}
