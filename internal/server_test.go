package internal

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pmo-dashboard/internal/config"
	"pmo-dashboard/internal/models"
	fake "pmo-dashboard/internal/testutil"
	"pmo-dashboard/pkg/xlsxexport"
)

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func newTestServer(t *testing.T) (*fake.Backend, *Server) {
	t.Helper()
	b := fake.NewBackend(t)
	cfg := &config.Config{
		APIBaseURL:    b.URL(),
		EnableMetrics: true,
		ReloadDelay:   1500 * time.Millisecond,
	}
	s := NewServer(cfg, zap.NewNop())
	s.now = func() time.Time { return testNow }

	ana := &models.User{ID: 1, FullName: "Ana Souza"}
	b.AddProject(models.Project{
		ID: 1, Name: "Portal do Cliente", TicketNumber: "TD-100", Status: models.StatusEmDesenvolvimento,
		Priority: "Alta", Complexity: "Baixa", Risk: "Baixo", Owner: ana,
		RequestingArea: &models.Area{ID: 3, Name: "Financeiro"},
		PlannedStart:   strp("2024-05-01"), PlannedEnd: strp("2024-06-01"),
		Tasks: []models.Task{{ID: "11", Name: "Levantamento", ProjectID: 1, ProjectName: "Portal do Cliente",
			Start: "2024-05-01", End: "2024-06-05", Assignee: ana}},
	})
	b.AddProject(models.Project{
		ID: 2, Name: "Migração ERP", TicketNumber: "TD-200", Status: models.StatusEmHomologacao,
		Priority: "Média", Complexity: "Alta", Risk: "Médio",
		HomologationCycles: []models.HomologationCycle{{ID: 50, ProjectID: 2, Version: "2.0"}},
	})
	b.AddProject(models.Project{
		ID: 3, Name: "BI Comercial", TicketNumber: "TD-300", Status: models.StatusConcluido,
		Priority: "Baixa", Complexity: "Baixa", Risk: "Baixo",
		Owner: &models.User{ID: 2, FullName: "Bruno Lima"},
	})
	b.AddUser(models.User{ID: 2, FullName: "Bruno Lima", Role: models.RoleMembro, IsActive: true})
	return b, s
}

func do(t *testing.T, s *Server, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, s *Server, method, target, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return do(t, s, method, target, token, body, "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	_, s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	_, s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRequestIDReachesBackend(t *testing.T) {
	b, s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/views/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+b.Token)
	req.Header.Set(RequestIDHeader, "trace-42")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	calls := b.CallsTo(http.MethodGet, "/projetos")
	require.Len(t, calls, 1)
	assert.Equal(t, "trace-42", calls[0].RequestID)
}

func TestLoginRelay(t *testing.T) {
	b, s := newTestServer(t)

	t.Run("valid credentials", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/auth/login", "", models.LoginRequest{Email: fake.Email, Password: fake.Password})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp loginResponse
		decode(t, w, &resp)
		assert.Equal(t, b.Token, resp.AccessToken)
		require.NotNil(t, resp.ExpiresAt)
		assert.True(t, resp.ExpiresAt.After(time.Now()))
	})

	t.Run("wrong password", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/auth/login", "", models.LoginRequest{Email: fake.Email, Password: "x"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Credenciais inválidas.")
		assert.Contains(t, w.Body.String(), `"redirect":"/login.html"`)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/auth/login", "", map[string]string{"email": fake.Email})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_CREDENTIALS")
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	b, s := newTestServer(t)
	s.now = time.Now

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"no header", "", "MISSING_AUTH_HEADER"},
		{"basic auth", "Basic abc", "INVALID_AUTH_FORMAT"},
		{"garbage token", "Bearer not-a-jwt", "MALFORMED_TOKEN"},
		{"expired token", "Bearer " + fake.TokenFor(1, -time.Hour), "TOKEN_EXPIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/views/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			var resp map[string]string
			decode(t, w, &resp)
			assert.Equal(t, tt.code, resp["code"])
			assert.Equal(t, "/login.html", resp["redirect"])
		})
	}
	assert.Empty(t, b.CallsTo(http.MethodGet, "/projetos"), "rejected requests never reach the backend")
}

func TestDashboardView(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/views/dashboard", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	calls := b.CallsTo(http.MethodGet, "/projetos")
	require.Len(t, calls, 1)
	assert.Equal(t, "Bearer "+b.Token, calls[0].Auth)

	var resp dashboardResponse
	decode(t, w, &resp)
	assert.Equal(t, 3, resp.Stats.Total)
	assert.Equal(t, 2, resp.Stats.Active)
	assert.Equal(t, 1, resp.Stats.Completed)
	assert.Equal(t, []string{"Todos", "Em Desenvolvimento", "Em Homologação", "Projeto concluído"}, resp.StatusOptions)
	require.Len(t, resp.Projects, 3)
	assert.Equal(t, "Projeto Atrasado", resp.Projects[0].Health.Description)
	assert.Equal(t, "Complexidade Alta", resp.Projects[1].Health.Description)

	w = do(t, s, http.MethodGet, "/views/dashboard?q=td-2&status=Todos", b.Token, nil, "")
	decode(t, w, &resp)
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, int64(2), resp.Projects[0].ID)
	assert.Equal(t, 3, resp.Stats.Total, "stats cover the unfiltered list")

	w = do(t, s, http.MethodGet, "/views/dashboard?status="+url.QueryEscape("Projeto concluído"), b.Token, nil, "")
	decode(t, w, &resp)
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, "BI Comercial", resp.Projects[0].Name)
}

func TestPersonalView(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/views/me", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp personalResponse
	decode(t, w, &resp)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "Levantamento", resp.Tasks[0].Name)
	assert.True(t, resp.Tasks[0].Overdue)
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, int64(1), resp.Projects[0].ID)

	assert.Len(t, b.CallsTo(http.MethodGet, "/me/tarefas"), 1)
	assert.Len(t, b.CallsTo(http.MethodGet, "/me/projetos"), 1)
}

func TestPersonalViewFailsWhenEitherCallFails(t *testing.T) {
	b, s := newTestServer(t)
	b.FailWith(http.MethodGet, "/me/projetos", http.StatusInternalServerError, `{"message":"falha"}`)

	w := do(t, s, http.MethodGet, "/views/me", b.Token, nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "UPSTREAM_ERROR")
}

func TestProjectView(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/views/projects/1", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Project     models.Project     `json:"projeto"`
		Deadline    string             `json:"prazo"`
		Transitions []transitionOption `json:"transicoes"`
		Permissions projectPermissions `json:"permissoes"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "Portal do Cliente", resp.Project.Name)
	assert.Equal(t, "Atrasado", resp.Deadline)
	assert.Equal(t, projectPermissions{Edit: true, Delete: true, ChangeStatus: true}, resp.Permissions)
	assert.Equal(t, []transitionOption{
		{Status: models.StatusEmHomologacao, Protocol: "enter_homologation"},
		{Status: models.StatusCancelado, Protocol: "default"},
	}, resp.Transitions)

	w = do(t, s, http.MethodGet, "/views/projects/abc", b.Token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/views/projects/99", b.Token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Projeto não encontrado.")
}

func TestProjectViewForMember(t *testing.T) {
	b, s := newTestServer(t)
	b.Me.Role = models.RoleMembro

	w := do(t, s, http.MethodGet, "/views/projects/1", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Permissions projectPermissions `json:"permissoes"`
	}
	decode(t, w, &resp)
	assert.Equal(t, projectPermissions{Edit: true, Delete: true, ChangeStatus: true}, resp.Permissions)

	w = do(t, s, http.MethodGet, "/views/projects/3", b.Token, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_PERMISSIONS")
}

func TestPlanTransition(t *testing.T) {
	b, s := newTestServer(t)

	target := url.PathEscape(string(models.StatusEmHomologacao))
	w := do(t, s, http.MethodGet, "/views/projects/1/transitions/"+target, b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var form struct {
		Protocol string `json:"protocol"`
		Title    string `json:"title"`
		Fields   []struct {
			Name    string `json:"name"`
			Options []struct {
				Value string `json:"value"`
				Label string `json:"label"`
			} `json:"options"`
		} `json:"fields"`
	}
	decode(t, w, &form)
	assert.Equal(t, "enter_homologation", form.Protocol)
	assert.Equal(t, "Iniciar Ciclo de Homologação", form.Title)
	require.Len(t, form.Fields, 4)
	assert.Len(t, form.Fields[3].Options, 2, "both active users are tester candidates")
	assert.Len(t, b.CallsTo(http.MethodGet, "/usuarios"), 1)

	w = do(t, s, http.MethodGet, "/views/projects/1/transitions/"+url.PathEscape("Pós GMUD"), b.Token, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "TRANSITION_NOT_ALLOWED")
}

type flowResult struct {
	Data          json.RawMessage `json:"data"`
	Error         string          `json:"error"`
	Code          string          `json:"code"`
	Fields        []string        `json:"fields"`
	Prompt        string          `json:"prompt"`
	Redirect      string          `json:"redirect"`
	Notifications []struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"notifications"`
	ReloadAfterMS *int64 `json:"reload_after_ms"`
}

func (f flowResult) messages() []string {
	out := make([]string, len(f.Notifications))
	for i, n := range f.Notifications {
		out[i] = n.Message
	}
	return out
}

func TestExecuteDefaultTransition(t *testing.T) {
	b, s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/views/projects/1/transitions", b.Token, map[string]string{
		"status": string(models.StatusCancelado), "observacao": "Sem orçamento",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp flowResult
	decode(t, w, &resp)
	assert.Equal(t, []string{"Operação realizada com sucesso!"}, resp.messages())
	require.NotNil(t, resp.ReloadAfterMS)
	assert.Equal(t, int64(1500), *resp.ReloadAfterMS)

	calls := b.CallsTo(http.MethodPut, "/projetos/1/status")
	require.Len(t, calls, 1)
	var body models.StatusUpdateRequest
	calls[0].Decode(t, &body)
	assert.Equal(t, models.StatusUpdateRequest{Status: models.StatusCancelado, Observation: "Sem orçamento"}, body)

	p, _ := b.Project(1)
	assert.Equal(t, models.StatusCancelado, p.Status)
}

func TestExecuteEnterHomologationValidation(t *testing.T) {
	b, s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/views/projects/1/transitions", b.Token, map[string]string{
		"status": string(models.StatusEmHomologacao), "versao_testada": "1.4.0",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp flowResult
	decode(t, w, &resp)
	assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	assert.Equal(t, []string{"tipo_teste", "ambiente", "id_responsavel_teste"}, resp.Fields)
	assert.Equal(t, []string{"Todos os campos são obrigatórios."}, resp.messages())
	assert.Nil(t, resp.ReloadAfterMS)
	assert.Empty(t, b.CallsTo(http.MethodPost, "/projetos/1/homologacao/iniciar"))
}

func TestExecuteEnterHomologation(t *testing.T) {
	b, s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/views/projects/1/transitions", b.Token, map[string]any{
		"status": models.StatusEmHomologacao, "versao_testada": "1.4.0", "tipo_teste": models.TestTypes[0],
		"ambiente": "HML", "id_responsavel_teste": 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp flowResult
	decode(t, w, &resp)
	assert.Equal(t, []string{"Ciclo de homologação iniciado!"}, resp.messages())
	assert.Contains(t, string(resp.Data), `"protocol":"enter_homologation"`)

	p, _ := b.Project(1)
	assert.Equal(t, models.StatusEmHomologacao, p.Status)
	require.NotNil(t, p.OpenCycle())
	assert.Equal(t, int64(2), p.OpenCycle().TesterID)
}

func TestExecuteExitHomologationWithReport(t *testing.T) {
	b, s := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("payload", `{"status":"Pendente de Implantação","resultado":"Aprovado","observacoes":"ok"}`))
	part, err := writer.CreateFormFile("reportFile", "allure-report.zip")
	require.NoError(t, err)
	_, err = part.Write([]byte("PK\x03\x04"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := do(t, s, http.MethodPost, "/views/projects/2/transitions", b.Token, body, writer.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp flowResult
	decode(t, w, &resp)
	assert.Equal(t, []string{
		"Enviando e processando relatório...",
		"Ciclo de homologação finalizado com sucesso!",
	}, resp.messages())

	assert.Equal(t, []string{
		"POST /projetos/2/homologacao/finalizar",
		"POST /homologacoes/50/upload-zip",
	}, filterPaths(b.Paths(), "POST"))
	uploads := b.CallsTo(http.MethodPost, "/homologacoes/50/upload-zip")
	require.Len(t, uploads, 1)
	assert.Equal(t, "allure-report.zip", uploads[0].Filename)

	p, _ := b.Project(2)
	assert.Equal(t, models.StatusPendenteImplantacao, p.Status)
}

func TestExecuteExitHomologationRejectsNonZip(t *testing.T) {
	b, s := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("payload", `{"status":"Pendente de Implantação","resultado":"Aprovado"}`))
	part, err := writer.CreateFormFile("reportFile", "report.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF"))
	require.NoError(t, writer.Close())

	w := do(t, s, http.MethodPost, "/views/projects/2/transitions", b.Token, body, writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, b.CallsTo(http.MethodPost, "/projetos/2/homologacao/finalizar"))
}

func filterPaths(paths []string, method string) []string {
	var out []string
	for _, p := range paths {
		if strings.HasPrefix(p, method+" ") {
			out = append(out, p)
		}
	}
	return out
}

func TestExecuteTransitionErrors(t *testing.T) {
	t.Run("member on another owner's project", func(t *testing.T) {
		b, s := newTestServer(t)
		b.Me.Role = models.RoleMembro
		b.AddProject(models.Project{ID: 4, Name: "Intranet", Status: models.StatusEmDefinicao,
			Owner: &models.User{ID: 2, FullName: "Bruno Lima"}})

		w := doJSON(t, s, http.MethodPost, "/views/projects/4/transitions", b.Token, map[string]string{"status": string(models.StatusCancelado)})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, b.CallsTo(http.MethodPut, "/projetos/4/status"))
	})

	t.Run("undeclared target", func(t *testing.T) {
		b, s := newTestServer(t)
		w := doJSON(t, s, http.MethodPost, "/views/projects/1/transitions", b.Token, map[string]string{"status": string(models.StatusConcluido)})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing target", func(t *testing.T) {
		b, s := newTestServer(t)
		w := doJSON(t, s, http.MethodPost, "/views/projects/1/transitions", b.Token, map[string]string{"observacao": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"fields":["status"]`)
	})

	t.Run("backend failure", func(t *testing.T) {
		b, s := newTestServer(t)
		b.FailWith(http.MethodPut, "/projetos/1/status", http.StatusInternalServerError, `{"message":"Erro interno"}`)

		w := doJSON(t, s, http.MethodPost, "/views/projects/1/transitions", b.Token, map[string]string{"status": string(models.StatusCancelado)})
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var resp flowResult
		decode(t, w, &resp)
		assert.Equal(t, "UPSTREAM_ERROR", resp.Code)
		assert.Equal(t, []string{"Erro: Erro interno"}, resp.messages())
		assert.Nil(t, resp.ReloadAfterMS)
	})

	t.Run("backend session expired", func(t *testing.T) {
		b, s := newTestServer(t)
		b.FailWith(http.MethodGet, "/projetos/1", http.StatusUnauthorized, `{"msg":"Token has expired"}`)

		w := doJSON(t, s, http.MethodPost, "/views/projects/1/transitions", b.Token, map[string]string{"status": string(models.StatusCancelado)})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"redirect":"/login.html"`)
	})
}

func TestOverviewReport(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/views/reports/overview?by=area,status,area", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Stats    struct{ Total int } `json:"stats"`
		ByStatus struct {
			Labels []string `json:"labels"`
			Data   []int    `json:"data"`
		} `json:"por_status"`
		Tables map[string]struct {
			Labels []string `json:"labels"`
			Data   []int    `json:"data"`
		} `json:"tabelas"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 3, resp.Stats.Total)
	assert.Equal(t, []string{"Em Desenvolvimento", "Em Homologação", "Projeto concluído"}, resp.ByStatus.Labels)
	require.Len(t, resp.Tables, 2)
	assert.Equal(t, []string{"Financeiro", "Não definido"}, resp.Tables["area_solicitante"].Labels)
	assert.Equal(t, []int{1, 2}, resp.Tables["area_solicitante"].Data)
	assert.Contains(t, resp.Tables, "status_atual")
}

func TestFullReportsRequireManagerRole(t *testing.T) {
	b, s := newTestServer(t)
	b.SetPortfolio([]models.PortfolioObjective{
		{ID: 1, Name: "Eficiência", TotalProjects: 2, TotalEstimatedCost: 1000},
		{ID: 2, Name: "Receita", TotalProjects: 1, TotalEstimatedCost: 500.5},
	})
	b.SetQA(models.QAReport{SuccessHistory: models.Series{Labels: []string{"c1", "c2"}, Data: []float64{80, 100}}})

	w := do(t, s, http.MethodGet, "/views/reports/portfolio", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var portfolio struct {
		Totals struct {
			Objectives    int     `json:"objetivos"`
			Projects      int     `json:"projetos"`
			EstimatedCost float64 `json:"custo_total_estimado"`
		} `json:"totais"`
	}
	decode(t, w, &portfolio)
	assert.Equal(t, 2, portfolio.Totals.Objectives)
	assert.Equal(t, 3, portfolio.Totals.Projects)
	assert.InDelta(t, 1500.5, portfolio.Totals.EstimatedCost, 0.001)

	w = do(t, s, http.MethodGet, "/views/reports/qa", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var qa struct {
		Summary struct {
			Cycles      int      `json:"ciclos"`
			AverageRate *float64 `json:"taxa_media"`
		} `json:"resumo"`
	}
	decode(t, w, &qa)
	assert.Equal(t, 2, qa.Summary.Cycles)
	require.NotNil(t, qa.Summary.AverageRate)
	assert.InDelta(t, 90.0, *qa.Summary.AverageRate, 0.001)

	b.Me.Role = models.RoleMembro
	for _, path := range []string{"/views/reports/portfolio", "/views/reports/qa"} {
		w = do(t, s, http.MethodGet, path, b.Token, nil, "")
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.Contains(t, w.Body.String(), "INSUFFICIENT_PERMISSIONS")
	}
	assert.Len(t, b.CallsTo(http.MethodGet, "/relatorios/portfolio"), 1, "members never reach the backend report")
}

func TestRoadmapView(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/views/roadmap", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var bars []struct {
		ID          string `json:"id"`
		Start       string `json:"start"`
		End         string `json:"end"`
		CustomClass string `json:"custom_class"`
	}
	decode(t, w, &bars)
	require.Len(t, bars, 1, "undated projects are left out")
	assert.Equal(t, "proj_1", bars[0].ID)
	assert.Equal(t, "2024-06-01", bars[0].End)
	assert.Equal(t, "bar-status-em-desenvolvimento", bars[0].CustomClass)
}

func TestCycleTestsView(t *testing.T) {
	b, s := newTestServer(t)
	b.SetTests(50, []models.ExecutedTest{
		{ID: 1, HomologationID: 50, Name: "login", Status: "passed"},
		{ID: 2, HomologationID: 50, Name: "checkout", Status: "failed", ErrorMessage: strp("timeout")},
		{ID: 3, HomologationID: 50, Name: "relatório", Status: "broken"},
	})

	w := do(t, s, http.MethodGet, "/views/homologations/50/tests", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tests  []models.ExecutedTest `json:"testes"`
		Failed []models.ExecutedTest `json:"reprovados"`
		Drafts []struct {
			Name        string `json:"nome_tarefa"`
			Description string `json:"descricao"`
		} `json:"rascunhos"`
	}
	decode(t, w, &resp)
	assert.Len(t, resp.Tests, 3)
	require.Len(t, resp.Failed, 2)
	require.Len(t, resp.Drafts, 2)
	assert.Equal(t, "[BUG] Corrigir: checkout", resp.Drafts[0].Name)
	assert.Contains(t, resp.Drafts[0].Description, "timeout")
	assert.Contains(t, resp.Drafts[1].Description, "Nenhuma mensagem de erro detalhada.")
}

func TestReportUploadRoute(t *testing.T) {
	b, s := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("reportFile", "allure.zip")
	require.NoError(t, err)
	_, _ = part.Write([]byte("PK"))
	require.NoError(t, writer.Close())

	w := do(t, s, http.MethodPost, "/views/homologations/50/report", b.Token, body, writer.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	uploads := b.CallsTo(http.MethodPost, "/homologacoes/50/upload-zip")
	require.Len(t, uploads, 1)
	assert.Equal(t, "Bearer "+b.Token, uploads[0].Auth)
}

func TestTaskRoutes(t *testing.T) {
	b, s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/views/projects/1/tasks", b.Token, map[string]any{
		"nome_tarefa": "Deploy", "data_inicio": "2024-06-11", "data_fim": "2024-06-12",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created flowResult
	decode(t, w, &created)
	assert.Equal(t, []string{"Tarefa criada com sucesso!"}, created.messages())
	require.NotNil(t, created.ReloadAfterMS)
	assert.Zero(t, *created.ReloadAfterMS)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/views/tasks/"))

	w = doJSON(t, s, http.MethodPost, "/views/projects/1/tasks", b.Token, map[string]any{"nome_tarefa": "Deploy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Nome e datas da tarefa são obrigatórios.")

	w = doJSON(t, s, http.MethodPost, "/views/projects/1/tasks", b.Token, map[string]any{
		"nome_tarefa": "[BUG] Corrigir: checkout", "data_inicio": "2024-06-11", "data_fim": "2024-06-12",
		"descricao": "Teste Reprovado: checkout", "correcao": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Tarefa de correção criada com sucesso!")

	w = doJSON(t, s, http.MethodPut, "/views/tasks/11", b.Token, map[string]any{"nome_tarefa": "Levantamento", "progresso": 100})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Tarefa atualizada!")

	w = doJSON(t, s, http.MethodPut, "/views/tasks/11", b.Token, map[string]any{"nome_tarefa": "Levantamento", "progresso": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodDelete, "/views/tasks/11?nome=Levantamento", b.Token, nil, "")
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	var refused flowResult
	decode(t, w, &refused)
	assert.Equal(t, `Excluir a tarefa "Levantamento"?`, refused.Prompt)
	assert.Equal(t, []string{"Exclusão cancelada."}, refused.messages())
	assert.Empty(t, b.CallsTo(http.MethodDelete, "/tarefas/11"))

	w = do(t, s, http.MethodDelete, "/views/tasks/11?confirm=true", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Tarefa excluída!")
	assert.Len(t, b.CallsTo(http.MethodDelete, "/tarefas/11"), 1)
}

func TestRegisterRoute(t *testing.T) {
	b, s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/auth/register", "", map[string]any{
		"nome_completo": "Davi Rocha", "email": "davi@example.com", "senha": "segredo",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp flowResult
	decode(t, w, &resp)
	assert.Equal(t, []string{"Registro realizado com sucesso! Você já pode fazer login."}, resp.messages())
	assert.Equal(t, "/login.html", resp.Redirect)
	assert.Contains(t, string(resp.Data), `"role":"Membro"`)

	w = doJSON(t, s, http.MethodPost, "/auth/register", "", map[string]any{
		"nome_completo": "Eva", "email": "eva@example.com", "senha": "123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var rejected flowResult
	decode(t, w, &rejected)
	assert.Equal(t, []string{"senha"}, rejected.Fields)
	assert.Empty(t, rejected.Redirect)
	assert.Len(t, b.CallsTo(http.MethodPost, "/auth/register"), 1)
}

func TestProfileRoutes(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/views/profile", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view struct {
		Form struct {
			FullName string `json:"nome_completo"`
		} `json:"formulario"`
	}
	decode(t, w, &view)
	assert.Equal(t, "Ana Souza", view.Form.FullName)

	w = doJSON(t, s, http.MethodPut, "/views/profile", b.Token, map[string]any{
		"nome_completo": "Ana S. Souza", "cargo": "PMO", "telefone": "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Perfil atualizado com sucesso!")
	var body map[string]any
	b.CallsTo(http.MethodPut, "/profile")[0].Decode(t, &body)
	assert.Equal(t, "PMO", body["cargo"])

	w = doJSON(t, s, http.MethodPut, "/views/profile", b.Token, map[string]any{"nome_completo": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, b.CallsTo(http.MethodPut, "/profile"), 1)
}

func TestProjectFormRoutes(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/views/projects/form", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"nome_projeto"`)
	assert.NotContains(t, w.Body.String(), "valores")

	w = do(t, s, http.MethodGet, "/views/projects/1/form", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var edit struct {
		Values struct {
			Name         string `json:"nome_projeto"`
			AreaID       int64  `json:"id_area_solicitante"`
			PlannedStart string `json:"data_inicio_prevista"`
		} `json:"valores"`
	}
	decode(t, w, &edit)
	assert.Equal(t, "Portal do Cliente", edit.Values.Name)
	assert.EqualValues(t, 3, edit.Values.AreaID)
	assert.Equal(t, "2024-05-01", edit.Values.PlannedStart)

	w = doJSON(t, s, http.MethodPost, "/views/projects", b.Token, map[string]any{
		"nome_projeto": "CRM", "prioridade": models.PriorityAlta, "data_inicio_prevista": "2024-07-01",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created flowResult
	decode(t, w, &created)
	assert.Equal(t, []string{`Projeto "CRM" criado com sucesso!`}, created.messages())
	require.NotNil(t, created.ReloadAfterMS)
	assert.EqualValues(t, 1500, *created.ReloadAfterMS)
	assert.Equal(t, "/views/projects/101", w.Header().Get("Location"))

	w = doJSON(t, s, http.MethodPost, "/views/projects", b.Token, map[string]any{"nome_projeto": "X", "risco": "Enorme"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var invalid flowResult
	decode(t, w, &invalid)
	assert.Equal(t, []string{"risco"}, invalid.Fields)

	w = doJSON(t, s, http.MethodPut, "/views/projects/1", b.Token, map[string]any{"nome_projeto": "Portal 2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Projeto atualizado com sucesso!")
	p, _ := b.Project(1)
	assert.Equal(t, "Portal 2", p.Name)

	w = doJSON(t, s, http.MethodPut, "/views/projects/999", b.Token, map[string]any{"nome_projeto": "X"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteProjectRoute(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodDelete, "/views/projects/3", b.Token, nil, "")
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	var refused flowResult
	decode(t, w, &refused)
	assert.Equal(t, `Excluir permanentemente o projeto "BI Comercial"?`, refused.Prompt)
	assert.Empty(t, b.CallsTo(http.MethodDelete, "/projetos/3"))

	w = do(t, s, http.MethodDelete, "/views/projects/3?confirm=true", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var deleted flowResult
	decode(t, w, &deleted)
	assert.Equal(t, []string{"Projeto excluído com sucesso!"}, deleted.messages())
	assert.Equal(t, "/index.html", deleted.Redirect)
	_, ok := b.Project(3)
	assert.False(t, ok)
}

func TestProjectFormsForMember(t *testing.T) {
	b, s := newTestServer(t)
	b.Me.Role = models.RoleMembro

	w := do(t, s, http.MethodGet, "/views/projects/form", b.Token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code, "any known role may create")

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/views/projects/3/form"},
		{http.MethodPut, "/views/projects/3"},
		{http.MethodDelete, "/views/projects/3?confirm=true"},
	} {
		w := doJSON(t, s, tc.method, tc.path, b.Token, map[string]any{"nome_projeto": "X"})
		assert.Equal(t, http.StatusForbidden, w.Code, tc.path)
		assert.Contains(t, w.Body.String(), "INSUFFICIENT_PERMISSIONS", tc.path)
	}
	assert.Empty(t, b.CallsTo(http.MethodPut, "/projetos/3"))
	assert.Empty(t, b.CallsTo(http.MethodDelete, "/projetos/3"))

	w = doJSON(t, s, http.MethodPut, "/views/projects/1", b.Token, map[string]any{"nome_projeto": "Portal"})
	assert.Equal(t, http.StatusOK, w.Code, "members edit the projects they own")
}

func TestAdminRoleRoutes(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/views/admin/users", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var users usersResponse
	decode(t, w, &users)
	assert.Len(t, users.Users, 2)
	assert.Equal(t, models.ValidRoles, users.Roles)

	w = doJSON(t, s, http.MethodPut, "/views/admin/users/2/role", b.Token, map[string]any{"role": "GERENTE"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Papel do usuário atualizado para Gerente.")

	w = doJSON(t, s, http.MethodPut, "/views/admin/users/2/role", b.Token, map[string]any{"role": "Dono"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	b.Me.Role = models.RoleGerente
	w = do(t, s, http.MethodGet, "/views/admin/users", b.Token, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(t, s, http.MethodPut, "/views/admin/users/2/role", b.Token, map[string]any{"role": models.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, b.CallsTo(http.MethodPut, "/admin/users/2/role"), 1)
	assert.Len(t, b.CallsTo(http.MethodGet, "/usuarios"), 1)
}

func TestBodilessBackendAnswers(t *testing.T) {
	b, s := newTestServer(t)
	b.FailWith(http.MethodPost, "/projetos/1/tarefas", http.StatusNoContent, "")
	b.FailWith(http.MethodGet, "/projetos/3", http.StatusNoContent, "")
	b.FailWith(http.MethodPost, "/projetos/2/homologacao/finalizar", http.StatusNoContent, "")

	w := doJSON(t, s, http.MethodPost, "/views/projects/1/tasks", b.Token, map[string]any{
		"nome_tarefa": "Deploy", "data_inicio": "2024-06-11", "data_fim": "2024-06-12",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, w.Header().Get("Location"))
	var created flowResult
	decode(t, w, &created)
	assert.Equal(t, []string{"Tarefa criada com sucesso!"}, created.messages())

	w = do(t, s, http.MethodGet, "/views/projects/3", b.Token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = do(t, s, http.MethodGet, "/views/projects/3/transitions/Cancelado", b.Token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodPost, "/views/projects/2/transitions", b.Token, map[string]any{
		"status": models.StatusPendenteImplantacao, "resultado": models.ResultAprovado,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var finished flowResult
	decode(t, w, &finished)
	assert.Equal(t, []string{"Ciclo de homologação finalizado com sucesso!"}, finished.messages())
}

func TestExportProjects(t *testing.T) {
	b, s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/views/export/projects.xlsx?by=prioridade", b.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "projetos.xlsx")

	rows, err := xlsxexport.ReadSheet(w.Body.Bytes(), xlsxexport.ProjectsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Portal do Cliente", rows[1][1])

	rows, err = xlsxexport.ReadSheet(w.Body.Bytes(), "Por prioridade")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alta", "1"}, rows[1])
}

func TestBackendUnavailable(t *testing.T) {
	b, _ := newTestServer(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	s := NewServer(&config.Config{APIBaseURL: deadURL + "/api"}, zap.NewNop())
	w := do(t, s, http.MethodGet, "/views/dashboard", b.Token, nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "BACKEND_UNAVAILABLE")
	assert.Contains(t, w.Body.String(), deadURL)
}

func TestMetricsExposeRequestsAndUpstreamCalls(t *testing.T) {
	b, s := newTestServer(t)

	do(t, s, http.MethodGet, "/views/projects/1", b.Token, nil, "")
	doJSON(t, s, http.MethodPost, "/views/projects/1/transitions", b.Token, map[string]string{"status": string(models.StatusCancelado)})

	w := do(t, s, http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `path="/views/projects/{id}"`)
	assert.Contains(t, body, "upstream_requests_total")
	assert.Contains(t, body, `route="/projetos/{id}"`)
	assert.Contains(t, body, `status_transitions_total{outcome="success",protocol="default"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	b := fake.NewBackend(t)
	s := NewServer(&config.Config{APIBaseURL: b.URL()}, nil)
	w := do(t, s, http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
