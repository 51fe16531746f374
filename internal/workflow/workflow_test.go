package workflow

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmo-dashboard/internal/apiclient"
	"pmo-dashboard/internal/models"
	fake "pmo-dashboard/internal/testutil"
	"pmo-dashboard/internal/ui"
)

func setup(t *testing.T, p models.Project) (*fake.Backend, *apiclient.Client, *models.Project) {
	t.Helper()
	b := fake.NewBackend(t)
	b.AddProject(p)
	c := apiclient.New(b.URL(), apiclient.NewMemoryTokenStore(b.Token))
	loaded, err := c.Project(context.Background(), p.ID)
	require.NoError(t, err)
	return b, c, loaded
}

func intp(v int) *int { return &v }

func TestProtocolFor(t *testing.T) {
	tests := []struct {
		from models.ProjectStatus
		to   models.ProjectStatus
		want Protocol
	}{
		{models.StatusEmDesenvolvimento, models.StatusEmHomologacao, EnterHomologation},
		{models.StatusPendenteImplantacao, models.StatusEmHomologacao, EnterHomologation},
		{models.StatusEmHomologacao, models.StatusPendenteImplantacao, ExitHomologation},
		{models.StatusEmHomologacao, models.StatusCancelado, ExitHomologation},
		{models.StatusEmDefinicao, models.StatusEmEspecificacao, DefaultTransition},
		{models.StatusPosGMUD, models.StatusConcluido, DefaultTransition},
		{"Em Homologação (legado)", models.StatusPendenteImplantacao, DefaultTransition},
		{models.StatusEmDesenvolvimento, "Homologação", DefaultTransition},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ProtocolFor(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	n := len(models.Workflow)
	assert.Len(t, Table, n*(n-1))
}

func TestTargetMustBeDeclared(t *testing.T) {
	b, c, p := setup(t, models.Project{ID: 1, Name: "Portal", Status: models.StatusEmDefinicao})
	rec := ui.NewRecorder()

	_, err := NewExecutor(c, rec).Execute(context.Background(), Request{
		Project: p, Target: models.StatusConcluido, Evidence: DefaultEvidence{},
	})

	require.ErrorIs(t, err, ErrTransitionNotAllowed)
	assert.Empty(t, b.CallsTo(http.MethodPut, "/projetos/1/status"))
	busy, _ := rec.Busy()
	assert.False(t, busy)

	_, err = Plan(p, models.StatusConcluido, nil)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
}

func TestMissingTesterBlocksCall(t *testing.T) {
	b, c, p := setup(t, models.Project{ID: 5, Name: "ERP", Status: models.StatusEmDesenvolvimento})
	rec := ui.NewRecorder()

	_, err := NewExecutor(c, rec).Execute(context.Background(), Request{
		Project: p,
		Target:  models.StatusEmHomologacao,
		Evidence: EnterHomologationEvidence{
			Version: "v1.2.4", TestType: "Manual", Environment: "UAT",
		},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"id_responsavel_teste"}, verr.Fields)
	assert.Empty(t, b.CallsTo(http.MethodPost, "/projetos/5/homologacao/iniciar"))

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ui.EventNotify, events[0].Kind)
	assert.Equal(t, ui.LevelError, events[0].Level)
	assert.Equal(t, "Todos os campos são obrigatórios.", events[0].Message)
}

func TestEnterHomologation(t *testing.T) {
	b, c, p := setup(t, models.Project{ID: 5, Name: "ERP", Status: models.StatusEmDesenvolvimento})
	rec := ui.NewRecorder()

	res, err := NewExecutor(c, rec).Execute(context.Background(), Request{
		Project: p,
		Target:  models.StatusEmHomologacao,
		Evidence: &EnterHomologationEvidence{
			Version: " v1.2.4 ", TestType: "Automatizado - API", Environment: "UAT", TesterID: 1,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, EnterHomologation, res.Protocol)
	assert.Equal(t, models.StatusEmHomologacao, res.Project.Status)
	assert.NotZero(t, res.HomologationID)

	calls := b.CallsTo(http.MethodPost, "/projetos/5/homologacao/iniciar")
	require.Len(t, calls, 1)
	var body models.StartCycleRequest
	calls[0].Decode(t, &body)
	assert.Equal(t, "v1.2.4", body.Version)
	assert.Equal(t, int64(1), body.TesterID)

	assert.Equal(t, []ui.Notification{{Level: ui.LevelSuccess, Message: "Ciclo de homologação iniciado!"}}, rec.Notifications())
}

func TestDefaultTransitionWithEmptyObservation(t *testing.T) {
	b, c, p := setup(t, models.Project{ID: 2, Name: "CRM", Status: models.StatusEmDefinicao})
	rec := ui.NewRecorder()

	res, err := NewExecutor(c, rec).Execute(context.Background(), Request{
		Project: p, Target: models.StatusEmEspecificacao,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmEspecificacao, res.Project.Status)

	calls := b.CallsTo(http.MethodPut, "/projetos/2/status")
	require.Len(t, calls, 1)
	var body map[string]any
	calls[0].Decode(t, &body)
	assert.Equal(t, map[string]any{"status": "Em Especificação", "observacao": ""}, body)

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, ui.Event{Kind: ui.EventBusy, Busy: true, Action: "Em Especificação"}, events[0])
	assert.Equal(t, ui.LevelSuccess, events[1].Level)
	assert.Equal(t, ui.Event{Kind: ui.EventReload, After: ReloadDelay}, events[2])
	busy, action := rec.Busy()
	assert.True(t, busy, "controls stay disabled until the reload")
	assert.Equal(t, "Em Especificação", action)
}

func TestFinalizeThenExactlyOneUpload(t *testing.T) {
	b, c, p := setup(t, models.Project{
		ID: 7, Name: "App", Status: models.StatusEmHomologacao,
		HomologationCycles: []models.HomologationCycle{
			{ID: 40, ProjectID: 7, StartedAt: "2024-05-01T09:00:00", Version: "2.0", TestType: "Manual"},
		},
	})
	rec := ui.NewRecorder()

	res, err := NewExecutor(c, rec).Execute(context.Background(), Request{
		Project: p,
		Target:  models.StatusPendenteImplantacao,
		Evidence: ExitHomologationEvidence{
			Result:       models.ResultAprovadoComRessalvas,
			Observations: "Pequenos ajustes de layout.",
			Report:       &ReportFile{Name: "allure-report.zip", Content: strings.NewReader("PK\x03\x04")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.HomologationID)
	assert.Equal(t, models.StatusPendenteImplantacao, res.Project.Status)
	require.NotNil(t, res.Report)
	assert.Equal(t, "uploads/allure-report.zip", *res.Report.ReportPath)

	var sequence []string
	for _, path := range b.Paths() {
		if strings.HasPrefix(path, "POST ") {
			sequence = append(sequence, path)
		}
	}
	assert.Equal(t, []string{
		"POST /projetos/7/homologacao/finalizar",
		"POST /homologacoes/40/upload-zip",
	}, sequence)

	var body map[string]any
	b.CallsTo(http.MethodPost, "/projetos/7/homologacao/finalizar")[0].Decode(t, &body)
	assert.Nil(t, body["total_testes"], "absent counts are sent as null")
	assert.Contains(t, body, "total_testes")

	assert.Equal(t, []ui.Notification{
		{Level: ui.LevelInfo, Message: "Enviando e processando relatório..."},
		{Level: ui.LevelSuccess, Message: "Ciclo de homologação finalizado com sucesso!"},
	}, rec.Notifications())
}

func TestFinalizeWithoutReportSkipsUpload(t *testing.T) {
	b, c, p := setup(t, models.Project{
		ID: 7, Name: "App", Status: models.StatusEmHomologacao,
		HomologationCycles: []models.HomologationCycle{{ID: 41, ProjectID: 7, StartedAt: "2024-05-01T09:00:00"}},
	})

	res, err := NewExecutor(c, ui.NewRecorder()).Execute(context.Background(), Request{
		Project: p,
		Target:  models.StatusPendenteImplantacao,
		Evidence: Submission{Result: models.ResultReprovado, Total: intp(10), Approved: intp(4), Failed: intp(6)}.
			Evidence(ExitHomologation, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmDesenvolvimento, res.Project.Status, "a rejected cycle returns to development")
	assert.Nil(t, res.Report)
	assert.Empty(t, b.CallsTo(http.MethodPost, "/homologacoes/41/upload-zip"))
}

func TestFinalizeWithoutBody(t *testing.T) {
	exit := func(report *ReportFile) Request {
		return Request{
			Target:   models.StatusPendenteImplantacao,
			Evidence: ExitHomologationEvidence{Result: models.ResultAprovado, Report: report},
		}
	}

	t.Run("uploads to the cycle that was open", func(t *testing.T) {
		b, c, p := setup(t, models.Project{
			ID: 1, Name: "App", Status: models.StatusEmHomologacao,
			HomologationCycles: []models.HomologationCycle{{ID: 60, ProjectID: 1, StartedAt: "2024-05-01T09:00:00"}},
		})
		b.FailWith(http.MethodPost, "/projetos/1/homologacao/finalizar", http.StatusNoContent, "")
		rec := ui.NewRecorder()

		req := exit(&ReportFile{Name: "r.zip", Content: strings.NewReader("PK")})
		req.Project = p
		res, err := NewExecutor(c, rec).Execute(context.Background(), req)

		require.NoError(t, err)
		assert.Nil(t, res.Project)
		assert.Equal(t, int64(60), res.HomologationID)
		assert.Len(t, b.CallsTo(http.MethodPost, "/homologacoes/60/upload-zip"), 1)
		assert.Empty(t, b.CallsTo(http.MethodPost, "/homologacoes/0/upload-zip"))
		_, reloaded := rec.ReloadAfter()
		assert.True(t, reloaded)
	})

	t.Run("no body and no report succeeds", func(t *testing.T) {
		b, c, p := setup(t, models.Project{ID: 1, Name: "App", Status: models.StatusEmHomologacao})
		b.FailWith(http.MethodPost, "/projetos/1/homologacao/finalizar", http.StatusNoContent, "")

		req := exit(nil)
		req.Project = p
		res, err := NewExecutor(c, ui.NewRecorder()).Execute(context.Background(), req)

		require.NoError(t, err)
		assert.Zero(t, res.HomologationID)
		assert.Nil(t, res.Report)
	})

	t.Run("report without a cycle id is not sent", func(t *testing.T) {
		b, c, p := setup(t, models.Project{ID: 1, Name: "App", Status: models.StatusEmHomologacao})
		b.FailWith(http.MethodPost, "/projetos/1/homologacao/finalizar", http.StatusNoContent, "")
		rec := ui.NewRecorder()

		req := exit(&ReportFile{Name: "r.zip", Content: strings.NewReader("PK")})
		req.Project = p
		_, err := NewExecutor(c, rec).Execute(context.Background(), req)

		require.ErrorIs(t, err, ErrNoFinishedCycle)
		for _, path := range b.Paths() {
			assert.NotContains(t, path, "upload-zip")
		}
		busy, _ := rec.Busy()
		assert.False(t, busy)
	})
}

func TestFailureReenablesControlsWithoutReload(t *testing.T) {
	b, c, p := setup(t, models.Project{ID: 3, Name: "BI", Status: models.StatusEmDesenvolvimento})
	b.FailWith(http.MethodPut, "/projetos/3/status", http.StatusForbidden, `{"message":"Acesso negado."}`)
	rec := ui.NewRecorder()

	_, err := NewExecutor(c, rec).Execute(context.Background(), Request{
		Project: p, Target: models.StatusCancelado, Evidence: DefaultEvidence{Observation: "sem verba"},
	})

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apiclient.StatusCode(err))
	busy, _ := rec.Busy()
	assert.False(t, busy)
	_, reloaded := rec.ReloadAfter()
	assert.False(t, reloaded)
	assert.Equal(t, []ui.Notification{{Level: ui.LevelError, Message: "Erro: Acesso negado."}}, rec.Notifications())
}

func TestUploadFailureReportsFinalizeError(t *testing.T) {
	b, c, p := setup(t, models.Project{
		ID: 9, Name: "App", Status: models.StatusEmHomologacao,
		HomologationCycles: []models.HomologationCycle{{ID: 50, ProjectID: 9, StartedAt: "2024-05-01T09:00:00"}},
	})
	b.FailWith(http.MethodPost, "/homologacoes/50/upload-zip", http.StatusBadRequest, `{"message":"Arquivo corrompido."}`)
	rec := ui.NewRecorder()

	_, err := NewExecutor(c, rec).Execute(context.Background(), Request{
		Project: p,
		Target:  models.StatusPendenteImplantacao,
		Evidence: ExitHomologationEvidence{
			Result: models.ResultAprovado,
			Report: &ReportFile{Name: "r.zip", Content: strings.NewReader("x")},
		},
	})

	require.Error(t, err)
	notes := rec.Notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, ui.Notification{Level: ui.LevelError, Message: "Erro ao finalizar ciclo: Arquivo corrompido."}, notes[len(notes)-1])
	busy, _ := rec.Busy()
	assert.False(t, busy)
}

func TestExitEvidenceValidation(t *testing.T) {
	tests := []struct {
		name   string
		ev     ExitHomologationEvidence
		fields []string
	}{
		{"missing result", ExitHomologationEvidence{}, []string{"resultado"}},
		{"unknown result", ExitHomologationEvidence{Result: "Talvez"}, []string{"resultado"}},
		{"negative count", ExitHomologationEvidence{Result: models.ResultAprovado, Failed: intp(-1)}, []string{"testes_reprovados"}},
		{"report without content", ExitHomologationEvidence{Result: models.ResultAprovado, Report: &ReportFile{Name: "a.zip"}}, []string{"reportFile"}},
		{"report not zip", ExitHomologationEvidence{Result: models.ResultAprovado, Report: &ReportFile{Name: "a.pdf", Content: strings.NewReader("")}}, []string{"reportFile"}},
		{"ok with zeros", ExitHomologationEvidence{Result: models.ResultAprovado, Total: intp(0)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.fields, verr.Fields)
		})
	}
}

func TestEvidenceMustMatchProtocol(t *testing.T) {
	b, c, p := setup(t, models.Project{ID: 4, Name: "Site", Status: models.StatusEmDesenvolvimento})

	_, err := NewExecutor(c, ui.NewRecorder()).Execute(context.Background(), Request{
		Project: p, Target: models.StatusEmHomologacao, Evidence: DefaultEvidence{},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, b.CallsTo(http.MethodPost, "/projetos/4/homologacao/iniciar"))
}

func TestMemberCannotMoveOthersProject(t *testing.T) {
	b, c, p := setup(t, models.Project{ID: 6, Name: "RH", Status: models.StatusEmDefinicao, Owner: &models.User{ID: 99}})
	member := &models.User{ID: 2, Role: models.RoleMembro}

	_, err := NewExecutor(c, ui.NewRecorder()).Execute(context.Background(), Request{
		Project: p, Target: models.StatusEmEspecificacao, Actor: member,
	})

	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Empty(t, b.CallsTo(http.MethodPut, "/projetos/6/status"))
}

func TestPlan(t *testing.T) {
	b, c, p := setup(t, models.Project{ID: 8, Name: "Mobile", Status: models.StatusEmDesenvolvimento})
	b.AddUser(models.User{ID: 2, FullName: "Bruno Lima", Role: models.RoleMembro, IsActive: true})
	b.AddUser(models.User{ID: 3, FullName: "Inativo", Role: models.RoleMembro})
	exec := NewExecutor(c, ui.NewRecorder(), WithReloadDelay(time.Millisecond))

	form, err := exec.Plan(context.Background(), p, models.StatusEmHomologacao)
	require.NoError(t, err)
	assert.Equal(t, EnterHomologation, form.Protocol)
	assert.Equal(t, "Iniciar Ciclo", form.ConfirmText)
	tester := form.Field("id_responsavel_teste")
	require.NotNil(t, tester)
	assert.True(t, tester.Required)
	assert.Equal(t, []FieldOption{{Value: "1", Label: "Ana Souza"}, {Value: "2", Label: "Bruno Lima"}}, tester.Options)
	assert.Len(t, form.Field("tipo_teste").Options, len(models.TestTypes))

	form, err = exec.Plan(context.Background(), p, models.StatusCancelado)
	require.NoError(t, err)
	assert.Equal(t, DefaultTransition, form.Protocol)
	assert.False(t, form.Field("observacao").Required)
	assert.Len(t, b.CallsTo(http.MethodGet, "/usuarios"), 1, "testers are only loaded for homologation")

	p.Status = models.StatusEmHomologacao
	p.NextStatuses = models.NextStatuses(p.Status)
	form, err = Plan(p, models.StatusPendenteImplantacao, nil)
	require.NoError(t, err)
	assert.Equal(t, ExitHomologation, form.Protocol)
	assert.True(t, form.Field("resultado").Required)
	assert.Equal(t, string(ModeUpload), form.Field("reportFile").Group)
}

func TestSubmissionEvidence(t *testing.T) {
	s := Submission{Result: models.ResultAprovado, Version: "1.0", Observation: "ok"}

	exit := s.Evidence(ExitHomologation, &ReportFile{Name: "a.zip", Content: strings.NewReader("")}).(ExitHomologationEvidence)
	assert.Equal(t, ModeUpload, exit.Mode)
	assert.Equal(t, ModeManual, s.Evidence(ExitHomologation, nil).(ExitHomologationEvidence).Mode)
	assert.Equal(t, "1.0", s.Evidence(EnterHomologation, nil).(EnterHomologationEvidence).Version)
	assert.Equal(t, DefaultEvidence{Observation: "ok"}, s.Evidence(DefaultTransition, nil))
}
