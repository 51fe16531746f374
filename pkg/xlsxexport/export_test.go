package xlsxexport

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmo-dashboard/internal/models"
)

func strp(s string) *string { return &s }

func sampleProjects() []models.Project {
	return []models.Project{
		{
			ID: 7, Name: "Portal do Cliente", TicketNumber: "TD-1", Status: models.StatusEmDesenvolvimento,
			Priority: "Alta", Complexity: "Média", Risk: "Baixo",
			Owner:          &models.User{ID: 1, FullName: "Ana Souza"},
			RequestingArea: &models.Area{ID: 3, Name: "Financeiro"},
			PlannedStart:   strp("2024-05-01"), PlannedEnd: strp("2024-06-01T00:00:00"),
		},
		{
			ID: 8, Name: "BI Comercial", TicketNumber: "TD-2", Status: models.StatusEmDesenvolvimento,
			Priority: "Baixa", Complexity: "Baixa", Risk: "Baixo",
		},
		{
			ID: 9, Name: "Migração ERP", TicketNumber: "TD-3", Status: models.StatusEmHomologacao,
			Priority: "Alta", Complexity: "Alta", Risk: "Médio",
			Owner: &models.User{ID: 1, FullName: "Ana Souza"},
		},
	}
}

func TestWriteProjects(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	summary, err := WriteProjects(&buf, sampleProjects(), Options{Now: now})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Projects)
	require.Len(t, summary.Sheets, 1+len(DefaultGroupings))
	assert.Equal(t, SheetSummary{Name: ProjectsSheet, Rows: 3}, summary.Sheets[0])
	assert.Equal(t, SheetSummary{Name: "Por status_atual", Rows: 2}, summary.Sheets[1])

	rows, err := ReadSheet(buf.Bytes(), ProjectsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ProjectColumns, rows[0])

	first := rows[1]
	assert.Equal(t, "7", first[0])
	assert.Equal(t, "Portal do Cliente", first[1])
	assert.Equal(t, "Ana Souza", first[7])
	assert.Equal(t, "Financeiro", first[8])
	assert.Equal(t, "2024-05-01", first[9])
	assert.Equal(t, "2024-06-01", first[10])
	assert.Equal(t, "danger", first[11])
	assert.Equal(t, "Projeto Atrasado", first[12])
	assert.Equal(t, "Atrasado", first[13])

	third := rows[3]
	assert.Equal(t, "warning", third[11])
	assert.Equal(t, "Complexidade Alta", third[12])
	assert.Equal(t, "N/D", third[13])
}

func TestWriteProjectsFrequencySheets(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteProjects(&buf, sampleProjects(), Options{GroupBy: []string{"responsavel"}})
	require.NoError(t, err)

	rows, err := ReadSheet(buf.Bytes(), "Por responsavel")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Valor", "Projetos"},
		{"Ana Souza", "2"},
		{"Não definido", "1"},
	}, rows)

	_, err = ReadSheet(buf.Bytes(), "Por status_atual")
	assert.Error(t, err, "only the requested groupings are written")
}

func TestWriteProjectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	summary, err := WriteProjects(&buf, nil, Options{GroupBy: []string{"prioridade"}})
	require.NoError(t, err)
	assert.Zero(t, summary.Projects)

	rows, err := ReadSheet(buf.Bytes(), ProjectsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{ProjectColumns}, rows)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Por prioridade", sheetName("prioridade"))
	assert.Len(t, sheetName("uma_chave_de_agrupamento_muito_longa"), 31)
}

func TestReadSheetRejectsGarbage(t *testing.T) {
	_, err := ReadSheet([]byte("not a workbook"), ProjectsSheet)
	assert.Error(t, err)
}
