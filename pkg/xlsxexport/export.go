// Package xlsxexport writes the project portfolio and its frequency tables
// to an Excel workbook.
package xlsxexport

import (
	"fmt"
	"io"
	"time"

	"github.com/tealeg/xlsx/v3"

	"pmo-dashboard/internal/health"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/report"
)

// ProjectsSheet is the name of the sheet listing every project.
const ProjectsSheet = "Projetos"

// DefaultGroupings are the frequency tables written when Options.GroupBy is empty.
var DefaultGroupings = []string{report.KeyStatus, report.KeyPriority, report.KeyOwner, report.KeyArea}

// ProjectColumns is the header row of the projects sheet.
var ProjectColumns = []string{
	"ID", "Projeto", "Chamado", "Status", "Prioridade", "Complexidade", "Risco",
	"Responsável", "Área Solicitante", "Início Previsto", "Fim Previsto",
	"Saúde", "Situação", "Prazo", "Custo Estimado",
}

// Options controls the export.
type Options struct {
	// Now is the reference date for health classification. Zero means time.Now.
	Now time.Time
	// GroupBy lists the Project JSON keys that get a frequency sheet.
	GroupBy []string
}

// SheetSummary describes one written sheet.
type SheetSummary struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// Summary describes the written workbook.
type Summary struct {
	Projects int            `json:"projects"`
	Sheets   []SheetSummary `json:"sheets"`
}

// WriteProjects writes projects and their frequency tables to w as .xlsx.
func WriteProjects(w io.Writer, projects []models.Project, opts Options) (Summary, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	groupings := opts.GroupBy
	if len(groupings) == 0 {
		groupings = DefaultGroupings
	}

	file := xlsx.NewFile()
	summary := Summary{Projects: len(projects)}

	sheet, err := file.AddSheet(ProjectsSheet)
	if err != nil {
		return summary, fmt.Errorf("failed to add sheet %s: %w", ProjectsSheet, err)
	}
	addHeader(sheet, ProjectColumns)
	for i := range projects {
		addProjectRow(sheet, &projects[i], now)
	}
	summary.Sheets = append(summary.Sheets, SheetSummary{Name: ProjectsSheet, Rows: len(projects)})

	for _, key := range groupings {
		table := report.GroupBy(projects, key)
		name := sheetName(key)
		sheet, err := file.AddSheet(name)
		if err != nil {
			return summary, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
		addHeader(sheet, []string{"Valor", "Projetos"})
		for i, label := range table.Labels {
			row := sheet.AddRow()
			row.AddCell().SetString(label)
			row.AddCell().SetInt(table.Data[i])
		}
		summary.Sheets = append(summary.Sheets, SheetSummary{Name: name, Rows: len(table.Labels)})
	}

	if err := file.Write(w); err != nil {
		return summary, fmt.Errorf("failed to write workbook: %w", err)
	}
	return summary, nil
}

// sheetName keeps sheet names under Excel's 31 character limit.
func sheetName(key string) string {
	name := "Por " + key
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func addHeader(sheet *xlsx.Sheet, columns []string) {
	row := sheet.AddRow()
	for _, c := range columns {
		cell := row.AddCell()
		cell.SetString(c)
		cell.GetStyle().Font.Bold = true
	}
}

func addProjectRow(sheet *xlsx.Sheet, p *models.Project, now time.Time) {
	h := health.Classify(p, now)
	row := sheet.AddRow()
	row.AddCell().SetInt64(p.ID)
	for _, v := range []string{
		p.Name,
		p.TicketNumber,
		string(p.Status),
		p.Priority,
		p.Complexity,
		p.Risk,
		ownerName(p),
		areaName(p),
		dateOf(p.PlannedStart),
		dateOf(p.PlannedEnd),
		string(h.Level),
		h.Description,
		health.Deadline(p, now),
	} {
		row.AddCell().SetString(v)
	}
	cost := row.AddCell()
	if p.EstimatedCost != nil {
		cost.SetFloat(*p.EstimatedCost)
	}
}

func ownerName(p *models.Project) string {
	if p.Owner == nil {
		return ""
	}
	return p.Owner.FullName
}

func areaName(p *models.Project) string {
	if p.RequestingArea == nil {
		return ""
	}
	return p.RequestingArea.Name
}

func dateOf(s *string) string {
	if s == nil {
		return ""
	}
	return models.DatePart(*s)
}

// ReadSheet opens an .xlsx workbook and returns the cell text of the named
// sheet, header row included. Reading stops at the first empty row.
func ReadSheet(data []byte, name string) ([][]string, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	sheet, ok := file.Sheet[name]
	if !ok {
		return nil, fmt.Errorf("sheet %q not found", name)
	}

	var rows [][]string
	for rowIdx := 0; rowIdx < sheet.MaxRow; rowIdx++ {
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}
		var cells []string
		for colIdx := 0; colIdx < sheet.MaxCol; colIdx++ {
			cell := row.GetCell(colIdx)
			if cell == nil {
				break
			}
			cells = append(cells, cell.String())
		}
		if len(cells) == 0 || allEmpty(cells) {
			break
		}
		rows = append(rows, trimTrailing(cells))
	}
	return rows, nil
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func trimTrailing(cells []string) []string {
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}
