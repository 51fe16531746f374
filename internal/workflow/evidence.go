package workflow

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"pmo-dashboard/internal/models"
)

// ValidationError reports evidence that cannot be submitted. No request is sent.
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

// Evidence is the data a protocol needs before its requests can be sent.
type Evidence interface {
	Protocol() Protocol
	Validate() error
}

// EnterHomologationEvidence describes the cycle being started. Every field is mandatory.
type EnterHomologationEvidence struct {
	Version     string
	TestType    string
	Environment string
	TesterID    int64
}

func (EnterHomologationEvidence) Protocol() Protocol { return EnterHomologation }

func (e EnterHomologationEvidence) Validate() error {
	var missing []string
	if strings.TrimSpace(e.Version) == "" {
		missing = append(missing, "versao_testada")
	}
	if strings.TrimSpace(e.TestType) == "" {
		missing = append(missing, "tipo_teste")
	}
	if strings.TrimSpace(e.Environment) == "" {
		missing = append(missing, "ambiente")
	}
	if e.TesterID <= 0 {
		missing = append(missing, "id_responsavel_teste")
	}
	if len(missing) > 0 {
		return &ValidationError{Message: "Todos os campos são obrigatórios.", Fields: missing}
	}
	if !models.IsValidTestType(e.TestType) {
		return &ValidationError{Message: fmt.Sprintf("Tipo de teste inválido: %s.", e.TestType), Fields: []string{"tipo_teste"}}
	}
	return nil
}

func (e EnterHomologationEvidence) request() models.StartCycleRequest {
	return models.StartCycleRequest{
		Version:     strings.TrimSpace(e.Version),
		TestType:    e.TestType,
		Environment: strings.TrimSpace(e.Environment),
		TesterID:    e.TesterID,
	}
}

// EvidenceMode is the evidence path chosen when a cycle is finalized.
// It is informational; counts and a report may both be sent.
type EvidenceMode string

const (
	ModeManual EvidenceMode = "manual"
	ModeUpload EvidenceMode = "upload"
)

// ReportFile is a test report archive to upload after the cycle is finalized.
type ReportFile struct {
	Name    string
	Content io.Reader
}

// ExitHomologationEvidence closes the open cycle. Only Result is mandatory.
type ExitHomologationEvidence struct {
	Result       models.CycleResult
	Total        *int
	Approved     *int
	Failed       *int
	Blocked      *int
	Observations string
	Report       *ReportFile
	Mode         EvidenceMode
}

func (ExitHomologationEvidence) Protocol() Protocol { return ExitHomologation }

func (e ExitHomologationEvidence) Validate() error {
	if e.Result == "" {
		return &ValidationError{Message: "O campo 'Resultado Final' é obrigatório.", Fields: []string{"resultado"}}
	}
	if !e.Result.IsValid() {
		return &ValidationError{Message: fmt.Sprintf("Resultado inválido: %s.", e.Result), Fields: []string{"resultado"}}
	}
	counts := map[string]*int{
		"total_testes":      e.Total,
		"testes_aprovados":  e.Approved,
		"testes_reprovados": e.Failed,
		"testes_bloqueados": e.Blocked,
	}
	var negative []string
	for _, name := range []string{"total_testes", "testes_aprovados", "testes_reprovados", "testes_bloqueados"} {
		if v := counts[name]; v != nil && *v < 0 {
			negative = append(negative, name)
		}
	}
	if len(negative) > 0 {
		return &ValidationError{Message: "As contagens de testes não podem ser negativas.", Fields: negative}
	}
	if e.Report != nil {
		if e.Report.Content == nil || strings.TrimSpace(e.Report.Name) == "" {
			return &ValidationError{Message: "Selecione o arquivo do relatório.", Fields: []string{"reportFile"}}
		}
		if !strings.EqualFold(filepath.Ext(e.Report.Name), ".zip") {
			return &ValidationError{Message: "O relatório deve ser um arquivo .zip.", Fields: []string{"reportFile"}}
		}
	}
	return nil
}

func (e ExitHomologationEvidence) request() models.FinishCycleRequest {
	return models.FinishCycleRequest{
		Result:       e.Result,
		Observations: e.Observations,
		TotalTests:   e.Total,
		Approved:     e.Approved,
		Failed:       e.Failed,
		Blocked:      e.Blocked,
	}
}

// DefaultEvidence carries the optional observation of a plain status change.
type DefaultEvidence struct {
	Observation string
}

func (DefaultEvidence) Protocol() Protocol { return DefaultTransition }

func (DefaultEvidence) Validate() error { return nil }

// Submission is the flat form payload a UI posts for any protocol.
type Submission struct {
	Target       models.ProjectStatus `json:"status"`
	Observation  string               `json:"observacao,omitempty"`
	Version      string               `json:"versao_testada,omitempty"`
	TestType     string               `json:"tipo_teste,omitempty"`
	Environment  string               `json:"ambiente,omitempty"`
	TesterID     int64                `json:"id_responsavel_teste,omitempty"`
	Result       models.CycleResult   `json:"resultado,omitempty"`
	Mode         EvidenceMode         `json:"modo_evidencia,omitempty"`
	Total        *int                 `json:"total_testes,omitempty"`
	Approved     *int                 `json:"testes_aprovados,omitempty"`
	Failed       *int                 `json:"testes_reprovados,omitempty"`
	Blocked      *int                 `json:"testes_bloqueados,omitempty"`
	Observations string               `json:"observacoes,omitempty"`
}

// Evidence picks the fields p needs. report is only used by ExitHomologation.
func (s Submission) Evidence(p Protocol, report *ReportFile) Evidence {
	switch p {
	case EnterHomologation:
		return EnterHomologationEvidence{
			Version:     s.Version,
			TestType:    s.TestType,
			Environment: s.Environment,
			TesterID:    s.TesterID,
		}
	case ExitHomologation:
		mode := s.Mode
		if mode == "" {
			mode = ModeManual
			if report != nil {
				mode = ModeUpload
			}
		}
		return ExitHomologationEvidence{
			Result:       s.Result,
			Total:        s.Total,
			Approved:     s.Approved,
			Failed:       s.Failed,
			Blocked:      s.Blocked,
			Observations: s.Observations,
			Report:       report,
			Mode:         mode,
		}
	default:
		return DefaultEvidence{Observation: s.Observation}
	}
}
