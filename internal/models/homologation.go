package models

// HomologationCycle is one QA test cycle against a specific version.
type HomologationCycle struct {
	ID            int64          `json:"id_homologacao"`
	ProjectID     int64          `json:"id_projeto"`
	StartedAt     string         `json:"data_inicio"`
	EndedAt       *string        `json:"data_fim,omitempty"`
	TesterID      int64          `json:"id_responsavel_teste"`
	Tester        *User          `json:"responsavel_teste,omitempty"`
	Result        *CycleResult   `json:"resultado,omitempty"`
	Environment   string         `json:"ambiente"`
	Version       string         `json:"versao_testada"`
	TestType      string         `json:"tipo_teste"`
	Observations  *string        `json:"observacoes,omitempty"`
	ReportPath    *string        `json:"caminho_relatorio_zip,omitempty"`
	AllureLink    *string        `json:"link_relatorio_allure,omitempty"`
	TotalTests    *int           `json:"total_testes,omitempty"`
	ApprovedTests *int           `json:"testes_aprovados,omitempty"`
	FailedTests   *int           `json:"testes_reprovados,omitempty"`
	BlockedTests  *int           `json:"testes_bloqueados,omitempty"`
	SuccessRate   *float64       `json:"taxa_sucesso,omitempty"`
	ExecutedTests []ExecutedTest `json:"testes_executados,omitempty"`
}

// IsOpen reports whether the cycle is still waiting for a result.
func (c *HomologationCycle) IsOpen() bool {
	return c.Result == nil
}

// ComputedSuccessRate derives approved/total*100. ok is false when there is nothing to divide.
func (c *HomologationCycle) ComputedSuccessRate() (rate float64, ok bool) {
	if c.TotalTests == nil || *c.TotalTests <= 0 || c.ApprovedTests == nil {
		return 0, false
	}
	return float64(*c.ApprovedTests) / float64(*c.TotalTests) * 100, true
}

// ExecutedTest is a single test case result parsed from an uploaded report.
type ExecutedTest struct {
	ID             int64   `json:"id_execucao"`
	HomologationID int64   `json:"id_homologacao"`
	UUID           string  `json:"uuid,omitempty"`
	Name           string  `json:"nome_teste"`
	Status         string  `json:"status"`
	ErrorMessage   *string `json:"mensagem_erro,omitempty"`
	Feature        *string `json:"feature,omitempty"`
	Severity       *string `json:"severity,omitempty"`
}

// Failed reports whether the test ended as failed or broken.
func (t ExecutedTest) Failed() bool {
	return t.Status == "failed" || t.Status == "broken"
}

// StartCycleRequest is the body of POST /projetos/{id}/homologacao/iniciar.
type StartCycleRequest struct {
	Version     string `json:"versao_testada"`
	TestType    string `json:"tipo_teste"`
	Environment string `json:"ambiente"`
	TesterID    int64  `json:"id_responsavel_teste"`
}

// FinishCycleRequest is the body of POST /projetos/{id}/homologacao/finalizar.
// Counts are sent as null when absent.
type FinishCycleRequest struct {
	Result       CycleResult `json:"resultado"`
	Observations string      `json:"observacoes"`
	TotalTests   *int        `json:"total_testes"`
	Approved     *int        `json:"testes_aprovados"`
	Failed       *int        `json:"testes_reprovados"`
	Blocked      *int        `json:"testes_bloqueados"`
}

// FinishCycleResponse is returned by the finalize endpoint.
type FinishCycleResponse struct {
	Project        *Project `json:"projeto,omitempty"`
	HomologationID int64    `json:"id_homologacao_finalizado"`
}
