package models

// Dataset is one series of a chart payload.
type Dataset struct {
	Label string    `json:"label,omitempty"`
	Data  []float64 `json:"data"`
}

// ChartData is the labels/datasets shape the backend uses for grouped charts.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Series is a single labelled series (labels and data are parallel).
type Series struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// PortfolioObjective is one entry of GET /relatorios/portfolio.
type PortfolioObjective struct {
	ID                 int64     `json:"id_objetivo"`
	Name               string    `json:"nome_objetivo"`
	Description        *string   `json:"descricao,omitempty"`
	Projects           []Project `json:"projetos"`
	TotalProjects      int       `json:"total_projetos"`
	TotalEstimatedCost float64   `json:"custo_total_estimado"`
	StatusChart        ChartData `json:"grafico_status"`
}

// QAReport is the payload of GET /relatorios/qa.
type QAReport struct {
	SuccessHistory      Series    `json:"taxa_sucesso_historica"`
	ProjectDistribution ChartData `json:"distribuicao_por_projeto"`
}

// ProjectSchema is the payload of GET /projetos/schema, used to build create/edit forms.
type ProjectSchema struct {
	Form []SchemaField `json:"form"`
}

// SchemaField describes one form field of the project schema.
type SchemaField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Options     []string `json:"options,omitempty"`
	Endpoint    string   `json:"endpoint,omitempty"`
	OptionValue string   `json:"option_value,omitempty"`
	OptionLabel string   `json:"option_label,omitempty"`
}

// Field returns the schema field with the given name.
func (s *ProjectSchema) Field(name string) (SchemaField, bool) {
	for _, f := range s.Form {
		if f.Name == name {
			return f, true
		}
	}
	return SchemaField{}, false
}
