package workflow

import (
	"fmt"

	"pmo-dashboard/internal/models"
)

// FieldOption is one choice of a select field.
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field describes one input of a transition form.
type Field struct {
	Name     string        `json:"name"`
	Label    string        `json:"label"`
	Type     string        `json:"type"`
	Required bool          `json:"required"`
	Options  []FieldOption `json:"options,omitempty"`
	Group    string        `json:"group,omitempty"`
}

// Form is what a UI must collect before a transition can be executed.
type Form struct {
	Protocol    Protocol             `json:"protocol"`
	Current     models.ProjectStatus `json:"status_atual"`
	Target      models.ProjectStatus `json:"status"`
	Title       string               `json:"title"`
	Message     string               `json:"message"`
	ConfirmText string               `json:"confirm_text"`
	Fields      []Field              `json:"fields"`
}

// Field returns the field called name, or nil.
func (f *Form) Field(name string) *Field {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}
	return nil
}

// Plan returns the form for moving p to target. testers fills the tester
// select of EnterHomologation and is ignored otherwise.
func Plan(p *models.Project, target models.ProjectStatus, testers []models.User) (*Form, error) {
	if !p.CanMoveTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, p.Status, target)
	}

	form := &Form{
		Protocol: ProtocolFor(p.Status, target),
		Current:  p.Status,
		Target:   target,
	}

	switch form.Protocol {
	case EnterHomologation:
		form.Title = "Iniciar Ciclo de Homologação"
		form.Message = "Preencha os detalhes para iniciar o novo ciclo de homologação."
		form.ConfirmText = "Iniciar Ciclo"
		form.Fields = []Field{
			{Name: "versao_testada", Label: "Versão a ser Testada", Type: "text", Required: true},
			{Name: "tipo_teste", Label: "Tipo de Teste", Type: "select", Required: true, Options: stringOptions(models.TestTypes)},
			{Name: "ambiente", Label: "Ambiente de Testes", Type: "text", Required: true},
			{Name: "id_responsavel_teste", Label: "Responsável pelo Teste", Type: "select", Required: true, Options: userOptions(testers)},
		}
	case ExitHomologation:
		results := make([]string, len(models.ValidResults))
		for i, r := range models.ValidResults {
			results[i] = string(r)
		}
		form.Title = "Finalizar Ciclo de Homologação"
		form.Message = "Finalize o ciclo registrando o resultado."
		form.ConfirmText = "Finalizar Ciclo"
		form.Fields = []Field{
			{Name: "resultado", Label: "Resultado Final", Type: "select", Required: true, Options: stringOptions(results)},
			{Name: "modo_evidencia", Label: "Como deseja evidenciar o resultado?", Type: "toggle", Options: []FieldOption{
				{Value: string(ModeManual), Label: "Inserir Métricas Manuais"},
				{Value: string(ModeUpload), Label: "Anexar Relatório (.zip)"},
			}},
			{Name: "total_testes", Label: "Total", Type: "number", Group: string(ModeManual)},
			{Name: "testes_aprovados", Label: "Aprovados", Type: "number", Group: string(ModeManual)},
			{Name: "testes_reprovados", Label: "Reprovados", Type: "number", Group: string(ModeManual)},
			{Name: "testes_bloqueados", Label: "Bloqueados", Type: "number", Group: string(ModeManual)},
			{Name: "reportFile", Label: "Relatório de Testes (.zip)", Type: "file", Group: string(ModeUpload)},
			{Name: "observacoes", Label: "Observações Finais", Type: "textarea"},
		}
	default:
		form.Title = fmt.Sprintf("Confirmar Mudança para %q", string(target))
		form.Message = fmt.Sprintf("Você tem certeza que deseja mover o projeto para o status %s?", target)
		form.ConfirmText = "Sim, Mudar Status"
		form.Fields = []Field{
			{Name: "observacao", Label: "Adicionar observação (opcional):", Type: "textarea"},
		}
	}
	return form, nil
}

func stringOptions(values []string) []FieldOption {
	out := make([]FieldOption, len(values))
	for i, v := range values {
		out[i] = FieldOption{Value: v, Label: v}
	}
	return out
}

func userOptions(users []models.User) []FieldOption {
	out := make([]FieldOption, 0, len(users))
	for _, u := range users {
		out = append(out, FieldOption{Value: fmt.Sprintf("%d", u.ID), Label: u.GetDisplayName()})
	}
	return out
}
