package models

// Task is a Gantt task belonging to a project.
type Task struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"descricao,omitempty"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Progress     int     `json:"progress"`
	Dependencies *string `json:"dependencies,omitempty"`
	Assignee     *User   `json:"responsavel,omitempty"`
	ProjectID    int64   `json:"id_projeto"`
	ProjectName  string  `json:"nome_projeto,omitempty"`
}

// ClampProgress bounds a progress percentage to 0..100.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// CreateTaskRequest is the body of POST /projetos/{id}/tarefas.
type CreateTaskRequest struct {
	Name        string  `json:"nome_tarefa"`
	Start       string  `json:"data_inicio"`
	End         string  `json:"data_fim"`
	AssigneeID  *int64  `json:"id_responsavel_tarefa,omitempty"`
	Description *string `json:"descricao,omitempty"`
}

// UpdateTaskRequest is the body of PUT /tarefas/{id}. A nil assignee clears it.
type UpdateTaskRequest struct {
	Name       string `json:"nome_tarefa"`
	Progress   int    `json:"progresso"`
	AssigneeID *int64 `json:"id_responsavel_tarefa"`
}
