package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/handlers"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/tasks"
	"pmo-dashboard/internal/ui"
	"pmo-dashboard/internal/workflow"
)

// flowResponse reports a form submission the way the browser replays it:
// the notifications to show, and when to reload on success. Failures keep
// the standard error envelope fields.
type flowResponse struct {
	Data          any               `json:"data,omitempty"`
	Error         string            `json:"error,omitempty"`
	Code          string            `json:"code,omitempty"`
	Fields        []string          `json:"fields,omitempty"`
	Redirect      string            `json:"redirect,omitempty"`
	Prompt        string            `json:"prompt,omitempty"`
	Notifications []ui.Notification `json:"notifications"`
	ReloadAfterMS *int64            `json:"reload_after_ms,omitempty"`
}

func writeFlow(w http.ResponseWriter, rec *ui.Recorder, data any, err error) {
	writeFlowRedirect(w, rec, data, err, "")
}

// writeFlowRedirect is writeFlow with a page to open once the flow succeeded.
func writeFlowRedirect(w http.ResponseWriter, rec *ui.Recorder, data any, err error, redirect string) {
	resp := flowResponse{Data: data, Notifications: rec.Notifications()}
	if resp.Notifications == nil {
		resp.Notifications = []ui.Notification{}
	}
	status := http.StatusOK
	if err != nil {
		status, resp.Code = handlers.Classify(err)
		resp.Error = err.Error()
		resp.Fields = handlers.FieldsOf(err)
		if status == http.StatusUnauthorized {
			resp.Redirect = auth.LoginPath
		}
	} else {
		resp.Redirect = redirect
	}
	if after, ok := rec.ReloadAfter(); ok {
		ms := after.Milliseconds()
		resp.ReloadAfterMS = &ms
	}
	handlers.WriteJSON(w, status, resp)
}

// writeUnconfirmed answers a delete that still needs the user's confirmation
// with the prompt to show.
func writeUnconfirmed(w http.ResponseWriter, rec *ui.Recorder, prompt string, err error) {
	status, code := handlers.Classify(err)
	handlers.WriteJSON(w, status, flowResponse{
		Error:         err.Error(),
		Code:          code,
		Prompt:        prompt,
		Notifications: rec.Notifications(),
	})
}

// planTransition handles GET /views/projects/{id}/transitions/{target} and
// returns the form the browser must fill before executing it.
func (s *Server) planTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		auth.SendError(w, "project id must be a positive integer", "INVALID_ID", http.StatusBadRequest)
		return
	}
	target, err := url.PathUnescape(chi.URLParam(r, "target"))
	if err != nil || strings.TrimSpace(target) == "" {
		auth.SendError(w, "target status is required", "INVALID_TARGET", http.StatusBadRequest)
		return
	}

	c := s.client(r.Context())
	p, err := c.FindProject(r.Context(), id)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}

	exec := workflow.NewExecutor(c, ui.NewRecorder(), workflow.WithLogger(s.Logger))
	form, err := exec.Plan(r.Context(), p, models.ProjectStatus(target))
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, form)
}

// executeTransition handles POST /views/projects/{id}/transitions. The body is
// a JSON workflow.Submission, or a multipart form with that JSON in the
// "payload" field and an optional report archive.
func (s *Server) executeTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		auth.SendError(w, "project id must be a positive integer", "INVALID_ID", http.StatusBadRequest)
		return
	}

	var (
		sub    workflow.Submission
		report *workflow.ReportFile
	)
	if handlers.IsMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		rep, done, err := handlers.ReadReport(r, maxUploadBytes)
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		defer done()
		if err := json.Unmarshal([]byte(r.FormValue("payload")), &sub); err != nil {
			auth.SendError(w, "payload must be a JSON object", "INVALID_BODY", http.StatusBadRequest)
			return
		}
		report = rep
	} else if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		auth.SendError(w, "Invalid request body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(string(sub.Target)) == "" {
		handlers.WriteError(w, &workflow.ValidationError{Message: "O campo 'status' é obrigatório.", Fields: []string{"status"}})
		return
	}

	p, me, err := s.projectAndActor(r, id)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}

	rec := ui.NewRecorder()
	exec := workflow.NewExecutor(s.client(r.Context()), rec,
		workflow.WithReloadDelay(s.Config.ReloadDelay),
		workflow.WithLogger(s.Logger))

	protocol := workflow.ProtocolFor(p.Status, sub.Target)
	result, err := exec.Execute(r.Context(), workflow.Request{
		Project:  p,
		Target:   sub.Target,
		Actor:    me,
		Evidence: sub.Evidence(protocol, report),
	})
	s.Metrics.ObserveTransition(string(protocol), err)
	writeFlow(w, rec, result, err)
}

// taskFlows returns task flows reporting to rec.
func (s *Server) taskFlows(r *http.Request, rec *ui.Recorder) *tasks.Flows {
	return tasks.New(s.client(r.Context()), rec, tasks.WithLogger(s.Logger))
}

type createTaskRequest struct {
	tasks.Draft
	// BugFix marks a task drafted from a failed test.
	BugFix bool `json:"correcao,omitempty"`
}

// createTask handles POST /views/projects/{id}/tasks.
func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		auth.SendError(w, "project id must be a positive integer", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.SendError(w, "Invalid request body", "INVALID_BODY", http.StatusBadRequest)
		return
	}

	rec := ui.NewRecorder()
	flows := s.taskFlows(r, rec)
	var (
		task *models.Task
		err  error
	)
	if req.BugFix {
		task, err = flows.CreateFromFailedTest(r.Context(), id, req.Draft)
	} else {
		task, err = flows.Create(r.Context(), id, req.Draft)
	}
	s.Metrics.ObserveTaskFlow("create", err)
	if err == nil && task != nil {
		w.Header().Set("Location", "/views/tasks/"+task.ID)
	}
	writeFlow(w, rec, task, err)
}

// editTask handles PUT /views/tasks/{id}.
func (s *Server) editTask(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(chi.URLParam(r, "id"))
	var req tasks.Edit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.SendError(w, "Invalid request body", "INVALID_BODY", http.StatusBadRequest)
		return
	}

	rec := ui.NewRecorder()
	task, err := s.taskFlows(r, rec).Edit(r.Context(), taskID, req)
	s.Metrics.ObserveTaskFlow("edit", err)
	writeFlow(w, rec, task, err)
}

// deleteTask handles DELETE /views/tasks/{id}?confirm=true&nome=. Without
// confirm=true nothing is deleted and the prompt to show is returned.
func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	task := models.Task{
		ID:   strings.TrimSpace(chi.URLParam(r, "id")),
		Name: r.URL.Query().Get("nome"),
	}
	confirmed := r.URL.Query().Get("confirm") == "true"

	rec := ui.NewRecorder()
	var prompt string
	err := s.taskFlows(r, rec).Delete(r.Context(), task, func(p string) bool {
		prompt = p
		return confirmed
	})
	s.Metrics.ObserveTaskFlow("delete", err)
	if errors.Is(err, tasks.ErrNotConfirmed) {
		writeUnconfirmed(w, rec, prompt, err)
		return
	}
	writeFlow(w, rec, nil, err)
}
