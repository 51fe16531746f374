package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pmo-dashboard/internal/accounts"
	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/handlers"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/projects"
	"pmo-dashboard/internal/ui"
)

// dashboardPath is where the browser lands after a project is deleted.
const dashboardPath = "/index.html"

func (s *Server) projectFlows(r *http.Request, rec *ui.Recorder) *projects.Flows {
	return projects.New(s.client(r.Context()), rec,
		projects.WithReloadDelay(s.Config.ReloadDelay),
		projects.WithLogger(s.Logger))
}

func (s *Server) accountFlows(r *http.Request, rec *ui.Recorder) *accounts.Flows {
	return accounts.New(s.client(r.Context()), rec, accounts.WithLogger(s.Logger))
}

type projectFormResponse struct {
	Schema *models.ProjectSchema `json:"schema"`
	Values *projects.Draft       `json:"valores,omitempty"`
}

// newProjectForm handles GET /views/projects/form.
func (s *Server) newProjectForm(w http.ResponseWriter, r *http.Request) {
	if !auth.CanCreate(auth.UserFromContext(r.Context())) {
		handlers.WriteError(w, auth.ErrForbidden)
		return
	}
	schema, err := s.client(r.Context()).ProjectSchema(r.Context())
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, projectFormResponse{Schema: schema})
}

// editProjectForm handles GET /views/projects/{id}/form: the schema plus
// the project's current values.
func (s *Server) editProjectForm(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	if !auth.CanEdit(auth.UserFromContext(r.Context()), p) {
		handlers.WriteError(w, auth.ErrForbidden)
		return
	}
	schema, err := s.client(r.Context()).ProjectSchema(r.Context())
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	values := projects.DraftFrom(p)
	handlers.WriteJSON(w, http.StatusOK, projectFormResponse{Schema: schema, Values: &values})
}

// createProject handles POST /views/projects.
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var d projects.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		auth.SendError(w, "Invalid request body", "INVALID_BODY", http.StatusBadRequest)
		return
	}

	rec := ui.NewRecorder()
	p, err := s.projectFlows(r, rec).Create(r.Context(), auth.UserFromContext(r.Context()), d)
	s.Metrics.ObserveForm("project", "create", err)
	if err == nil && p != nil {
		w.Header().Set("Location", fmt.Sprintf("/views/projects/%d", p.ID))
	}
	writeFlow(w, rec, p, err)
}

// updateProject handles PUT /views/projects/{id}.
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var d projects.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		auth.SendError(w, "Invalid request body", "INVALID_BODY", http.StatusBadRequest)
		return
	}
	p, ok := s.loadProject(w, r)
	if !ok {
		return
	}

	rec := ui.NewRecorder()
	updated, err := s.projectFlows(r, rec).Edit(r.Context(), auth.UserFromContext(r.Context()), p, d)
	s.Metrics.ObserveForm("project", "edit", err)
	writeFlow(w, rec, updated, err)
}

// deleteProject handles DELETE /views/projects/{id}?confirm=true. Without
// confirm=true nothing is deleted and the prompt to show is returned.
func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadProject(w, r)
	if !ok {
		return
	}
	confirmed := r.URL.Query().Get("confirm") == "true"

	rec := ui.NewRecorder()
	var prompt string
	err := s.projectFlows(r, rec).Delete(r.Context(), auth.UserFromContext(r.Context()), p, func(q string) bool {
		prompt = q
		return confirmed
	})
	s.Metrics.ObserveForm("project", "delete", err)
	if errors.Is(err, projects.ErrNotConfirmed) {
		writeUnconfirmed(w, rec, prompt, err)
		return
	}
	writeFlowRedirect(w, rec, nil, err, dashboardPath)
}

// loadProject fetches the project named by the id URL parameter, writing
// the error response itself when it cannot.
func (s *Server) loadProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		auth.SendError(w, "project id must be a positive integer", "INVALID_ID", http.StatusBadRequest)
		return nil, false
	}
	p, err := s.client(r.Context()).FindProject(r.Context(), id)
	if err != nil {
		handlers.WriteError(w, err)
		return nil, false
	}
	return p, true
}

// register handles POST /auth/register. New accounts are Membro and must
// sign in afterwards.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req accounts.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.SendError(w, "Invalid request body", "INVALID_BODY", http.StatusBadRequest)
		return
	}

	rec := ui.NewRecorder()
	u, err := s.accountFlows(r, rec).Register(r.Context(), req)
	s.Metrics.ObserveForm("account", "register", err)
	writeFlowRedirect(w, rec, u, err, auth.LoginPath)
}

type profileResponse struct {
	User *models.User         `json:"usuario"`
	Form accounts.ProfileEdit `json:"formulario"`
}

// profileView handles GET /views/profile.
func (s *Server) profileView(w http.ResponseWriter, r *http.Request) {
	me := auth.UserFromContext(r.Context())
	handlers.WriteJSON(w, http.StatusOK, profileResponse{User: me, Form: accounts.ProfileFrom(me)})
}

// updateProfile handles PUT /views/profile.
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req accounts.ProfileEdit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.SendError(w, "Invalid request body", "INVALID_BODY", http.StatusBadRequest)
		return
	}

	rec := ui.NewRecorder()
	u, err := s.accountFlows(r, rec).UpdateProfile(r.Context(), req)
	s.Metrics.ObserveForm("account", "profile", err)
	writeFlow(w, rec, u, err)
}

type usersResponse struct {
	Users []models.User `json:"usuarios"`
	Roles []string      `json:"papeis"`
}

// usersView handles GET /views/admin/users.
func (s *Server) usersView(w http.ResponseWriter, r *http.Request) {
	if !auth.CanEditRoles(auth.UserFromContext(r.Context())) {
		handlers.WriteError(w, auth.ErrForbidden)
		return
	}
	users, err := s.client(r.Context()).Users(r.Context())
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, usersResponse{Users: users, Roles: models.ValidRoles})
}

// changeRole handles PUT /views/admin/users/{id}/role.
func (s *Server) changeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		auth.SendError(w, "user id must be a positive integer", "INVALID_ID", http.StatusBadRequest)
		return
	}
	var req models.RoleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.SendError(w, "Invalid request body", "INVALID_BODY", http.StatusBadRequest)
		return
	}

	rec := ui.NewRecorder()
	u, err := s.accountFlows(r, rec).ChangeRole(r.Context(), auth.UserFromContext(r.Context()), id, req.Role)
	s.Metrics.ObserveForm("account", "role", err)
	writeFlow(w, rec, u, err)
}
