package internal

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pmo-dashboard/internal/apiclient"
	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/config"
	"pmo-dashboard/internal/handlers"
	"pmo-dashboard/internal/models"
)

// maxUploadBytes bounds multipart transition submissions.
const maxUploadBytes = 50 << 20

// Server is the dashboard's backend-for-frontend. It holds no project state:
// every view is built from backend calls made with the caller's own token.
type Server struct {
	Router  *chi.Mux
	API     *apiclient.Client
	Metrics *Metrics
	Logger  *zap.Logger
	Config  *config.Config

	now func() time.Time
}

// NewServer wires the routes against the backend at cfg.APIBaseURL.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics := NewMetrics()

	opts := []apiclient.Option{
		apiclient.WithLogger(logger.Named("apiclient")),
		apiclient.WithMetrics(apiclient.NewMetrics(metrics.Registry())),
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, apiclient.WithTimeout(cfg.HTTPTimeout))
	}

	s := &Server{
		Router:  chi.NewRouter(),
		API:     apiclient.New(cfg.APIBaseURL, nil, opts...),
		Metrics: metrics,
		Logger:  logger,
		Config:  cfg,
		now:     time.Now,
	}

	// Middlewares must be registered before any route on a chi mux
	s.Router.Use(RequestLogger(logger))
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
	}

	// Public routes
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	if cfg.EnableMetrics {
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}
	s.Router.Post("/auth/login", s.login)
	s.Router.Post("/auth/register", s.register)

	// Protected routes forward the caller's bearer token upstream
	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.clock))
		s.mountProtectedRoutes(r)
	})

	return s
}

// ServeHTTP makes the server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) clock() time.Time {
	return s.now()
}

// client returns a backend client that authenticates as the request's caller.
func (s *Server) client(ctx context.Context) *apiclient.Client {
	return s.API.WithTokens(apiclient.NewMemoryTokenStore(auth.TokenFromContext(ctx)))
}

func (s *Server) currentUser(ctx context.Context) (*models.User, error) {
	return s.client(ctx).CurrentUser(ctx)
}

// mountProtectedRoutes mounts all routes that require a bearer token
func (s *Server) mountProtectedRoutes(r chi.Router) {
	// Dashboards
	r.Get("/views/dashboard", s.dashboardView)
	r.Get("/views/me", s.personalView)
	r.Get("/views/roadmap", s.roadmapView)
	r.Get("/views/reports/overview", s.overviewReport)
	r.Get("/views/export/projects.xlsx", s.exportProjects)

	// Project detail and status workflow
	r.Get("/views/projects/{id}", s.projectView)
	r.Get("/views/projects/{id}/transitions/{target}", s.planTransition)
	r.Post("/views/projects/{id}/transitions", s.executeTransition)

	// Homologation cycles
	r.Get("/views/homologations/{id}/tests", s.cycleTestsView)
	reports := handlers.NewReportsHandler(func(r *http.Request) handlers.ReportUploader {
		return s.client(r.Context())
	}, s.Logger)
	r.Post("/views/homologations/{id}/report", reports.UploadReport)

	// Tasks
	r.Post("/views/projects/{id}/tasks", s.createTask)
	r.Put("/views/tasks/{id}", s.editTask)
	r.Delete("/views/tasks/{id}", s.deleteTask)

	// Forms that act as the resolved caller. Each handler checks its own permission.
	r.Group(func(r chi.Router) {
		r.Use(auth.LoadUser(s.currentUser))
		r.Get("/views/profile", s.profileView)
		r.Put("/views/profile", s.updateProfile)

		r.Get("/views/projects/form", s.newProjectForm)
		r.Post("/views/projects", s.createProject)
		r.Get("/views/projects/{id}/form", s.editProjectForm)
		r.Put("/views/projects/{id}", s.updateProject)
		r.Delete("/views/projects/{id}", s.deleteProject)

		r.Get("/views/admin/users", s.usersView)
		r.Put("/views/admin/users/{id}/role", s.changeRole)
	})

	// Full reports - Admin and Gerente only
	r.Group(func(r chi.Router) {
		r.Use(auth.LoadUser(s.currentUser))
		r.Use(auth.MustRole(models.RoleAdmin, models.RoleGerente))
		r.Get("/views/reports/portfolio", s.portfolioReport)
		r.Get("/views/reports/qa", s.qaReport)
	})
}
