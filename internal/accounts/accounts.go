// Package accounts implements self registration, profile editing and role changes.
package accounts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/models"
	"pmo-dashboard/internal/ui"
)

// MinPasswordLength is the shortest password registration accepts.
const MinPasswordLength = 6

// ValidationError reports a form that cannot be submitted. No request is sent.
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

// API is the part of the backend client the account flows call.
type API interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error)
	UpdateUserRole(ctx context.Context, userID int64, role string) (*models.User, error)
}

// Registration is the sign-up form.
type Registration struct {
	FullName string `json:"nome_completo"`
	Email    string `json:"email"`
	Password string `json:"senha"`
}

// Validate requires every field, an address with an @ and a password of
// at least MinPasswordLength characters.
func (r Registration) Validate() error {
	var missing []string
	if strings.TrimSpace(r.FullName) == "" {
		missing = append(missing, "nome_completo")
	}
	if strings.TrimSpace(r.Email) == "" {
		missing = append(missing, "email")
	}
	if r.Password == "" {
		missing = append(missing, "senha")
	}
	if len(missing) > 0 {
		return &ValidationError{Message: "Por favor, preencha todos os campos.", Fields: missing}
	}
	if !strings.Contains(r.Email, "@") {
		return &ValidationError{Message: "Informe um email válido.", Fields: []string{"email"}}
	}
	if len([]rune(r.Password)) < MinPasswordLength {
		return &ValidationError{
			Message: fmt.Sprintf("A senha deve ter no mínimo %d caracteres.", MinPasswordLength),
			Fields:  []string{"senha"},
		}
	}
	return nil
}

// ProfileEdit is the profile form. Position and phone may be cleared.
type ProfileEdit struct {
	FullName string `json:"nome_completo"`
	Position string `json:"cargo"`
	Phone    string `json:"telefone"`
}

// ProfileFrom pre-fills the profile form with u's current values.
func ProfileFrom(u *models.User) ProfileEdit {
	e := ProfileEdit{FullName: u.FullName}
	if u.Position != nil {
		e.Position = *u.Position
	}
	if u.Phone != nil {
		e.Phone = *u.Phone
	}
	return e
}

// Validate requires a name.
func (e ProfileEdit) Validate() error {
	if strings.TrimSpace(e.FullName) == "" {
		return &ValidationError{Message: "O nome completo é obrigatório.", Fields: []string{"nome_completo"}}
	}
	return nil
}

func (e ProfileEdit) request() models.UpdateProfileRequest {
	name := strings.TrimSpace(e.FullName)
	position := strings.TrimSpace(e.Position)
	phone := strings.TrimSpace(e.Phone)
	return models.UpdateProfileRequest{FullName: &name, Position: &position, Phone: &phone}
}

// Flows runs the account forms against the backend.
type Flows struct {
	api       API
	presenter ui.Presenter
	logger    *zap.Logger
}

// Option configures Flows.
type Option func(*Flows)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Flows) { f.logger = l }
}

// New returns account flows reporting to presenter.
func New(api API, presenter ui.Presenter, opts ...Option) *Flows {
	f := &Flows{api: api, presenter: presenter, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register creates a Membro account. The caller is expected to send the
// user to the login page afterwards; no session is opened.
func (f *Flows) Register(ctx context.Context, r Registration) (*models.User, error) {
	if err := r.Validate(); err != nil {
		f.presenter.Notify(ui.LevelError, err.Error())
		return nil, err
	}
	var u *models.User
	err := f.submit("register", func() error {
		var err error
		u, err = f.api.Register(ctx, models.RegisterRequest{
			FullName: strings.TrimSpace(r.FullName),
			Email:    strings.TrimSpace(r.Email),
			Password: r.Password,
		})
		return err
	}, "Erro no registro: ", "Registro realizado com sucesso! Você já pode fazer login.")
	return u, err
}

// UpdateProfile saves the caller's own profile.
func (f *Flows) UpdateProfile(ctx context.Context, e ProfileEdit) (*models.User, error) {
	if err := e.Validate(); err != nil {
		f.presenter.Notify(ui.LevelError, err.Error())
		return nil, err
	}
	var u *models.User
	err := f.submit("profile", func() error {
		var err error
		u, err = f.api.UpdateProfile(ctx, e.request())
		return err
	}, "Erro ao atualizar perfil: ", "Perfil atualizado com sucesso!")
	if err == nil {
		f.presenter.Reload(0)
	}
	return u, err
}

// ChangeRole sets userID's role. Only Admin may, and role must be one of
// models.ValidRoles in any casing.
func (f *Flows) ChangeRole(ctx context.Context, actor *models.User, userID int64, role string) (*models.User, error) {
	if !auth.CanEditRoles(actor) {
		f.presenter.Notify(ui.LevelError, "Apenas administradores podem alterar papéis.")
		return nil, auth.ErrForbidden
	}
	if !models.IsValidRole(role) {
		err := &ValidationError{
			Message: fmt.Sprintf("Papel inválido: %q. Use %s.", role, strings.Join(models.ValidRoles, ", ")),
			Fields:  []string{"role"},
		}
		f.presenter.Notify(ui.LevelError, err.Error())
		return nil, err
	}
	role = models.NormalizeRole(role)
	var u *models.User
	err := f.submit("role", func() error {
		var err error
		u, err = f.api.UpdateUserRole(ctx, userID, role)
		return err
	}, "Erro ao atualizar papel: ", fmt.Sprintf("Papel do usuário atualizado para %s.", role))
	if err == nil {
		f.presenter.Reload(0)
	}
	return u, err
}

func (f *Flows) submit(action string, call func() error, failure, success string) error {
	f.presenter.SetBusy(true, action)
	defer f.presenter.SetBusy(false, action)
	if err := call(); err != nil {
		f.logger.Warn("account flow failed", zap.String("action", action), zap.Error(err))
		f.presenter.Notify(ui.LevelError, failure+err.Error())
		return err
	}
	f.presenter.Notify(ui.LevelSuccess, success)
	return nil
}
