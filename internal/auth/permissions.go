package auth

import (
	"errors"

	"pmo-dashboard/internal/models"
)

// ErrForbidden is returned by flows whose actor fails one of the checks below.
var ErrForbidden = errors.New("insufficient permissions")

// managesAll reports whether u may act on any project regardless of ownership.
func managesAll(u *models.User) bool {
	return u.HasAnyRole(models.RoleAdmin, models.RoleGerente)
}

// ownsOrManages grants Admin and Gerente access to every project and Membro
// access only to projects they are responsible for. A project without an owner
// is therefore out of reach for Membro.
func ownsOrManages(u *models.User, p *models.Project) bool {
	if u == nil || p == nil {
		return false
	}
	if managesAll(u) {
		return true
	}
	return u.HasRole(models.RoleMembro) && p.OwnerID() != 0 && p.OwnerID() == u.ID
}

// CanCreate reports whether u may create projects. Any user with a known role may.
func CanCreate(u *models.User) bool {
	return u != nil && models.IsValidRole(u.Role)
}

// CanView reports whether u may open p.
func CanView(u *models.User, p *models.Project) bool {
	return ownsOrManages(u, p)
}

// CanEdit reports whether u may edit p and its tasks.
func CanEdit(u *models.User, p *models.Project) bool {
	return ownsOrManages(u, p)
}

// CanDelete reports whether u may delete p.
func CanDelete(u *models.User, p *models.Project) bool {
	return ownsOrManages(u, p)
}

// CanChangeStatus reports whether u may move p through the workflow,
// including starting and finishing homologation cycles.
func CanChangeStatus(u *models.User, p *models.Project) bool {
	return ownsOrManages(u, p)
}

// CanViewFullReports reports whether u may see portfolio and QA reports.
func CanViewFullReports(u *models.User) bool {
	return u != nil && managesAll(u)
}

// CanEditRoles reports whether u may change other users' roles.
func CanEditRoles(u *models.User) bool {
	return u.HasRole(models.RoleAdmin)
}
