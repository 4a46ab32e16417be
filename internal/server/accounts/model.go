// Package accounts owns the account profile model and the login
// reconciliation flow between the external identity provider and the
// locally stored profiles.
package accounts

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleEditor        Role = "Editor"
	RoleAnalyst       Role = "Analyst"
	RoleViewer        Role = "Viewer"
)

// ParseRole matches a role name case-insensitively. Provider claims store
// roles in varying case depending on which script provisioned the account.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "administrator":
		return RoleAdministrator, true
	case "editor":
		return RoleEditor, true
	case "analyst":
		return RoleAnalyst, true
	case "viewer":
		return RoleViewer, true
	}
	return "", false
}

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Profile is a stored account record. PasswordHash is present only for
// legacy accounts that have not yet linked an external identity (and is
// retained after linking so logins survive provider outages). ExternalID
// is empty until the first successful external verification links it.
type Profile struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	Department   string
	Status       Status
	PasswordHash string
	ExternalID   string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// View is the sanitized shape returned to callers. It never carries the
// password hash or provider tokens.
type View struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Department  string     `json:"department"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (p *Profile) View() *View {
	return &View{
		ID:          p.ID,
		Name:        p.Name,
		Email:       p.Email,
		Role:        p.Role,
		Department:  p.Department,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		LastLoginAt: p.LastLoginAt,
	}
}

// NormalizeEmail lowercases and trims an email so every lookup and every
// stored record agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart returns the part before the @, used as a default display
// name when the provider supplies none.
func EmailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
