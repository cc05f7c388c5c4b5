package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the authorization level embedded in every issued token.
type Role string

const (
	RoleUser    Role = "USER"
	RoleManager Role = "MANAGER"
)

// ParseRole maps a claim or request value onto a known role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleManager:
		return RoleManager, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Authority returns the granted-authority name for the role.
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

// TokenKind differentiates access vs refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Principal is the authentication context published for a single request.
type Principal struct {
	Subject     string
	Role        Role
	Authorities []string
}

// NewPrincipal builds the per-request context for subject.
func NewPrincipal(subject string, role Role) *Principal {
	return &Principal{
		Subject:     subject,
		Role:        role,
		Authorities: []string{role.Authority()},
	}
}

// HasRole reports whether the principal was issued the given role.
func (p *Principal) HasRole(role Role) bool {
	return p != nil && p.Role == role
}

// TokenPair is the credential set handed out on login and refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
