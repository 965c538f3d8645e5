package rbac

import (
	"errors"
	"strings"

	"bizzshort/internal/domain"
)

const (
	AdminRole  = "admin"
	AdminScope = "admin:*"
)

// Resources that only administrators may touch regardless of scopes.
var restrictedResources = map[string]struct{}{
	string(domain.CollectionUsers): {},
	"audit":                        {},
}

type AuthzError struct {
	Code string
	Err  error
}

func (e *AuthzError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code
}

func (e *AuthzError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type Authorizer struct {
	adminRole  string
	adminScope string
}

func NewAuthorizer() *Authorizer {
	return &Authorizer{
		adminRole:  AdminRole,
		adminScope: AdminScope,
	}
}

func (a *Authorizer) Require(principal domain.Principal, resource string, permission string) error {
	if principal.Subject == "" {
		return domain.ErrUnauthorized
	}
	if permission == "" {
		return nil
	}
	if a.hasAdmin(principal) {
		return nil
	}
	if _, ok := restrictedResources[resource]; ok {
		return &AuthzError{Code: "MISSING_ROLE", Err: domain.ErrForbidden}
	}
	if strings.HasPrefix(permission, "admin:") {
		return &AuthzError{Code: "MISSING_ROLE", Err: domain.ErrForbidden}
	}
	if !hasScope(principal, permission) {
		return &AuthzError{Code: "MISSING_SCOPE", Err: domain.ErrForbidden}
	}
	return nil
}

func (a *Authorizer) hasAdmin(principal domain.Principal) bool {
	if hasRole(principal, a.adminRole) {
		return true
	}
	return hasScope(principal, a.adminScope)
}

func hasRole(principal domain.Principal, role string) bool {
	for _, r := range principal.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func hasScope(principal domain.Principal, scope string) bool {
	if scope == "" {
		return false
	}
	for _, s := range principal.Scopes {
		if s == scope || s == AdminScope {
			return true
		}
	}
	return false
}

func IsAuthzError(err error) (*AuthzError, bool) {
	var authz *AuthzError
	if errors.As(err, &authz) {
		return authz, true
	}
	return nil, false
}
