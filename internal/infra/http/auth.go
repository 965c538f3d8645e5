package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"bizzshort/internal/domain"
	"bizzshort/internal/infra/auth/rbac"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	principalContextKey = "principal"

	editorRole = "editor"

	permContentRead  = "content:read"
	permContentWrite = "content:write"
	permUsersRead    = "users:read"
	permUsersWrite   = "users:write"
	permAuditRead    = "admin:audit"
)

// authenticate maps the configured API key headers to a principal. An empty
// principal means the caller sent no recognised key.
func (s *Server) authenticate(c *gin.Context) (domain.Principal, bool) {
	if key := strings.TrimSpace(c.GetHeader("X-Admin-Key")); key != "" {
		if keyMatches(key, s.adminAPIKey) {
			return domain.Principal{
				Subject: "admin-key",
				Roles:   []string{rbac.AdminRole},
				Scopes:  []string{rbac.AdminScope},
			}, true
		}
		return domain.Principal{}, false
	}
	if key := strings.TrimSpace(c.GetHeader("X-Editor-Key")); key != "" {
		if keyMatches(key, s.editorAPIKey) {
			return domain.Principal{
				Subject: "editor-key",
				Roles:   []string{editorRole},
				Scopes:  []string{permContentRead, permContentWrite},
			}, true
		}
		return domain.Principal{}, false
	}
	return domain.Principal{}, false
}

func keyMatches(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requireAuth authenticates the caller, then runs the role check and the
// policy bundle. It writes the error response itself when it returns false.
func (s *Server) requireAuth(c *gin.Context, resource, permission string) (domain.Principal, bool) {
	if s.authInitErr != nil {
		writeErrorCode(c, http.StatusInternalServerError, "AUTH_CONFIG_ERROR", "auth configuration error")
		return domain.Principal{}, false
	}
	principal, ok := s.authenticate(c)
	if !ok {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "valid X-Admin-Key or X-Editor-Key required")
		return domain.Principal{}, false
	}
	if s.authorizer != nil {
		if err := s.authorizer.Require(principal, resource, permission); err != nil {
			writeAuthzError(c, err)
			return domain.Principal{}, false
		}
	}
	if s.policy != nil {
		eval, err := s.policy.Evaluate(c.Request.Context(), domain.PolicyInput{
			Subject:    principal.Subject,
			Roles:      principal.Roles,
			Scopes:     principal.Scopes,
			Resource:   resource,
			Permission: permission,
		})
		if err != nil {
			s.log.Error("policy evaluation failed", zap.String("resource", resource), zap.Error(err))
			writeErrorCode(c, http.StatusInternalServerError, "POLICY_ERROR", "policy evaluation failed")
			return domain.Principal{}, false
		}
		if !eval.Result.Allow {
			code := "POLICY_DENIED"
			if len(eval.Result.Deny) > 0 {
				code = eval.Result.Deny[0].Code
			}
			writeErrorCode(c, http.StatusForbidden, code, "forbidden")
			return domain.Principal{}, false
		}
	}
	c.Set(principalContextKey, principal)
	return principal, true
}

func writeAuthzError(c *gin.Context, err error) {
	if authz, ok := rbac.IsAuthzError(err); ok {
		writeErrorCode(c, http.StatusForbidden, authz.Code, "forbidden")
		return
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
}

func readPermission(collection domain.Collection) string {
	if collection == domain.CollectionUsers {
		return permUsersRead
	}
	return permContentRead
}

func writePermission(collection domain.Collection) string {
	if collection == domain.CollectionUsers {
		return permUsersWrite
	}
	return permContentWrite
}
