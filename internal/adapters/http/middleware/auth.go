package middleware

import (
	"cmp"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/managed-concurrency/internal/adapters/http/dto"
	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/config"
)

const (
	// ContextKeyClaims is the gin context key for the caller's claims.
	ContextKeyClaims = "claims"

	defaultSubjectHeader = "X-User-ID"
	defaultRolesHeader   = "X-User-Roles"
)

// Claims is the caller identity forwarded by the gateway. The gateway
// validates credentials; this service trusts the headers.
type Claims struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the caller holds role.
func (c *Claims) HasRole(role string) bool {
	return c != nil && slices.Contains(c.Roles, role)
}

// SecurityContext converts the claims into the identity installed on the
// request's managed thread. It returns nil for an anonymous caller.
func (c *Claims) SecurityContext() *domain.SecurityContext {
	if c == nil || c.Subject == "" {
		return nil
	}

	return &domain.SecurityContext{
		Principal: c.Subject,
		Roles:     slices.Clone(c.Roles),
	}
}

// ExtractClaims reads the caller identity from the configured headers.
func ExtractClaims(c *gin.Context, cfg *config.AuthConfig) *Claims {
	subjectHeader, rolesHeader := defaultSubjectHeader, defaultRolesHeader
	if cfg != nil {
		subjectHeader = cmp.Or(cfg.SubjectHeader, subjectHeader)
		rolesHeader = cmp.Or(cfg.RolesHeader, rolesHeader)
	}

	return &Claims{
		Subject: strings.TrimSpace(c.GetHeader(subjectHeader)),
		Roles:   splitRoles(c.GetHeader(rolesHeader)),
	}
}

// GetClaims returns the claims stored by Authenticate, or nil.
func GetClaims(c *gin.Context) *Claims {
	claims, _ := c.Value(ContextKeyClaims).(*Claims)
	return claims
}

// Authenticate extracts the caller's claims. With auth enabled a request
// without a subject is rejected; with auth disabled anonymous callers pass.
func Authenticate(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ExtractClaims(c, cfg)

		if authEnabled(cfg) && claims.Subject == "" {
			abortWith(c, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "authentication required")
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireRole rejects callers without role. It is a no-op when auth is
// disabled.
func RequireRole(cfg *config.AuthConfig, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authEnabled(cfg) {
			c.Next()
			return
		}

		claims := GetClaims(c)
		if claims == nil {
			claims = ExtractClaims(c, cfg)
			c.Set(ContextKeyClaims, claims)
		}

		if !claims.HasRole(role) {
			abortWith(c, http.StatusForbidden, dto.ErrorCodeForbidden, "insufficient permissions: role "+role+" required")
			return
		}

		c.Next()
	}
}

func authEnabled(cfg *config.AuthConfig) bool {
	return cfg != nil && cfg.Enabled
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message).WithTraceID(dto.GetTraceID(c)))
}

// splitRoles parses a comma-separated role list, dropping blanks.
func splitRoles(header string) []string {
	var roles []string

	for role := range strings.SplitSeq(header, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}

	return roles
}
