package domain

import (
	"log/slog"
	"slices"
)

// ClassLoader identifies the code-loading scope a component runs under.
// Snapshots capture it by reference; it is never cloned.
type ClassLoader struct {
	Name        string
	Application string
}

// SecurityContext is the caller identity a thread acts on behalf of.
// Snapshots capture it by reference.
type SecurityContext struct {
	Principal string
	Roles     []string

	// Credential is the raw credential the identity was established with.
	// It is redacted from logs.
	Credential string
}

// HasRole reports whether the security context carries role.
func (s *SecurityContext) HasRole(role string) bool {
	if s == nil {
		return false
	}

	return slices.Contains(s.Roles, role)
}

// LogValue implements slog.LogValuer. The credential is never emitted.
func (s *SecurityContext) LogValue() slog.Value {
	if s == nil {
		return slog.StringValue("<none>")
	}

	return slog.GroupValue(
		slog.String("principal", s.Principal),
		slog.Any("roles", s.Roles),
	)
}
