package context

import (
	"maps"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
)

// Kind distinguishes the handles the provider hands out.
type Kind string

const (
	// KindCaptured is the state read at submission time.
	KindCaptured Kind = "captured"

	// KindRestorePoint is the thread state displaced by an install.
	KindRestorePoint Kind = "restore-point"
)

// PropertyIdentityName names the task for logs and spans.
const PropertyIdentityName = "identity-name"

// Handle is an opaque context handle. The provider only acts on handles it
// created itself; anything else is logged and ignored.
type Handle interface {
	Kind() Kind
}

// Snapshot is an immutable record of ambient context. Once built, only the
// resource-table key of its invocation record changes, and only during install.
type Snapshot struct {
	kind        Kind
	invocation  *domain.InvocationRecord
	classLoader *domain.ClassLoader
	security    *domain.SecurityContext
	properties  map[string]string

	// On restore points, whether install replaced the slot. The previous
	// value may legitimately be nil, so presence alone is not enough.
	loaderSwapped   bool
	securitySwapped bool
}

var _ Handle = (*Snapshot)(nil)

// Kind implements Handle.
func (s *Snapshot) Kind() Kind {
	return s.kind
}

// Invocation returns the snapshot's invocation record, or nil.
func (s *Snapshot) Invocation() *domain.InvocationRecord {
	return s.invocation
}

// ClassLoader returns the captured or displaced class loader, or nil.
func (s *Snapshot) ClassLoader() *domain.ClassLoader {
	return s.classLoader
}

// SecurityContext returns the captured or displaced security context, or nil.
func (s *Snapshot) SecurityContext() *domain.SecurityContext {
	return s.security
}

// Properties returns a copy of the execution properties given at capture.
func (s *Snapshot) Properties() map[string]string {
	return maps.Clone(s.properties)
}

// IdentityName returns the identity-name property, or "".
func (s *Snapshot) IdentityName() string {
	return s.properties[PropertyIdentityName]
}

func (s *Snapshot) appName() string {
	if s.invocation == nil {
		return ""
	}

	return s.invocation.AppName
}
