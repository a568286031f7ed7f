package context

import "github.com/jsamuelsen/managed-concurrency/internal/domain"

// InvocationFactory derives the invocation record a propagated task runs
// under. Derived records never alias the source, which the caller may pop or
// mutate after capture returns.
type InvocationFactory struct {
	propagateNaming bool
}

// NewInvocationFactory creates a factory. Naming bindings are copied only
// when propagateNaming is set.
func NewInvocationFactory(propagateNaming bool) *InvocationFactory {
	return &InvocationFactory{propagateNaming: propagateNaming}
}

// Derive returns a new record carrying src's identity, or nil for a nil src.
func (f *InvocationFactory) Derive(src *domain.InvocationRecord) *domain.InvocationRecord {
	if src == nil {
		return nil
	}

	derived := &domain.InvocationRecord{
		ComponentID: src.ComponentID,
		Type:        domain.InvocationPropagated,
		Container:   src.Container,
		AppName:     src.AppName,
		ModuleName:  src.ModuleName,
		Instance:    src.Instance,
	}

	if f.propagateNaming {
		derived.Naming = src.Naming
	}

	return derived
}
