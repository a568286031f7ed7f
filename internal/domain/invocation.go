package domain

// InvocationType classifies how a component invocation came about.
type InvocationType string

const (
	// InvocationServlet is an invocation started by an inbound web request.
	InvocationServlet InvocationType = "servlet"

	// InvocationEJB is an invocation of a managed component method.
	InvocationEJB InvocationType = "ejb"

	// InvocationApplication is an invocation with no container-specific origin.
	InvocationApplication InvocationType = "application"

	// InvocationPropagated marks a record derived from another invocation so
	// that a submitted task can run on behalf of the submitter.
	InvocationPropagated InvocationType = "propagated"
)

// NamingEnvironment is the set of naming bindings visible to a component.
// It is shared by reference between records that propagate it.
type NamingEnvironment struct {
	Bindings map[string]any
}

// Lookup returns the binding for name.
func (n *NamingEnvironment) Lookup(name string) (any, bool) {
	if n == nil {
		return nil, false
	}

	v, ok := n.Bindings[name]

	return v, ok
}

// InvocationRecord identifies the logical caller on whose behalf code runs.
type InvocationRecord struct {
	ComponentID string
	Type        InvocationType

	// Container is an opaque reference to the hosting container.
	Container any

	AppName    string
	ModuleName string

	// Instance is the component instance that owns the invocation.
	Instance any

	// Naming is nil when naming bindings are not propagated.
	Naming *NamingEnvironment

	// ResourceTableKey disambiguates concurrent executions of the same
	// instance for the transaction subsystem. Reassigned on every install.
	ResourceTableKey *IdentityKey
}
