// Package ports defines the contracts between the propagation core and the
// runtime it runs inside. Adapters implement them; the application layer
// depends only on these interfaces.
//
// Ambient-state collaborators are thread-scoped: every operation acts on the
// managed thread bound to the context (see WithThread). Operations invoked
// with no bound thread read as empty and write nothing.
package ports
