// Package ambient provides in-memory implementations of the thread-scoped
// collaborators: invocation stack, security context, class loader and
// transaction association. State lives in slots on the managed thread bound
// to the context, so a thread's state is only ever touched by the goroutine
// currently running it.
package ambient
