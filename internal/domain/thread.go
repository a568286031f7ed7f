package domain

import (
	"fmt"
	"sync/atomic"
)

var threadSeq atomic.Uint64

// Thread is the explicit carrier of a worker's ambient execution state:
// class loader, security context, invocation stack and transaction
// association. Schedulers hand it to task execution through the
// context.Context instead of relying on goroutine-local storage.
//
// A Thread is confined to one goroutine at a time. Its slots are not
// synchronised.
type Thread struct {
	id     uint64
	name   string
	locals map[any]any
}

// NewThread creates a thread with a process-unique ID.
func NewThread(name string) *Thread {
	id := threadSeq.Add(1)
	if name == "" {
		name = fmt.Sprintf("thread-%d", id)
	}

	return &Thread{
		id:     id,
		name:   name,
		locals: make(map[any]any),
	}
}

// ID returns the process-unique thread identifier.
func (t *Thread) ID() uint64 {
	return t.id
}

// Name returns the thread's display name.
func (t *Thread) Name() string {
	return t.name
}

// Local returns the value stored in the slot identified by key.
func (t *Thread) Local(key any) (any, bool) {
	v, ok := t.locals[key]
	return v, ok
}

// SetLocal stores value in the slot identified by key.
func (t *Thread) SetLocal(key, value any) {
	t.locals[key] = value
}

// ClearLocal removes the slot identified by key.
func (t *Thread) ClearLocal(key any) {
	delete(t.locals, key)
}

// String implements fmt.Stringer.
func (t *Thread) String() string {
	return fmt.Sprintf("%s#%d", t.name, t.id)
}
