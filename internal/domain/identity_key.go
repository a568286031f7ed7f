package domain

import (
	"fmt"
	"hash/maphash"
	"reflect"
)

var identitySeed = maphash.MakeSeed()

// Hasher lets instance types supply their own hash for IdentityKey.
// Implementations must keep Hash consistent with ==, or with
// reflect.DeepEqual when the value holds maps, slices or funcs.
type Hasher interface {
	Hash() uint64
}

// IdentityKey pairs a component instance with the thread executing it.
// Either side may be absent.
type IdentityKey struct {
	instance any
	thread   *Thread
	hash     uint64
}

// NewIdentityKey builds the key for instance running on thread.
func NewIdentityKey(instance any, thread *Thread) *IdentityKey {
	var h uint64
	if instance != nil {
		h = 7 * hashInstance(instance)
	}

	if thread != nil {
		h += thread.ID()
	}

	return &IdentityKey{instance: instance, thread: thread, hash: h}
}

// Instance returns the owning component instance.
func (k *IdentityKey) Instance() any {
	return k.instance
}

// Thread returns the executing thread.
func (k *IdentityKey) Thread() *Thread {
	return k.thread
}

// Hash returns 7*hash(instance) + hash(thread), omitting absent operands.
func (k *IdentityKey) Hash() uint64 {
	return k.hash
}

// Equal reports structural equality: both instances equal (or both absent)
// and both threads the same (or both absent).
func (k *IdentityKey) Equal(other *IdentityKey) bool {
	if k == other {
		return true
	}

	if k == nil || other == nil {
		return false
	}

	return instancesEqual(k.instance, other.instance) && k.thread == other.thread
}

// String implements fmt.Stringer.
func (k *IdentityKey) String() string {
	return fmt.Sprintf("IdentityKey{instance=%v, thread=%v}", k.instance, k.thread)
}

func hashInstance(v any) uint64 {
	if h, ok := v.(Hasher); ok {
		return h.Hash()
	}

	// The dynamic value decides: a struct field of interface type may hold
	// a map even though the struct type itself is comparable.
	rv := reflect.ValueOf(v)
	if rv.Comparable() {
		return maphash.Comparable(identitySeed, v)
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return maphash.Comparable(identitySeed, rv.Pointer())
	default:
		// Structs and arrays holding uncomparable values are matched with
		// reflect.DeepEqual, so only the type can feed the hash.
		return maphash.String(identitySeed, rv.Type().String())
	}
}

func instancesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	if va.Comparable() && vb.Comparable() {
		return a == b
	}

	switch va.Kind() {
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	default:
		return reflect.DeepEqual(a, b)
	}
}
