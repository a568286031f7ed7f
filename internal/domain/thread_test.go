package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewThread(t *testing.T) {
	t1 := NewThread("worker-a")
	t2 := NewThread("")

	assert.NotEqual(t, t1.ID(), t2.ID())
	assert.Equal(t, "worker-a", t1.Name())
	assert.Contains(t, t2.Name(), "thread-")
	assert.Contains(t, t1.String(), "worker-a#")
}

func TestThread_Locals(t *testing.T) {
	type slot struct{}

	th := NewThread("locals")

	_, ok := th.Local(slot{})
	assert.False(t, ok)

	th.SetLocal(slot{}, "value")
	v, ok := th.Local(slot{})
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	th.ClearLocal(slot{})
	_, ok = th.Local(slot{})
	assert.False(t, ok)
}

func TestTxStatus_String(t *testing.T) {
	assert.Equal(t, "active", TxStatusActive.String())
	assert.Equal(t, "marked-rollback", TxStatusMarkedRollback.String())
	assert.Equal(t, "unknown", TxStatus(99).String())
}

func TestSecurityContext_HasRole(t *testing.T) {
	var nilCtx *SecurityContext
	assert.False(t, nilCtx.HasRole("admin"))

	sc := &SecurityContext{Principal: "alice", Roles: []string{"admin", "user"}}
	assert.True(t, sc.HasRole("admin"))
	assert.False(t, sc.HasRole("auditor"))
}
