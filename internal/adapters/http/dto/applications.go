package dto

import (
	"fmt"
	"strings"
	"time"
)

// ReservedPropertyPrefix marks execution properties set by the runtime.
const ReservedPropertyPrefix = "mc."

// ApplicationPath binds the :name route parameter.
type ApplicationPath struct {
	Name string `uri:"name" validate:"required,appname"`
}

// ApplicationResponse is one deployed application.
type ApplicationResponse struct {
	Name    string   `json:"name"`
	Modules []string `json:"modules"`

	// Configured is the enablement declared in configuration.
	Configured bool `json:"configured"`

	// Enabled is whether the application is running now.
	Enabled bool `json:"enabled"`
}

// ProbeRequest is the optional body of a probe submission.
type ProbeRequest struct {
	// IdentityName names the probe task in logs and spans.
	IdentityName string            `json:"identityName" validate:"omitempty,max=64"`
	Properties   map[string]string `json:"properties"   validate:"max=16,dive,keys,notempty,max=64,endkeys,max=256"`
}

// Validate rejects property keys the runtime reserves.
func (r *ProbeRequest) Validate() error {
	for k := range r.Properties {
		if strings.HasPrefix(k, ReservedPropertyPrefix) {
			return fmt.Errorf("property %q uses reserved prefix %q", k, ReservedPropertyPrefix)
		}
	}

	return nil
}

// ProbeResponse reports the ambient context a probe task observed while
// running on an executor worker.
type ProbeResponse struct {
	TaskID       string `json:"taskId"`
	Application  string `json:"application"`
	IdentityName string `json:"identityName,omitempty"`

	// Thread is the worker the probe ran on.
	Thread string `json:"thread"`

	// Principal is the caller identity seen by the task, empty if none.
	Principal   string   `json:"principal,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	ClassLoader string   `json:"classLoader,omitempty"`
	ComponentID string   `json:"componentId,omitempty"`

	// NamingPropagated reports whether naming bindings reached the task.
	NamingPropagated bool          `json:"namingPropagated"`
	Elapsed          time.Duration `json:"elapsedNs"`
}

// RealmsRequest binds the realm listing query.
type RealmsRequest struct {
	Target string `form:"target" validate:"omitempty,appname"`
}

// RealmsResponse lists auth realm names for a target.
type RealmsResponse struct {
	Target string   `json:"target"`
	Config string   `json:"config"`
	Realms []string `json:"realms"`
}

// ExecutorStatsResponse is a point-in-time view of the managed executor.
type ExecutorStatsResponse struct {
	Name          string `json:"name"`
	Workers       int    `json:"workers"`
	BusyWorkers   int64  `json:"busyWorkers"`
	QueueDepth    int    `json:"queueDepth"`
	QueueCapacity int    `json:"queueCapacity"`
	Completed     uint64 `json:"completed"`
	ShuttingDown  bool   `json:"shuttingDown"`
}
