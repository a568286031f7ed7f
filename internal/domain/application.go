package domain

import "slices"

// Application is a deployable unit as described by server configuration.
type Application struct {
	Name    string
	Modules []string

	// Enabled is the configured state. The deployment collaborator decides
	// whether the application is currently running.
	Enabled bool
}

// HasModule reports whether the application contains module.
func (a *Application) HasModule(module string) bool {
	return slices.Contains(a.Modules, module)
}

// AuthRealm is a configured authentication realm.
type AuthRealm struct {
	Name      string
	ClassName string
}

// ServerConfig is a named configuration that owns a security service.
type ServerConfig struct {
	Name       string
	AuthRealms []AuthRealm
}

// ServerRef is a named server or cluster and the configuration it references.
type ServerRef struct {
	Name      string
	ConfigRef string
}
