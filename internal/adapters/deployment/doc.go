// Package deployment answers whether an application is still deployed and
// enabled. It backs the liveness check that stops submitted work from
// running under an application that went away after submission.
//
// The configured application set lives in a Registry. Runtime enablement
// overrides live in a StatusStore, either in memory or in Redis so that all
// instances of the runtime agree. A BreakerStore in front of Redis fails
// lookups fast while the store is unreachable. The Watcher reloads the application set
// from a YAML file when it changes.
package deployment
