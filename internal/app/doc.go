// Package app contains the managed executor and the services that
// orchestrate runtime use cases. Tasks submitted to a ManagedExecutor run on
// pooled managed threads under the ambient context of their submitter; see
// package context for the capture and install protocol.
package app
