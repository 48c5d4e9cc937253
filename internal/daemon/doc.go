// Package daemon coordinates the long-running studio process.
//
// It wires configuration, the entity store, the pipeline orchestrator, the
// review service, and the HTTP API into a single lifecycle with flock-based
// locking to prevent multiple instances. On start it rolls back pipelines
// interrupted by a previous crash.
//
// Keep orchestration logic here: pipeline steps live in workflow and the
// services packages while the daemon focuses on startup, shutdown, and
// wiring.
package daemon
