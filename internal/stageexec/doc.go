// Package stageexec drives a stage.Handler against the record store: claim,
// transform under a timeout, then commit or release. Every record-advancing
// job goes through Run, so the state machine is enforced in one place.
package stageexec
