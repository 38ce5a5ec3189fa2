// Package daemon coordinates the long-running shortsfactory process.
//
// It wires the record store, the pipeline coordinator, the optional per-job
// scheduler, and the HTTP control surface into a single lifecycle with
// flock-based locking to prevent multiple instances. On startup it returns
// records left mid-stage by a crashed run to their previous status.
//
// Keep orchestration logic here: individual jobs live in their own packages
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
