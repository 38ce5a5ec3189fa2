// Package logging builds the slog loggers used by the daemon and the CLI.
//
// Two output formats exist: a colorized single-line console format for
// operators and a JSON format for log shippers. Optional file output is
// rotated by lumberjack. WithContext stamps record IDs, stage names, and
// run tokens carried on a context onto a logger so every line emitted while
// a stage processes a video can be grepped by record.
package logging
