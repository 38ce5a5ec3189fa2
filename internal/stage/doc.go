// Package stage holds the contracts shared by every pipeline job: Handler for
// stages that advance records, Job for anything runnable by name, and the
// Summary a run reports.
package stage
