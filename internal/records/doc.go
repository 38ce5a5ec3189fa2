// Package records persists video records and enforces their status state machine.
//
// Every record moves forward one stage at a time: collected, transcribed,
// edited, captioned, published, then deleted (the row is removed). A stage
// claims a record by moving it into a processing marker with a conditional
// update, so two runners can never work on the same record. Commit writes the
// new status and its payload in one transaction (for publishing, together with
// the daily quota charge); Release puts the record back, counting the attempt,
// and parks it in failed once attempts run out.
//
// Timestamps are stored as fixed-width UTC strings. Calendar days for the
// publish quota are computed in the configured zone.
package records
