// Package preflight provides readiness checks for the data root, the
// compositor assets, and the credentials shortsfactory depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll at startup so a missing face video or a full
//     disk is visible before the first cycle.
//   - The CLI "shortsfactory status" command renders every Result and the
//     binary statuses from CheckSystemDeps.
//
// Stages reuse CheckFreeSpace and CheckFile in their Prepare step, where a
// failure aborts the run as a setup error.
package preflight
