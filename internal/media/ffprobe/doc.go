// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Client: runs ffprobe through a media.Runner so tests can fake it
//
// Helper methods on Result answer the two questions the pipeline asks of a
// clip: how long it is and whether it has an audio track.
package ffprobe
