// Package services defines shared utilities consumed by the job handlers and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp record IDs, stage names, run tokens, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the stage runner
//     tell setup failures, permanent record failures, and retryable failures apart.
//
// Subpackages wrap the external collaborators (whisper, yt-dlp, Reddit, the LLM,
// Metricool, and the temporary upload host).
package services
