// Package config loads, normalizes, and validates shortsfactory configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables used by
// container deployments: DATA_PATH, PORT, and CRON_INTERVAL override the file,
// while credentials such as METRICOOL_TOKEN, OPENAI_API_KEY, FACE_VIDEO_PATH,
// and GMAIL_USER fill in values the file leaves empty.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical platform names, and clear validation errors.
package config
