// Package llm provides an OpenAI-compatible chat client used to write publish
// captions.
//
// # Configuration
//
// Requires api_key; model, base_url, max_tokens, temperature and timeout
// default to gpt-4o-mini against the OpenAI endpoint. When no key is present
// the description job reports a setup failure instead of calling out.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send one user prompt, receive the reply text.
// IsPermanent: tell a rejected request apart from a transient failure.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty replies, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Retry-After is honoured. Context cancellation aborts retries
// immediately.
package llm
