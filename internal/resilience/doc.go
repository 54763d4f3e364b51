// Package resilience provides the reliability primitives that wrap every
// outbound call: timeout, retry with exponential backoff, per-dependency
// circuit breakers, and rate limiting.
//
// All state lives in explicitly constructed values. Registries are plain
// structs injected into callers, not package globals, so concurrent
// searches share breakers and limiters without hidden process-wide state.
package resilience
