// Package cache provides a file-based cache for analyzer responses.
//
// Entries are keyed by a SHA-256 hash of the provider name, model and the
// full prompt pair. Each entry stores the raw response text with a creation
// timestamp and a TTL in seconds. Expired entries are skipped on read and
// removed during clear operations.
//
// The default directory is $XDG_CACHE_HOME/ipcheck. Prompts are built from
// bundle content after secret redaction, so nothing unredacted is written.
package cache
