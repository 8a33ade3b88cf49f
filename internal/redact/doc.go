// Package redact removes secrets from bundle content before it is sent to
// an analysis service or written to the response cache.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS access keys, bearer tokens, URLs carrying inline
// credentials and provider-specific tokens.
//
// Files whose names match configured glob patterns have their entire
// content replaced instead of being scanned.
package redact
