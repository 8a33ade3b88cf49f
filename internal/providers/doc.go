// Package providers implements the Analyzer interface for OpenAI-compatible
// chat completions services.
//
// Supported presets: Perplexity (default), OpenAI, and Ollama / LMStudio for
// local models. Each call is a single request with an optional per-call
// timeout; retries are the caller's decision.
//
// Failures are typed ([UpstreamError], [TimeoutError], [TransportError]) so
// callers can classify them with [IsRetryable], [IsRateLimited], [IsTimeout]
// and [IsAuthError].
//
// Use [New] to obtain an Analyzer by provider name and model string.
package providers
