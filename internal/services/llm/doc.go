// Package llm provides a JSON-mode chat client for OpenAI-compatible APIs.
//
// Script writing and image prompt generation both ask the model for a JSON
// object and decode it with DecodeLLMJSON, which tolerates code fences and
// leading prose.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, network timeouts, and empty
// completions with exponential backoff (base 1s, max 10s, 3 attempts by
// default). Context cancellation aborts retries immediately.
package llm
