// Package provider implements the LLM gateway: one Client interface
// over heterogeneous provider wire contracts (OpenAI-compatible,
// Anthropic, local Ollama-style), with normalized token usage.
package provider

import "context"

// Name identifies a provider wire contract.
type Name string

const (
	// NameOpenAI uses the OpenAI chat-completions contract directly
	NameOpenAI Name = "openai"
	// NameOpenRouter uses the same contract via OpenRouter.ai, with
	// optional post-call usage enrichment
	NameOpenRouter Name = "openrouter"
	// NameAnthropic uses the Anthropic Messages API
	NameAnthropic Name = "anthropic"
	// NameLocal uses an Ollama-style local inference server
	NameLocal Name = "local"
)

// Request is the provider-agnostic invocation request for one purpose:
// a system/user message pair plus sampling parameters.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
}

// TokenSource says whether token counts came from the provider or were
// estimated client-side.
type TokenSource string

const (
	TokenSourceActual    TokenSource = "actual"
	TokenSourceEstimated TokenSource = "estimated"
)

// Usage is the normalized token usage shape shared by all providers.
// Invariant: TotalTokens == PromptTokens + CompletionTokens unless the
// provider supplied an authoritative total.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Source           TokenSource

	// ActualCost is the provider-confirmed cost in USD, set only by
	// best-effort enrichment (OpenRouter generation lookup). Nil means
	// cost must be computed from the pricing table.
	ActualCost *float64
}

// Response is a completed provider invocation.
type Response struct {
	Text  string
	Model string // model string as reported by the provider
	Usage Usage
}

// Client is the gateway over one provider variant. Implementations
// check ctx before issuing the request (fail fast on cancellation),
// convert every failure into an *InvokeError, and normalize usage.
type Client interface {
	Name() Name
	Chat(ctx context.Context, req Request) (*Response, error)
}

// checkCancelled implements the pre-invocation cancellation check every
// client performs before touching the network.
func checkCancelled(ctx context.Context, name Name, model string) *InvokeError {
	select {
	case <-ctx.Done():
		return &InvokeError{
			Kind:     KindCancelled,
			Message:  "request cancelled before invocation",
			Details:  ctx.Err().Error(),
			Provider: name,
			Model:    model,
		}
	default:
		return nil
	}
}
