// Package pricing computes API costs from normalized token usage.
//
// Cost is a pure function over a pricing lookup: the built-in table
// below, optionally overridden by the externally maintained snapshot
// in the config file. Pricing tables lag new model releases, so an
// unknown model yields a clearly-marked zero cost, never an error.
package pricing

import (
	"github.com/tasklens/tasklens/ai/provider"
	"github.com/tasklens/tasklens/config"
)

// Cost method values: how the final figure was obtained.
const (
	MethodActual    = "actual"    // provider-confirmed, or knowably free
	MethodEstimated = "estimated" // computed from a pricing table
)

// Pricing source values: where the per-token prices came from.
const (
	SourceProvider = "provider" // confirmed by the provider itself
	SourceConfig   = "config"   // config file snapshot
	SourceBuiltin  = "builtin"  // compiled-in table
	SourceUnknown  = "unknown"  // no pricing found, cost is zero
)

// Breakdown is the result of pricing one invocation.
type Breakdown struct {
	Cost   float64 `json:"cost"`
	Method string  `json:"method"`
	Source string  `json:"source"`
}

// builtinPricing holds per-model prices in USD per million tokens.
// Keys are model identifiers as the providers report them.
var builtinPricing = map[string]config.ModelPrice{
	// OpenAI (direct and via OpenRouter)
	"gpt-4o":             {Prompt: 2.50, Completion: 10.00},
	"gpt-4o-mini":        {Prompt: 0.15, Completion: 0.60},
	"gpt-4.1":            {Prompt: 2.00, Completion: 8.00},
	"gpt-4.1-mini":       {Prompt: 0.40, Completion: 1.60},
	"openai/gpt-4o":      {Prompt: 2.50, Completion: 10.00},
	"openai/gpt-4o-mini": {Prompt: 0.15, Completion: 0.60},

	// Anthropic (direct and via OpenRouter)
	"claude-sonnet-4-20250514":      {Prompt: 3.00, Completion: 15.00},
	"claude-3-5-haiku-latest":       {Prompt: 0.80, Completion: 4.00},
	"anthropic/claude-3.5-sonnet":   {Prompt: 3.00, Completion: 15.00},
	"anthropic/claude-3-haiku":      {Prompt: 0.25, Completion: 1.25},
	"anthropic/claude-sonnet-4":     {Prompt: 3.00, Completion: 15.00},
	"anthropic/claude-3.5-haiku":    {Prompt: 0.80, Completion: 4.00},

	// Google via OpenRouter
	"google/gemini-flash-1.5": {Prompt: 0.075, Completion: 0.30},
	"google/gemini-pro-1.5":   {Prompt: 1.25, Completion: 5.00},

	// Meta via OpenRouter
	"meta-llama/llama-3.1-70b-instruct": {Prompt: 0.52, Completion: 0.75},
	"meta-llama/llama-3.1-8b-instruct":  {Prompt: 0.055, Completion: 0.055},
}

// Cost prices one invocation. The snapshot (config pricing table) takes
// precedence over the built-in table; a provider-confirmed cost in the
// usage takes precedence over both. Local inference is free and that
// price is knowable, not estimated.
func Cost(model string, name provider.Name, usage provider.Usage, snapshot map[string]config.ModelPrice) Breakdown {
	if name == provider.NameLocal {
		return Breakdown{Cost: 0, Method: MethodActual, Source: SourceBuiltin}
	}

	if usage.ActualCost != nil {
		return Breakdown{Cost: *usage.ActualCost, Method: MethodActual, Source: SourceProvider}
	}

	if price, ok := snapshot[model]; ok {
		return Breakdown{Cost: compute(price, usage), Method: MethodEstimated, Source: SourceConfig}
	}

	if price, ok := builtinPricing[model]; ok {
		return Breakdown{Cost: compute(price, usage), Method: MethodEstimated, Source: SourceBuiltin}
	}

	return Breakdown{Cost: 0, Method: MethodEstimated, Source: SourceUnknown}
}

// Lookup returns the effective per-token prices for a model, if known.
func Lookup(model string, snapshot map[string]config.ModelPrice) (config.ModelPrice, bool) {
	if price, ok := snapshot[model]; ok {
		return price, true
	}
	price, ok := builtinPricing[model]
	return price, ok
}

func compute(price config.ModelPrice, usage provider.Usage) float64 {
	promptCost := float64(usage.PromptTokens) / 1_000_000.0 * price.Prompt
	completionCost := float64(usage.CompletionTokens) / 1_000_000.0 * price.Completion
	return promptCost + completionCost
}
