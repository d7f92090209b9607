package provider

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tasklens/tasklens/config"
	"github.com/tasklens/tasklens/errors"
)

// ClientOptions holds cross-provider construction options.
type ClientOptions struct {
	Logger  *zap.SugaredLogger
	Limiter *rate.Limiter
}

// NewClient creates the gateway client for a purpose's configured
// provider. Missing credentials surface as a configuration-kind
// InvokeError before any network traffic.
func NewClient(purpose config.PurposeConfig, providers config.ProvidersConfig, opts ClientOptions) (Client, error) {
	name, err := ParseName(purpose.Provider)
	if err != nil {
		return nil, err
	}

	switch name {
	case NameOpenAI:
		if providers.OpenAI.APIKey == "" {
			return nil, missingKey(NameOpenAI, purpose.Model, "TASKLENS_OPENAI_API_KEY")
		}
		return NewOpenAIClient(providers.OpenAI.APIKey, providers.OpenAI.BaseURL, OpenAIOptions{
			Limiter: opts.Limiter,
			Logger:  opts.Logger,
		}), nil

	case NameOpenRouter:
		if providers.OpenRouter.APIKey == "" {
			return nil, missingKey(NameOpenRouter, purpose.Model, "TASKLENS_OPENROUTER_API_KEY")
		}
		return NewOpenAIClient(providers.OpenRouter.APIKey, providers.OpenRouter.BaseURL, OpenAIOptions{
			OpenRouter:  true,
			EnrichUsage: providers.OpenRouter.EnrichUsage,
			Limiter:     opts.Limiter,
			Logger:      opts.Logger,
		}), nil

	case NameAnthropic:
		if providers.Anthropic.APIKey == "" {
			return nil, missingKey(NameAnthropic, purpose.Model, "TASKLENS_ANTHROPIC_API_KEY")
		}
		return NewAnthropicClient(providers.Anthropic.APIKey, providers.Anthropic.BaseURL, AnthropicOptions{
			Limiter: opts.Limiter,
			Logger:  opts.Logger,
		}), nil

	case NameLocal:
		return NewLocalClient(providers.Local.BaseURL, LocalOptions{
			TimeoutSeconds: providers.Local.TimeoutSeconds,
			ContextSize:    providers.Local.ContextSize,
			Limiter:        opts.Limiter,
			Logger:         opts.Logger,
		}), nil
	}

	// Unreachable: ParseName rejects unknown names
	return nil, errors.Newf("unhandled provider %q", name)
}

// ParseName converts a configured provider string to a Name.
func ParseName(s string) (Name, error) {
	switch s {
	case "openai":
		return NameOpenAI, nil
	case "openrouter", "or":
		return NameOpenRouter, nil
	case "anthropic", "claude":
		return NameAnthropic, nil
	case "local", "ollama", "localai":
		return NameLocal, nil
	default:
		return "", errors.Newf("unknown provider: %s (valid: openai, openrouter, anthropic, local)", s)
	}
}

func missingKey(name Name, model, envVar string) *InvokeError {
	return &InvokeError{
		Kind:     KindConfiguration,
		Message:  string(name) + " API key not configured",
		Provider: name,
		Model:    model,
		Solution: "set " + envVar + " or providers." + string(name) + ".api_key in tasklens.toml",
	}
}

// Verify interfaces are implemented
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*LocalClient)(nil)
)
