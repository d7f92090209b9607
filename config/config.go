package config

import "strings"

// Config represents the tasklens configuration.
// It is the read-only settings snapshot the parsing pipeline consumes:
// query languages and vocabularies, provider credentials, per-purpose
// model selection, and the pricing table.
type Config struct {
	Query     QueryConfig              `mapstructure:"query"`
	Providers ProvidersConfig          `mapstructure:"providers"`
	Purposes  map[string]PurposeConfig `mapstructure:"purposes"`
	Pricing   PricingConfig            `mapstructure:"pricing"`
	Tracking  TrackingConfig           `mapstructure:"tracking"`
}

// QueryConfig configures the query parsing pipeline itself.
type QueryConfig struct {
	// Languages for semantic keyword expansion (e.g., "English", "German")
	Languages []string `mapstructure:"languages"`

	// ExpansionsPerLanguage is the per-keyword, per-language synonym quota
	ExpansionsPerLanguage int `mapstructure:"expansions_per_language"`

	// StopWords filtered from keywords; empty = built-in English set
	StopWords []string `mapstructure:"stop_words"`

	// StatusCategories define the status vocabulary.
	// Key is the language-independent category identifier.
	StatusCategories []StatusCategory `mapstructure:"status_categories"`

	// MaxPriority bounds recognized priority levels (p1..pN)
	MaxPriority int `mapstructure:"max_priority"`
}

// StatusCategory maps a category key to its display name, aliases, and
// the raw marker symbols that denote it in task text.
type StatusCategory struct {
	Key     string   `mapstructure:"key"`     // e.g. "done"
	Name    string   `mapstructure:"name"`    // e.g. "Done"
	Aliases []string `mapstructure:"aliases"` // e.g. ["complete", "finished"]
	Symbols []string `mapstructure:"symbols"` // e.g. ["x", "X"]
}

// ProvidersConfig holds credentials and endpoints per provider.
type ProvidersConfig struct {
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Local      LocalConfig      `mapstructure:"local"`
}

// OpenAIConfig configures direct OpenAI API access
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // default https://api.openai.com/v1
}

// OpenRouterConfig configures OpenRouter.ai API access
type OpenRouterConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // default https://openrouter.ai/api/v1

	// EnrichUsage enables the best-effort post-call generation lookup
	// that replaces estimated cost with provider-confirmed values
	EnrichUsage bool `mapstructure:"enrich_usage"`
}

// AnthropicConfig configures direct Anthropic API access
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // default https://api.anthropic.com/v1
}

// LocalConfig configures local model inference (Ollama, LocalAI, etc.)
type LocalConfig struct {
	BaseURL        string `mapstructure:"base_url"`        // e.g. "http://localhost:11434"
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // request timeout
	ContextSize    int    `mapstructure:"context_size"`    // num_ctx; 0 = model default
}

// PurposeConfig selects provider/model/sampling for one pipeline stage.
// Purposes are keyed by stage name, e.g. "parsing" or "analysis".
type PurposeConfig struct {
	Provider    string  `mapstructure:"provider"` // openai | openrouter | anthropic | local
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// PricingConfig is the externally maintained pricing snapshot.
// Entries override or extend the built-in table; prices are USD per
// million tokens.
type PricingConfig struct {
	Models map[string]ModelPrice `mapstructure:"models"`
}

// ModelPrice holds per-token prices for one model
type ModelPrice struct {
	Prompt     float64 `mapstructure:"prompt"`
	Completion float64 `mapstructure:"completion"`
}

// TrackingConfig configures persistent usage accounting.
type TrackingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // sqlite database path
}

// Purpose returns the purpose config for the given stage, falling back
// to the "parsing" purpose when the stage has no explicit entry.
func (c *Config) Purpose(name string) PurposeConfig {
	if p, ok := c.Purposes[name]; ok {
		return p
	}
	return c.Purposes["parsing"]
}

// StatusVocabulary returns every value the status property accepts:
// category keys, aliases, and raw symbols, lowercased.
func (q *QueryConfig) StatusVocabulary() map[string]bool {
	vocab := make(map[string]bool)
	for _, cat := range q.StatusCategories {
		vocab[strings.ToLower(cat.Key)] = true
		for _, a := range cat.Aliases {
			vocab[strings.ToLower(a)] = true
		}
		for _, s := range cat.Symbols {
			vocab[strings.ToLower(s)] = true
		}
	}
	return vocab
}
