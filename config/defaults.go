package config

import "github.com/spf13/viper"

// DefaultStopWords is the built-in English stop-word set, used when the
// config file does not provide one. The model is also instructed not to
// emit these, but the merger filters them again as a safety net.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "but", "in", "on", "at", "to",
	"for", "of", "with", "by", "is", "are", "was", "were", "be",
	"been", "it", "this", "that", "these", "those", "my", "me", "i",
	"do", "does", "did", "has", "have", "had", "will", "would",
	"can", "could", "should", "all", "any", "some", "about", "from",
	"up", "out", "show", "find", "list", "give", "get", "want",
	"need", "please", "tasks", "task",
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Query pipeline defaults
	v.SetDefault("query.languages", []string{"English"})
	v.SetDefault("query.expansions_per_language", 5)
	v.SetDefault("query.max_priority", 5)
	v.SetDefault("query.stop_words", DefaultStopWords)

	// Provider defaults (keys come from env, never from defaults)
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("providers.openrouter.enrich_usage", true)
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("providers.local.base_url", "http://localhost:11434")
	v.SetDefault("providers.local.timeout_seconds", 300)
	v.SetDefault("providers.local.context_size", 8192)

	// Purpose defaults: parsing wants cheap and deterministic
	v.SetDefault("purposes.parsing.provider", "openrouter")
	v.SetDefault("purposes.parsing.model", "openai/gpt-4o-mini")
	v.SetDefault("purposes.parsing.temperature", 0.1)
	v.SetDefault("purposes.parsing.max_tokens", 1000)

	// Usage tracking defaults
	v.SetDefault("tracking.enabled", false)
	v.SetDefault("tracking.path", "tasklens.db")
}

// DefaultStatusCategories returns the built-in status vocabulary used
// when the config file defines none. Keys are language-independent
// category identifiers; symbols are the raw task markers.
func DefaultStatusCategories() []StatusCategory {
	return []StatusCategory{
		{Key: "open", Name: "Open", Aliases: []string{"todo", "incomplete", "pending"}, Symbols: []string{" "}},
		{Key: "done", Name: "Done", Aliases: []string{"complete", "completed", "finished"}, Symbols: []string{"x", "X"}},
		{Key: "in-progress", Name: "In Progress", Aliases: []string{"doing", "started", "wip"}, Symbols: []string{"/"}},
		{Key: "cancelled", Name: "Cancelled", Aliases: []string{"canceled", "dropped", "wont-do"}, Symbols: []string{"-"}},
		{Key: "forwarded", Name: "Forwarded", Aliases: []string{"delegated", "scheduled"}, Symbols: []string{">"}},
		{Key: "question", Name: "Question", Aliases: []string{"waiting", "blocked"}, Symbols: []string{"?"}},
	}
}

// BindSensitiveEnvVars explicitly binds credentials to environment
// variables so API keys never need to live in the config file.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("providers.openai.api_key", "TASKLENS_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("providers.openrouter.api_key", "TASKLENS_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("providers.anthropic.api_key", "TASKLENS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
}
