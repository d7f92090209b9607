package query

import (
	"fmt"
	"strings"

	"github.com/tasklens/tasklens/config"
)

// PromptBuilder assembles the instruction pair sent to the model. Pure
// and deterministic: identical configuration and residual text always
// produce byte-identical output.
type PromptBuilder struct {
	cfg config.QueryConfig
}

// NewPromptBuilder builds prompts from the given query configuration.
// Vocabulary sections are generated from the same configuration the
// downstream resolver uses, so the model and the resolver cannot drift.
func NewPromptBuilder(cfg config.QueryConfig) *PromptBuilder {
	return &PromptBuilder{cfg: cfg}
}

// Build returns the system and user messages for a residual query.
func (b *PromptBuilder) Build(residual string) (system, user string) {
	return b.systemPrompt(), fmt.Sprintf("Query: %s", residual)
}

func (b *PromptBuilder) systemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You extract structured task filters from a natural-language query.\n")
	sb.WriteString("Respond with a single JSON object and nothing else. No prose, no markdown, no code fences.\n\n")

	sb.WriteString("Output schema (omit fields that do not apply):\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "coreKeywords": ["original content terms, lowercased"],` + "\n")
	sb.WriteString(`  "keywords": ["coreKeywords plus semantic expansions"],` + "\n")
	sb.WriteString(`  "priority": [1],` + "\n")
	sb.WriteString(`  "status": ["category key"],` + "\n")
	sb.WriteString(`  "dueDate": "today|tomorrow|yesterday|overdue|week|month|+Nd|-Nd|YYYY-MM-DD",` + "\n")
	sb.WriteString(`  "dueDateRange": {"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"},` + "\n")
	sb.WriteString(`  "folder": "folder path if the query names one",` + "\n")
	sb.WriteString(`  "tags": ["tag names without #"],` + "\n")
	sb.WriteString(`  "aiUnderstanding": {"detectedLanguage": "...", "confidence": 0.0}` + "\n")
	sb.WriteString("}\n\n")

	b.writeExpansionRules(&sb)
	b.writeStatusVocabulary(&sb)
	b.writePriorityRules(&sb)
	b.writeDisambiguationRules(&sb)
	b.writeStopWords(&sb)

	return sb.String()
}

// writeExpansionRules states the per-language quota as an explicit
// number. Models default to a demonstration count when given vague
// quantities.
func (b *PromptBuilder) writeExpansionRules(sb *strings.Builder) {
	languages := b.cfg.Languages
	if len(languages) == 0 {
		languages = []string{"English"}
	}
	n := b.cfg.ExpansionsPerLanguage

	sb.WriteString("Keyword expansion rules:\n")
	sb.WriteString("- coreKeywords: every content term from the query, lowercased, duplicates removed.\n")
	if n > 0 {
		fmt.Fprintf(sb, "- keywords: every coreKeyword, plus exactly %d synonyms or equivalents per coreKeyword per language, in each of: %s.\n",
			n, strings.Join(languages, ", "))
	} else {
		sb.WriteString("- keywords: exactly the coreKeywords. Do not add expansions.\n")
	}
	sb.WriteString("- Every coreKeyword must also appear in keywords.\n\n")
}

func (b *PromptBuilder) writeStatusVocabulary(sb *strings.Builder) {
	categories := b.cfg.StatusCategories
	if len(categories) == 0 {
		return
	}
	sb.WriteString("Status categories (use the key, never the display name):\n")
	for _, cat := range categories {
		fmt.Fprintf(sb, "- %s (%s)", cat.Key, cat.Name)
		if len(cat.Aliases) > 0 {
			fmt.Fprintf(sb, ", aliases: %s", strings.Join(cat.Aliases, ", "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (b *PromptBuilder) writePriorityRules(sb *strings.Builder) {
	maxPriority := b.cfg.MaxPriority
	if maxPriority <= 0 {
		maxPriority = 5
	}
	fmt.Fprintf(sb, "Priority is an integer from 1 (highest) to %d (lowest). Words like \"urgent\" or \"critical\" mean priority 1.\n\n", maxPriority)
}

func (b *PromptBuilder) writeDisambiguationRules(sb *strings.Builder) {
	sb.WriteString("Classification rules:\n")
	sb.WriteString("- Each query token contributes to exactly one of: a property (priority, status, dueDate, folder, tags) or a keyword. Never both.\n")
	sb.WriteString("- When a token is ambiguous, prefer in order: due-date cue, then status cue, then priority cue, then keyword.\n\n")
}

func (b *PromptBuilder) writeStopWords(sb *strings.Builder) {
	stopWords := b.cfg.StopWords
	if len(stopWords) == 0 {
		stopWords = config.DefaultStopWords
	}
	fmt.Fprintf(sb, "Never emit these words as keywords: %s.\n", strings.Join(stopWords, ", "))
}
