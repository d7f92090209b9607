package query

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/tasklens/tasklens/config"
)

// Merger combines the explicit-syntax and AI extraction paths into one
// ParsedQuery. Explicit syntax always wins a conflict.
type Merger struct {
	cfg       config.QueryConfig
	stopWords map[string]bool
	log       *zap.SugaredLogger
}

// NewMerger creates a merger. A nil logger disables diagnostics.
func NewMerger(cfg config.QueryConfig, log *zap.SugaredLogger) *Merger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	words := cfg.StopWords
	if len(words) == 0 {
		words = config.DefaultStopWords
	}
	stopWords := make(map[string]bool, len(words))
	for _, w := range words {
		stopWords[strings.ToLower(w)] = true
	}
	return &Merger{cfg: cfg, stopWords: stopWords, log: log}
}

// Merge combines explicit properties with the AI result. residual is
// the query text left after explicit syntax was stripped; it feeds the
// tokenization fallback when the model returned nothing usable.
func (m *Merger) Merge(props StandardProperties, ai *aiResult, rawQuery, residual string) *ParsedQuery {
	result := &ParsedQuery{OriginalQuery: rawQuery}

	// The model is told not to emit stop words but may anyway
	core := m.filterKeywords(ai.CoreKeywords)
	keywords := m.filterKeywords(ai.Keywords)

	// Expansion must never lose an original term
	keywords = backfill(keywords, core)

	if len(keywords) == 0 && ai.hasNoProperties() {
		// The model extracted nothing: tokenize the residual ourselves
		// so its content terms are never silently dropped
		core = m.Tokenize(residual)
		keywords = core
		m.log.Debugw("model returned no keywords and no properties, using naive tokenization",
			"query", rawQuery)
	}

	result.CoreKeywords = core
	result.Keywords = keywords

	// Explicit syntax overrides the model's reading of the same field
	result.Priority = props.Priority
	if len(result.Priority) == 0 {
		result.Priority = m.boundPriorities(ai.Priority)
	}
	result.Status = props.Status
	if len(result.Status) == 0 {
		result.Status = ai.Status
	}
	if props.DueDate != "" || props.DueDateRange != nil {
		result.DueDate = props.DueDate
		result.DueDateRange = props.DueDateRange
	} else if ai.DueDateRange != nil {
		result.DueDateRange = ai.DueDateRange
	} else {
		result.DueDate = ai.DueDate
	}

	result.Folder = ai.Folder
	result.Tags = dedupeStrings(ai.Tags)
	result.AIUnderstanding = ai.Understand

	result.ExpansionMetadata = m.expansionMetadata(core, keywords)
	m.logLanguageDistribution(keywords)

	return result
}

// MergeFailure builds the degraded, explicit-syntax-only result used
// when the AI path failed. Callers treat it as a partial success, never
// a hard failure of the query.
func (m *Merger) MergeFailure(props StandardProperties, rawQuery, residual string, parseErr error, model string) *ParsedQuery {
	keywords := m.Tokenize(residual)
	return &ParsedQuery{
		CoreKeywords:  keywords,
		Keywords:      keywords,
		Priority:      props.Priority,
		Status:        props.Status,
		DueDate:       props.DueDate,
		DueDateRange:  props.DueDateRange,
		ParserError:   parseErr.Error(),
		ParserModel:   model,
		OriginalQuery: rawQuery,
	}
}

// ExplicitOnly builds the result for a query that was pure property
// syntax. No model was invoked, so keyword fields are empty.
func (m *Merger) ExplicitOnly(props StandardProperties, rawQuery string) *ParsedQuery {
	return &ParsedQuery{
		CoreKeywords:  []string{},
		Keywords:      []string{},
		Priority:      props.Priority,
		Status:        props.Status,
		DueDate:       props.DueDate,
		DueDateRange:  props.DueDateRange,
		OriginalQuery: rawQuery,
	}
}

// Tokenize splits text on whitespace, lowercases, and drops stop words
// and duplicates. The last-resort keyword source.
func (m *Merger) Tokenize(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, token := range strings.Fields(text) {
		word := strings.ToLower(strings.TrimFunc(token, unicode.IsPunct))
		if word == "" || m.stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// filterKeywords lowercases, stop-word-filters, and de-duplicates while
// preserving order.
func (m *Merger) filterKeywords(words []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		word := strings.ToLower(strings.TrimSpace(w))
		if word == "" || m.stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}

// boundPriorities drops model-emitted priority values outside the
// range the syntax path enforces.
func (m *Merger) boundPriorities(values []int) []int {
	maxPriority := m.cfg.MaxPriority
	if maxPriority <= 0 {
		maxPriority = 5
	}
	var out []int
	for _, v := range values {
		if v >= 1 && v <= maxPriority {
			out = append(out, v)
		}
	}
	return out
}

// backfill appends any core keyword the model forgot to restate.
func backfill(keywords, core []string) []string {
	present := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		present[k] = true
	}
	for _, c := range core {
		if !present[c] {
			keywords = append(keywords, c)
		}
	}
	return keywords
}

// expansionMetadata reflects what actually happened, not what the
// configuration requested.
func (m *Merger) expansionMetadata(core, keywords []string) *ExpansionMetadata {
	languages := m.cfg.Languages
	if len(languages) == 0 {
		languages = []string{"English"}
	}
	return &ExpansionMetadata{
		Enabled:                         m.cfg.ExpansionsPerLanguage > 0,
		ExpansionsPerLanguagePerKeyword: m.cfg.ExpansionsPerLanguage,
		LanguagesUsed:                   languages,
		CoreKeywordsCount:               len(core),
		TotalKeywords:                   len(keywords),
	}
}

// logLanguageDistribution classifies keywords by script at debug level.
// Character-pattern classification is inherently approximate; this is
// advisory output only.
func (m *Merger) logLanguageDistribution(keywords []string) {
	if len(keywords) == 0 {
		return
	}
	dist := make(map[string]int)
	for _, k := range keywords {
		dist[classifyScript(k)]++
	}
	m.log.Debugw("keyword script distribution (approximate)", "distribution", dist)
}

func classifyScript(word string) string {
	for _, r := range word {
		switch {
		case unicode.Is(unicode.Han, r), unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r), unicode.Is(unicode.Hangul, r):
			return "cjk"
		case unicode.Is(unicode.Cyrillic, r):
			return "cyrillic"
		case unicode.Is(unicode.Arabic, r):
			return "arabic"
		case unicode.Is(unicode.Devanagari, r):
			return "devanagari"
		}
	}
	return "latin"
}

// hasNoProperties reports whether the model extracted no property at
// all, the trigger for the tokenization fallback.
func (r *aiResult) hasNoProperties() bool {
	return len(r.Priority) == 0 && len(r.Status) == 0 &&
		r.DueDate == "" && r.DueDateRange == nil &&
		r.Folder == "" && len(r.Tags) == 0
}
