// Package query implements the natural-language task query parsing
// pipeline: explicit-syntax extraction, prompt construction, JSON
// recovery from model output, and the merge of both extraction paths
// into one ParsedQuery.
package query

import (
	"encoding/json"
	"strconv"

	"github.com/tasklens/tasklens/errors"
)

// ParsedQuery is the pipeline's output contract, consumed by the task
// search component. Immutable once the merge completes.
type ParsedQuery struct {
	// CoreKeywords are the original, de-duplicated, stop-word-filtered
	// content terms from the query.
	CoreKeywords []string `json:"coreKeywords"`

	// Keywords is CoreKeywords plus semantic expansions. Every element
	// of CoreKeywords appears in Keywords.
	Keywords []string `json:"keywords"`

	// Priority is a multi-value OR-set; empty means no priority filter.
	Priority []int `json:"priority,omitempty"`

	// Status holds raw status values (category keys, aliases, or
	// symbols), not resolved to categories. Resolution is downstream.
	Status []string `json:"status,omitempty"`

	// DueDate is a keyword token ("today", "overdue", "+5d", ...).
	// Mutually exclusive with DueDateRange.
	DueDate string `json:"dueDate,omitempty"`

	DueDateRange *DateRange `json:"dueDateRange,omitempty"`

	Folder string   `json:"folder,omitempty"`
	Tags   []string `json:"tags,omitempty"`

	// ExpansionMetadata is diagnostic only and never affects matching.
	ExpansionMetadata *ExpansionMetadata `json:"expansionMetadata,omitempty"`

	// AIUnderstanding is advisory metadata from the model, never
	// authoritative for filtering.
	AIUnderstanding *AIUnderstanding `json:"aiUnderstanding,omitempty"`

	// ParserError and ParserModel are set only when AI parsing failed
	// and the result degraded to explicit syntax. Mutually exclusive
	// with a populated ExpansionMetadata.
	ParserError string `json:"_parserError,omitempty"`
	ParserModel string `json:"_parserModel,omitempty"`

	OriginalQuery string `json:"originalQuery,omitempty"`

	TokenUsage *TokenUsage `json:"tokenUsage,omitempty"`
}

// DateRange is an inclusive due-date window in YYYY-MM-DD form.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ExpansionMetadata reports what expansion actually produced, computed
// from the final keyword counts rather than the configured target.
type ExpansionMetadata struct {
	Enabled                         bool     `json:"enabled"`
	ExpansionsPerLanguagePerKeyword int      `json:"expansionsPerLanguagePerKeyword"`
	LanguagesUsed                   []string `json:"languagesUsed"`
	CoreKeywordsCount               int      `json:"coreKeywordsCount"`
	TotalKeywords                   int      `json:"totalKeywords"`
}

// AIUnderstanding carries the model's self-reported interpretation.
type AIUnderstanding struct {
	DetectedLanguage    string            `json:"detectedLanguage,omitempty"`
	CorrectedTypos      map[string]string `json:"correctedTypos,omitempty"`
	SemanticMappings    map[string]string `json:"semanticMappings,omitempty"`
	Confidence          float64           `json:"confidence,omitempty"`
	NaturalLanguageUsed bool              `json:"naturalLanguageUsed,omitempty"`
}

// TokenUsage is the per-query token and cost accounting attached to the
// result. TotalTokens == PromptTokens + CompletionTokens unless the
// provider supplied an authoritative total.
type TokenUsage struct {
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	EstimatedCost    float64 `json:"estimatedCost"`
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	IsEstimated      bool    `json:"isEstimated"`
	TokenSource      string  `json:"tokenSource"` // actual | estimated
	CostMethod       string  `json:"costMethod"`  // actual | estimated
	PricingSource    string  `json:"pricingSource"`
}

// StandardProperties holds explicit syntax pulled from the query by
// pattern matching. Status values are raw, unresolved. Never touches
// keywords.
type StandardProperties struct {
	Priority     []int
	Status       []string
	DueDate      string
	DueDateRange *DateRange
}

// Empty reports whether no explicit property was found.
func (s *StandardProperties) Empty() bool {
	return len(s.Priority) == 0 && len(s.Status) == 0 && s.DueDate == "" && s.DueDateRange == nil
}

// aiResult is the JSON shape the model is asked to return. Fields that
// smaller models emit as either scalar or array use tolerant list
// types; unknown keys are ignored.
type aiResult struct {
	Keywords     stringList       `json:"keywords"`
	CoreKeywords stringList       `json:"coreKeywords"`
	Priority     intList          `json:"priority"`
	Status       stringList       `json:"status"`
	DueDate      string           `json:"dueDate"`
	DueDateRange *DateRange       `json:"dueDateRange"`
	Folder       string           `json:"folder"`
	Tags         stringList       `json:"tags"`
	Understand   *AIUnderstanding `json:"aiUnderstanding"`
}

// hasSchemaKeys reports whether the parsed object set at least one
// recognized field. A fully unrecognized object is the soft
// schema-mismatch case.
func (r *aiResult) hasSchemaKeys() bool {
	return len(r.Keywords) > 0 || len(r.CoreKeywords) > 0 ||
		len(r.Priority) > 0 || len(r.Status) > 0 ||
		r.DueDate != "" || r.DueDateRange != nil ||
		r.Folder != "" || len(r.Tags) > 0
}

// stringList accepts "x", ["x","y"], or null.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.Wrap(err, "expected string or array of strings")
	}
	*l = many
	return nil
}

// intList accepts 1, "1", [1,3], ["1","3"], or null.
type intList []int

func (l *intList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Scalar form
		n, convErr := toInt(data)
		if convErr != nil {
			return convErr
		}
		*l = []int{n}
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		n, err := toInt(item)
		if err != nil {
			return err
		}
		out = append(out, n)
	}
	*l = out
	return nil
}

func toInt(data []byte) (int, error) {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, errors.Newf("expected number or numeric string, got %s", data)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "expected numeric string, got %q", s)
	}
	return n, nil
}
