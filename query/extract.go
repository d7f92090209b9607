package query

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/tasklens/tasklens/errors"
)

// ExtractionError means JSON recovery exhausted every fallback. It
// carries enough diagnostic context to explain what the model actually
// returned.
type ExtractionError struct {
	ResponseLength int
	Preview        string // first 500 characters of the cleaned text
	Err            error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no JSON object recovered from model response (%d chars): %v", e.ResponseLength, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var (
	thinkTagRe       = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)
	markdownHeaderRe = regexp.MustCompile(`(?m)^#{1,6}\s`)
	fencedBlockRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// schemaKeys are the top-level fields of the expected output object.
// A candidate containing any of them is preferred over one that merely
// parses, which guards against picking up an unrelated JSON example.
var schemaKeys = []string{"keywords", "coreKeywords", "priority", "status", "dueDate", "dueDateRange", "folder", "tags"}

// Extractor recovers a JSON object from noisy model text. Small and
// local models reliably violate "return only JSON" instructions in
// varied ways; no single regex suffices, so recovery is an ordered
// fallback chain.
type Extractor struct {
	log *zap.SugaredLogger
}

// NewExtractor creates an extractor. A nil logger disables diagnostics.
func NewExtractor(log *zap.SugaredLogger) *Extractor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Extractor{log: log}
}

// ExtractJSON returns the best JSON candidate found in raw. The result
// is not guaranteed to parse; when every structural fallback fails the
// cleaned text itself is returned so the caller's parse produces the
// final error.
func (e *Extractor) ExtractJSON(raw string) string {
	// Reasoning blocks are never part of the answer
	cleaned := strings.TrimSpace(thinkTagRe.ReplaceAllString(raw, ""))

	// Markdown headings mean the model answered in prose. Worth
	// flagging, but recovery often still succeeds.
	if markdownHeaderRe.MatchString(cleaned) {
		e.log.Debugw("model response contains markdown headings, attempting JSON recovery",
			"response_length", len(cleaned))
	}

	if m := fencedBlockRe.FindStringSubmatch(cleaned); m != nil {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate
		}
		// Unparsable fence contents, fall through to the brace scan
	}

	candidates := balancedObjects(cleaned)

	// Prefer a parseable candidate that carries schema keys
	for _, c := range candidates {
		if json.Valid([]byte(c)) && hasAnySchemaKey(c) {
			return c
		}
	}
	for _, c := range candidates {
		if json.Valid([]byte(c)) {
			e.log.Debugw("recovered JSON object has no expected schema keys")
			return c
		}
	}

	// Naive slice between the outermost braces
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			return cleaned[start : end+1]
		}
	}

	// Nothing brace-shaped at all. Hand back the cleaned text so the
	// caller's parse raises the final error with full diagnostics.
	return cleaned
}

// Decode parses recovered JSON into the expected result shape,
// attaching response diagnostics on failure.
func (e *Extractor) Decode(jsonStr, raw string) (*aiResult, error) {
	var result aiResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, &ExtractionError{
			ResponseLength: len(raw),
			Preview:        preview(raw, 500),
			Err: errors.WithHint(
				errors.Wrap(err, "model did not return parseable JSON"),
				"try a larger model or lower temperature for the parsing purpose"),
		}
	}
	if !result.hasSchemaKeys() {
		// Soft mismatch: common with smaller models, a degraded result
		// beats none
		e.log.Debugw("parsed JSON lacks expected fields, merging anyway",
			"json", preview(jsonStr, 200))
	}
	return &result, nil
}

// balancedObjects enumerates every top-level balanced {...} substring,
// left to right, skipping braces inside JSON string literals.
func balancedObjects(s string) []string {
	var candidates []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					candidates = append(candidates, s[start:i+1])
				}
			}
		}
	}
	return candidates
}

func hasAnySchemaKey(jsonStr string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		return false
	}
	for _, key := range schemaKeys {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
