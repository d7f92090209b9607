package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tasklens/tasklens/config"
)

// SyntaxExtractor pulls explicit property syntax out of a query by
// pattern matching alone. It never invokes a model.
type SyntaxExtractor struct {
	vocab       map[string]bool
	maxPriority int
}

// NewSyntaxExtractor builds an extractor over the configured status
// vocabulary and priority bound.
func NewSyntaxExtractor(cfg config.QueryConfig) *SyntaxExtractor {
	maxPriority := cfg.MaxPriority
	if maxPriority <= 0 {
		maxPriority = 5
	}
	return &SyntaxExtractor{
		vocab:       cfg.StatusVocabulary(),
		maxPriority: maxPriority,
	}
}

var (
	priorityBareRe = regexp.MustCompile(`^(?i:p)([1-9])$`)
	priorityListRe = regexp.MustCompile(`^(?i:priority):(\d+(?:,\d+)*)$`)
	statusListRe   = regexp.MustCompile(`^(?i:status):(\S+)$`)
	dueRangeRe     = regexp.MustCompile(`^(?i:due):(\d{4}-\d{2}-\d{2})\.\.(\d{4}-\d{2}-\d{2})$`)
	duePrefixRe    = regexp.MustCompile(`^(?i:due):(\S+)$`)
	dueRelativeRe  = regexp.MustCompile(`^[+-]\d+[dwmy]$`)
)

var dueKeywords = map[string]bool{
	"today":     true,
	"tomorrow":  true,
	"yesterday": true,
	"overdue":   true,
	"week":      true,
	"month":     true,
}

// Extract returns the explicit properties found anywhere in the query.
// Status values are validated against the vocabulary but returned
// unresolved.
func (e *SyntaxExtractor) Extract(query string) StandardProperties {
	var props StandardProperties
	for _, token := range strings.Fields(query) {
		e.match(token, &props)
	}
	normalizeProperties(&props)
	return props
}

// Strip removes every matched property token globally and collapses
// whitespace. Idempotent: stripping a stripped query is a no-op.
func (e *SyntaxExtractor) Strip(query string) string {
	var scratch StandardProperties
	var kept []string
	for _, token := range strings.Fields(query) {
		if !e.match(token, &scratch) {
			kept = append(kept, token)
		}
	}
	return strings.Join(kept, " ")
}

// match classifies one whitespace-delimited token, recording any
// property it denotes. Reports whether the token is property syntax.
func (e *SyntaxExtractor) match(token string, props *StandardProperties) bool {
	if m := priorityBareRe.FindStringSubmatch(token); m != nil {
		if n, _ := strconv.Atoi(m[1]); n <= e.maxPriority {
			props.Priority = append(props.Priority, n)
			return true
		}
		return false
	}

	if m := priorityListRe.FindStringSubmatch(token); m != nil {
		for _, part := range strings.Split(m[1], ",") {
			if n, err := strconv.Atoi(part); err == nil && n >= 1 && n <= e.maxPriority {
				props.Priority = append(props.Priority, n)
			}
		}
		return true
	}

	if m := statusListRe.FindStringSubmatch(token); m != nil {
		for _, part := range strings.Split(m[1], ",") {
			value := strings.ToLower(part)
			if e.vocab[value] {
				props.Status = append(props.Status, value)
			}
		}
		return true
	}

	if m := dueRangeRe.FindStringSubmatch(token); m != nil {
		if !validDateRange(m[1], m[2]) {
			// Impossible dates or inverted ranges are not machine
			// syntax; leave the token for the model
			return false
		}
		if props.DueDate == "" && props.DueDateRange == nil {
			props.DueDateRange = &DateRange{Start: m[1], End: m[2]}
		}
		return true
	}

	if m := duePrefixRe.FindStringSubmatch(token); m != nil {
		value := strings.ToLower(m[1])
		if dueKeywords[value] || dueRelativeRe.MatchString(value) || validDate(value) {
			setDueDate(props, value)
			return true
		}
		// due: with an unrecognized value stays in the residual text
		// so the model can interpret it
		return false
	}

	lower := strings.ToLower(token)
	if dueKeywords[lower] {
		setDueDate(props, lower)
		return true
	}
	if dueRelativeRe.MatchString(token) {
		setDueDate(props, lower)
		return true
	}

	return false
}

// validDate reports whether s is a real calendar date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// validDateRange reports whether both endpoints are real calendar
// dates and the range is not inverted.
func validDateRange(start, end string) bool {
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return false
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return false
	}
	return !to.Before(from)
}

// setDueDate records a due-date keyword unless a date filter is already
// set. DueDate and DueDateRange are mutually exclusive; first match
// wins.
func setDueDate(props *StandardProperties, value string) {
	if props.DueDate == "" && props.DueDateRange == nil {
		props.DueDate = value
	}
}

// normalizeProperties sorts and de-duplicates multi-value fields.
func normalizeProperties(props *StandardProperties) {
	if len(props.Priority) > 1 {
		sort.Ints(props.Priority)
		props.Priority = dedupeInts(props.Priority)
	}
	if len(props.Status) > 1 {
		props.Status = dedupeStrings(props.Status)
	}
}

func dedupeInts(sorted []int) []int {
	out := sorted[:1]
	for _, n := range sorted[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
