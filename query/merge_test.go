package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklens/tasklens/errors"
)

func TestMergeExplicitWins(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	props := StandardProperties{Priority: []int{1}, DueDate: "today"}
	ai := &aiResult{
		Keywords:     stringList{"report"},
		CoreKeywords: stringList{"report"},
		Priority:     intList{3},
		DueDate:      "tomorrow",
		Status:       stringList{"done"},
	}

	result := m.Merge(props, ai, "p1 today report status stuff", "report status stuff")

	assert.Equal(t, []int{1}, result.Priority, "explicit priority must override the model")
	assert.Equal(t, "today", result.DueDate, "explicit due date must override the model")
	assert.Equal(t, []string{"done"}, result.Status, "model fills fields the user left implicit")
}

func TestMergeSupersetInvariant(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	// Model forgot to restate "bug" in keywords
	ai := &aiResult{
		CoreKeywords: stringList{"fix", "bug"},
		Keywords:     stringList{"fix", "repair", "patch"},
	}
	result := m.Merge(StandardProperties{}, ai, "fix bug", "fix bug")

	for _, core := range result.CoreKeywords {
		assert.Contains(t, result.Keywords, core)
	}
}

func TestMergeStopWordSafetyNet(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	ai := &aiResult{
		CoreKeywords: stringList{"the", "deploy"},
		Keywords:     stringList{"the", "deploy", "release", "a"},
	}
	result := m.Merge(StandardProperties{}, ai, "the deploy", "the deploy")

	assert.Equal(t, []string{"deploy"}, result.CoreKeywords)
	assert.NotContains(t, result.Keywords, "the")
	assert.NotContains(t, result.Keywords, "a")
}

func TestMergeFallbackTokenization(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	// Model returned nothing usable at all
	result := m.Merge(StandardProperties{}, &aiResult{}, "find the login bug", "find the login bug")

	assert.NotEmpty(t, result.Keywords, "fallback must produce keywords when the query has content terms")
	assert.Contains(t, result.Keywords, "login")
	assert.Contains(t, result.Keywords, "bug")
	assert.NotContains(t, result.Keywords, "the")
	assert.NotContains(t, result.Keywords, "find")
}

func TestMergeFallbackKeepsResidualTermsAlongsideExplicit(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	// Model returned nothing, but the query had content terms beyond
	// the explicit syntax; those must survive as keywords
	props := StandardProperties{Priority: []int{1}}
	result := m.Merge(props, &aiResult{}, "p1 fix login", "fix login")

	assert.Equal(t, []int{1}, result.Priority)
	assert.Equal(t, []string{"fix", "login"}, result.Keywords)
	assert.Equal(t, []string{"fix", "login"}, result.CoreKeywords)
}

func TestMergeEmptyResidualYieldsNoKeywords(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	// Pure-syntax query: nothing left to tokenize
	props := StandardProperties{Priority: []int{1}}
	result := m.Merge(props, &aiResult{}, "p1", "")

	assert.Empty(t, result.Keywords)
	assert.Equal(t, []int{1}, result.Priority)
}

func TestMergeBoundsModelPriority(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	ai := &aiResult{
		Keywords:     stringList{"deploy"},
		CoreKeywords: stringList{"deploy"},
		Priority:     intList{99, 2, 0, -1},
	}
	result := m.Merge(StandardProperties{}, ai, "deploy", "deploy")

	assert.Equal(t, []int{2}, result.Priority, "model priorities outside 1..max must be dropped")
}

func TestMergeExpansionMetadataFromActualCounts(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	ai := &aiResult{
		CoreKeywords: stringList{"fix", "bug"},
		Keywords:     stringList{"fix", "bug", "repair", "patch", "defect"},
	}
	result := m.Merge(StandardProperties{}, ai, "fix bug", "fix bug")

	require.NotNil(t, result.ExpansionMetadata)
	assert.True(t, result.ExpansionMetadata.Enabled)
	assert.Equal(t, 2, result.ExpansionMetadata.CoreKeywordsCount)
	assert.Equal(t, 5, result.ExpansionMetadata.TotalKeywords)
	assert.Equal(t, []string{"English"}, result.ExpansionMetadata.LanguagesUsed)
}

func TestMergeDeduplicatesPreservingOrder(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	ai := &aiResult{
		CoreKeywords: stringList{"Deploy", "deploy", "release"},
		Keywords:     stringList{"deploy", "release", "DEPLOY", "ship"},
	}
	result := m.Merge(StandardProperties{}, ai, "deploy release", "deploy release")

	assert.Equal(t, []string{"deploy", "release"}, result.CoreKeywords)
	assert.Equal(t, []string{"deploy", "release", "ship"}, result.Keywords)
}

func TestMergeFailureDegradesToExplicit(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	props := StandardProperties{Priority: []int{2}}
	cause := errors.New("connection refused")
	result := m.MergeFailure(props, "p2 fix login", "fix login", cause, "gpt-4o-mini")

	assert.Equal(t, []int{2}, result.Priority)
	assert.Equal(t, []string{"fix", "login"}, result.Keywords)
	assert.Equal(t, "connection refused", result.ParserError)
	assert.Equal(t, "gpt-4o-mini", result.ParserModel)
	assert.Nil(t, result.ExpansionMetadata, "failure results carry no expansion metadata")
}

func TestMergeAIDateRangeWhenNoExplicitDate(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	ai := &aiResult{
		Keywords:     stringList{"planning"},
		CoreKeywords: stringList{"planning"},
		DueDateRange: &DateRange{Start: "2025-06-01", End: "2025-06-30"},
	}
	result := m.Merge(StandardProperties{}, ai, "planning in june", "planning in june")

	require.NotNil(t, result.DueDateRange)
	assert.Equal(t, "2025-06-01", result.DueDateRange.Start)
	assert.Empty(t, result.DueDate)
}

func TestTokenizeStripsPunctuation(t *testing.T) {
	m := NewMerger(testQueryConfig(), nil)

	got := m.Tokenize("Fix, the login. bug!")
	assert.Equal(t, []string{"fix", "login", "bug"}, got)
}
