package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDeterministic(t *testing.T) {
	b := NewPromptBuilder(testQueryConfig())

	sys1, user1 := b.Build("fix login bug")
	sys2, user2 := b.Build("fix login bug")

	assert.Equal(t, sys1, sys2, "identical config and input must produce byte-identical prompts")
	assert.Equal(t, user1, user2)
}

func TestBuildStatesNumericQuota(t *testing.T) {
	cfg := testQueryConfig()
	cfg.ExpansionsPerLanguage = 3
	b := NewPromptBuilder(cfg)

	sys, _ := b.Build("anything")
	assert.Contains(t, sys, "exactly 3 synonyms", "quota must be an explicit number, not an adjective")
	assert.Contains(t, sys, "English")
}

func TestBuildDisablesExpansionAtZeroQuota(t *testing.T) {
	cfg := testQueryConfig()
	cfg.ExpansionsPerLanguage = 0
	b := NewPromptBuilder(cfg)

	sys, _ := b.Build("anything")
	assert.Contains(t, sys, "Do not add expansions")
}

func TestBuildVocabularyFromConfig(t *testing.T) {
	b := NewPromptBuilder(testQueryConfig())
	sys, _ := b.Build("anything")

	// Category keys the resolver accepts, not display names alone
	assert.Contains(t, sys, "in-progress")
	assert.Contains(t, sys, "done")
	assert.Contains(t, sys, "due-date cue, then status cue, then priority cue, then keyword")
}

func TestBuildUserMessageCarriesResidualOnly(t *testing.T) {
	b := NewPromptBuilder(testQueryConfig())
	_, user := b.Build("fix login bug")
	assert.Equal(t, "Query: fix login bug", user)
}
