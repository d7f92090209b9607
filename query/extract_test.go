package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONBare(t *testing.T) {
	e := NewExtractor(nil)
	got := e.ExtractJSON(`{"keywords":["fix","bug"]}`)
	assert.JSONEq(t, `{"keywords":["fix","bug"]}`, got)
}

func TestExtractJSONFencedBlock(t *testing.T) {
	e := NewExtractor(nil)

	raw := "Here is the result:\n```json\n{\"keywords\":[\"fix\"]}\n```\nHope that helps!"
	assert.JSONEq(t, `{"keywords":["fix"]}`, e.ExtractJSON(raw))

	// Fence without a language tag
	raw = "```\n{\"priority\":[1]}\n```"
	assert.JSONEq(t, `{"priority":[1]}`, e.ExtractJSON(raw))
}

func TestExtractJSONThinkBlock(t *testing.T) {
	e := NewExtractor(nil)

	raw := "<think>\nThe user wants urgent bugs.\nLet me think about {braces} here.\n</think>\n{\"keywords\":[\"bug\"],\"priority\":1}"
	got := e.ExtractJSON(raw)
	assert.JSONEq(t, `{"keywords":["bug"],"priority":1}`, got)
}

func TestExtractJSONTrailingProse(t *testing.T) {
	e := NewExtractor(nil)
	raw := `{"keywords":["report"]} I extracted one keyword from your query.`
	assert.JSONEq(t, `{"keywords":["report"]}`, e.ExtractJSON(raw))
}

func TestExtractJSONMarkdownHeading(t *testing.T) {
	e := NewExtractor(nil)
	raw := "## Analysis\n{\"keywords\":[\"x\"]}\nDone."
	assert.JSONEq(t, `{"keywords":["x"]}`, e.ExtractJSON(raw))
}

func TestExtractJSONPrefersSchemaKeys(t *testing.T) {
	e := NewExtractor(nil)

	// The first fragment is an unrelated example; only the second
	// carries schema keys
	raw := `For example {"name":"value"} is JSON. Your query parses to {"keywords":["deploy"],"dueDate":"today"}.`
	got := e.ExtractJSON(raw)
	assert.JSONEq(t, `{"keywords":["deploy"],"dueDate":"today"}`, got)
}

func TestExtractJSONFallsBackToFirstParseable(t *testing.T) {
	e := NewExtractor(nil)
	raw := `{not json} then {"unrelated":"object"} at last`
	assert.JSONEq(t, `{"unrelated":"object"}`, e.ExtractJSON(raw))
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	e := NewExtractor(nil)
	raw := `{"keywords":["curly } brace"],"folder":"a{b"}`
	got := e.ExtractJSON(raw)
	assert.True(t, json.Valid([]byte(got)))
	assert.JSONEq(t, raw, got)
}

func TestExtractJSONNoBraces(t *testing.T) {
	e := NewExtractor(nil)
	raw := "I could not determine any filters for this query."
	// Returned as-is so the downstream parse produces the final error
	assert.Equal(t, raw, e.ExtractJSON(raw))
}

func TestDecodeScalarOrArrayTolerance(t *testing.T) {
	e := NewExtractor(nil)

	result, err := e.Decode(`{"priority":1,"status":"done","keywords":["x"]}`, "")
	require.NoError(t, err)
	assert.Equal(t, intList{1}, result.Priority)
	assert.Equal(t, stringList{"done"}, result.Status)

	result, err = e.Decode(`{"priority":["1","3"],"status":["open","done"]}`, "")
	require.NoError(t, err)
	assert.Equal(t, intList{1, 3}, result.Priority)
	assert.Equal(t, stringList{"open", "done"}, result.Status)
}

func TestDecodeFailureCarriesDiagnostics(t *testing.T) {
	e := NewExtractor(nil)

	raw := "definitely not JSON, and quite a long response from the model"
	_, err := e.Decode(e.ExtractJSON(raw), raw)
	require.Error(t, err)

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, len(raw), extractErr.ResponseLength)
	assert.Equal(t, raw, extractErr.Preview)
}

func TestDecodePreviewTruncatedAt500(t *testing.T) {
	e := NewExtractor(nil)

	raw := ""
	for len(raw) < 1200 {
		raw += "verbose model output "
	}
	_, err := e.Decode(e.ExtractJSON(raw), raw)
	require.Error(t, err)

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Len(t, extractErr.Preview, 500)
	assert.Equal(t, len(raw), extractErr.ResponseLength)
}

func TestDecodeSchemaMismatchIsSoft(t *testing.T) {
	e := NewExtractor(nil)

	// Parses fine but has no recognized fields: merged anyway
	result, err := e.Decode(`{"something":"else"}`, "")
	require.NoError(t, err)
	assert.False(t, result.hasSchemaKeys())
}
