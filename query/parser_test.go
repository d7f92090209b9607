package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklens/tasklens/ai/provider"
	"github.com/tasklens/tasklens/config"
	"github.com/tasklens/tasklens/errors"
)

type fakeClient struct {
	name  provider.Name
	resp  *provider.Response
	err   error
	calls int
}

func (f *fakeClient) Name() provider.Name { return f.name }

func (f *fakeClient) Chat(ctx context.Context, req provider.Request) (*provider.Response, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, &provider.InvokeError{
			Kind:     provider.KindCancelled,
			Message:  "request cancelled before invocation",
			Provider: f.name,
			Model:    req.Model,
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testParserConfig() *config.Config {
	return &config.Config{
		Query: testQueryConfig(),
		Purposes: map[string]config.PurposeConfig{
			"parsing": {Provider: "openrouter", Model: "openai/gpt-4o-mini", Temperature: 0.1, MaxTokens: 1000},
		},
	}
}

func okResponse(text string) *provider.Response {
	return &provider.Response{
		Text:  text,
		Model: "openai/gpt-4o-mini",
		Usage: provider.Usage{
			PromptTokens:     400,
			CompletionTokens: 100,
			TotalTokens:      500,
			Source:           provider.TokenSourceActual,
		},
	}
}

func TestParsePurePropertyQuerySkipsModel(t *testing.T) {
	client := &fakeClient{name: provider.NameOpenRouter}
	p := NewParser(testParserConfig(), Options{Client: client})

	result, err := p.Parse(context.Background(), "P1 overdue")
	require.NoError(t, err)

	assert.Zero(t, client.calls, "pure-property queries must never invoke the model")
	assert.Equal(t, []int{1}, result.Priority)
	assert.Equal(t, "overdue", result.DueDate)
	assert.Empty(t, result.Keywords)
	assert.Empty(t, result.CoreKeywords)
	assert.Nil(t, result.TokenUsage)
}

func TestParseExpandsKeywords(t *testing.T) {
	client := &fakeClient{
		name: provider.NameOpenRouter,
		resp: okResponse(`{
			"coreKeywords": ["fix", "bug"],
			"keywords": ["fix", "bug", "repair", "resolve", "patch", "correct", "debug",
				"defect", "error", "fault", "glitch", "issue"]
		}`),
	}
	p := NewParser(testParserConfig(), Options{Client: client})

	result, err := p.Parse(context.Background(), "Fix bug")
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, []string{"fix", "bug"}, result.CoreKeywords)
	assert.GreaterOrEqual(t, len(result.Keywords), 2)
	assert.LessOrEqual(t, len(result.Keywords), 12)

	require.NotNil(t, result.ExpansionMetadata)
	assert.True(t, result.ExpansionMetadata.Enabled)
	assert.Equal(t, 2, result.ExpansionMetadata.CoreKeywordsCount)

	require.NotNil(t, result.TokenUsage)
	assert.Equal(t, 500, result.TokenUsage.TotalTokens)
	assert.Equal(t, "actual", result.TokenUsage.TokenSource)
}

func TestParseTransportErrorDegradesToExplicit(t *testing.T) {
	client := &fakeClient{
		name: provider.NameOpenRouter,
		err: &provider.InvokeError{
			Kind:       provider.KindTransport,
			Message:    "authentication failed",
			Provider:   provider.NameOpenRouter,
			Model:      "openai/gpt-4o-mini",
			StatusCode: 401,
		},
	}
	p := NewParser(testParserConfig(), Options{Client: client})

	result, err := p.Parse(context.Background(), "p2 fix login")
	require.NoError(t, err, "transport failures degrade, they do not abort the query")

	assert.Equal(t, []int{2}, result.Priority, "explicit syntax survives the AI failure")
	assert.Equal(t, []string{"fix", "login"}, result.Keywords)
	assert.Contains(t, result.ParserError, "401")
	assert.Equal(t, "openai/gpt-4o-mini", result.ParserModel)
	assert.Nil(t, result.ExpansionMetadata)
}

func TestParseMalformedModelOutputDegrades(t *testing.T) {
	client := &fakeClient{
		name: provider.NameOpenRouter,
		resp: okResponse("I'm sorry, I cannot help with that."),
	}
	p := NewParser(testParserConfig(), Options{Client: client})

	result, err := p.Parse(context.Background(), "deploy release")
	require.NoError(t, err)

	assert.NotEmpty(t, result.ParserError)
	assert.Equal(t, []string{"deploy", "release"}, result.Keywords)
	require.NotNil(t, result.TokenUsage, "tokens were spent even though parsing failed")
	assert.Equal(t, 500, result.TokenUsage.TotalTokens)
}

func TestParseCancellationPropagates(t *testing.T) {
	client := &fakeClient{name: provider.NameOpenRouter, resp: okResponse("{}")}
	p := NewParser(testParserConfig(), Options{Client: client})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Parse(ctx, "fix bug")
	require.Error(t, err)
	assert.True(t, provider.IsCancellation(err))
	assert.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestParseConfigurationErrorPropagates(t *testing.T) {
	// No injected client and no API key configured
	p := NewParser(testParserConfig(), Options{})

	_, err := p.Parse(context.Background(), "fix bug")
	require.Error(t, err)
	assert.True(t, provider.IsConfigurationError(err))
	assert.True(t, errors.Is(err, errors.ErrNotConfigured))
}

func TestParseConfigurationErrorSkippedForPureSyntax(t *testing.T) {
	// Unconfigured provider, but the query never needs it
	p := NewParser(testParserConfig(), Options{})

	result, err := p.Parse(context.Background(), "p1 status:open")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, result.Priority)
	assert.Equal(t, []string{"open"}, result.Status)
}

func TestParseSoftSchemaMismatchStillMerges(t *testing.T) {
	client := &fakeClient{
		name: provider.NameOpenRouter,
		resp: okResponse(`{"summary": "the user wants bug tasks"}`),
	}
	p := NewParser(testParserConfig(), Options{Client: client})

	result, err := p.Parse(context.Background(), "show bug tasks")
	require.NoError(t, err)

	// Degraded but usable: fallback tokenization fills keywords
	assert.Empty(t, result.ParserError)
	assert.Contains(t, result.Keywords, "bug")
}
