package query

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tasklens/tasklens/ai/pricing"
	"github.com/tasklens/tasklens/ai/provider"
	"github.com/tasklens/tasklens/ai/tracker"
	"github.com/tasklens/tasklens/config"
)

// Parser runs the full pipeline: explicit-syntax extraction, optional
// model invocation, JSON recovery, and the merge. One Parser serves
// concurrent queries; it holds only read-only configuration and
// stateless components.
type Parser struct {
	cfg       *config.Config
	extractor *SyntaxExtractor
	prompts   *PromptBuilder
	recovery  *Extractor
	merger    *Merger
	client    provider.Client
	tracker   *tracker.Tracker
	log       *zap.SugaredLogger

	clientOptions provider.ClientOptions
}

// Options configures optional Parser collaborators.
type Options struct {
	Logger *zap.SugaredLogger

	// Client overrides the provider client built from configuration.
	// Used by tests and callers that manage their own gateway.
	Client provider.Client

	// Tracker records per-invocation usage when non-nil.
	Tracker *tracker.Tracker

	// Limiter paces provider requests when non-nil.
	Limiter *rate.Limiter
}

// NewParser builds a parser over the given configuration. The provider
// client is created lazily on first AI invocation, so queries made of
// pure property syntax work without any provider configured.
func NewParser(cfg *config.Config, opts Options) *Parser {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &Parser{
		cfg:       cfg,
		extractor: NewSyntaxExtractor(cfg.Query),
		prompts:   NewPromptBuilder(cfg.Query),
		recovery:  NewExtractor(log),
		merger:    NewMerger(cfg.Query, log),
		client:    opts.Client,
		tracker:   opts.Tracker,
		log:       log,
	}
	if p.client == nil {
		// Deferred: a configuration error should only surface when a
		// query actually needs the model
		p.clientOptions = provider.ClientOptions{Logger: log, Limiter: opts.Limiter}
	}
	return p
}

// Parse turns a raw query into a ParsedQuery. Configuration and
// cancellation errors propagate; every other AI-path failure degrades
// to the explicit-syntax-only result with ParserError set.
func (p *Parser) Parse(ctx context.Context, rawQuery string) (*ParsedQuery, error) {
	props := p.extractor.Extract(rawQuery)
	residual := p.extractor.Strip(rawQuery)

	// Pure-property queries are free: no prompt, no network call
	if residual == "" {
		p.log.Debugw("query fully resolved by standard syntax", "query", rawQuery)
		return p.merger.ExplicitOnly(props, rawQuery), nil
	}

	purpose := p.cfg.Purpose("parsing")
	client, err := p.gatewayClient(purpose)
	if err != nil {
		return nil, err
	}

	system, user := p.prompts.Build(residual)
	requestedAt := time.Now()

	resp, err := client.Chat(ctx, provider.Request{
		System:      system,
		User:        user,
		Model:       purpose.Model,
		Temperature: purpose.Temperature,
		MaxTokens:   purpose.MaxTokens,
	})
	if err != nil {
		if provider.IsConfigurationError(err) || provider.IsCancellation(err) {
			return nil, err
		}
		p.log.Warnw("model invocation failed, degrading to explicit syntax",
			"model", purpose.Model, "error", err)
		p.trackFailure(rawQuery, purpose, client.Name(), requestedAt, err)
		return p.merger.MergeFailure(props, rawQuery, residual, err, purpose.Model), nil
	}

	jsonStr := p.recovery.ExtractJSON(resp.Text)
	ai, err := p.recovery.Decode(jsonStr, resp.Text)
	if err != nil {
		p.log.Warnw("JSON recovery failed, degrading to explicit syntax",
			"model", purpose.Model, "error", err)
		p.trackFailure(rawQuery, purpose, client.Name(), requestedAt, err)
		result := p.merger.MergeFailure(props, rawQuery, residual, err, purpose.Model)
		result.TokenUsage = p.tokenUsage(resp, client.Name())
		return result, nil
	}

	result := p.merger.Merge(props, ai, rawQuery, residual)
	result.TokenUsage = p.tokenUsage(resp, client.Name())
	p.trackSuccess(rawQuery, purpose, client.Name(), requestedAt, result.TokenUsage)

	return result, nil
}

// gatewayClient returns the injected client or builds one from the
// purpose configuration.
func (p *Parser) gatewayClient(purpose config.PurposeConfig) (provider.Client, error) {
	if p.client != nil {
		return p.client, nil
	}
	return provider.NewClient(purpose, p.cfg.Providers, p.clientOptions)
}

// tokenUsage converts normalized provider usage into the result's
// accounting shape, pricing it from the configured snapshot.
func (p *Parser) tokenUsage(resp *provider.Response, name provider.Name) *TokenUsage {
	breakdown := pricing.Cost(resp.Model, name, resp.Usage, p.cfg.Pricing.Models)
	return &TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		EstimatedCost:    breakdown.Cost,
		Model:            resp.Model,
		Provider:         string(name),
		IsEstimated:      resp.Usage.Source == provider.TokenSourceEstimated,
		TokenSource:      string(resp.Usage.Source),
		CostMethod:       breakdown.Method,
		PricingSource:    breakdown.Source,
	}
}

func (p *Parser) trackSuccess(rawQuery string, purpose config.PurposeConfig, name provider.Name, requestedAt time.Time, usage *TokenUsage) {
	if p.tracker == nil {
		return
	}
	respondedAt := time.Now()
	rec := &tracker.Record{
		Purpose:           "parsing",
		Query:             rawQuery,
		Model:             purpose.Model,
		Provider:          string(name),
		RequestTimestamp:  requestedAt,
		ResponseTimestamp: &respondedAt,
		PromptTokens:      &usage.PromptTokens,
		CompletionTokens:  &usage.CompletionTokens,
		TotalTokens:       &usage.TotalTokens,
		Cost:              &usage.EstimatedCost,
		TokenSource:       usage.TokenSource,
		Success:           true,
	}
	if err := p.tracker.Track(rec); err != nil {
		p.log.Warnw("failed to record usage", "error", err)
	}
}

func (p *Parser) trackFailure(rawQuery string, purpose config.PurposeConfig, name provider.Name, requestedAt time.Time, cause error) {
	if p.tracker == nil {
		return
	}
	msg := cause.Error()
	rec := &tracker.Record{
		Purpose:          "parsing",
		Query:            rawQuery,
		Model:            purpose.Model,
		Provider:         string(name),
		RequestTimestamp: requestedAt,
		Success:          false,
		ErrorMessage:     &msg,
	}
	if err := p.tracker.Track(rec); err != nil {
		p.log.Warnw("failed to record usage", "error", err)
	}
}
