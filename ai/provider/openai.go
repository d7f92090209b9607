package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tasklens/tasklens/internal/httpclient"
)

// OpenAIClient speaks the OpenAI chat-completions contract. It serves
// both direct OpenAI and OpenRouter access; the two differ only in
// base URL and in OpenRouter's optional post-call usage enrichment.
type OpenAIClient struct {
	name        Name
	apiKey      string
	baseURL     string
	httpClient  *httpclient.SaferClient
	limiter     *rate.Limiter
	logger      *zap.SugaredLogger
	enrichUsage bool
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	// OpenRouter selects the OpenRouter variant (enables enrichment)
	OpenRouter bool
	// EnrichUsage enables the best-effort generation cost lookup
	// (OpenRouter only)
	EnrichUsage bool
	Limiter     *rate.Limiter
	Logger      *zap.SugaredLogger
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(apiKey, baseURL string, opts OpenAIOptions) *OpenAIClient {
	name := NameOpenAI
	if opts.OpenRouter {
		name = NameOpenRouter
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &OpenAIClient{
		name:        name,
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpclient.New(120 * time.Second),
		limiter:     opts.Limiter,
		logger:      logger,
		enrichUsage: opts.OpenRouter && opts.EnrichUsage,
	}
}

func (c *OpenAIClient) Name() Name { return c.name }

// chatMessage is one turn in the chat-completions request body.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest is the OpenAI-compatible request body.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatCompletionResponse is the OpenAI-compatible response envelope.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat sends one chat-completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, &InvokeError{
			Kind:     KindConfiguration,
			Message:  "API key not configured",
			Provider: c.name,
			Model:    req.Model,
			Solution: "set TASKLENS_" + strings.ToUpper(string(c.name)) + "_API_KEY or providers." + string(c.name) + ".api_key",
		}
	}

	if ierr := checkCancelled(ctx, c.name, req.Model); ierr != nil {
		return nil, ierr
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &InvokeError{
				Kind:     KindCancelled,
				Message:  "cancelled while waiting for rate limiter",
				Details:  err.Error(),
				Provider: c.name,
				Model:    req.Model,
			}
		}
	}

	body, envelope, ierr := c.send(ctx, req)
	if ierr != nil {
		return nil, ierr
	}

	text, ierr := c.parseResponse(req.Model, body, envelope)
	if ierr != nil {
		return nil, ierr
	}

	usage := c.normalizeUsage(envelope)

	model := envelope.Model
	if model == "" {
		model = req.Model
	}

	resp := &Response{Text: text, Model: model, Usage: usage}

	if c.enrichUsage && envelope.ID != "" {
		c.enrich(ctx, envelope.ID, resp)
	}

	c.logger.Debugw("chat completion",
		"provider", c.name,
		"model", model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"content_length", len(text),
	)

	return resp, nil
}

// send marshals, posts, and reads the raw response, classifying
// transport failures.
func (c *OpenAIClient) send(ctx context.Context, req Request) ([]byte, *chatCompletionResponse, *InvokeError) {
	reqBody := c.buildRequest(req)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, &InvokeError{
			Kind: KindTransport, Message: "failed to marshal request",
			Details: err.Error(), Provider: c.name, Model: req.Model,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, &InvokeError{
			Kind: KindTransport, Message: "failed to create request",
			Details: err.Error(), Provider: c.name, Model: req.Model,
		}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.name == NameOpenRouter {
		// Shows up in the OpenRouter dashboard activity view
		httpReq.Header.Set("X-Title", "tasklens")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		kind := KindTransport
		if ctx.Err() != nil {
			kind = KindCancelled
		}
		return nil, nil, &InvokeError{
			Kind: kind, Message: "request failed",
			Details: err.Error(), Provider: c.name, Model: req.Model,
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, nil, &InvokeError{
			Kind: KindTransport, Message: "failed to read response",
			Details: err.Error(), Provider: c.name, Model: req.Model,
			StatusCode: httpResp.StatusCode,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, nil, &InvokeError{
			Kind:       KindTransport,
			Message:    "API request failed",
			Details:    truncate(string(body), 500),
			Provider:   c.name,
			Model:      req.Model,
			StatusCode: httpResp.StatusCode,
			Solution:   statusSolution(c.name, req.Model, httpResp.StatusCode),
		}
	}

	var envelope chatCompletionResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, &InvokeError{
			Kind: KindMalformedResponse, Message: "failed to decode response envelope",
			Details: err.Error(), Provider: c.name, Model: req.Model,
		}
	}

	return body, &envelope, nil
}

func (c *OpenAIClient) buildRequest(req Request) chatCompletionRequest {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	return chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func (c *OpenAIClient) parseResponse(model string, body []byte, envelope *chatCompletionResponse) (string, *InvokeError) {
	if len(envelope.Choices) == 0 {
		return "", &InvokeError{
			Kind: KindMalformedResponse, Message: "no completion choices in response",
			Details: truncate(string(body), 500), Provider: c.name, Model: model,
		}
	}

	text := strings.TrimSpace(envelope.Choices[0].Message.Content)
	if text == "" {
		return "", &InvokeError{
			Kind: KindMalformedResponse, Message: "empty message content in response",
			Details: truncate(string(body), 500), Provider: c.name, Model: model,
		}
	}

	return text, nil
}

func (c *OpenAIClient) normalizeUsage(envelope *chatCompletionResponse) Usage {
	usage := Usage{
		PromptTokens:     envelope.Usage.PromptTokens,
		CompletionTokens: envelope.Usage.CompletionTokens,
		TotalTokens:      envelope.Usage.TotalTokens,
		Source:           TokenSourceActual,
	}
	// Some gateways omit the total; the invariant is total == prompt + completion
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

// generationResponse is OpenRouter's generation metadata envelope.
type generationResponse struct {
	Data struct {
		TotalCost              float64 `json:"total_cost"`
		NativeTokensPrompt     int     `json:"native_tokens_prompt"`
		NativeTokensCompletion int     `json:"native_tokens_completion"`
	} `json:"data"`
}

// enrich replaces estimated usage with provider-confirmed values via
// OpenRouter's generation lookup. Best effort: any failure leaves the
// original usage untouched and never fails the overall call.
func (c *OpenAIClient) enrich(ctx context.Context, generationID string, resp *Response) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/generation?id="+generationID, nil)
	if err != nil {
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debugw("generation lookup failed, keeping estimate", "error", err)
		return
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		c.logger.Debugw("generation lookup returned non-200, keeping estimate", "status", httpResp.StatusCode)
		return
	}

	var gen generationResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&gen); err != nil {
		c.logger.Debugw("generation lookup decode failed, keeping estimate", "error", err)
		return
	}

	cost := gen.Data.TotalCost
	resp.Usage.ActualCost = &cost
	if gen.Data.NativeTokensPrompt > 0 {
		resp.Usage.PromptTokens = gen.Data.NativeTokensPrompt
	}
	if gen.Data.NativeTokensCompletion > 0 {
		resp.Usage.CompletionTokens = gen.Data.NativeTokensCompletion
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// SetHTTPClient overrides the HTTP client. Only for tests that talk to
// httptest servers; production code keeps the default SSRF-safer client.
func (c *OpenAIClient) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}
