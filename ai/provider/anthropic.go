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

// APIVersion is the required Anthropic API version header
const anthropicAPIVersion = "2023-06-01"

// AnthropicClient speaks the Anthropic Messages API: x-api-key auth,
// system prompt as a top-level field, content blocks in the response,
// and input/output token naming.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.SaferClient
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

// AnthropicOptions configures an AnthropicClient.
type AnthropicOptions struct {
	Limiter *rate.Limiter
	Logger  *zap.SugaredLogger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
func NewAnthropicClient(apiKey, baseURL string, opts AnthropicOptions) *AnthropicClient {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &AnthropicClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpclient.New(120 * time.Second),
		limiter:    opts.Limiter,
		logger:     logger,
	}
}

func (c *AnthropicClient) Name() Name { return NameAnthropic }

// messagesRequest is the Anthropic Messages API request body.
type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	Temperature float64       `json:"temperature"`
}

// messagesResponse is the Anthropic Messages API response envelope.
type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat sends one Messages API request.
func (c *AnthropicClient) Chat(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, &InvokeError{
			Kind:     KindConfiguration,
			Message:  "API key not configured",
			Provider: NameAnthropic,
			Model:    req.Model,
			Solution: "set TASKLENS_ANTHROPIC_API_KEY or providers.anthropic.api_key",
		}
	}

	if ierr := checkCancelled(ctx, NameAnthropic, req.Model); ierr != nil {
		return nil, ierr
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &InvokeError{
				Kind:     KindCancelled,
				Message:  "cancelled while waiting for rate limiter",
				Details:  err.Error(),
				Provider: NameAnthropic,
				Model:    req.Model,
			}
		}
	}

	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, &InvokeError{
			Kind: KindTransport, Message: "failed to marshal request",
			Details: err.Error(), Provider: NameAnthropic, Model: req.Model,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, &InvokeError{
			Kind: KindTransport, Message: "failed to create request",
			Details: err.Error(), Provider: NameAnthropic, Model: req.Model,
		}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		kind := KindTransport
		if ctx.Err() != nil {
			kind = KindCancelled
		}
		return nil, &InvokeError{
			Kind: kind, Message: "request failed",
			Details: err.Error(), Provider: NameAnthropic, Model: req.Model,
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &InvokeError{
			Kind: KindTransport, Message: "failed to read response",
			Details: err.Error(), Provider: NameAnthropic, Model: req.Model,
			StatusCode: httpResp.StatusCode,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &InvokeError{
			Kind:       KindTransport,
			Message:    "API request failed",
			Details:    truncate(string(body), 500),
			Provider:   NameAnthropic,
			Model:      req.Model,
			StatusCode: httpResp.StatusCode,
			Solution:   statusSolution(NameAnthropic, req.Model, httpResp.StatusCode),
		}
	}

	var envelope messagesResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &InvokeError{
			Kind: KindMalformedResponse, Message: "failed to decode response envelope",
			Details: err.Error(), Provider: NameAnthropic, Model: req.Model,
		}
	}

	text, ierr := c.parseResponse(req.Model, body, &envelope)
	if ierr != nil {
		return nil, ierr
	}

	usage := c.normalizeUsage(&envelope)

	model := envelope.Model
	if model == "" {
		model = req.Model
	}

	c.logger.Debugw("chat completion",
		"provider", NameAnthropic,
		"model", model,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"content_length", len(text),
	)

	return &Response{Text: text, Model: model, Usage: usage}, nil
}

func (c *AnthropicClient) buildRequest(req Request) messagesRequest {
	return messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages: []chatMessage{
			{Role: "user", Content: req.User},
		},
	}
}

func (c *AnthropicClient) parseResponse(model string, body []byte, envelope *messagesResponse) (string, *InvokeError) {
	var content strings.Builder
	for _, block := range envelope.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(content.String())
	if text == "" {
		return "", &InvokeError{
			Kind: KindMalformedResponse, Message: "no text content in response",
			Details: truncate(string(body), 500), Provider: NameAnthropic, Model: model,
		}
	}

	return text, nil
}

func (c *AnthropicClient) normalizeUsage(envelope *messagesResponse) Usage {
	return Usage{
		PromptTokens:     envelope.Usage.InputTokens,
		CompletionTokens: envelope.Usage.OutputTokens,
		TotalTokens:      envelope.Usage.InputTokens + envelope.Usage.OutputTokens,
		Source:           TokenSourceActual,
	}
}

// SetHTTPClient overrides the HTTP client. Only for tests.
func (c *AnthropicClient) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}
