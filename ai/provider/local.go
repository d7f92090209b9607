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

// charsPerToken is the estimation ratio used when a local server
// reports no usage. Roughly right for English text on most tokenizers.
const charsPerToken = 4

// LocalClient speaks the Ollama-style chat contract: native /api/chat
// endpoint, options block with num_predict/num_ctx, message.content
// envelope, and no usage block (token counts are estimated).
type LocalClient struct {
	baseURL     string
	contextSize int
	httpClient  *httpclient.SaferClient
	limiter     *rate.Limiter
	logger      *zap.SugaredLogger
}

// LocalOptions configures a LocalClient.
type LocalOptions struct {
	TimeoutSeconds int // 0 = 300s default
	ContextSize    int // num_ctx; 0 = model default
	Limiter        *rate.Limiter
	Logger         *zap.SugaredLogger
}

// NewLocalClient creates a client for a local inference server.
func NewLocalClient(baseURL string, opts LocalOptions) *LocalClient {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	timeout := 300 * time.Second
	if opts.TimeoutSeconds > 0 {
		timeout = time.Duration(opts.TimeoutSeconds) * time.Second
	}

	// Local inference lives on localhost; the private-IP block that
	// protects cloud clients would break it.
	noBlock := false
	client := httpclient.NewWithOptions(timeout, httpclient.Options{
		BlockPrivateIP: &noBlock,
	})

	return &LocalClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		contextSize: opts.ContextSize,
		httpClient:  client,
		limiter:     opts.Limiter,
		logger:      logger,
	}
}

func (c *LocalClient) Name() Name { return NameLocal }

// localChatRequest is the Ollama /api/chat request body.
type localChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  localOptions  `json:"options"`
}

// localOptions carries Ollama-specific sampling options.
type localOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

// localChatResponse is the Ollama /api/chat response envelope.
type localChatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
}

// Chat sends one chat request to the local server.
func (c *LocalClient) Chat(ctx context.Context, req Request) (*Response, error) {
	if ierr := checkCancelled(ctx, NameLocal, req.Model); ierr != nil {
		return nil, ierr
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &InvokeError{
				Kind:     KindCancelled,
				Message:  "cancelled while waiting for rate limiter",
				Details:  err.Error(),
				Provider: NameLocal,
				Model:    req.Model,
			}
		}
	}

	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, &InvokeError{
			Kind: KindTransport, Message: "failed to marshal request",
			Details: err.Error(), Provider: NameLocal, Model: req.Model,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, &InvokeError{
			Kind: KindTransport, Message: "failed to create request",
			Details: err.Error(), Provider: NameLocal, Model: req.Model,
		}
	}

	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		kind := KindTransport
		if ctx.Err() != nil {
			kind = KindCancelled
		}
		return nil, &InvokeError{
			Kind: kind, Message: "request failed",
			Details: err.Error(), Provider: NameLocal, Model: req.Model,
			Solution: "check that the local inference server is running",
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &InvokeError{
			Kind: KindTransport, Message: "failed to read response",
			Details: err.Error(), Provider: NameLocal, Model: req.Model,
			StatusCode: httpResp.StatusCode,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &InvokeError{
			Kind:       KindTransport,
			Message:    "API request failed",
			Details:    truncate(string(body), 500),
			Provider:   NameLocal,
			Model:      req.Model,
			StatusCode: httpResp.StatusCode,
			Solution:   statusSolution(NameLocal, req.Model, httpResp.StatusCode),
		}
	}

	var envelope localChatResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &InvokeError{
			Kind: KindMalformedResponse, Message: "failed to decode response envelope",
			Details: err.Error(), Provider: NameLocal, Model: req.Model,
		}
	}

	text, ierr := c.parseResponse(req.Model, body, &envelope)
	if ierr != nil {
		return nil, ierr
	}

	usage := c.normalizeUsage(req, text)

	model := envelope.Model
	if model == "" {
		model = req.Model
	}

	c.logger.Debugw("chat completion",
		"provider", NameLocal,
		"model", model,
		"estimated_tokens", usage.TotalTokens,
		"content_length", len(text),
	)

	return &Response{Text: text, Model: model, Usage: usage}, nil
}

func (c *LocalClient) buildRequest(req Request) localChatRequest {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	return localChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   false,
		Options: localOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			NumCtx:      c.contextSize,
		},
	}
}

func (c *LocalClient) parseResponse(model string, body []byte, envelope *localChatResponse) (string, *InvokeError) {
	text := strings.TrimSpace(envelope.Message.Content)
	if text == "" {
		return "", &InvokeError{
			Kind: KindMalformedResponse, Message: "empty message content in response",
			Details: truncate(string(body), 500), Provider: NameLocal, Model: model,
		}
	}
	return text, nil
}

// normalizeUsage estimates token counts from character length since
// the local contract carries no usage block.
func (c *LocalClient) normalizeUsage(req Request, responseText string) Usage {
	prompt := (len(req.System) + len(req.User)) / charsPerToken
	completion := len(responseText) / charsPerToken
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Source:           TokenSourceEstimated,
	}
}

// SetHTTPClient overrides the HTTP client. Only for tests.
func (c *LocalClient) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}
