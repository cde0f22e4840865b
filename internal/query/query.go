// internal/query/query.go

// Package query is the client side of a deployment: completions and chat ride
// the OpenAI-compatible endpoints, token streams ride the websocket endpoint.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mwiater/paragon/internal/appconfig"
	"github.com/mwiater/paragon/internal/deploy"
	"github.com/mwiater/paragon/internal/logging"
)

const defaultTimeout = 30 * time.Second

// Options configure a client for one running deployment.
type Options struct {
	// BaseURL is the deployment root, e.g. http://127.0.0.1:8000. A trailing
	// /v1 is tolerated.
	BaseURL string
	Model   string
	// APIKey is accepted for parity with hosted endpoints; deployments
	// ignore it.
	APIKey  string
	Timeout time.Duration
}

// Client queries a single deployed model.
type Client struct {
	api   *openai.Client
	httpc *http.Client
	base  string
	model string
}

// New builds a client. It does not contact the deployment; use Health or
// WaitReady for that.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("query: no base URL")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("query: no model name")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	base = strings.TrimSuffix(base, "/v1")

	httpc := &http.Client{Timeout: timeout}
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = base + "/v1"
	cfg.HTTPClient = httpc

	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		httpc: httpc,
		base:  base,
		model: opts.Model,
	}, nil
}

// Model is the model name this client queries.
func (c *Client) Model() string {
	return c.model
}

// Complete requests one continuation per prompt and returns them in prompt
// order. Sampling fields with no completions-schema equivalent (top_k) stay
// at the deployment's defaults.
func (c *Client) Complete(ctx context.Context, prompts []string, params appconfig.SamplingParams) ([]string, error) {
	req := openai.CompletionRequest{
		Model:  c.model,
		Prompt: prompts,
	}
	if params.MaxNewTokens != nil {
		req.MaxTokens = *params.MaxNewTokens
	}
	if params.Temperature != nil {
		req.Temperature = float32(*params.Temperature)
	}
	if params.TopP != nil {
		req.TopP = float32(*params.TopP)
	}
	if params.Seed != nil {
		seed := int(*params.Seed)
		req.Seed = &seed
	}
	logging.LogRequest("SEND", c.base+"/v1/completions", c.model, "completions", prompts)

	resp, err := c.api.CreateCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query: completion request: %w", err)
	}
	if len(resp.Choices) != len(prompts) {
		return nil, fmt.Errorf("query: got %d choices for %d prompts", len(resp.Choices), len(prompts))
	}

	outputs := make([]string, len(prompts))
	for _, choice := range resp.Choices {
		if choice.Index < 0 || choice.Index >= len(outputs) {
			return nil, fmt.Errorf("query: choice index %d out of range", choice.Index)
		}
		outputs[choice.Index] = choice.Text
	}
	return outputs, nil
}

// Chat sends a single user turn and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, prompt string, params appconfig.SamplingParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.MaxNewTokens != nil {
		req.MaxTokens = *params.MaxNewTokens
	}
	if params.Temperature != nil {
		req.Temperature = float32(*params.Temperature)
	}
	if params.TopP != nil {
		req.TopP = float32(*params.TopP)
	}
	if params.Seed != nil {
		seed := int(*params.Seed)
		req.Seed = &seed
	}
	logging.LogRequest("SEND", c.base+"/v1/chat/completions", c.model, "chat", prompt)

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("query: chat request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("query: chat response carries no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream runs one generation over the websocket endpoint, invoking onToken
// for every decoded token, and returns the final outputs. Unlike Complete it
// carries the full sampling surface, top_k included.
func (c *Client) Stream(ctx context.Context, prompts []string, params appconfig.SamplingParams, onToken func(prompt int, token string)) ([]string, error) {
	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + "/v1/stream"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("query: dial %s: %w", wsURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// A canceled context closes the connection, which unblocks ReadJSON.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	req := deploy.CompletionRequest{
		Model:       c.model,
		Prompt:      deploy.PromptList(prompts),
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		Seed:        params.Seed,
	}
	if params.MaxNewTokens != nil {
		req.MaxTokens = *params.MaxNewTokens
	}
	logging.LogRequest("SEND", wsURL, c.model, "stream", prompts)

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("query: send stream request: %w", err)
	}

	for {
		var msg deploy.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("query: read stream frame: %w", err)
		}
		switch msg.Type {
		case deploy.MessageTypeToken:
			if onToken != nil {
				onToken(msg.Prompt, msg.Token)
			}
		case deploy.MessageTypeDone:
			return msg.Outputs, nil
		case deploy.MessageTypeError:
			return nil, fmt.Errorf("query: deployment error: %s", msg.Error)
		default:
			return nil, fmt.Errorf("query: unexpected frame type %q", msg.Type)
		}
	}
}

// Health fetches the deployment health report.
func (c *Client) Health(ctx context.Context) (*deploy.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("query: build health request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query: health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query: health returned %s", resp.Status)
	}

	var health deploy.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("query: decode health response: %w", err)
	}
	return &health, nil
}

// WaitReady polls the health endpoint until the deployment answers or the
// context expires.
func (c *Client) WaitReady(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := c.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("query: deployment at %s never became ready: %w", c.base, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ListModels returns the model ids the deployment serves.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: list models: %w", err)
	}
	names := make([]string, len(list.Models))
	for i, m := range list.Models {
		names[i] = m.ID
	}
	return names, nil
}
