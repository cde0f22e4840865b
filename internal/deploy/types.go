// internal/deploy/types.go
package deploy

import (
	"encoding/json"
	"time"
)

// PromptList accepts either a JSON string or an array of strings, the way
// OpenAI-style completion endpoints do.
type PromptList []string

// UnmarshalJSON implements the string-or-array prompt field.
func (p *PromptList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*p = PromptList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*p = PromptList(many)
	return nil
}

// CompletionRequest is the /v1/completions payload. TaskIDs and LoRAUIDs
// carry one entry per prompt when present.
type CompletionRequest struct {
	Model       string     `json:"model"`
	Prompt      PromptList `json:"prompt"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
	TopP        *float64   `json:"top_p,omitempty"`
	TopK        *int       `json:"top_k,omitempty"`
	Seed        *int64     `json:"seed,omitempty"`
	Stop        []string   `json:"stop,omitempty"`
	TaskIDs     []string   `json:"task_ids,omitempty"`
	LoRAUIDs    []string   `json:"lora_uids,omitempty"`
}

// CompletionChoice is one generated continuation.
type CompletionChoice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
}

// UsageInfo reports token accounting for a request.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the /v1/completions reply.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   UsageInfo          `json:"usage"`
}

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the /v1/chat/completions payload. Chat serves a single
// conversation, so prompt tuning and LoRA selection are single fields.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	TopK        *int          `json:"top_k,omitempty"`
	Seed        *int64        `json:"seed,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	TaskID      string        `json:"task_id,omitempty"`
	LoRAUID     string        `json:"lora_uid,omitempty"`
}

// ChatChoice is the generated assistant turn.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatResponse is the /v1/chat/completions reply.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   UsageInfo    `json:"usage"`
}

// ModelInfo describes the deployed model for /v1/models.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the /v1/models reply.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// HealthResponse is the /v1/health reply.
type HealthResponse struct {
	Status        string  `json:"status"`
	Model         string  `json:"model"`
	Instance      string  `json:"instance"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// apiError is the OpenAI-style error body so standard clients can decode
// failures.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// WebSocket message types for /v1/stream.
const (
	MessageTypeToken = "token"
	MessageTypeDone  = "done"
	MessageTypeError = "error"
)

// StreamMessage is one frame of a websocket generation stream.
type StreamMessage struct {
	Type      string     `json:"type"`
	Prompt    int        `json:"prompt,omitempty"`
	Token     string     `json:"token,omitempty"`
	Outputs   []string   `json:"outputs,omitempty"`
	Usage     *UsageInfo `json:"usage,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
