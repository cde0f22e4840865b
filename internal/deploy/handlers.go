// internal/deploy/handlers.go
package deploy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mwiater/paragon/internal/engine"
	"github.com/mwiater/paragon/internal/logging"
)

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		Model:         s.model,
		Instance:      s.instanceID,
		UptimeSeconds: time.Since(s.started).Seconds(),
	})
}

func (s *Server) modelsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, ModelList{
		Object: "list",
		Data: []ModelInfo{{
			ID:      s.model,
			Object:  "model",
			Created: s.started.Unix(),
			OwnedBy: "paragon",
		}},
	})
}

func (s *Server) completionsHandler(c *gin.Context) {
	var req CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request payload: %v", err))
		return
	}
	if !s.checkModel(c, req.Model) {
		return
	}
	logging.LogRequest("RECV", c.Request.URL.Path, s.model, "completions", req.Prompt)

	result, err := s.engine.Generate(c.Request.Context(), engine.Request{
		Prompts:      req.Prompt,
		MaxNewTokens: req.MaxTokens,
		Sampling:     samplingFromRequest(req.Temperature, req.TopP, req.TopK, req.Seed),
		TaskIDs:      req.TaskIDs,
		LoRAUIDs:     req.LoRAUIDs,
		StopWords:    req.Stop,
	})
	if err != nil {
		generateError(c, err)
		return
	}

	choices := make([]CompletionChoice, len(result.Outputs))
	for i, text := range result.Outputs {
		choices[i] = CompletionChoice{
			Text:         text,
			Index:        i,
			FinishReason: result.FinishReasons[i],
		}
	}
	c.JSON(http.StatusOK, CompletionResponse{
		ID:      "cmpl-" + uuid.NewString(),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   s.model,
		Choices: choices,
		Usage:   usageInfo(result),
	})
}

func (s *Server) chatHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("invalid request payload: %v", err))
		return
	}
	if !s.checkModel(c, req.Model) {
		return
	}
	if len(req.Messages) == 0 {
		badRequest(c, "chat request carries no messages")
		return
	}
	logging.LogRequest("RECV", c.Request.URL.Path, s.model, "chat", req.Messages)

	// The conversation flattens to one context; the last word of the joined
	// turns is what the next prediction continues from.
	contents := make([]string, len(req.Messages))
	for i, msg := range req.Messages {
		contents[i] = msg.Content
	}
	prompt := strings.Join(contents, "\n")

	engineReq := engine.Request{
		Prompts:      []string{prompt},
		MaxNewTokens: req.MaxTokens,
		Sampling:     samplingFromRequest(req.Temperature, req.TopP, req.TopK, req.Seed),
		StopWords:    req.Stop,
	}
	if req.TaskID != "" {
		engineReq.TaskIDs = []string{req.TaskID}
	}
	if req.LoRAUID != "" {
		engineReq.LoRAUIDs = []string{req.LoRAUID}
	}

	result, err := s.engine.Generate(c.Request.Context(), engineReq)
	if err != nil {
		generateError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   s.model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: result.Outputs[0]},
			FinishReason: result.FinishReasons[0],
		}},
		Usage: usageInfo(result),
	})
}

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamHandler upgrades to a websocket, reads one completion request, and
// streams tokens as they are decoded, closing with a done frame.
func (s *Server) streamHandler(c *gin.Context) {
	conn, err := streamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		badRequest(c, fmt.Sprintf("websocket upgrade failed: %v", err))
		return
	}
	defer conn.Close()

	var req CompletionRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(StreamMessage{Type: MessageTypeError, Error: fmt.Sprintf("invalid request payload: %v", err), Timestamp: time.Now()})
		return
	}
	if req.Model != "" && req.Model != s.model {
		_ = conn.WriteJSON(StreamMessage{Type: MessageTypeError, Error: fmt.Sprintf("model %q is not deployed here, this deployment serves %q", req.Model, s.model), Timestamp: time.Now()})
		return
	}
	logging.LogRequest("RECV", c.Request.URL.Path, s.model, "stream", req.Prompt)

	result, err := s.engine.Generate(c.Request.Context(), engine.Request{
		Prompts:      req.Prompt,
		MaxNewTokens: req.MaxTokens,
		Sampling:     samplingFromRequest(req.Temperature, req.TopP, req.TopK, req.Seed),
		TaskIDs:      req.TaskIDs,
		LoRAUIDs:     req.LoRAUIDs,
		StopWords:    req.Stop,
		OnToken: func(prompt int, token string) {
			_ = conn.WriteJSON(StreamMessage{Type: MessageTypeToken, Prompt: prompt, Token: token, Timestamp: time.Now()})
		},
	})
	if err != nil {
		_ = conn.WriteJSON(StreamMessage{Type: MessageTypeError, Error: err.Error(), Timestamp: time.Now()})
		return
	}

	usage := usageInfo(result)
	_ = conn.WriteJSON(StreamMessage{Type: MessageTypeDone, Outputs: result.Outputs, Usage: &usage, Timestamp: time.Now()})
}

// checkModel rejects requests naming a model other than the deployed one.
// An empty model means "whatever is deployed".
func (s *Server) checkModel(c *gin.Context, model string) bool {
	if model == "" || model == s.model {
		return true
	}
	c.JSON(http.StatusNotFound, errorResponse{Error: apiError{
		Message: fmt.Sprintf("model %q is not deployed here, this deployment serves %q", model, s.model),
		Type:    "model_not_found",
	}})
	return false
}

func samplingFromRequest(temp, topP *float64, topK *int, seed *int64) engine.Sampling {
	smp := engine.Sampling{TopK: 1, TopP: 0, Temperature: 1.0}
	if topK != nil {
		smp.TopK = *topK
	}
	if topP != nil {
		smp.TopP = *topP
	}
	if temp != nil {
		smp.Temperature = *temp
	}
	if seed != nil {
		smp.Seed = *seed
	}
	return smp
}

func usageInfo(result *engine.Result) UsageInfo {
	return UsageInfo{
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: apiError{Message: message, Type: "invalid_request_error"}})
}

func generateError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrInvalidRequest) {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusInternalServerError, errorResponse{Error: apiError{Message: err.Error(), Type: "internal_error"}})
}
