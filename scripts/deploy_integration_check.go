// scripts/deploy_integration_check.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mwiater/paragon/internal/appconfig"
)

type healthBody struct {
	Status        string  `json:"status"`
	Model         string  `json:"model"`
	Instance      string  `json:"instance"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type modelsBody struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type streamFrame struct {
	Type    string   `json:"type"`
	Token   string   `json:"token"`
	Outputs []string `json:"outputs"`
	Error   string   `json:"error"`
}

func main() {
	configPath := flag.String("config", appconfig.DefaultConfigPath, "Path to config JSON")
	hostURL := flag.String("url", "", "Override deployment base URL")
	modelName := flag.String("model", "", "Override model name for the probes")
	timeout := flag.Duration("timeout", 30*time.Second, "HTTP timeout")
	flag.Parse()

	baseURL, err := resolveTarget(*configPath, *hostURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}

	fmt.Printf("Target host: %s\n\n", baseURL)

	if err := checkHealth(client, baseURL); err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
	}

	model, err := checkModels(client, baseURL, *modelName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "models check failed: %v\n", err)
	}
	if model == "" {
		model = *modelName
	}

	if err := probeCompletionParams(client, baseURL, model); err != nil {
		fmt.Fprintf(os.Stderr, "completion param probe failed: %v\n", err)
	}

	if err := probeStream(baseURL, model, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "stream probe failed: %v\n", err)
	}
}

func resolveTarget(configPath, overrideURL string) (string, error) {
	if overrideURL != "" {
		return strings.TrimRight(overrideURL, "/"), nil
	}
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return "", err
	}
	return "http://" + cfg.DeployAddress(), nil
}

func checkHealth(client *http.Client, baseURL string) error {
	fmt.Println("== /v1/health ==")
	resp, err := client.Get(baseURL + "/v1/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("Status: %s\n", resp.Status)
	fmt.Println("Raw:")
	fmt.Println(indentJSON(body))

	var health healthBody
	if err := json.Unmarshal(body, &health); err == nil && health.Status != "" {
		fmt.Printf("Deployment %s serving %s, up %.0fs\n", health.Instance, health.Model, health.UptimeSeconds)
	}
	fmt.Println()
	return nil
}

func checkModels(client *http.Client, baseURL, override string) (string, error) {
	fmt.Println("== /v1/models ==")
	resp, err := client.Get(baseURL + "/v1/models")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	fmt.Printf("Status: %s\n", resp.Status)

	var models modelsBody
	if err := json.Unmarshal(body, &models); err != nil {
		fmt.Printf("Parse: %v\n\n", err)
		return "", nil
	}
	fmt.Printf("Deployed models: %d\n", len(models.Data))
	for _, m := range models.Data {
		fmt.Printf("  - %s\n", m.ID)
	}
	fmt.Println()

	if override != "" {
		return override, nil
	}
	if len(models.Data) > 0 {
		return models.Data[0].ID, nil
	}
	return "", nil
}

func probeCompletionParams(client *http.Client, baseURL, model string) error {
	fmt.Println("== /v1/completions param probe ==")
	type paramCase struct {
		name  string
		key   string
		value any
	}
	cases := []paramCase{
		{name: "temperature", key: "temperature", value: 0.2},
		{name: "top_p", key: "top_p", value: 0.9},
		{name: "top_k", key: "top_k", value: 4},
		{name: "seed", key: "seed", value: 7},
		{name: "max_tokens", key: "max_tokens", value: 2},
		{name: "stop", key: "stop", value: []string{"."}},
		{name: "batch", key: "prompt", value: []string{"The capital of France is", "Largest animal in the sea is"}},
		{name: "task_ids", key: "task_ids", value: []string{"0"}},
		{name: "lora_uids", key: "lora_uids", value: []string{"adapter"}},
	}

	basePayload := map[string]any{
		"model":      model,
		"prompt":     []string{"The capital of France is"},
		"max_tokens": 4,
	}

	for _, tc := range cases {
		payload := cloneMap(basePayload)
		payload[tc.key] = tc.value
		status, body, err := postJSON(client, baseURL+"/v1/completions", payload)
		if err != nil {
			fmt.Printf("%s: error=%v\n", tc.name, err)
			continue
		}
		accepted := status >= 200 && status < 300
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		fmt.Printf("%s: status=%d accepted=%v body=%s\n", tc.name, status, accepted, msg)
	}
	fmt.Println()
	return nil
}

func probeStream(baseURL, model string, timeout time.Duration) error {
	fmt.Println("== /v1/stream ==")
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/v1/stream"

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	request := map[string]any{
		"model":      model,
		"prompt":     []string{"The capital of France is"},
		"max_tokens": 4,
	}
	if err := conn.WriteJSON(request); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	_ = conn.SetReadDeadline(deadline)

	tokens := 0
	for {
		var frame streamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		switch frame.Type {
		case "token":
			tokens++
		case "error":
			fmt.Printf("Stream error: %s\n\n", frame.Error)
			return nil
		case "done":
			fmt.Printf("Streamed %d token(s), final output: %q\n\n", tokens, strings.Join(frame.Outputs, " | "))
			return nil
		}
	}
}

func postJSON(client *http.Client, url string, payload map[string]any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func indentJSON(body []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		return string(body)
	}
	return out.String()
}

func cloneMap(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}
