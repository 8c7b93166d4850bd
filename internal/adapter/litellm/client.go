// Package litellm implements the reasoning decision-maker against a
// LiteLLM proxy's OpenAI-compatible chat completion API.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/reasoning"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/service"
)

const systemPrompt = `You are the decision-maker for a business onboarding task executor.
Each turn you receive the operation, accumulated knowledge, and observations
from previous tool calls. Reply with a single JSON object and nothing else:
{"type":"tool_call","thought":"...","tool":"...","params":{...}}
{"type":"answer","thought":"...","confidence":0.0,"answer":{...},"knowledge":{...}}
{"type":"needs_user_input","thought":"...","needed_fields":["..."]}
{"type":"help","reason":"..."}
{"type":"continue","thought":"...","knowledge":{...}}
Only request tools from the provided list. Ask for user input only when a
required field cannot be obtained any other way.`

// Client talks to the LiteLLM proxy and implements service.Decider.
type Client struct {
	baseURL    string
	masterKey  string
	model      string
	httpClient *http.Client
}

// NewClient creates a decider client for the given proxy.
func NewClient(baseURL, masterKey, model string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		masterKey: masterKey,
		model:     model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Decide asks the model for the next decision given the loop context.
func (c *Client) Decide(ctx context.Context, req service.DecideRequest) (*reasoning.Decision, error) {
	userCtx, err := json.Marshal(map[string]any{
		"task_id":      req.TaskID,
		"operation":    req.Operation,
		"parameters":   req.Parameters,
		"knowledge":    req.Knowledge,
		"observations": req.Observations,
		"iteration":    req.Iteration,
		"tools":        req.Tools,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal decide context: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(userCtx)},
		},
		Temperature:    0,
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}

	var d reasoning.Decision
	content := stripFences(parsed.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}
	return &d, nil
}

// Health checks if the LiteLLM proxy is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health/liveliness", nil)
	return err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.masterKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.masterKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite the instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
