package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/planwright/planwright/internal/domain/service"
	"go.uber.org/zap"
)

// ExecResult is the outcome of one tool-augmented execution: generated
// text plus the number of tool calls the session made.
type ExecResult struct {
	Text             string `json:"text"`
	ToolCalls        int    `json:"tool_calls"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Model            string `json:"model"`
}

// ToolExecutor delegates a request to an external code-execution
// collaborator that can run generated code in an isolated working
// directory and report artifacts as tool calls.
type ToolExecutor interface {
	// Available reports whether the collaborator is reachable. Checked
	// once at startup.
	Available(ctx context.Context) bool

	// Execute runs the messages through the collaborator.
	Execute(ctx context.Context, messages []service.ChatMessage, tools []service.ToolSchema) (*ExecResult, error)
}

// HTTPToolExecutor talks to the execution collaborator over HTTP.
type HTTPToolExecutor struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPToolExecutor creates an executor client for the given base
// URL. A non-positive timeout falls back to 5 minutes; execution
// sessions run generated code and routinely take that long.
func NewHTTPToolExecutor(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPToolExecutor {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPToolExecutor{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With(zap.String("component", "tool-executor")),
	}
}

var _ ToolExecutor = (*HTTPToolExecutor)(nil)

// Available probes the collaborator's health endpoint.
func (e *HTTPToolExecutor) Available(ctx context.Context) bool {
	if e.baseURL == "" {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("Executor health probe failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type execRequest struct {
	Messages []service.ChatMessage `json:"messages"`
	Tools    []service.ToolSchema  `json:"tools,omitempty"`
}

// Execute posts the request to the collaborator's execute endpoint.
func (e *HTTPToolExecutor) Execute(ctx context.Context, messages []service.ChatMessage, tools []service.ToolSchema) (*ExecResult, error) {
	body, err := json.Marshal(execRequest{Messages: messages, Tools: tools})
	if err != nil {
		return nil, fmt.Errorf("marshal executor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create executor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executor request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read executor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor error %d: %s", resp.StatusCode, string(respBody))
	}

	var result ExecResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse executor response: %w", err)
	}
	return &result, nil
}
