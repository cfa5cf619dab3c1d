package anthropic

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	llm "github.com/planwright/planwright/internal/infrastructure/llm"
	"go.uber.org/zap"
)

const anthropicVersion = "2023-06-01"

func init() {
	llm.RegisterFactory("anthropic", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider implements the Anthropic Messages API natively.
type Provider struct {
	name         string
	baseURL      string
	apiKey       string
	models       []string
	defaultModel string
	client       *http.Client
	logger       *zap.Logger
}

// New creates an Anthropic API provider.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	defaultModel := cfg.DefaultModel
	if defaultModel == "" && len(cfg.Models) > 0 {
		defaultModel = cfg.Models[0]
	}
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 300 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Provider{
		name:         cfg.Name,
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		models:       cfg.Models,
		defaultModel: defaultModel,
		client:       &http.Client{Transport: transport},
		logger:       logger.With(zap.String("provider", cfg.Name), zap.String("type", "anthropic")),
	}
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Name() string         { return p.name }
func (p *Provider) Models() []string     { return p.models }
func (p *Provider) DefaultModel() string { return p.defaultModel }

func (p *Provider) SupportsModel(model string) bool {
	if len(p.models) == 0 {
		return true
	}
	for _, m := range p.models {
		if m == model {
			return true
		}
	}
	return false
}

// ChatCompletion performs a single non-streaming completion.
func (p *Provider) ChatCompletion(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	apiReq := p.buildAPIRequest(req)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Anthropic API error %d: %s", resp.StatusCode, string(respBody))
	}

	return p.parseAPIResponse(respBody)
}

// Embedding is not offered by the Anthropic API.
func (p *Provider) Embedding(ctx context.Context, text string) ([]float32, error) {
	return nil, llm.ErrEmbeddingUnsupported
}

// --- Internal ---

func (p *Provider) buildAPIRequest(req *llm.Request) *apiRequest {
	model := req.Model
	if idx := strings.Index(model, "/"); idx >= 0 {
		model = model[idx+1:]
	}

	apiReq := &apiRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if apiReq.MaxTokens == 0 {
		apiReq.MaxTokens = 8192 // Anthropic requires explicit max_tokens
	}

	// System prompts ride in their own field, not the message list
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			apiReq.System = msg.Content
		case "assistant":
			apiReq.Messages = append(apiReq.Messages, apiMessage{
				Role:    "assistant",
				Content: []contentBlock{{Type: "text", Text: msg.Content}},
			})
		default: // user
			apiReq.Messages = append(apiReq.Messages, apiMessage{
				Role:    "user",
				Content: []contentBlock{{Type: "text", Text: msg.Content}},
			})
		}
	}

	for _, td := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, apiTool{
			Name:        td.Name,
			Description: td.Description,
			InputSchema: convertSchema(td.Parameters),
		})
	}

	return apiReq
}

func (p *Provider) parseAPIResponse(body []byte) (*llm.Response, error) {
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse Anthropic response: %w", err)
	}

	resp := &llm.Response{
		Model:            apiResp.Model,
		PromptTokens:     apiResp.Usage.InputTokens,
		CompletionTokens: apiResp.Usage.OutputTokens,
		FinishReason:     apiResp.StopReason,
	}

	// Extract text and tool_use blocks. Tool-call answers surface the
	// first call's argument JSON as the text body.
	var firstToolArgs string
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "tool_use":
			resp.ToolCallCount++
			if firstToolArgs == "" {
				b, _ := json.Marshal(block.Input)
				firstToolArgs = string(b)
			}
		}
	}
	if resp.ToolCallCount > 0 {
		resp.Text = firstToolArgs
		resp.FinishReason = "tool_calls"
	}

	return resp, nil
}
