package gemini

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

const embeddingModel = "text-embedding-004"

func init() {
	llm.RegisterFactory("gemini", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider implements the Google Gemini API natively.
type Provider struct {
	name         string
	baseURL      string
	apiKey       string
	models       []string
	defaultModel string
	client       *http.Client
	logger       *zap.Logger
}

// New creates a Google Gemini API provider.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	defaultModel := cfg.DefaultModel
	if defaultModel == "" && len(cfg.Models) > 0 {
		defaultModel = cfg.Models[0]
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
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
		logger:       logger.With(zap.String("provider", cfg.Name), zap.String("type", "gemini")),
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
	model := stripPrefix(req.Model)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)
	respBody, err := p.post(ctx, url, body)
	if err != nil {
		return nil, err
	}

	return p.parseAPIResponse(respBody, model)
}

// Embedding returns a vector for the text via embedContent.
func (p *Provider) Embedding(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{
		Content: content{Parts: []part{{Text: text}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent?key=%s", p.baseURL, embeddingModel, p.apiKey)
	respBody, err := p.post(ctx, url, body)
	if err != nil {
		return nil, err
	}

	var apiResp embedResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse Gemini response: %w", err)
	}
	if len(apiResp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty Gemini response: no embedding values")
	}
	return apiResp.Embedding.Values, nil
}

// --- Internal ---

func (p *Provider) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

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
		return nil, fmt.Errorf("Gemini API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func stripPrefix(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}

func (p *Provider) buildAPIRequest(req *llm.Request) *apiRequest {
	apiReq := &apiRequest{
		GenerationConfig: &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			apiReq.SystemInstruction = &content{
				Parts: []part{{Text: msg.Content}},
			}
		case "assistant":
			apiReq.Contents = append(apiReq.Contents, content{
				Role:  "model",
				Parts: []part{{Text: msg.Content}},
			})
		default: // user
			apiReq.Contents = append(apiReq.Contents, content{
				Role:  "user",
				Parts: []part{{Text: msg.Content}},
			})
		}
	}

	if len(req.Tools) > 0 {
		var decls []functionDeclarationSpec
		for _, td := range req.Tools {
			decls = append(decls, functionDeclarationSpec{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  convertSchema(td.Parameters),
			})
		}
		apiReq.Tools = []toolDeclaration{{FunctionDeclarations: decls}}
	}

	return apiReq
}

func (p *Provider) parseAPIResponse(body []byte, requested string) (*llm.Response, error) {
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse Gemini response: %w", err)
	}

	if len(apiResp.Candidates) == 0 {
		return nil, fmt.Errorf("empty Gemini response: no candidates")
	}

	cand := apiResp.Candidates[0]
	resp := &llm.Response{
		Model:        apiResp.ModelVersion,
		FinishReason: strings.ToLower(cand.FinishReason),
	}
	if resp.Model == "" {
		resp.Model = requested
	}
	if apiResp.UsageMetadata != nil {
		resp.PromptTokens = apiResp.UsageMetadata.PromptTokenCount
		resp.CompletionTokens = apiResp.UsageMetadata.CandidatesTokenCount
	}

	// Extract text and function calls. Tool-call answers surface the
	// first call's argument JSON as the text body.
	var firstToolArgs string
	for _, pt := range cand.Content.Parts {
		if pt.Text != "" {
			resp.Text += pt.Text
		}
		if pt.FunctionCall != nil {
			resp.ToolCallCount++
			if firstToolArgs == "" {
				b, _ := json.Marshal(pt.FunctionCall.Args)
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
