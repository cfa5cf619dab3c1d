package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/service"
	"go.uber.org/zap"
)

// Gateway implements service.Gateway. It routes chat requests to a
// provider adapter, delegates tool-augmented requests to the execution
// collaborator with automatic fallback to a standard call, computes
// cost against the pricing table, and writes exactly one request log
// entry per attempt, success or failure.
//
// Standard-call failures are not retried on another provider: the
// error is logged and re-raised provider-qualified. The only automatic
// fallback is tool path → standard path.
type Gateway struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	order           []string
	defaultProvider string

	executor   ToolExecutor
	executorOK bool
	breaker    *CircuitBreaker

	pricing  *PricingTable
	recorder *Recorder
	logger   *zap.Logger
}

// Compile-time interface check.
var _ service.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway with no providers attached.
func NewGateway(defaultProvider string, pricing *PricingTable, recorder *Recorder, logger *zap.Logger) *Gateway {
	return &Gateway{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
		breaker:         NewCircuitBreaker(5, 30*time.Second),
		pricing:         pricing,
		recorder:        recorder,
		logger:          logger.With(zap.String("component", "llm-gateway")),
	}
}

// AddProvider registers a provider adapter.
func (g *Gateway) AddProvider(p Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.providers[p.Name()]; !exists {
		g.order = append(g.order, p.Name())
	}
	g.providers[p.Name()] = p
	g.logger.Info("Provider registered",
		zap.String("name", p.Name()),
		zap.Strings("models", p.Models()),
	)
}

// SetExecutor attaches the tool-execution collaborator. Availability is
// probed once here, at startup.
func (g *Gateway) SetExecutor(ctx context.Context, exec ToolExecutor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.executor = exec
	g.executorOK = exec != nil && exec.Available(ctx)
	g.logger.Info("Tool executor attached", zap.Bool("available", g.executorOK))
}

// ChatCompletion implements service.Gateway.
func (g *Gateway) ChatCompletion(ctx context.Context, messages []service.ChatMessage, cfg service.CallConfig) (*service.Completion, error) {
	wantTools := len(cfg.Tools) > 0 || cfg.UseTools

	if wantTools {
		if completion, ok := g.tryToolPath(ctx, messages, cfg); ok {
			return completion, nil
		}
	}

	return g.standardCall(ctx, messages, cfg)
}

// tryToolPath attempts delegated tool-augmented execution. Any failure
// (executor missing, circuit open, call error) reports !ok so the
// caller falls back to a standard provider call.
func (g *Gateway) tryToolPath(ctx context.Context, messages []service.ChatMessage, cfg service.CallConfig) (*service.Completion, bool) {
	g.mu.RLock()
	exec, ok := g.executor, g.executorOK
	g.mu.RUnlock()

	if exec == nil || !ok {
		return nil, false
	}
	if !g.breaker.Allow() {
		g.logger.Debug("Executor circuit open, skipping tool path")
		return nil, false
	}

	start := time.Now()
	result, err := exec.Execute(ctx, messages, cfg.Tools)
	duration := time.Since(start)

	if err != nil {
		g.breaker.RecordFailure()
		g.record(ctx, &entity.RequestRecord{
			Provider:  "executor",
			Model:     "",
			Operation: cfg.Operation,
			Prompt:    joinMessages(messages),
			Duration:  duration,
			Status:    entity.RequestError,
			ErrorText: err.Error(),
			AgentID:   cfg.AgentID,
			PlanID:    cfg.PlanID,
		})
		g.logger.Warn("Tool-augmented execution failed, falling back to standard call",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, false
	}
	g.breaker.RecordSuccess()

	cost := g.pricing.Cost(g.defaultProvider, result.Model, result.PromptTokens, result.CompletionTokens)
	g.record(ctx, &entity.RequestRecord{
		Provider:         "executor",
		Model:            result.Model,
		Operation:        cfg.Operation,
		Prompt:           joinMessages(messages),
		Response:         result.Text,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.PromptTokens + result.CompletionTokens,
		CostUSD:          cost,
		Duration:         duration,
		Status:           entity.RequestCompleted,
		ToolCalls:        result.ToolCalls,
		AgentID:          cfg.AgentID,
		PlanID:           cfg.PlanID,
	})

	finish := "stop"
	if result.ToolCalls > 0 {
		finish = "tool_calls"
	}
	return &service.Completion{
		Text: result.Text,
		Usage: service.Usage{
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.PromptTokens + result.CompletionTokens,
		},
		ModelUsed:     result.Model,
		FinishReason:  finish,
		ToolCallCount: result.ToolCalls,
	}, true
}

// standardCall routes to exactly one provider: the explicit one from
// config, else the process default.
func (g *Gateway) standardCall(ctx context.Context, messages []service.ChatMessage, cfg service.CallConfig) (*service.Completion, error) {
	name := cfg.Provider
	if name == "" {
		name = g.defaultProvider
	}

	g.mu.RLock()
	p, ok := g.providers[name]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered under %q", name)
	}

	model := cfg.Model
	if model == "" || !p.SupportsModel(model) {
		if model != "" {
			g.logger.Warn("Model not compatible with provider, using its default",
				zap.String("provider", name),
				zap.String("requested", model),
				zap.String("default", p.DefaultModel()),
			)
		}
		model = p.DefaultModel()
	}

	start := time.Now()
	resp, err := p.ChatCompletion(ctx, &Request{
		Model:       model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Tools:       cfg.Tools,
	})
	duration := time.Since(start)

	if err != nil {
		g.record(ctx, &entity.RequestRecord{
			Provider:  name,
			Model:     model,
			Operation: cfg.Operation,
			Prompt:    joinMessages(messages),
			Duration:  duration,
			Status:    entity.RequestError,
			ErrorText: err.Error(),
			AgentID:   cfg.AgentID,
			PlanID:    cfg.PlanID,
		})
		return nil, fmt.Errorf("provider %s: %w", name, err)
	}

	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = model
	}
	cost := g.pricing.Cost(name, modelUsed, resp.PromptTokens, resp.CompletionTokens)
	g.record(ctx, &entity.RequestRecord{
		Provider:         name,
		Model:            modelUsed,
		Operation:        cfg.Operation,
		Prompt:           joinMessages(messages),
		Response:         resp.Text,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.PromptTokens + resp.CompletionTokens,
		CostUSD:          cost,
		Duration:         duration,
		Status:           entity.RequestCompleted,
		ToolCalls:        resp.ToolCallCount,
		AgentID:          cfg.AgentID,
		PlanID:           cfg.PlanID,
	})

	return &service.Completion{
		Text: resp.Text,
		Usage: service.Usage{
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
			TotalTokens:      resp.PromptTokens + resp.CompletionTokens,
		},
		ModelUsed:     modelUsed,
		FinishReason:  resp.FinishReason,
		ToolCallCount: resp.ToolCallCount,
	}, nil
}

// Embedding implements service.Gateway. The default provider is tried
// first; providers without an embedding endpoint are skipped.
func (g *Gateway) Embedding(ctx context.Context, text string) ([]float32, error) {
	g.mu.RLock()
	names := make([]string, 0, len(g.order)+1)
	names = append(names, g.defaultProvider)
	for _, n := range g.order {
		if n != g.defaultProvider {
			names = append(names, n)
		}
	}
	providers := make([]Provider, 0, len(names))
	for _, n := range names {
		if p, ok := g.providers[n]; ok {
			providers = append(providers, p)
		}
	}
	g.mu.RUnlock()

	var lastErr error
	for _, p := range providers {
		start := time.Now()
		vec, err := p.Embedding(ctx, text)
		if errors.Is(err, ErrEmbeddingUnsupported) {
			continue
		}
		duration := time.Since(start)
		if err != nil {
			g.record(ctx, &entity.RequestRecord{
				Provider:  p.Name(),
				Operation: "embedding",
				Prompt:    text,
				Duration:  duration,
				Status:    entity.RequestError,
				ErrorText: err.Error(),
			})
			lastErr = fmt.Errorf("provider %s: %w", p.Name(), err)
			continue
		}
		g.record(ctx, &entity.RequestRecord{
			Provider:  p.Name(),
			Operation: "embedding",
			Prompt:    text,
			Duration:  duration,
			Status:    entity.RequestCompleted,
		})
		return vec, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no provider supports embeddings")
}

// record stamps identity and time, then hands off to the recorder.
func (g *Gateway) record(ctx context.Context, rec *entity.RequestRecord) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now()
	g.recorder.Record(ctx, rec)
}

func joinMessages(messages []service.ChatMessage) string {
	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}
