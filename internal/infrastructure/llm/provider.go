package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/planwright/planwright/internal/domain/service"
	"go.uber.org/zap"
)

// ErrEmbeddingUnsupported is returned by providers without an
// embedding endpoint.
var ErrEmbeddingUnsupported = errors.New("provider does not support embeddings")

// Request is the normalized request handed to a provider adapter.
type Request struct {
	Model       string
	Messages    []service.ChatMessage
	Temperature float64
	MaxTokens   int
	Tools       []service.ToolSchema
}

// Response is the normalized provider result. For tool-call answers,
// Text carries the first call's argument JSON and FinishReason is
// "tool_calls".
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
	ToolCallCount    int
	Model            string
}

// Provider is the infrastructure-layer adapter for one reasoning
// provider. Routing stays in the Gateway; adapters only translate.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Models returns the list of supported model identifiers.
	Models() []string

	// DefaultModel returns the provider's known-good default model,
	// used when a request carries no compatible model.
	DefaultModel() string

	// SupportsModel checks if a specific model is supported.
	SupportsModel(model string) bool

	// ChatCompletion performs a single non-streaming completion.
	ChatCompletion(ctx context.Context, req *Request) (*Response, error)

	// Embedding returns a vector for the text, or
	// ErrEmbeddingUnsupported.
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// ProviderConfig holds configuration for one provider adapter.
type ProviderConfig struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"` // "openai" (default) | "anthropic" | "gemini"
	BaseURL      string   `json:"base_url"`
	APIKey       string   `json:"api_key"`
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
}

// --- Provider factory registry ---
// Providers register themselves via init() in their own package.
// Adding a new provider type = implement Provider + RegisterFactory("type", New).

// ProviderFactory creates a Provider from config.
type ProviderFactory func(cfg ProviderConfig, logger *zap.Logger) Provider

var (
	factoryMu sync.RWMutex
	factories = map[string]ProviderFactory{}
)

// RegisterFactory registers a provider factory for the given type name.
// Called from init() in each provider sub-package.
func RegisterFactory(typeName string, factory ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typeName] = factory
}

// CreateProvider creates a Provider using the registered factory for
// cfg.Type. An empty Type defaults to "openai".
func CreateProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	t := cfg.Type
	if t == "" {
		t = "openai"
	}

	factoryMu.RLock()
	factory, ok := factories[t]
	factoryMu.RUnlock()

	if !ok {
		factoryMu.RLock()
		available := make([]string, 0, len(factories))
		for k := range factories {
			available = append(available, k)
		}
		factoryMu.RUnlock()
		return nil, fmt.Errorf("unknown provider type %q (available: %v)", t, available)
	}

	return factory(cfg, logger), nil
}
