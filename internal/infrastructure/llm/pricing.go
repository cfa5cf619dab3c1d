package llm

import (
	"sync"

	"go.uber.org/zap"
)

// ModelPricing is USD per million tokens, input and output.
type ModelPricing struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// providerPricing holds one provider's model prices and its flagship
// model, used as the fallback for unknown models.
type providerPricing struct {
	Flagship string
	Models   map[string]ModelPricing
}

// PricingTable computes best-effort USD cost from token counts. Lookup
// is pure: unknown models fall back to the provider's flagship pricing,
// unknown providers to the OpenAI-compatible default, each with a
// warning. Cost estimation never blocks or fails a call.
type PricingTable struct {
	mu        sync.RWMutex
	providers map[string]providerPricing
	logger    *zap.Logger
}

// defaultOpenAIProvider keys the fallback pricing for unknown providers.
const defaultOpenAIProvider = "openai"

// NewPricingTable creates a table seeded with published list prices.
func NewPricingTable(logger *zap.Logger) *PricingTable {
	return &PricingTable{
		providers: map[string]providerPricing{
			"openai": {
				Flagship: "gpt-4o",
				Models: map[string]ModelPricing{
					"gpt-4o":        {InputPerMTok: 2.50, OutputPerMTok: 10.00},
					"gpt-4o-mini":   {InputPerMTok: 0.15, OutputPerMTok: 0.60},
					"gpt-4.1":       {InputPerMTok: 2.00, OutputPerMTok: 8.00},
					"gpt-4.1-mini":  {InputPerMTok: 0.40, OutputPerMTok: 1.60},
					"o3-mini":       {InputPerMTok: 1.10, OutputPerMTok: 4.40},
					"text-embedding-3-small": {InputPerMTok: 0.02, OutputPerMTok: 0},
				},
			},
			"anthropic": {
				Flagship: "claude-sonnet-4-20250514",
				Models: map[string]ModelPricing{
					"claude-sonnet-4-20250514":   {InputPerMTok: 3.00, OutputPerMTok: 15.00},
					"claude-opus-4-20250514":     {InputPerMTok: 15.00, OutputPerMTok: 75.00},
					"claude-3-5-haiku-20241022":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
				},
			},
			"gemini": {
				Flagship: "gemini-2.5-pro",
				Models: map[string]ModelPricing{
					"gemini-2.5-pro":   {InputPerMTok: 1.25, OutputPerMTok: 10.00},
					"gemini-2.5-flash": {InputPerMTok: 0.30, OutputPerMTok: 2.50},
				},
			},
		},
		logger: logger.With(zap.String("component", "pricing")),
	}
}

// Cost returns the USD cost of one call. Pure lookup; always returns a
// number, never an error.
func (t *PricingTable) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pp, ok := t.providers[provider]
	if !ok {
		t.logger.Warn("Unknown provider, using OpenAI-compatible default pricing",
			zap.String("provider", provider),
			zap.String("model", model),
		)
		pp = t.providers[defaultOpenAIProvider]
	}

	mp, ok := pp.Models[model]
	if !ok {
		t.logger.Warn("Unknown model, using flagship pricing",
			zap.String("provider", provider),
			zap.String("model", model),
			zap.String("flagship", pp.Flagship),
		)
		mp = pp.Models[pp.Flagship]
	}

	return float64(inputTokens)/1e6*mp.InputPerMTok + float64(outputTokens)/1e6*mp.OutputPerMTok
}

// PricingOverrides is the YAML shape of the optional overrides file:
//
//	providers:
//	  openai:
//	    flagship: gpt-4o
//	    models:
//	      gpt-4o: {input_per_mtok: 2.5, output_per_mtok: 10}
type PricingOverrides struct {
	Providers map[string]struct {
		Flagship string                  `yaml:"flagship"`
		Models   map[string]ModelPricing `yaml:"models"`
	} `yaml:"providers"`
}

// Apply merges override prices over the built-in table.
func (t *PricingTable) Apply(o PricingOverrides) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, op := range o.Providers {
		pp, ok := t.providers[name]
		if !ok {
			pp = providerPricing{Models: map[string]ModelPricing{}}
		}
		if op.Flagship != "" {
			pp.Flagship = op.Flagship
		}
		for model, mp := range op.Models {
			pp.Models[model] = mp
		}
		t.providers[name] = pp
	}

	t.logger.Info("Pricing overrides applied", zap.Int("providers", len(o.Providers)))
}
