// LLM Provider Factory - builder API for chat providers plus constructors
// for the vision, video and embedding collaborators retrieval and tools use.
//
// Quick Start:
//
//	// Defaults, API key from environment
//	openai, err := llm.ProviderOpenAI.FromEnv()
//
//	// Vision client for visual question answering
//	vqa, err := llm.NewVisionProvider("anthropic", llm.ModelAnthropicClaudeSonnet4, "")
//
//	// Embedder against an OpenAI-compatible server
//	emb, err := llm.NewEmbedder("openai", "e5-large-v2", "", "http://localhost:8080/v1")

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the default model for this provider.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return ModelOpenAIGPT52
	case ProviderAnthropic:
		return ModelAnthropicClaudeOpus45
	case ProviderGemini:
		return ModelGeminiFlash3
	default:
		return ""
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// FromEnv creates a provider with defaults, reading API key from environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts configuring this provider with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey creates a provider with an explicit API key (uses defaults for everything else).
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder is a builder for configuring LLM providers.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    uint32
	temperature  *float32
}

// NewProviderBuilder creates a new builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{
		providerType: providerType,
	}
}

// Model sets the model to use.
func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

// MaxTokens sets maximum tokens for responses.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets temperature (0.0 = deterministic, 1.0 = creative).
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// FromEnv builds the provider, reading API key from environment.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	envVar := b.providerType.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	temperature := float32(0.7) // default
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}

// apiKeyOrEnv returns key, falling back to the provider's environment variable.
func apiKeyOrEnv(p ProviderType, key string) (string, error) {
	if key != "" {
		return key, nil
	}
	if v := os.Getenv(p.EnvVar()); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %s environment variable not set", p, p.EnvVar())
}

// visionMaxTokens bounds answers from the question-answering clients.
const visionMaxTokens = 1024

// NewVisionProvider creates an image question-answering client.
func NewVisionProvider(provider, model, apiKey string) (VisionProvider, error) {
	p, err := ParseProviderType(provider)
	if err != nil {
		return nil, err
	}
	key, err := apiKeyOrEnv(p, apiKey)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = p.DefaultModel()
	}

	switch p {
	case ProviderOpenAI:
		return NewOpenAIProvider(key, model, visionMaxTokens, 0), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(key, model, visionMaxTokens, 0), nil
	case ProviderGemini:
		return NewGeminiProvider(key, model, visionMaxTokens, 0), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", p)
	}
}

// NewVideoProvider creates a YouTube question-answering client. Only Gemini
// accepts video URIs.
func NewVideoProvider(model, apiKey string) (VideoProvider, error) {
	key, err := apiKeyOrEnv(ProviderGemini, apiKey)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = ModelGeminiFlash25
	}
	return NewGeminiProvider(key, model, visionMaxTokens, 0), nil
}

// NewEmbedder creates an embedding client. baseURL applies to OpenAI only.
func NewEmbedder(provider, model, apiKey, baseURL string) (Embedder, error) {
	p, err := ParseProviderType(provider)
	if err != nil {
		return nil, err
	}
	if model == "" {
		return nil, fmt.Errorf("%s: embedding model not set", p)
	}

	switch p {
	case ProviderOpenAI:
		// Self-hosted OpenAI-compatible servers often run without a key.
		key := apiKey
		if key == "" {
			key = os.Getenv(p.EnvVar())
		}
		if key == "" && baseURL == "" {
			return nil, fmt.Errorf("%s: %s environment variable not set", p, p.EnvVar())
		}
		return NewOpenAIEmbedder(key, baseURL, model), nil
	case ProviderGemini:
		key, err := apiKeyOrEnv(p, apiKey)
		if err != nil {
			return nil, err
		}
		return NewGeminiEmbedder(key, model), nil
	default:
		return nil, fmt.Errorf("%s does not provide embeddings", p)
	}
}

// Model identifier constants for all supported providers.

// OpenAI model identifiers (January 2026)
const (
	// ModelOpenAIGPT52 is GPT-5.2: Latest flagship model (December 2025).
	ModelOpenAIGPT52 = "gpt-5.2"
	// ModelOpenAIGPT52Codex is GPT-5.2-Codex: Agentic coding specialist.
	ModelOpenAIGPT52Codex = "gpt-5.2-codex"
	// ModelOpenAIGPT5 is GPT-5: Previous flagship (August 2025).
	ModelOpenAIGPT5 = "gpt-5"
	// ModelOpenAIO3Mini is O3-mini: Efficient reasoning model.
	ModelOpenAIO3Mini = "o3-mini"
	// ModelOpenAIO1 is O1: Original reasoning model.
	ModelOpenAIO1 = "o1"
	// ModelOpenAIGPT4o is GPT-4o: Legacy model.
	ModelOpenAIGPT4o = "gpt-4o"
	// ModelOpenAIGPT4oMini is GPT-4o-mini: Legacy model.
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
)

// Anthropic model identifiers (January 2026)
const (
	// ModelAnthropicClaudeOpus45 is Claude Opus 4.5: Latest flagship, best for coding/agents.
	ModelAnthropicClaudeOpus45 = "claude-opus-4-5-20251101"
	// ModelAnthropicClaudeSonnet4 is Claude Sonnet 4: Balanced performance.
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	// ModelAnthropicClaudeHaiku4 is Claude Haiku 4: Fast and efficient.
	ModelAnthropicClaudeHaiku4 = "claude-haiku-4-20250514"
)

// Gemini model identifiers (January 2026)
const (
	// ModelGeminiPro3 is Gemini 3 Pro: Advanced reasoning, 1M context window.
	ModelGeminiPro3 = "gemini-3-pro"
	// ModelGeminiFlash3 is Gemini 3 Flash: Speed optimized with frontier intelligence.
	ModelGeminiFlash3 = "gemini-3-flash"
	// ModelGeminiDeepThink3 is Gemini 3 Deep Think: Advanced reasoning mode.
	ModelGeminiDeepThink3 = "gemini-3-deep-think"
	// ModelGeminiFlash25 is Gemini 2.5 Flash: Video understanding default.
	ModelGeminiFlash25 = "gemini-2.5-flash"
	// ModelGeminiFlash2 is Gemini 2.0 Flash: Legacy model.
	ModelGeminiFlash2 = "gemini-2.0-flash"
	// ModelGeminiPro2 is Gemini 2.0 Pro: Legacy model.
	ModelGeminiPro2 = "gemini-2.0-pro"
)
