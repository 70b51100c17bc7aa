// Package llm provides model client abstractions consumed by toolhub:
// chat, image and video question answering, and text embedding.
//
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific multimodal encoding

package llm

import (
	"context"
)

// Provider defines the abstract interface for chat-capable LLM providers.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request. User messages may carry images.
	Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error)
}

// VisionProvider answers a question about an image.
type VisionProvider interface {
	AnswerImageQuestion(ctx context.Context, image Image, question string) (string, error)
}

// VideoProvider answers a question about a YouTube video.
type VideoProvider interface {
	AnswerVideoQuestion(ctx context.Context, videoID, question string) (string, error)
}

// Embedder turns texts into fixed-dimension vectors, one per input, in
// input order.
type Embedder interface {
	// Model returns the embedding model identifier. Retrieval uses it to
	// pick query/passage formatting and to key the embedding cache.
	Model() string

	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
