// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Inline image bytes and YouTube file URIs for multimodal questions

package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// youtubeWatchURL is the file URI prefix Gemini accepts for YouTube videos.
const youtubeWatchURL = "https://www.youtube.com/watch?v="

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	initErr     error // Stores client initialization error for deferred reporting
}

var (
	_ Provider       = (*GeminiProvider)(nil)
	_ VisionProvider = (*GeminiProvider)(nil)
	_ VideoProvider  = (*GeminiProvider)(nil)
	_ Embedder       = (*GeminiEmbedder)(nil)
)

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens uint32, temperature float32) *GeminiProvider {
	client, err := newGeminiClient(apiKey)
	return &GeminiProvider{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
		initErr:     err,
	}
}

func newGeminiClient(apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return client, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

func (p *GeminiProvider) ready() error {
	if p.initErr != nil {
		return p.initErr
	}
	if p.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}
	return nil
}

// Chat sends a chat completion request.
func (p *GeminiProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	if err := p.ready(); err != nil {
		return LLMResponse{}, err
	}

	contents, systemInstruction := convertToGeminiMessages(messages)
	return p.generate(ctx, contents, systemInstruction)
}

// AnswerImageQuestion sends the image bytes inline with the question.
func (p *GeminiProvider) AnswerImageQuestion(ctx context.Context, image Image, question string) (string, error) {
	return answerWithImage(ctx, p, image, question)
}

// AnswerVideoQuestion asks about a YouTube video by its watch URL.
func (p *GeminiProvider) AnswerVideoQuestion(ctx context.Context, videoID, question string) (string, error) {
	if err := p.ready(); err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromURI(youtubeWatchURL+videoID, "video/mp4"),
		genai.NewPartFromText(question),
	}
	resp, err := p.generate(ctx, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, vqaSystemPrompt)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (p *GeminiProvider) generate(ctx context.Context, contents []*genai.Content, systemInstruction string) (LLMResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
	}

	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	response, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := response.Text()
	if content == "" {
		return LLMResponse{}, fmt.Errorf("empty response from Gemini")
	}

	var usage *TokenUsage
	if response.UsageMetadata != nil {
		usage = &TokenUsage{
			PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
			CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
		}
	}

	return LLMResponse{Content: content, Usage: usage}, nil
}

func convertToGeminiMessages(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemInstruction = msg.Content
		case "user":
			if len(msg.Images) == 0 {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
				continue
			}
			parts := make([]*genai.Part, 0, len(msg.Images)+1)
			for _, img := range msg.Images {
				parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
			}
			parts = append(parts, genai.NewPartFromText(msg.Content))
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	return contents, systemInstruction
}

// GeminiEmbedder embeds texts with the Gemini embedding API.
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	initErr error
}

// NewGeminiEmbedder creates a Gemini embedder; init failures surface on Embed.
func NewGeminiEmbedder(apiKey, model string) *GeminiEmbedder {
	client, err := newGeminiClient(apiKey)
	return &GeminiEmbedder{client: client, model: model, initErr: err}
}

// Model returns the embedding model name.
func (e *GeminiEmbedder) Model() string {
	return e.model
}

// Embed returns one vector per text in input order.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.initErr != nil {
		return nil, e.initErr
	}
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}
