// Package llm provides shared data models for LLM providers.
package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
)

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role    string  `json:"role"`
	Content string  `json:"content"`
	Images  []Image `json:"-"` // Attached to user messages only
}

// Image is raw image bytes with their MIME type.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURI returns the image as a base64 data URI.
func (i Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, i.Base64())
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// LoadImage reads an image file and sniffs its MIME type.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	return Image{MIMEType: http.DetectContentType(data), Data: data}, nil
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "system",
		Content: content,
	}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "user",
		Content: content,
	}
}

// UserImageMessage creates a user message with an attached image.
func UserImageMessage(content string, image Image) ChatMessage {
	return ChatMessage{
		Role:    "user",
		Content: content,
		Images:  []Image{image},
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "assistant",
		Content: content,
	}
}

// LLMResponse represents a response from an LLM provider.
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// vqaSystemPrompt frames single-image and single-video questions.
const vqaSystemPrompt = "You are a precise visual assistant. Answer the question about the provided media concisely and factually."

// answerWithImage is the shared VisionProvider path for chat providers.
func answerWithImage(ctx context.Context, p Provider, image Image, question string) (string, error) {
	resp, err := p.Chat(ctx, []ChatMessage{
		SystemMessage(vqaSystemPrompt),
		UserImageMessage(question, image),
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
