// Visual and Video Question Answering Tools.
//
// Information Hiding:
// - Image path resolution across dataset directories hidden
// - Late binding of the vision and video clients hidden

package tools

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/richinex/toolhub/llm"
	"github.com/richinex/toolhub/model"
)

// VisualQATool answers visual_question_answering calls.
type VisualQATool struct {
	mu        sync.RWMutex
	provider  llm.VisionProvider
	imageDirs []string
}

type visualQAArgs struct {
	ImageName string `json:"image_name" jsonschema:"required,description=Name or path of the image"`
	Question  string `json:"question" jsonschema:"required,description=Question about the image"`
}

// NewVisualQATool creates the tool. Images are looked up in imageDirs in
// order, then as given.
func NewVisualQATool(provider llm.VisionProvider, imageDirs ...string) *VisualQATool {
	return &VisualQATool{provider: provider, imageDirs: imageDirs}
}

// SetProvider replaces the vision client.
func (t *VisualQATool) SetProvider(p llm.VisionProvider) {
	t.mu.Lock()
	t.provider = p
	t.mu.Unlock()
}

// Spec returns the tool signature.
func (t *VisualQATool) Spec() model.ToolSpec {
	return model.ToolSpec{
		Name:        "visual_question_answering",
		Description: "Answer questions about an image using a vision-language model",
		Parameters:  schemaFor[visualQAArgs](),
	}
}

// resolve finds name inside the image dirs. A bare path is accepted only
// when no image dir is configured.
func (t *VisualQATool) resolve(name string) (string, bool) {
	confined := false
	for _, dir := range t.imageDirs {
		if dir == "" {
			continue
		}
		confined = true
		path := filepath.Join(dir, name)
		if pathAllowed(path, []string{dir}) {
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	if confined {
		return "", false
	}
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return name, true
	}
	return "", false
}

// Execute loads the image and asks the vision client.
func (t *VisualQATool) Execute(ctx context.Context, args map[string]any) model.Result {
	var a visualQAArgs
	if err := decodeArgs(args, &a); err != nil || a.ImageName == "" || a.Question == "" {
		return model.Errorf("Missing required parameters: image_name and question")
	}

	t.mu.RLock()
	provider := t.provider
	t.mu.RUnlock()
	if provider == nil {
		return model.Errorf("Visual question answering is not configured")
	}

	path, ok := t.resolve(a.ImageName)
	if !ok {
		return model.Errorf("Image not found: %s", a.ImageName)
	}
	image, err := llm.LoadImage(path)
	if err != nil {
		return model.Errorf("Failed to load image: %v", err)
	}

	answer, err := provider.AnswerImageQuestion(ctx, image, a.Question)
	if err != nil {
		return model.Errorf("Visual question answering failed: %v", err)
	}
	return model.OK(answer)
}

// YouTubeQATool answers youtube_video_question_answering calls.
type YouTubeQATool struct {
	mu       sync.RWMutex
	provider llm.VideoProvider
}

type youTubeQAArgs struct {
	YouTubeID string `json:"youtube_id" jsonschema:"required,description=YouTube video ID"`
	Question  string `json:"question" jsonschema:"required,description=Question about the video"`
}

// NewYouTubeQATool creates the tool.
func NewYouTubeQATool(provider llm.VideoProvider) *YouTubeQATool {
	return &YouTubeQATool{provider: provider}
}

// SetProvider replaces the video client.
func (t *YouTubeQATool) SetProvider(p llm.VideoProvider) {
	t.mu.Lock()
	t.provider = p
	t.mu.Unlock()
}

// Spec returns the tool signature.
func (t *YouTubeQATool) Spec() model.ToolSpec {
	return model.ToolSpec{
		Name:        "youtube_video_question_answering",
		Description: "Answer questions about a YouTube video",
		Parameters:  schemaFor[youTubeQAArgs](),
	}
}

// Execute asks the video client about the video.
func (t *YouTubeQATool) Execute(ctx context.Context, args map[string]any) model.Result {
	var a youTubeQAArgs
	if err := decodeArgs(args, &a); err != nil || a.YouTubeID == "" || a.Question == "" {
		return model.Errorf("Missing required parameters: youtube_id and question")
	}

	t.mu.RLock()
	provider := t.provider
	t.mu.RUnlock()
	if provider == nil {
		return model.Errorf("Video question answering is not configured")
	}

	answer, err := provider.AnswerVideoQuestion(ctx, a.YouTubeID, a.Question)
	if err != nil {
		return model.Errorf("Video question answering failed: %v", err)
	}
	return model.OK(answer)
}
