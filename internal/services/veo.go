package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Veo Video Generation Service
// Alternate enhanced-video vendor, using the Google Gen AI SDK. A project
// graphic is passed as the first frame and the motion prompt describes the
// camera movement that should happen.
// ---------------------------------------------------------------------------

const (
	defaultVeoModel    = "veo-3.1-generate-preview"
	veoPollInterval    = 10 * time.Second
	veoMaxPollDuration = 5 * time.Minute // Max time to wait for a single clip
)

// VeoService handles video generation via Google's Veo model.
type VeoService struct {
	apiKey string
	model  string
}

var _ VideoGenerator = (*VeoService)(nil)

// NewVeoService creates a Veo video generation service.
// apiKey is the Gemini API key; an empty model selects the default.
func NewVeoService(apiKey, model string) *VeoService {
	if model == "" {
		model = defaultVeoModel
	}
	return &VeoService{
		apiKey: apiKey,
		model:  model,
	}
}

func (s *VeoService) Name() string { return "veo" }

// buildVeoPrompt extends the motion prompt with instructions that keep the
// output looking like an animated product screenshot rather than a scene
// Veo invents on its own.
func buildVeoPrompt(rawPrompt string) string {
	return fmt.Sprintf(`%s

Visual style direction: Match the source interface exactly. Preserve the layout, typography, and color palette from the first frame. The video should look like a screen recording with cinematic camera movement, not a redesigned interface.

Avoid: morphing text, invented UI elements, style changes between frames, or dramatic camera swoops.

No generated audio or dialogue. Silent video only.`, rawPrompt)
}

// GenerateFromImage animates a still graphic with the motion prompt as the
// direction. Blocks until the async operation finishes; each clip is
// generated from its own goroutine so this is fine.
func (s *VeoService) GenerateFromImage(ctx context.Context, imagePath, prompt string, durationSec int) ([]byte, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read first frame image %s: %w", imagePath, err)
	}

	firstFrame := &genai.Image{
		ImageBytes: imageData,
		MIMEType:   imageMimeType(imagePath),
	}

	return s.generate(ctx, prompt, firstFrame, durationSec)
}

// GenerateFromText generates a clip from the prompt alone.
func (s *VeoService) GenerateFromText(ctx context.Context, prompt string, durationSec int) ([]byte, error) {
	return s.generate(ctx, prompt, nil, durationSec)
}

func (s *VeoService) generate(ctx context.Context, prompt string, firstFrame *genai.Image, durationSec int) ([]byte, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	enhancedPrompt := buildVeoPrompt(prompt)

	config := &genai.GenerateVideosConfig{
		AspectRatio:    "16:9",
		NumberOfVideos: 1,
	}

	log.Printf("[Veo] Starting video generation (model=%s, promptLen=%d, hasImage=%v, duration=%ds)",
		s.model, len(prompt), firstFrame != nil, durationSec)

	operation, err := client.Models.GenerateVideos(ctx, s.model, enhancedPrompt, firstFrame, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", err)
	}

	log.Printf("[Veo] Operation started: %s", operation.Name)

	// Poll until done, cancelled, or timed out
	deadline := time.Now().Add(veoMaxPollDuration)
	pollCount := 0
	for !operation.Done {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("video generation timed out after %v (polled %d times)", veoMaxPollDuration, pollCount)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-time.After(veoPollInterval):
		}

		pollCount++
		operation, err = client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll operation (attempt %d): %w", pollCount, err)
		}

		log.Printf("[Veo] Poll %d: done=%v", pollCount, operation.Done)
	}

	if operation.Error != nil && len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return nil, fmt.Errorf("video generation operation failed: %s", string(errJSON))
	}

	if operation.Response == nil {
		return nil, fmt.Errorf("no response in completed operation after %d polls (operation: %s)", pollCount, operation.Name)
	}

	// Safety filters can eat the output without an operation-level error.
	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return nil, fmt.Errorf("video blocked by safety filters: %d video(s) filtered, reasons: %s",
			operation.Response.RAIMediaFilteredCount, reasons)
	}

	if len(operation.Response.GeneratedVideos) == 0 {
		respJSON, _ := json.Marshal(operation.Response)
		return nil, fmt.Errorf("no videos in response (full response: %s)", string(respJSON))
	}

	video := operation.Response.GeneratedVideos[0]
	if video.Video == nil {
		return nil, fmt.Errorf("generated video object is nil")
	}

	log.Printf("[Veo] Video ready, downloading...")

	downloadURI := genai.NewDownloadURIFromVideo(video.Video)
	videoBytes, err := client.Files.Download(ctx, downloadURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}

	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	log.Printf("[Veo] Video generated successfully (%d bytes, %d polls)", len(videoBytes), pollCount)

	return videoBytes, nil
}
