package services

import "context"

// ---------------------------------------------------------------------------
// VideoGenerator — common interface for enhanced-video vendors
// MiniMax and Veo implement this interface so the clip planner can use
// whichever vendor is configured without knowing the underlying API.
// ---------------------------------------------------------------------------

// VideoGenerator is the interface any enhanced-video vendor must implement.
// Both calls block until the vendor's async job finishes and return raw MP4
// bytes; vendors clamp durationSec to whatever they support.
type VideoGenerator interface {
	// Name identifies the vendor in logs and error messages.
	Name() string

	// GenerateFromImage animates a still image per the motion prompt.
	GenerateFromImage(ctx context.Context, imagePath, prompt string, durationSec int) ([]byte, error)

	// GenerateFromText generates a video from the prompt alone, used when no
	// source graphic exists.
	GenerateFromText(ctx context.Context, prompt string, durationSec int) ([]byte, error)
}
