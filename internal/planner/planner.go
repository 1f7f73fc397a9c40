// Package planner decides how many generated clips a narration needs, picks
// camera-motion descriptors for them, and drives the video generation vendor
// to produce a stitched enhanced reel per project.
package planner

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/osscribes/codestream/internal/models"
	"github.com/osscribes/codestream/internal/services"
	"github.com/osscribes/codestream/internal/storage"
)

// secondsPerClip is the narration coverage of one generated clip. Vendors
// produce 6s clips by default, so one clip per started 6s of audio.
const secondsPerClip = 6.0

// clipDurationSec is the duration requested from the vendor per clip.
const clipDurationSec = 6

// motionLibrary holds the camera-motion descriptors clips are prompted with.
// Descriptors are assigned without repetition until the library is exhausted.
var motionLibrary = []string{
	"Smooth cinematic camera scroll down revealing features.",
	"Slow pan across the interface showing technical details.",
	"Tilt up shot revealing the bottom sections of the page.",
	"Cinematic zoom-in on the main repository header.",
	"Dolly sweep from left to right across the code files.",
	"Perspective tilt showing the page in a 3D workspace.",
	"Slow rotation around the center of the UI.",
	"Fast tracking shot down the sidebar and into the content.",
	"Glide over the interface with a soft bokeh background effect.",
	"Rack focus from the foreground text to the background code.",
	"Dynamic crane shot descending from the top of the repository.",
	"Slow push-in on a specific set of features.",
	"Arresting side-scrolling shot showing the project evolution.",
	"Floating camera effect mimicking a handheld walkthrough.",
	"Sharp cinematic pull-back revealing the full page layout.",
}

// ScreenshotSource captures page screenshots to seed image-to-video
// generation. It is an external collaborator; a nil source means no
// screenshots are available and generation falls back to text-to-video.
type ScreenshotSource interface {
	Capture(ctx context.Context, url, projectID string, count int) ([]string, error)
}

// Planner plans and generates the enhanced video reel for a project.
// Plans run concurrently across prepare workers, so the Planner itself holds
// no mutable state.
type Planner struct {
	generator   services.VideoGenerator
	screenshots ScreenshotSource
	ffmpeg      *services.FFmpegService
	store       *storage.Store
}

func New(generator services.VideoGenerator, screenshots ScreenshotSource, ffmpeg *services.FFmpegService, store *storage.Store) *Planner {
	return &Planner{
		generator:   generator,
		screenshots: screenshots,
		ffmpeg:      ffmpeg,
		store:       store,
	}
}

// ClipCount returns how many clips are needed to cover the narration:
// one per started 6 seconds, never less than one.
func ClipCount(audioDurationSec float64) int {
	n := int(math.Ceil(audioDurationSec / secondsPerClip))
	if n < 1 {
		return 1
	}
	return n
}

// AssignMotions picks n motion descriptors: sampled without replacement up
// to the library size, then with replacement for any extras.
func AssignMotions(n int, rng *rand.Rand) []string {
	motions := make([]string, 0, n)

	perm := rng.Perm(len(motionLibrary))
	for _, idx := range perm {
		if len(motions) == n {
			break
		}
		motions = append(motions, motionLibrary[idx])
	}

	for len(motions) < n {
		motions = append(motions, motionLibrary[rng.Intn(len(motionLibrary))])
	}

	return motions
}

// PlanAndGenerate produces the enhanced video reel for a project and returns
// its path, or "" when no clip could be generated. An empty path is not an
// error: the caller falls back to the static graphic.
func (p *Planner) PlanAndGenerate(ctx context.Context, project *models.Project, audioDurationSec float64) (string, error) {
	enhancedPath := p.store.EnhancedVideoPath(project.ID)
	if storage.PlausibleClip(enhancedPath) {
		log.Printf("[Planner] Reusing existing enhanced video %s", enhancedPath)
		return enhancedPath, nil
	}

	clipCount := ClipCount(audioDurationSec)

	shots := p.captureScreenshots(ctx, project, clipCount)
	if len(shots) == 0 {
		return p.generateDemoClip(ctx, project)
	}

	// Fewer screenshots than planned clips degrades the plan rather than
	// reusing frames: each clip keeps a distinct first frame.
	if clipCount > len(shots) {
		log.Printf("[Planner] %s: only %d screenshots for %d planned clips, degrading",
			project.ID, len(shots), clipCount)
		clipCount = len(shots)
	}

	// Each plan seeds its own source; rand.Rand is not safe for the
	// concurrent calls the prepare workers make.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	motions := AssignMotions(clipCount, rng)

	log.Printf("[Planner] %s: generating %d clips for %.1fs of narration", project.ID, clipCount, audioDurationSec)

	var clipPaths []string
	for i := 0; i < clipCount; i++ {
		clipPath := p.store.ClipPath(project.ID, i)
		if storage.PlausibleClip(clipPath) {
			log.Printf("[Planner] %s: reusing clip %d", project.ID, i)
			clipPaths = append(clipPaths, clipPath)
			continue
		}

		prompt := fmt.Sprintf("%s Modern professional studio lighting. Clean interface for %s.",
			motions[i], project.Name)

		data, err := p.generator.GenerateFromImage(ctx, shots[i], prompt, clipDurationSec)
		if err != nil {
			log.Printf("[Planner] %s: clip %d failed, continuing with partial reel: %v", project.ID, i, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if err := os.WriteFile(clipPath, data, 0644); err != nil {
			return "", fmt.Errorf("failed to write clip %s: %w", clipPath, err)
		}
		clipPaths = append(clipPaths, clipPath)
	}

	return p.finishReel(ctx, project.ID, clipPaths)
}

// captureScreenshots asks the external source for first-frame screenshots.
// Any failure is treated as zero screenshots.
func (p *Planner) captureScreenshots(ctx context.Context, project *models.Project, count int) []string {
	if p.screenshots == nil || project.GitHubURL == "" {
		return nil
	}

	shots, err := p.screenshots.Capture(ctx, project.GitHubURL, project.ID, count)
	if err != nil {
		log.Printf("[Planner] %s: screenshot capture failed, falling back to text-to-video: %v", project.ID, err)
		return nil
	}
	return shots
}

// generateDemoClip is the text-to-video fallback when no screenshots exist:
// a single generic demonstration clip for the project.
func (p *Planner) generateDemoClip(ctx context.Context, project *models.Project) (string, error) {
	clipPath := p.store.ClipPath(project.ID, 0)
	if storage.PlausibleClip(clipPath) {
		return clipPath, nil
	}

	prompt := fmt.Sprintf("A professional demonstration of %s.", project.Name)

	log.Printf("[Planner] %s: no screenshots, generating demo clip", project.ID)

	data, err := p.generator.GenerateFromText(ctx, prompt, clipDurationSec)
	if err != nil {
		log.Printf("[Planner] %s: demo clip generation failed: %v", project.ID, err)
		return "", nil
	}

	if err := os.WriteFile(clipPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write clip %s: %w", clipPath, err)
	}

	return clipPath, nil
}

// finishReel turns the surviving clips into the project's enhanced video:
// several clips are stitched stream-copy, a single clip is used directly,
// and none means no enhancement.
func (p *Planner) finishReel(ctx context.Context, projectID string, clipPaths []string) (string, error) {
	switch len(clipPaths) {
	case 0:
		log.Printf("[Planner] %s: no clips survived generation", projectID)
		return "", nil
	case 1:
		return clipPaths[0], nil
	}

	enhancedPath := p.store.EnhancedVideoPath(projectID)
	listPath := p.store.ConcatListPath("clips_" + projectID)

	// A failed stitch is an enhancement failure like any other: the caller
	// falls back to the static graphic rather than dropping the project.
	if err := p.ffmpeg.StitchClips(ctx, clipPaths, listPath, enhancedPath); err != nil {
		log.Printf("[Planner] %s: stitch failed, falling back to static graphic: %v", projectID, err)
		return "", nil
	}

	log.Printf("[Planner] %s: stitched %d clips into %s", projectID, len(clipPaths), enhancedPath)

	return enhancedPath, nil
}
