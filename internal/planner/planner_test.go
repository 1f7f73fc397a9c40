package planner

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/osscribes/codestream/internal/models"
	"github.com/osscribes/codestream/internal/services"
	"github.com/osscribes/codestream/internal/storage"
)

func TestClipCount(t *testing.T) {
	tests := []struct {
		duration float64
		want     int
	}{
		{0.1, 1},
		{5.9, 1},
		{6.0, 1},
		{6.1, 2},
		{12.0, 2},
		{35.0, 6},
	}

	for _, tt := range tests {
		if got := ClipCount(tt.duration); got != tt.want {
			t.Errorf("ClipCount(%v) = %d, want %d", tt.duration, got, tt.want)
		}
	}
}

func TestAssignMotionsUniqueUpToLibrarySize(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	motions := AssignMotions(len(motionLibrary), rng)
	if len(motions) != len(motionLibrary) {
		t.Fatalf("got %d motions, want %d", len(motions), len(motionLibrary))
	}

	seen := make(map[string]bool)
	for _, m := range motions {
		if seen[m] {
			t.Errorf("motion repeated within library size: %q", m)
		}
		seen[m] = true
	}
}

func TestAssignMotionsRepeatsBeyondLibrarySize(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	n := len(motionLibrary) + 5
	motions := AssignMotions(n, rng)
	if len(motions) != n {
		t.Fatalf("got %d motions, want %d", len(motions), n)
	}

	// The first library-size entries must still be unique.
	seen := make(map[string]bool)
	for _, m := range motions[:len(motionLibrary)] {
		if seen[m] {
			t.Errorf("motion repeated within library size: %q", m)
		}
		seen[m] = true
	}
}

// fakeGenerator scripts per-call results: nil entries mean failure.
type fakeGenerator struct {
	imageResults [][]byte
	textResult   []byte
	textErr      error
	imageCalls   int
	textCalls    int
	prompts      []string
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) GenerateFromImage(ctx context.Context, imagePath, prompt string, durationSec int) ([]byte, error) {
	f.prompts = append(f.prompts, prompt)
	i := f.imageCalls
	f.imageCalls++
	if i >= len(f.imageResults) || f.imageResults[i] == nil {
		return nil, fmt.Errorf("scripted failure for call %d", i)
	}
	return f.imageResults[i], nil
}

func (f *fakeGenerator) GenerateFromText(ctx context.Context, prompt string, durationSec int) ([]byte, error) {
	f.prompts = append(f.prompts, prompt)
	f.textCalls++
	if f.textErr != nil {
		return nil, f.textErr
	}
	return f.textResult, nil
}

type fakeScreenshots struct {
	paths []string
	err   error
}

func (f *fakeScreenshots) Capture(ctx context.Context, url, projectID string, count int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.paths, nil
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(dir+"/assets", dir+"/deliveries", "01-15")
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func clipBytes(n int) []byte {
	return bytes.Repeat([]byte("v"), n)
}

func TestPlanAndGenerateNoScreenshotsUsesDemoClip(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{textResult: clipBytes(2000)}
	p := New(gen, nil, services.NewFFmpegService(), store)

	project := &models.Project{ID: "p1", Name: "alpha", GitHubURL: "https://github.com/a/alpha"}

	path, err := p.PlanAndGenerate(context.Background(), project, 10.0)
	if err != nil {
		t.Fatalf("PlanAndGenerate: %v", err)
	}

	if path != store.ClipPath("p1", 0) {
		t.Errorf("path = %q, want demo clip path", path)
	}
	if gen.textCalls != 1 || gen.imageCalls != 0 {
		t.Errorf("calls = text %d / image %d, want 1/0", gen.textCalls, gen.imageCalls)
	}
	if want := "A professional demonstration of alpha."; gen.prompts[0] != want {
		t.Errorf("prompt = %q, want %q", gen.prompts[0], want)
	}
}

func TestPlanAndGenerateDemoClipFailureIsNotFatal(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{textErr: fmt.Errorf("vendor down")}
	p := New(gen, nil, services.NewFFmpegService(), store)

	project := &models.Project{ID: "p1", Name: "alpha"}

	path, err := p.PlanAndGenerate(context.Background(), project, 10.0)
	if err != nil {
		t.Fatalf("PlanAndGenerate: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty on total failure", path)
	}
}

func TestPlanAndGenerateDegradesOnPartialFailure(t *testing.T) {
	store := newTestStore(t)

	// Two screenshots but the second clip fails, so the reel degrades to the
	// single surviving clip, used directly without stitching.
	shots := &fakeScreenshots{paths: []string{"shot0.png", "shot1.png"}}
	gen := &fakeGenerator{imageResults: [][]byte{clipBytes(2000), nil}}
	p := New(gen, shots, services.NewFFmpegService(), store)

	project := &models.Project{ID: "p1", Name: "alpha", GitHubURL: "https://github.com/a/alpha"}

	path, err := p.PlanAndGenerate(context.Background(), project, 12.0)
	if err != nil {
		t.Fatalf("PlanAndGenerate: %v", err)
	}

	if path != store.ClipPath("p1", 0) {
		t.Errorf("path = %q, want surviving clip path", path)
	}
	if gen.imageCalls != 2 {
		t.Errorf("image calls = %d, want 2", gen.imageCalls)
	}
}

func TestPlanAndGenerateDegradesToScreenshotCount(t *testing.T) {
	store := newTestStore(t)

	// 35s of narration plans 6 clips but only one screenshot exists.
	shots := &fakeScreenshots{paths: []string{"shot0.png"}}
	gen := &fakeGenerator{imageResults: [][]byte{clipBytes(2000)}}
	p := New(gen, shots, services.NewFFmpegService(), store)

	project := &models.Project{ID: "p1", Name: "alpha", GitHubURL: "https://github.com/a/alpha"}

	path, err := p.PlanAndGenerate(context.Background(), project, 35.0)
	if err != nil {
		t.Fatalf("PlanAndGenerate: %v", err)
	}
	if path != store.ClipPath("p1", 0) {
		t.Errorf("path = %q, want single clip path", path)
	}
	if gen.imageCalls != 1 {
		t.Errorf("image calls = %d, want 1", gen.imageCalls)
	}
}

func TestPlanAndGenerateReusesExistingReel(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{}
	p := New(gen, nil, services.NewFFmpegService(), store)

	enhanced := store.EnhancedVideoPath("p1")
	if err := os.WriteFile(enhanced, clipBytes(2000), 0644); err != nil {
		t.Fatal(err)
	}

	project := &models.Project{ID: "p1", Name: "alpha"}

	path, err := p.PlanAndGenerate(context.Background(), project, 20.0)
	if err != nil {
		t.Fatalf("PlanAndGenerate: %v", err)
	}
	if path != enhanced {
		t.Errorf("path = %q, want cached reel %q", path, enhanced)
	}
	if gen.imageCalls != 0 || gen.textCalls != 0 {
		t.Error("generator should not be called when the reel is cached")
	}
}

// staticGenerator returns fixed bytes and holds no state, so it is safe for
// concurrent plans.
type staticGenerator struct {
	data []byte
}

func (s *staticGenerator) Name() string { return "static" }

func (s *staticGenerator) GenerateFromImage(ctx context.Context, imagePath, prompt string, durationSec int) ([]byte, error) {
	return s.data, nil
}

func (s *staticGenerator) GenerateFromText(ctx context.Context, prompt string, durationSec int) ([]byte, error) {
	return s.data, nil
}

func TestPlanAndGenerateConcurrentPlans(t *testing.T) {
	store := newTestStore(t)
	shots := &fakeScreenshots{paths: []string{"shot0.png"}}
	p := New(&staticGenerator{data: clipBytes(2000)}, shots, services.NewFFmpegService(), store)

	// Prepare workers plan several projects at once; run under -race.
	var wg sync.WaitGroup
	errs := make([]error, 4)
	paths := make([]string, 4)
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			project := &models.Project{
				ID:        fmt.Sprintf("p%d", i+1),
				Name:      "alpha",
				GitHubURL: "https://github.com/a/alpha",
			}
			paths[i], errs[i] = p.PlanAndGenerate(context.Background(), project, 3.0)
		}()
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		if errs[i] != nil {
			t.Errorf("plan %d: %v", i, errs[i])
		}
		if paths[i] != store.ClipPath(fmt.Sprintf("p%d", i+1), 0) {
			t.Errorf("plan %d: path = %q", i, paths[i])
		}
	}
}

func TestPlanAndGenerateStitchFailureFallsBackToStatic(t *testing.T) {
	store := newTestStore(t)

	// Both clips generate but the stitch subprocess fails; enhancement is
	// reported absent rather than failing the project.
	shots := &fakeScreenshots{paths: []string{"shot0.png", "shot1.png"}}
	gen := &fakeGenerator{imageResults: [][]byte{clipBytes(2000), clipBytes(2000)}}
	ffmpeg := services.NewFFmpegServiceWithRunner(func(ctx context.Context, name string, args ...string) error {
		return fmt.Errorf("exit status 1")
	})
	p := New(gen, shots, ffmpeg, store)

	project := &models.Project{ID: "p1", Name: "alpha", GitHubURL: "https://github.com/a/alpha"}

	path, err := p.PlanAndGenerate(context.Background(), project, 12.0)
	if err != nil {
		t.Fatalf("PlanAndGenerate: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty when the stitch fails", path)
	}
}

func TestPlanAndGenerateClipPromptIncludesMotionAndName(t *testing.T) {
	store := newTestStore(t)
	shots := &fakeScreenshots{paths: []string{"shot0.png"}}
	gen := &fakeGenerator{imageResults: [][]byte{clipBytes(2000)}}
	p := New(gen, shots, services.NewFFmpegService(), store)

	project := &models.Project{ID: "p1", Name: "alpha", GitHubURL: "https://github.com/a/alpha"}

	if _, err := p.PlanAndGenerate(context.Background(), project, 3.0); err != nil {
		t.Fatalf("PlanAndGenerate: %v", err)
	}

	prompt := gen.prompts[0]
	found := false
	for _, motion := range motionLibrary {
		if len(prompt) > len(motion) && prompt[:len(motion)] == motion {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("prompt %q does not start with a library motion", prompt)
	}
	if want := "Clean interface for alpha."; !bytes.HasSuffix([]byte(prompt), []byte(want)) {
		t.Errorf("prompt %q does not end with %q", prompt, want)
	}
}
