package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/osscribes/codestream/internal/config"
	"github.com/osscribes/codestream/internal/models"
	"github.com/osscribes/codestream/internal/services"
	"github.com/osscribes/codestream/internal/storage"
)

// recordingProvider captures every narration text it is asked to synthesize.
type recordingProvider struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingProvider) Name() string { return "recording" }

func (r *recordingProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return []byte("audio-bytes"), nil
}

func (r *recordingProvider) saw(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.texts {
		if got == text {
			return true
		}
	}
	return false
}

// writeOutputRunner stands in for the subprocess runner: every invocation
// "succeeds" by writing its output path, which is always the last argument.
func writeOutputRunner(ctx context.Context, name string, args ...string) error {
	return os.WriteFile(args[len(args)-1], []byte("media"), 0644)
}

func newTestPipeline(t *testing.T, run func(ctx context.Context, name string, args ...string) error, provider services.TTSProvider) (*Pipeline, *storage.Store) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		OutputPath:            filepath.Join(dir, "final.mp4"),
		OutroDuration:         5 * time.Second,
		MaxConcurrentPrepare:  2,
		MaxConcurrentVideoGen: 1,
	}

	store, err := storage.New(filepath.Join(dir, "assets"), filepath.Join(dir, "deliveries"), "01-15")
	if err != nil {
		t.Fatal(err)
	}

	ffmpeg := services.NewFFmpegServiceWithRunner(run)
	synth := services.NewSynthesizer([]services.TTSProvider{provider}, ffmpeg)

	return New(cfg, store, ffmpeg, synth, nil), store
}

func renderedProjects(t *testing.T, store *storage.Store, n int) []*models.Project {
	t.Helper()
	projects := make([]*models.Project, n)
	for i := range projects {
		seg := store.SegmentPath(i)
		if err := os.WriteFile(seg, []byte("media"), 0644); err != nil {
			t.Fatal(err)
		}
		projects[i] = &models.Project{
			ID:          fmt.Sprintf("p%d", i+1),
			Name:        fmt.Sprintf("project-%d", i+1),
			SegmentPath: seg,
			Status:      models.ProjectStatusRendered,
		}
	}
	return projects
}

func assertTimelineCleanedUp(t *testing.T, store *storage.Store, n int) {
	t.Helper()
	var paths []string
	for i := 0; i < n; i++ {
		paths = append(paths, store.SegmentPath(i))
	}
	for _, name := range []string{"intro", "subscribe", "outro"} {
		paths = append(paths, store.StaticSegmentPath(name))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s still exists after assemble", path)
		}
	}
}

func TestAssembleCleansUpSegments(t *testing.T) {
	p, store := newTestPipeline(t, writeOutputRunner, &recordingProvider{})
	rendered := renderedProjects(t, store, 2)

	out, err := p.assemble(context.Background(), rendered)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if out != p.cfg.OutputPath {
		t.Errorf("output = %q, want %q", out, p.cfg.OutputPath)
	}
	if !storage.Exists(out) {
		t.Error("final video missing after successful assemble")
	}

	assertTimelineCleanedUp(t, store, 2)
}

func TestAssembleFailureStillCleansUpSegments(t *testing.T) {
	// Card renders succeed; the final concat subprocess fails.
	failConcat := func(ctx context.Context, name string, args ...string) error {
		for _, a := range args {
			if a == "concat" {
				return fmt.Errorf("exit status 1")
			}
		}
		return writeOutputRunner(ctx, name, args...)
	}

	p, store := newTestPipeline(t, failConcat, &recordingProvider{})
	rendered := renderedProjects(t, store, 2)

	if _, err := p.assemble(context.Background(), rendered); err == nil {
		t.Fatal("expected assemble to fail when the concat subprocess fails")
	}
	if storage.Exists(p.cfg.OutputPath) {
		t.Error("final video should not exist after failed assemble")
	}

	assertTimelineCleanedUp(t, store, 2)
}

func TestPrepareSkipsSubscribeNarrationForSingleProject(t *testing.T) {
	rec := &recordingProvider{}
	p, store := newTestPipeline(t, writeOutputRunner, rec)

	projects := []*models.Project{{ID: "p1", Name: "alpha", Script: "Alpha is great."}}
	if err := p.prepare(context.Background(), projects); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if rec.saw(subscribeNarration) {
		t.Error("subscribe narration synthesized for a single project")
	}
	if _, err := os.Stat(store.AudioPath("subscribe")); !os.IsNotExist(err) {
		t.Error("subscribe audio file exists for a single project")
	}
	if !rec.saw(fmt.Sprintf(introNarrationFmt, 1)) {
		t.Error("intro narration was not synthesized")
	}
}

func TestPrepareSynthesizesSubscribeNarrationForTwoProjects(t *testing.T) {
	rec := &recordingProvider{}
	p, _ := newTestPipeline(t, writeOutputRunner, rec)

	projects := []*models.Project{
		{ID: "p1", Name: "alpha", Script: "Alpha is great."},
		{ID: "p2", Name: "beta", Script: "Beta too."},
	}
	if err := p.prepare(context.Background(), projects); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if !rec.saw(subscribeNarration) {
		t.Error("subscribe narration missing with two projects")
	}
}

func segs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("seg_%d.mp4", i)
	}
	return out
}

func TestBuildTimeline(t *testing.T) {
	tests := []struct {
		name      string
		projects  []string
		subscribe string
		want      []string
	}{
		{
			name:      "no projects",
			projects:  nil,
			subscribe: "",
			want:      []string{"intro.mp4", "outro.mp4"},
		},
		{
			name:      "single project skips mid-roll",
			projects:  segs(1),
			subscribe: "sub.mp4",
			want:      []string{"intro.mp4", "seg_0.mp4", "outro.mp4"},
		},
		{
			name:      "two projects split around mid-roll",
			projects:  segs(2),
			subscribe: "sub.mp4",
			want:      []string{"intro.mp4", "seg_0.mp4", "sub.mp4", "seg_1.mp4", "outro.mp4"},
		},
		{
			name:      "five projects put mid-roll after the second",
			projects:  segs(5),
			subscribe: "sub.mp4",
			want: []string{
				"intro.mp4",
				"seg_0.mp4", "seg_1.mp4",
				"sub.mp4",
				"seg_2.mp4", "seg_3.mp4", "seg_4.mp4",
				"outro.mp4",
			},
		},
		{
			name:      "missing subscribe segment omits mid-roll",
			projects:  segs(4),
			subscribe: "",
			want: []string{
				"intro.mp4",
				"seg_0.mp4", "seg_1.mp4", "seg_2.mp4", "seg_3.mp4",
				"outro.mp4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildTimeline("intro.mp4", tt.projects, tt.subscribe, "outro.mp4")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildTimeline = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnrichedPath(t *testing.T) {
	tests := []struct {
		dataFile string
		enriched string
		want     string
	}{
		{"posts_data.json", "", "posts_data_longform.json"},
		{"input/roundup.json", "", "input/roundup_longform.json"},
		{"posts_data.json", "custom.json", "custom.json"},
	}

	for _, tt := range tests {
		p := &Pipeline{cfg: &config.Config{DataFile: tt.dataFile, EnrichedFile: tt.enriched}}
		if got := p.enrichedPath(); got != tt.want {
			t.Errorf("enrichedPath(%q, %q) = %q, want %q", tt.dataFile, tt.enriched, got, tt.want)
		}
	}
}
