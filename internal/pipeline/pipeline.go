// Package pipeline orchestrates the full roundup build: narration synthesis,
// visual preparation, segment rendering, and final timeline assembly.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/osscribes/codestream/internal/config"
	"github.com/osscribes/codestream/internal/models"
	"github.com/osscribes/codestream/internal/planner"
	"github.com/osscribes/codestream/internal/services"
	"github.com/osscribes/codestream/internal/storage"
)

// Shared narration read over the intro and mid-roll cards.
const (
	introNarrationFmt  = "Welcome back, glad you could stop by! Today we're diggin into %d incredible open source projects that you need to know about. Let's get started!"
	subscribeNarration = "If you're finding these tools useful, please subscribe for more open source discoveries."
)

// Pipeline wires the services into the four-stage roundup build.
// planner is nil when video enhancement is disabled; every project then gets
// a static graphic segment.
type Pipeline struct {
	cfg         *config.Config
	store       *storage.Store
	ffmpeg      *services.FFmpegService
	synthesizer *services.Synthesizer
	planner     *planner.Planner
}

func New(cfg *config.Config, store *storage.Store, ffmpeg *services.FFmpegService, synth *services.Synthesizer, pl *planner.Planner) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		store:       store,
		ffmpeg:      ffmpeg,
		synthesizer: synth,
		planner:     pl,
	}
}

// Run executes the pipeline end to end and returns the final video path.
// Individual project failures are recorded on the project and skipped; only
// an empty timeline or a failed final assembly is fatal.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	projects, err := models.LoadProjects(p.cfg.DataFile)
	if err != nil {
		return "", err
	}
	if len(projects) == 0 {
		return "", fmt.Errorf("project list %s is empty", p.cfg.DataFile)
	}

	log.Printf("[Pipeline] Loaded %d projects from %s", len(projects), p.cfg.DataFile)

	if err := p.prepare(ctx, projects); err != nil {
		return "", err
	}

	rendered := p.render(ctx, projects)

	// The enriched list is written even when assembly fails below, so a rerun
	// and downstream consumers see per-project status and errors.
	if err := models.SaveProjects(p.enrichedPath(), projects); err != nil {
		log.Printf("[Pipeline] Failed to write enriched project list: %v", err)
	}

	if len(rendered) == 0 {
		return "", fmt.Errorf("no project segments rendered, nothing to assemble")
	}

	outputPath, err := p.assemble(ctx, rendered)
	if err != nil {
		return "", err
	}

	log.Printf("[Pipeline] Final video ready: %s", outputPath)
	return outputPath, nil
}

// ---------------------------------------------------------------------------
// Stage 2: Prepare — narration, duration, visuals, bounded concurrency
// ---------------------------------------------------------------------------

func (p *Pipeline) prepare(ctx context.Context, projects []*models.Project) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrentPrepare)

	// Paid video generation gets its own, tighter limit across all workers.
	videoGenSem := make(chan struct{}, p.cfg.MaxConcurrentVideoGen)

	// Shared narrations are prepared in the same pool as the projects.
	introText := fmt.Sprintf(introNarrationFmt, len(projects))
	g.Go(func() error {
		return p.synthesizer.SynthesizeToFile(gctx, introText, p.store.AudioPath("intro"))
	})
	// The mid-roll only exists with two or more projects; don't pay for its
	// narration otherwise.
	if len(projects) >= 2 {
		g.Go(func() error {
			return p.synthesizer.SynthesizeToFile(gctx, subscribeNarration, p.store.AudioPath("subscribe"))
		})
	}

	for _, project := range projects {
		project := project
		g.Go(func() error {
			if err := p.prepareProject(gctx, project, videoGenSem); err != nil {
				log.Printf("[Pipeline] Prepare failed for %s (%s): %v", project.ID, project.Name, err)
				project.Failed(err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("prepare stage failed: %w", err)
	}
	return nil
}

func (p *Pipeline) prepareProject(ctx context.Context, project *models.Project, videoGenSem chan struct{}) error {
	audioPath := p.store.AudioPath(project.ID)
	if err := p.synthesizer.SynthesizeToFile(ctx, project.Script, audioPath); err != nil {
		return fmt.Errorf("narration synthesis: %w", err)
	}
	project.AudioPath = audioPath

	duration := p.ffmpeg.ProbeDuration(ctx, audioPath)
	if duration <= 0 {
		return fmt.Errorf("narration audio %s has no measurable duration", audioPath)
	}
	project.AudioDuration = duration

	if p.planner != nil {
		select {
		case videoGenSem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		enhancedPath, err := p.planner.PlanAndGenerate(ctx, project, duration)
		<-videoGenSem

		if err != nil {
			return fmt.Errorf("video enhancement: %w", err)
		}
		if enhancedPath != "" {
			project.Visual = models.VisualAsset{Kind: models.VisualEnhancedVideo, Path: enhancedPath}
			project.Status = models.ProjectStatusPrepared
			return nil
		}
		log.Printf("[Pipeline] %s: enhancement unavailable, using static graphic", project.ID)
	}

	graphicPath, err := p.ensureGraphic(ctx, project)
	if err != nil {
		return fmt.Errorf("static graphic: %w", err)
	}
	project.Visual = models.VisualAsset{Kind: models.VisualStaticImage, Path: graphicPath}
	project.Status = models.ProjectStatusPrepared
	return nil
}

// ensureGraphic returns the project's still graphic, rendering a title card
// when no screenshot was delivered alongside the input data.
func (p *Pipeline) ensureGraphic(ctx context.Context, project *models.Project) (string, error) {
	graphicPath := p.store.GraphicPath(project.ID)
	if storage.Exists(graphicPath) {
		return graphicPath, nil
	}

	if err := p.ffmpeg.RenderTitleCard(ctx, project.Name, project.GitHubURL, graphicPath); err != nil {
		return "", err
	}
	return graphicPath, nil
}

// ---------------------------------------------------------------------------
// Stage 3: Render — one segment per prepared project plus the branding cards
// ---------------------------------------------------------------------------

// render produces segments for every prepared project and returns the ones
// that made it, in input order.
func (p *Pipeline) render(ctx context.Context, projects []*models.Project) []*models.Project {
	var rendered []*models.Project

	for i, project := range projects {
		if project.Status != models.ProjectStatusPrepared {
			continue
		}

		segmentPath := p.store.SegmentPath(i)
		if err := p.renderProjectSegment(ctx, project, segmentPath); err != nil {
			log.Printf("[Pipeline] Render failed for %s (%s): %v", project.ID, project.Name, err)
			project.Failed(err)
			continue
		}

		project.SegmentPath = segmentPath
		project.Status = models.ProjectStatusRendered
		rendered = append(rendered, project)
	}

	return rendered
}

func (p *Pipeline) renderProjectSegment(ctx context.Context, project *models.Project, segmentPath string) error {
	if !project.HasVisual() {
		return fmt.Errorf("project %s has no visual asset", project.ID)
	}

	switch project.Visual.Kind {
	case models.VisualEnhancedVideo:
		return p.ffmpeg.RenderSegmentFromVideo(ctx, project.Visual.Path, project.AudioPath, segmentPath)
	case models.VisualStaticImage:
		return p.ffmpeg.RenderSegmentFromImage(ctx, project.Visual.Path, project.AudioPath, segmentPath)
	default:
		return fmt.Errorf("project %s has unknown visual kind %q", project.ID, project.Visual.Kind)
	}
}

// renderCardSegment renders a narrated branding segment, preferring a
// pre-rendered card image over a generated title card.
func (p *Pipeline) renderCardSegment(ctx context.Context, name, cardPath, title, subtitle, audioPath string) (string, error) {
	if cardPath == "" || !storage.Exists(cardPath) {
		cardPath = p.store.CardPath(name)
		if !storage.Exists(cardPath) {
			if err := p.ffmpeg.RenderTitleCard(ctx, title, subtitle, cardPath); err != nil {
				return "", err
			}
		}
	}

	segmentPath := p.store.StaticSegmentPath(name)
	if audioPath != "" {
		if err := p.ffmpeg.RenderSegmentFromImage(ctx, cardPath, audioPath, segmentPath); err != nil {
			return "", err
		}
	} else {
		if err := p.ffmpeg.RenderSilentSegment(ctx, cardPath, p.cfg.OutroDuration.Seconds(), segmentPath); err != nil {
			return "", err
		}
	}
	return segmentPath, nil
}

// ---------------------------------------------------------------------------
// Stage 4: Assemble — ordered timeline, re-encoding concat, cleanup
// ---------------------------------------------------------------------------

func (p *Pipeline) assemble(ctx context.Context, rendered []*models.Project) (string, error) {
	intro, err := p.renderCardSegment(ctx, "intro", p.cfg.IntroCardPath,
		"Open Source Roundup", fmt.Sprintf("%d projects you need to know", len(rendered)),
		p.store.AudioPath("intro"))
	if err != nil {
		return "", fmt.Errorf("intro segment: %w", err)
	}

	subscribe := ""
	if len(rendered) >= 2 {
		subscribe, err = p.renderCardSegment(ctx, "subscribe", p.cfg.SubscribeCardPath,
			"Enjoying these picks?", "Subscribe for more open source discoveries",
			p.store.AudioPath("subscribe"))
		if err != nil {
			return "", fmt.Errorf("subscribe segment: %w", err)
		}
	}

	outro, err := p.renderCardSegment(ctx, "outro", p.cfg.OutroCardPath,
		"Thanks for watching", "See you in the next roundup", "")
	if err != nil {
		return "", fmt.Errorf("outro segment: %w", err)
	}

	projectSegments := make([]string, len(rendered))
	for i, project := range rendered {
		projectSegments[i] = project.SegmentPath
	}

	timeline := buildTimeline(intro, projectSegments, subscribe, outro)

	outputPath := p.cfg.OutputPath
	if outputPath == "" {
		outputPath = p.store.DefaultFinalVideoPath()
	}

	listPath := p.store.ConcatListPath(uuid.NewString())

	log.Printf("[Pipeline] Assembling %d segments into %s", len(timeline), outputPath)

	err = p.ffmpeg.ConcatenateSegments(ctx, timeline, listPath, outputPath)

	// Segments are intermediate artifacts either way; the concat list is kept
	// on failure for diagnosis.
	p.ffmpeg.Cleanup(timeline...)

	if err != nil {
		return "", fmt.Errorf("final assembly failed: %w", err)
	}
	return outputPath, nil
}

// buildTimeline orders the final cut: intro, the first half of the project
// segments, the subscribe mid-roll, the remaining segments, outro. An empty
// subscribe path (fewer than two projects) means no mid-roll.
func buildTimeline(intro string, projectSegments []string, subscribe, outro string) []string {
	timeline := []string{intro}

	if subscribe == "" || len(projectSegments) < 2 {
		timeline = append(timeline, projectSegments...)
	} else {
		midpoint := len(projectSegments) / 2
		timeline = append(timeline, projectSegments[:midpoint]...)
		timeline = append(timeline, subscribe)
		timeline = append(timeline, projectSegments[midpoint:]...)
	}

	return append(timeline, outro)
}

// enrichedPath derives the output path for the enriched project list.
func (p *Pipeline) enrichedPath() string {
	if p.cfg.EnrichedFile != "" {
		return p.cfg.EnrichedFile
	}
	return strings.TrimSuffix(p.cfg.DataFile, ".json") + "_longform.json"
}
