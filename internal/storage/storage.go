package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// minPlausibleClipBytes guards the clip reuse cache against truncated
// downloads: anything smaller is treated as absent and regenerated.
const minPlausibleClipBytes = 1000

// Store lays out every asset path the pipeline reads or writes. All caching
// in the pipeline is by-path: an expensive external call is skipped when its
// deterministic output path already holds a plausible file.
type Store struct {
	AssetsDir   string
	DeliveryDir string
}

// New creates the asset store and ensures its directories exist.
// deliveryDate is MM-DD; empty means today.
func New(assetsDir, deliveriesDir, deliveryDate string) (*Store, error) {
	if deliveryDate == "" {
		deliveryDate = time.Now().Format("01-02")
	}

	s := &Store{
		AssetsDir:   assetsDir,
		DeliveryDir: filepath.Join(deliveriesDir, deliveryDate),
	}

	for _, dir := range []string{s.AssetsDir, s.DeliveryDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return s, nil
}

func (s *Store) AudioPath(projectID string) string {
	return filepath.Join(s.AssetsDir, projectID+"_audio.mp3")
}

func (s *Store) GraphicPath(projectID string) string {
	return filepath.Join(s.AssetsDir, projectID+"_screen.png")
}

// ClipPath is the deterministic per-clip output keyed by project and index,
// so repeated runs reuse paid generation results.
func (s *Store) ClipPath(projectID string, index int) string {
	return filepath.Join(s.AssetsDir, fmt.Sprintf("%s_clip_%d.mp4", projectID, index))
}

// EnhancedVideoPath is the stitched clip reel for a project.
func (s *Store) EnhancedVideoPath(projectID string) string {
	return filepath.Join(s.AssetsDir, projectID+"_enhanced.mp4")
}

func (s *Store) SegmentPath(index int) string {
	return filepath.Join(s.AssetsDir, fmt.Sprintf("segment_%03d.mp4", index))
}

// StaticSegmentPath names intro/outro/subscribe segments.
func (s *Store) StaticSegmentPath(name string) string {
	return filepath.Join(s.AssetsDir, fmt.Sprintf("seg_%s.mp4", name))
}

func (s *Store) CardPath(name string) string {
	return filepath.Join(s.AssetsDir, fmt.Sprintf("card_%s.png", name))
}

func (s *Store) ConcatListPath(runID string) string {
	return filepath.Join(s.AssetsDir, fmt.Sprintf("concat_%s.txt", runID))
}

// DefaultFinalVideoPath is used when no explicit output path is configured.
func (s *Store) DefaultFinalVideoPath() string {
	return filepath.Join(s.DeliveryDir, "longform_roundup.mp4")
}

// Exists reports whether path holds a non-empty file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// PlausibleClip reports whether path holds a file large enough to be a real
// video clip rather than an aborted write.
func PlausibleClip(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > minPlausibleClipBytes
}
