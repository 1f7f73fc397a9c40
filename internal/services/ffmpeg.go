package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Rendering constants: 1080p landscape at 24fps. Every segment is
// encoded with the same codec parameters so the concat stage sees a uniform
// stream layout.
const (
	videoFPS     = 24
	cardWidth    = 1920
	cardHeight   = 1080
	audioBitrate = "192k"
)

// FFmpegService wraps the documented ffmpeg/ffprobe invocations the pipeline
// depends on: duration probing, silence trimming, segment rendering, title
// cards, and the two concatenation modes (stream-copy for generated clips,
// re-encode for the final timeline).
type FFmpegService struct {
	run func(ctx context.Context, name string, args ...string) error
}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{run: runCommand}
}

// NewFFmpegServiceWithRunner substitutes the subprocess runner so callers can
// be tested without executing ffmpeg.
func NewFFmpegServiceWithRunner(run func(ctx context.Context, name string, args ...string) error) *FFmpegService {
	return &FFmpegService{run: run}
}

// runCommand executes an ffmpeg/ffprobe command, capturing stderr so failures
// carry the tool's own diagnostics instead of a bare exit status.
func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, tail(stderr.String(), 400))
	}
	return nil
}

// ProbeDuration returns the duration of a media file in seconds, or 0.0 if
// the file is missing or the probe fails. It never returns an error: callers
// treat an unknown duration as "no usable media".
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) float64 {
	if _, err := os.Stat(path); err != nil {
		return 0.0
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0.0
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil || duration < 0 {
		return 0.0
	}

	return duration
}

// TrimLeadingSilence removes leading silence below -50dBFS from an audio
// file, writing through a temp file and atomically replacing the original.
func (s *FFmpegService) TrimLeadingSilence(ctx context.Context, audioPath string) error {
	tempPath := strings.TrimSuffix(audioPath, ".mp3") + "_trimmed.mp3"

	args := []string{
		"-y",
		"-i", audioPath,
		"-af", "silenceremove=start_periods=1:start_duration=0:start_threshold=-50dB",
		tempPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("silence trim failed for %s: %w", audioPath, err)
	}

	if err := os.Rename(tempPath, audioPath); err != nil {
		return fmt.Errorf("failed to replace %s with trimmed audio: %w", audioPath, err)
	}

	return nil
}

// RenderSegmentFromImage loops a still image against a narration track.
// The looped image has unbounded length, so -shortest pins the segment
// duration to the audio duration exactly.
func (s *FFmpegService) RenderSegmentFromImage(ctx context.Context, imagePath, audioPath, outputPath string) error {
	args := []string{
		"-y",
		"-loop", "1", "-framerate", strconv.Itoa(videoFPS),
		"-i", imagePath,
		"-i", audioPath,
		"-r", strconv.Itoa(videoFPS),
		"-c:v", "libx264", "-preset", "ultrafast", "-tune", "stillimage",
		"-c:a", "aac", "-b:a", audioBitrate,
		"-pix_fmt", "yuv420p",
		"-shortest",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("render segment from image failed: %w", err)
	}
	return nil
}

// RenderSegmentFromVideo loops an enhanced video reel against a narration
// track. The reel's own audio (if any) is dropped; -stream_loop -1 lets a
// short reel cover a long narration, and -shortest trims it to audio length.
func (s *FFmpegService) RenderSegmentFromVideo(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-y",
		"-stream_loop", "-1", "-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "libx264", "-preset", "ultrafast",
		"-c:a", "aac", "-b:a", audioBitrate,
		"-pix_fmt", "yuv420p",
		"-shortest",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("render segment from video failed: %w", err)
	}
	return nil
}

// RenderSilentSegment renders a fixed-duration segment from a still image
// with a silent stereo track, so the concat stage always sees both streams.
func (s *FFmpegService) RenderSilentSegment(ctx context.Context, imagePath string, durationSec float64, outputPath string) error {
	args := []string{
		"-y",
		"-loop", "1", "-framerate", strconv.Itoa(videoFPS),
		"-i", imagePath,
		"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-t", strconv.FormatFloat(durationSec, 'f', -1, 64),
		"-c:v", "libx264", "-preset", "ultrafast", "-tune", "stillimage",
		"-c:a", "aac",
		"-pix_fmt", "yuv420p",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("render silent segment failed: %w", err)
	}
	return nil
}

// RenderTitleCard draws a plain branded card (dark background, centered
// title, smaller subtitle) as a single PNG frame. Used for intro/outro/
// subscribe cards and as the fallback project graphic.
func (s *FFmpegService) RenderTitleCard(ctx context.Context, title, subtitle, outputPath string) error {
	vf := fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=96:x=(w-text_w)/2:y=(h-text_h)/2-80",
		escapeDrawtext(title),
	)
	if subtitle != "" {
		vf += fmt.Sprintf(
			",drawtext=text='%s':fontcolor=0x58E6D9:fontsize=48:x=(w-text_w)/2:y=(h-text_h)/2+60",
			escapeDrawtext(subtitle),
		)
	}

	args := []string{
		"-y",
		"-f", "lavfi", "-i", fmt.Sprintf("color=c=0x0D1117:s=%dx%d:d=1", cardWidth, cardHeight),
		"-vf", vf,
		"-frames:v", "1",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("render title card failed: %w", err)
	}
	return nil
}

// StitchClips concatenates generated clips stream-copy, no re-encode. Valid
// because every clip comes from the same vendor with identical parameters.
func (s *FFmpegService) StitchClips(ctx context.Context, clipPaths []string, listPath, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to stitch")
	}

	if err := writeConcatList(listPath, clipPaths); err != nil {
		return err
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("stitch clips failed: %w", err)
	}
	return nil
}

// ConcatenateSegments joins timeline segments into the final video,
// re-encoding both streams. Segments originate from looped stills and looped
// generated reels whose timestamp bases don't line up; stream-copy concat of
// that mix produces non-monotonic timestamps, so a full re-encode is required.
func (s *FFmpegService) ConcatenateSegments(ctx context.Context, segmentPaths []string, listPath, outputPath string) error {
	if len(segmentPaths) == 0 {
		return fmt.Errorf("no segments to concatenate")
	}

	if err := writeConcatList(listPath, segmentPaths); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c:v", "libx264", "-preset", "ultrafast",
		"-c:a", "aac", "-b:a", audioBitrate,
		outputPath,
	}

	if err := s.run(ctx, "ffmpeg", args...); err != nil {
		// Keep the list file for diagnosis; the caller owns segment cleanup.
		return fmt.Errorf("concatenate segments failed: %w", err)
	}

	os.Remove(listPath)
	return nil
}

// Cleanup removes intermediate files, ignoring those already gone.
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}

// writeConcatList writes an ffmpeg concat-demuxer list file.
func writeConcatList(listPath string, paths []string) error {
	if err := os.WriteFile(listPath, []byte(buildConcatList(paths)), 0644); err != nil {
		return fmt.Errorf("failed to write concat list %s: %w", listPath, err)
	}
	return nil
}

func buildConcatList(paths []string) string {
	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "file '%s'\n", path)
	}
	return b.String()
}

// escapeDrawtext escapes characters the drawtext filter treats specially.
func escapeDrawtext(text string) string {
	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, ":", "\\:")
	text = strings.ReplaceAll(text, "'", "\\\\\\'")
	text = strings.ReplaceAll(text, "%", "\\%")
	return text
}

// tail returns the last max characters of s, for bounded error messages.
func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
