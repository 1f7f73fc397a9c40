package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Speech Synthesizer
// Walks the configured provider fallback chain, fixes known mispronounced
// terms before synthesis, trims leading silence from the result, and caches
// by output path so re-runs never repeat paid synthesis.
// ---------------------------------------------------------------------------

// ErrAllProvidersFailed is returned when every provider in the fallback chain
// failed. Callers treat it as fatal for the affected narration.
var ErrAllProvidersFailed = errors.New("all TTS providers failed")

// pronunciationFixes maps terms that TTS engines routinely mangle to spoken
// forms. Matching is whole-word and case-insensitive.
var pronunciationFixes = map[string]string{
	"webmcp":   "Web M C P",
	"sqlite":   "sequel lite",
	"github":   "git hub",
	"substack": "sub stack",
	"osmnx":    "O S M N X",
}

// Synthesizer produces narration audio files via a provider fallback chain.
type Synthesizer struct {
	providers []TTSProvider
	ffmpeg    *FFmpegService
}

func NewSynthesizer(providers []TTSProvider, ffmpeg *FFmpegService) *Synthesizer {
	return &Synthesizer{providers: providers, ffmpeg: ffmpeg}
}

// SynthesizeToFile writes narration audio for text to outputPath. If a
// non-empty file already exists there the call is a no-op, so interrupted
// runs resume without repeating synthesis.
func (s *Synthesizer) SynthesizeToFile(ctx context.Context, text, outputPath string) error {
	if info, err := os.Stat(outputPath); err == nil && info.Size() > 0 {
		log.Printf("[Synthesizer] Reusing existing audio %s", outputPath)
		return nil
	}

	text = ApplyPronunciationFixes(text)

	var errs []error
	for _, provider := range s.providers {
		audio, err := provider.Synthesize(ctx, text)
		if err != nil {
			log.Printf("[Synthesizer] Provider %s failed: %v", provider.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if err := os.WriteFile(outputPath, audio, 0644); err != nil {
			return fmt.Errorf("failed to write audio %s: %w", outputPath, err)
		}

		// A trim failure leaves the untrimmed audio in place, which is still
		// usable narration.
		if err := s.ffmpeg.TrimLeadingSilence(ctx, outputPath); err != nil {
			log.Printf("[Synthesizer] Silence trim failed, keeping raw audio: %v", err)
		}

		log.Printf("[Synthesizer] Audio written to %s (provider=%s)", outputPath, provider.Name())
		return nil
	}

	return fmt.Errorf("%w: %s", ErrAllProvidersFailed, joinErrs(errs))
}

var wordRe = regexp.MustCompile(`[A-Za-z]+`)

// ApplyPronunciationFixes replaces known mispronounced terms with spoken
// forms. Only whole words match: "github" is rewritten, "githubber" is not.
func ApplyPronunciationFixes(text string) string {
	return wordRe.ReplaceAllStringFunc(text, func(word string) string {
		if fix, ok := pronunciationFixes[strings.ToLower(word)]; ok {
			return fix
		}
		return word
	})
}

func joinErrs(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
