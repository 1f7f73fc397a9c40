package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// fakeProvider is a scripted TTS provider for chain tests.
type fakeProvider struct {
	name  string
	data  []byte
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func TestSynthesizeFallsBackToNextProvider(t *testing.T) {
	first := &fakeProvider{name: "first", err: fmt.Errorf("quota exceeded")}
	second := &fakeProvider{name: "second", data: []byte("mp3-bytes")}

	s := NewSynthesizer([]TTSProvider{first, second}, NewFFmpegService())
	out := filepath.Join(t.TempDir(), "p1_audio.mp3")

	if err := s.SynthesizeToFile(context.Background(), "hello world", out); err != nil {
		t.Fatalf("SynthesizeToFile: %v", err)
	}

	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("audio = %q, want output from second provider", data)
	}
}

func TestSynthesizeExhaustionIsFatal(t *testing.T) {
	first := &fakeProvider{name: "first", err: fmt.Errorf("down")}
	second := &fakeProvider{name: "second", err: fmt.Errorf("also down")}

	s := NewSynthesizer([]TTSProvider{first, second}, NewFFmpegService())
	out := filepath.Join(t.TempDir(), "p1_audio.mp3")

	err := s.SynthesizeToFile(context.Background(), "hello world", out)
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("err = %v, want ErrAllProvidersFailed", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("no audio file should exist after total failure")
	}
}

func TestSynthesizeReusesExistingAudio(t *testing.T) {
	provider := &fakeProvider{name: "only", data: []byte("new-bytes")}
	s := NewSynthesizer([]TTSProvider{provider}, NewFFmpegService())

	out := filepath.Join(t.TempDir(), "p1_audio.mp3")
	if err := os.WriteFile(out, []byte("cached-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := s.SynthesizeToFile(context.Background(), "hello world", out); err != nil {
		t.Fatalf("SynthesizeToFile: %v", err)
	}

	if provider.calls != 0 {
		t.Errorf("provider called %d times for cached audio, want 0", provider.calls)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "cached-bytes" {
		t.Errorf("cached audio was overwritten: %q", data)
	}
}

func TestApplyPronunciationFixes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Check it out on GitHub today.", "Check it out on git hub today."},
		{"Built on sqlite and SQLite alike.", "Built on sequel lite and sequel lite alike."},
		{"The WebMCP standard.", "The Web M C P standard."},
		{"Read the substack post about osmnx.", "Read the sub stack post about O S M N X."},
		// Whole words only
		{"A githubber wrote it.", "A githubber wrote it."},
		{"No fixes needed here.", "No fixes needed here."},
	}

	for _, tt := range tests {
		if got := ApplyPronunciationFixes(tt.in); got != tt.want {
			t.Errorf("ApplyPronunciationFixes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
