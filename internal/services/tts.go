package services

import "context"

// ---------------------------------------------------------------------------
// TTSProvider — common interface for text-to-speech providers
// ElevenLabs, OpenAI, and the free Google Translate endpoint all implement
// this interface so the synthesizer can walk a configured fallback chain
// without knowing the underlying provider.
// ---------------------------------------------------------------------------

// TTSProvider is the interface any text-to-speech provider must implement.
type TTSProvider interface {
	// Name identifies the provider in logs and error messages.
	Name() string

	// Synthesize converts text into MP3 audio bytes.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
