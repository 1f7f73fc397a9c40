package services

import (
	"context"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// OpenAI Text-to-Speech Provider
// Second rung of the fallback chain. Uses the official speech endpoint via
// the go-openai client (tts-1-hd, MP3 output).
// ---------------------------------------------------------------------------

const openAIDefaultVoice = openai.VoiceNova

// OpenAITTSProvider handles text-to-speech via the OpenAI speech API.
type OpenAITTSProvider struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

var _ TTSProvider = (*OpenAITTSProvider)(nil)

// NewOpenAITTSProvider creates an OpenAI TTS provider. An empty voice selects
// the default narration voice.
func NewOpenAITTSProvider(apiKey, voice string) *OpenAITTSProvider {
	v := openAIDefaultVoice
	if voice != "" {
		v = openai.SpeechVoice(voice)
	}
	return &OpenAITTSProvider{
		client: openai.NewClient(apiKey),
		voice:  v,
	}
}

func (s *OpenAITTSProvider) Name() string { return "openai" }

// Synthesize converts text to speech using the OpenAI speech endpoint.
func (s *OpenAITTSProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	log.Printf("[OpenAI TTS] Generating speech (voice=%s, textLen=%d)", s.voice, len(text))

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1HD,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI speech request failed: %w", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAI audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("OpenAI returned empty audio")
	}

	log.Printf("[OpenAI TTS] Speech generated (%d bytes)", len(audioData))

	return audioData, nil
}
