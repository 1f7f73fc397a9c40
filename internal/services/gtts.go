package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Google Translate Text-to-Speech Provider
// Keyless last resort for the fallback chain. The translate_tts endpoint
// caps input length per request, so long narration is split at sentence
// boundaries and the MP3 responses are concatenated. MP3 frames are
// self-delimiting, so byte concatenation yields a playable file.
// ---------------------------------------------------------------------------

const (
	gttsBaseURL      = "https://translate.google.com/translate_tts"
	gttsMaxChunkLen  = 200
	gttsLanguageCode = "en"
)

// GoogleTTSProvider handles text-to-speech via the public Google Translate
// endpoint. No API key required; audio quality is noticeably robotic, which
// is acceptable only as a final fallback.
type GoogleTTSProvider struct {
	client *http.Client
}

var _ TTSProvider = (*GoogleTTSProvider)(nil)

func NewGoogleTTSProvider() *GoogleTTSProvider {
	return &GoogleTTSProvider{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *GoogleTTSProvider) Name() string { return "gtts" }

// Synthesize converts text to speech, one chunk per request.
func (s *GoogleTTSProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	chunks := splitTextChunks(text, gttsMaxChunkLen)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text to synthesize")
	}

	log.Printf("[GoogleTTS] Generating speech (%d chunks, textLen=%d)", len(chunks), len(text))

	var audio bytes.Buffer
	for i, chunk := range chunks {
		data, err := s.fetchChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio.Write(data)
	}

	log.Printf("[GoogleTTS] Speech generated (%d bytes)", audio.Len())

	return audio.Bytes(), nil
}

func (s *GoogleTTSProvider) fetchChunk(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{
		"ie":      {"UTF-8"},
		"client":  {"tw-ob"},
		"tl":      {gttsLanguageCode},
		"q":       {text},
		"textlen": {fmt.Sprintf("%d", utf8.RuneCountInString(text))},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", gttsBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate_tts returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("translate_tts returned empty audio")
	}

	return data, nil
}

// splitTextChunks splits text into chunks no longer than maxLen runes,
// preferring sentence boundaries and falling back to word boundaries.
func splitTextChunks(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if c := strings.TrimSpace(current.String()); c != "" {
			chunks = append(chunks, c)
		}
		current.Reset()
	}

	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+1+utf8.RuneCountInString(word) > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)

		// Prefer breaking after sentence-ending punctuation once a chunk is
		// reasonably full, so pauses land in natural places.
		if utf8.RuneCountInString(current.String()) > maxLen/2 && endsSentence(word) {
			flush()
		}
	}
	flush()

	return chunks
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}
