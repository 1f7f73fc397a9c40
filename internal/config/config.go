package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Input / output
	DataFile      string // Project list JSON (pipeline input)
	EnrichedFile  string // Enriched project list written after prepare (empty = derive from DataFile)
	OutputPath    string // Final video path (empty = deliveries/<MM-DD>/longform_roundup.mp4)
	AssetsDir     string // Working directory for audio/graphics/clips/segments
	DeliveriesDir string
	DeliveryDate  string // MM-DD override for reproducible runs (empty = today)

	// TTS
	TTSFallbackChain  []string // Provider names tried in order
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	OpenAIKey         string
	OpenAIVoice       string

	// Video enhancement
	VideoGenEnabled  bool   // Feature flag: when false, every project gets a static card
	VideoGenProvider string // "minimax" or "veo"
	MiniMaxKey       string
	MiniMaxModel     string
	GeminiKey        string
	VeoModel         string

	// Pre-rendered branding cards (empty = render title cards with ffmpeg)
	IntroCardPath     string
	OutroCardPath     string
	SubscribeCardPath string

	// Timeline
	OutroDuration time.Duration

	// Concurrency
	MaxConcurrentPrepare  int // Worker pool size for the prepare stage
	MaxConcurrentVideoGen int // In-flight video-generation calls across all workers
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		DataFile:              getEnv("DATA_FILE", "posts_data.json"),
		EnrichedFile:          getEnv("ENRICHED_DATA_FILE", ""),
		OutputPath:            getEnv("OUTPUT_PATH", ""),
		AssetsDir:             getEnv("ASSETS_DIR", "assets"),
		DeliveriesDir:         getEnv("DELIVERIES_DIR", "deliveries"),
		DeliveryDate:          getEnv("DELIVERY_DATE", ""),
		TTSFallbackChain:      splitList(getEnv("TTS_FALLBACK_CHAIN", "elevenlabs,openai,gtts")),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", ""),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIVoice:           getEnv("OPENAI_TTS_VOICE", "nova"),
		VideoGenEnabled:       getEnvBool("VIDEO_GEN_ENABLED", false),
		VideoGenProvider:      getEnv("VIDEO_GEN_PROVIDER", "minimax"),
		MiniMaxKey:            getEnv("MINIMAX_API_KEY", ""),
		MiniMaxModel:          getEnv("MINIMAX_MODEL", "MiniMax-Hailuo-2.3"),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		VeoModel:              getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		IntroCardPath:         getEnv("INTRO_CARD_PATH", ""),
		OutroCardPath:         getEnv("OUTRO_CARD_PATH", ""),
		SubscribeCardPath:     getEnv("SUBSCRIBE_CARD_PATH", ""),
		OutroDuration:         time.Duration(getEnvInt("OUTRO_DURATION_SECONDS", 5)) * time.Second,
		MaxConcurrentPrepare:  getEnvInt("MAX_CONCURRENT_PREPARE", 4),
		MaxConcurrentVideoGen: getEnvInt("MAX_CONCURRENT_VIDEO_GEN", 2),
	}

	// The gtts provider needs no key, so a chain containing it is always viable
	keyless := false
	for _, name := range cfg.TTSFallbackChain {
		switch name {
		case "gtts":
			keyless = true
		case "elevenlabs", "openai":
		default:
			return nil, fmt.Errorf("unknown TTS provider %q in TTS_FALLBACK_CHAIN", name)
		}
	}
	if !keyless && cfg.ElevenLabsKey == "" && cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("no usable TTS provider: set ELEVENLABS_API_KEY or OPENAI_API_KEY, or include gtts in TTS_FALLBACK_CHAIN")
	}

	if cfg.VideoGenEnabled {
		switch cfg.VideoGenProvider {
		case "minimax":
			if cfg.MiniMaxKey == "" {
				return nil, fmt.Errorf("MINIMAX_API_KEY is required when VIDEO_GEN_ENABLED=true and VIDEO_GEN_PROVIDER=minimax")
			}
		case "veo":
			if cfg.GeminiKey == "" {
				return nil, fmt.Errorf("GEMINI_API_KEY is required when VIDEO_GEN_ENABLED=true and VIDEO_GEN_PROVIDER=veo")
			}
		default:
			return nil, fmt.Errorf("unknown VIDEO_GEN_PROVIDER %q (want minimax or veo)", cfg.VideoGenProvider)
		}
	}

	if cfg.MaxConcurrentPrepare < 1 {
		cfg.MaxConcurrentPrepare = 1
	}
	if cfg.MaxConcurrentVideoGen < 1 {
		cfg.MaxConcurrentVideoGen = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
