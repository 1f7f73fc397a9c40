package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/osscribes/codestream/internal/config"
	"github.com/osscribes/codestream/internal/pipeline"
	"github.com/osscribes/codestream/internal/planner"
	"github.com/osscribes/codestream/internal/services"
	"github.com/osscribes/codestream/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	dataFile := flag.String("data", "", "project list JSON (overrides DATA_FILE)")
	outputPath := flag.String("o", "", "final video path (overrides OUTPUT_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] Config error: %v", err)
	}
	if *dataFile != "" {
		cfg.DataFile = *dataFile
	}
	if *outputPath != "" {
		cfg.OutputPath = *outputPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.AssetsDir, cfg.DeliveriesDir, cfg.DeliveryDate)
	if err != nil {
		log.Fatalf("[Main] Storage error: %v", err)
	}

	ffmpeg := services.NewFFmpegService()
	synth := services.NewSynthesizer(buildTTSChain(cfg), ffmpeg)

	var pl *planner.Planner
	if cfg.VideoGenEnabled {
		generator := buildVideoGenerator(cfg)
		log.Printf("[Main] Video enhancement enabled (vendor=%s)", generator.Name())
		pl = planner.New(generator, nil, ffmpeg, store)
	} else {
		log.Printf("[Main] Video enhancement disabled, projects get static graphics")
	}

	p := pipeline.New(cfg, store, ffmpeg, synth, pl)

	finalPath, err := p.Run(ctx)
	if err != nil {
		log.Printf("[Main] Pipeline failed: %v", err)
		os.Exit(1)
	}

	log.Printf("[Main] Done: %s", finalPath)
}

// buildTTSChain instantiates the configured fallback chain in order,
// skipping providers whose keys are missing. Config validation already
// guaranteed at least one viable provider.
func buildTTSChain(cfg *config.Config) []services.TTSProvider {
	var providers []services.TTSProvider
	for _, name := range cfg.TTSFallbackChain {
		switch name {
		case "elevenlabs":
			if cfg.ElevenLabsKey != "" {
				providers = append(providers, services.NewElevenLabsProvider(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID))
			}
		case "openai":
			if cfg.OpenAIKey != "" {
				providers = append(providers, services.NewOpenAITTSProvider(cfg.OpenAIKey, cfg.OpenAIVoice))
			}
		case "gtts":
			providers = append(providers, services.NewGoogleTTSProvider())
		}
	}
	return providers
}

func buildVideoGenerator(cfg *config.Config) services.VideoGenerator {
	if cfg.VideoGenProvider == "veo" {
		return services.NewVeoService(cfg.GeminiKey, cfg.VeoModel)
	}
	return services.NewMiniMaxService(cfg.MiniMaxKey, cfg.MiniMaxModel)
}
