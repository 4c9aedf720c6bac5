// Package tts synthesizes spoken audio for finished translations when the
// realtime session itself runs text-only.
package tts

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini-tts"

type Config struct {
	APIKey string
	Model  string
	Voice  string
	URL    string // override for tests
}

// Synthesizer turns one translated sentence into raw pcm16 audio.
type Synthesizer struct {
	client *openai.Client
	config Config
}

func New(cfg Config) *Synthesizer {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.URL != "" {
		clientConfig.BaseURL = cfg.URL
	}
	return &Synthesizer{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

func (s *Synthesizer) Speak(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.config.Voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	}

	start := time.Now()
	resp, err := s.client.CreateSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}

	log.Debug().
		Dur("duration", time.Since(start)).
		Int("bytes", len(pcm)).
		Msg("tts: synthesized")
	return pcm, nil
}
