package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	tts "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
)

type WebGoogleTTS struct {
	client       *texttospeech.Client
	voice        string
	speakingRate float64
	logger       *logger.Log
}

func NewWebGoogleTTSClient(ctx context.Context, cfg *config.TtsConfig) (*WebGoogleTTS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google TTS client: %w", err)
	}

	rate := cfg.SpeakingRate
	if rate <= 0 {
		rate = 1.0
	}

	return &WebGoogleTTS{
		client:       client,
		voice:        cfg.Voice,
		speakingRate: rate,
		logger:       logger.New().WithField("tts", "google"),
	}, nil
}

// Extract language code from voice name (e.g., "en-US-Chirp-HD-F" -> "en-US", "en-GB-Standard-D" -> "en-GB")
func extractLanguageCode(voiceName string) string {
	parts := strings.Split(voiceName, "-")
	if len(parts) >= 2 {
		return fmt.Sprintf("%s-%s", parts[0], parts[1])
	}
	// Fallback to en-US if we can't parse
	return "en-US"
}

// cleanText drops characters the voices read out literally.
func cleanText(text string) string {
	return strings.NewReplacer("[", "", "]", "", "*", "", "#", "").Replace(text)
}

// GenerateAudio generates MP3 audio data for text
func (g *WebGoogleTTS) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	languageCode := extractLanguageCode(g.voice)

	req := &tts.SynthesizeSpeechRequest{
		Input: &tts.SynthesisInput{
			InputSource: &tts.SynthesisInput_Text{Text: cleanText(text)},
		},
		Voice: &tts.VoiceSelectionParams{
			LanguageCode: languageCode,
			Name:         g.voice,
		},
		AudioConfig: &tts.AudioConfig{
			AudioEncoding:   tts.AudioEncoding_MP3, // Use MP3 for web compatibility
			SpeakingRate:    g.speakingRate,
			SampleRateHertz: 22050,
		},
	}

	g.logger.Debug(fmt.Sprintf("Generating Google TTS audio with voice: %s, language: %s", g.voice, languageCode))

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	if len(resp.AudioContent) == 0 {
		return nil, ErrEmptyAudio
	}

	g.logger.Debug(fmt.Sprintf("Generated %d bytes of MP3 audio", len(resp.AudioContent)))
	return resp.AudioContent, nil
}

func (g *WebGoogleTTS) Name() string {
	return "Google Cloud Text-to-Speech"
}

func (g *WebGoogleTTS) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
