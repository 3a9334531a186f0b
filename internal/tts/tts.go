package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tahcohcat/talkinghead-web/config"
)

var (
	ErrEmptyText   = errors.New("text cannot be empty")
	ErrEmptyAudio  = errors.New("empty audio content received")
	ErrUnknownTTS  = errors.New("unsupported tts type")
	ErrTTSDisabled = errors.New("speech synthesis is disabled")
)

// WordsPerMinute is the speaking rate assumed when audio length is unknown.
const WordsPerMinute = 150

// Speech is a synthesised utterance. Duration is the authoritative length in
// seconds used for viseme timing.
type Speech struct {
	AudioPath string  `json:"-"`
	AudioURL  string  `json:"audio_url,omitempty"`
	Duration  float64 `json:"duration"`
	Voice     string  `json:"voice,omitempty"`
}

// Synthesizer turns text into stored speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Speech, error)
	Name() string
}

// AudioGenerator produces encoded audio bytes without storing them.
type AudioGenerator interface {
	GenerateAudio(ctx context.Context, text string) ([]byte, error)
	Name() string
}

// EstimateDuration approximates spoken length in seconds from the word count.
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	return float64(words) / WordsPerMinute * 60
}

// NewSynthesizer builds the synthesizer selected by tts.type.
func NewSynthesizer(ctx context.Context, cfg *config.TtsConfig, openaiCfg *config.OpenAIConfig) (Synthesizer, error) {
	if !cfg.Enabled {
		return nil, ErrTTSDisabled
	}

	timeout := time.Duration(cfg.Timeout) * time.Second

	switch strings.ToLower(cfg.Type) {
	case "dummy", "":
		return NewDummyTts(cfg.Voice), nil
	case "google":
		gen, err := NewWebGoogleTTSClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store, err := NewStore(cfg.AudioDir, cfg.AudioURLPrefix)
		if err != nil {
			return nil, err
		}
		return NewAudioSynthesizer(gen, store, cfg.Voice, timeout), nil
	case "openai":
		gen, err := NewOpenAITTS(openaiCfg, cfg)
		if err != nil {
			return nil, err
		}
		store, err := NewStore(cfg.AudioDir, cfg.AudioURLPrefix)
		if err != nil {
			return nil, err
		}
		return NewAudioSynthesizer(gen, store, cfg.Voice, timeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTTS, cfg.Type)
	}
}

// AudioSynthesizer stores generated audio and estimates its duration.
type AudioSynthesizer struct {
	gen     AudioGenerator
	store   *Store
	voice   string
	timeout time.Duration
}

func NewAudioSynthesizer(gen AudioGenerator, store *Store, voice string, timeout time.Duration) *AudioSynthesizer {
	return &AudioSynthesizer{gen: gen, store: store, voice: voice, timeout: timeout}
}

func (s *AudioSynthesizer) Synthesize(ctx context.Context, text string) (*Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	audio, err := s.gen.GenerateAudio(ctx, text)
	if err != nil {
		return nil, err
	}

	path, url, err := s.store.Save(audio, "mp3")
	if err != nil {
		return nil, err
	}

	return &Speech{
		AudioPath: path,
		AudioURL:  url,
		Duration:  EstimateDuration(text),
		Voice:     s.voice,
	}, nil
}

func (s *AudioSynthesizer) Name() string {
	return s.gen.Name()
}
