// Package avatar ties the conversation, speech, lip-sync and video
// collaborators together behind the operations the HTTP API exposes.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tahcohcat/talkinghead-web/internal/logger"
	"github.com/tahcohcat/talkinghead-web/internal/models"
	"github.com/tahcohcat/talkinghead-web/internal/tts"
	"github.com/tahcohcat/talkinghead-web/internal/video"
	"github.com/tahcohcat/talkinghead-web/internal/viseme"
)

var (
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrVideoDisabled = errors.New("video rendering is disabled")
	ErrNoAudio       = errors.New("audio is required for video rendering")
)

type Conversation interface {
	Reply(ctx context.Context, userText string, history []models.Message) string
}

type VideoRenderer interface {
	Render(ctx context.Context, imagePath, audioPath string, opts video.StyleOptions) (*video.Result, error)
}

type History interface {
	Append(sessionID string, messages ...models.Message) error
	Load(sessionID string) ([]models.Message, error)
	Clear(sessionID string) error
}

type Broadcaster interface {
	Broadcast(v any) error
}

// Resolver maps a public name or URL to a local file path.
type Resolver interface {
	Resolve(name string) (string, error)
}

// Options lists the collaborators of a Service. Only Assistant is required.
type Options struct {
	Assistant   Conversation
	Synthesizer tts.Synthesizer
	Generator   *viseme.Generator
	Video       VideoRenderer
	Images      Resolver
	Audio       Resolver
	History     History
	Hub         Broadcaster
}

type Service struct {
	opts   Options
	logger *logger.Log
}

func NewService(opts Options) (*Service, error) {
	if opts.Assistant == nil {
		return nil, fmt.Errorf("avatar service requires an assistant")
	}
	if opts.Generator == nil {
		opts.Generator = viseme.NewGenerator(viseme.DefaultConfig())
	}
	return &Service{
		opts:   opts,
		logger: logger.New().WithField("component", "avatar"),
	}, nil
}

// ChatResult mirrors the /api/chat response. Speech fields stay null when
// speech was not requested or could not be produced.
type ChatResult struct {
	Text     string         `json:"text"`
	Response string         `json:"response"`
	AudioURL *string        `json:"audio_url"`
	Visemes  []viseme.Event `json:"visemes"`
	Duration *float64       `json:"duration"`
}

type SpeechResult struct {
	AudioURL string         `json:"audio_url"`
	Visemes  []viseme.Event `json:"visemes"`
	Duration float64        `json:"duration"`
}

// TimelineEvent is pushed to websocket clients whenever new speech is ready.
type TimelineEvent struct {
	Type     string         `json:"type"`
	Text     string         `json:"text"`
	AudioURL string         `json:"audio_url,omitempty"`
	Visemes  []viseme.Event `json:"visemes"`
	Duration float64        `json:"duration"`
}

// Chat answers text within the session's conversation and optionally voices
// the reply with a matching viseme timeline.
func (s *Service) Chat(ctx context.Context, sessionID, text string, withSpeech bool) (*ChatResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	history := s.loadHistory(sessionID)
	reply := s.opts.Assistant.Reply(ctx, text, history)

	result := &ChatResult{Text: text, Response: reply}

	if withSpeech {
		speech, err := s.speak(ctx, reply)
		if err != nil {
			s.logger.WithError(err).Warn("speech synthesis failed, returning text only")
		} else {
			result.AudioURL = &speech.AudioURL
			result.Visemes = speech.Visemes
			result.Duration = &speech.Duration
		}
	}

	s.saveHistory(sessionID, text, reply)
	return result, nil
}

// Speak synthesises text and returns its audio with a viseme timeline.
func (s *Service) Speak(ctx context.Context, text string) (*SpeechResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return s.speak(ctx, text)
}

func (s *Service) speak(ctx context.Context, text string) (*SpeechResult, error) {
	if s.opts.Synthesizer == nil {
		return nil, tts.ErrTTSDisabled
	}

	speech, err := s.opts.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	result := &SpeechResult{
		AudioURL: speech.AudioURL,
		Visemes:  s.opts.Generator.Generate(text, speech.Duration),
		Duration: speech.Duration,
	}

	if s.opts.Hub != nil {
		event := TimelineEvent{
			Type:     "visemes",
			Text:     text,
			AudioURL: result.AudioURL,
			Visemes:  result.Visemes,
			Duration: result.Duration,
		}
		if err := s.opts.Hub.Broadcast(event); err != nil {
			s.logger.WithError(err).Debug("could not broadcast viseme timeline")
		}
	}

	return result, nil
}

// RenderVideo animates a catalog image with previously synthesised audio.
func (s *Service) RenderVideo(ctx context.Context, imageName, audioURL string, opts video.StyleOptions) (*video.Result, error) {
	if s.opts.Video == nil || s.opts.Images == nil || s.opts.Audio == nil {
		return nil, ErrVideoDisabled
	}
	if audioURL == "" {
		return nil, ErrNoAudio
	}

	imagePath, err := s.opts.Images.Resolve(imageName)
	if err != nil {
		return nil, err
	}
	audioPath, err := s.opts.Audio.Resolve(audioURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAudio, err)
	}

	return s.opts.Video.Render(ctx, imagePath, audioPath, opts)
}

// History returns the stored turns of a session.
func (s *Service) History(sessionID string) ([]models.Message, error) {
	if s.opts.History == nil {
		return []models.Message{}, nil
	}
	return s.opts.History.Load(sessionID)
}

func (s *Service) ClearHistory(sessionID string) error {
	if s.opts.History == nil {
		return nil
	}
	return s.opts.History.Clear(sessionID)
}

func (s *Service) loadHistory(sessionID string) []models.Message {
	if s.opts.History == nil || sessionID == "" {
		return nil
	}

	history, err := s.opts.History.Load(sessionID)
	if err != nil {
		s.logger.WithError(err).Warn("could not load conversation history")
		return nil
	}
	return history
}

func (s *Service) saveHistory(sessionID, text, reply string) {
	if s.opts.History == nil || sessionID == "" {
		return
	}

	err := s.opts.History.Append(sessionID,
		models.Message{Role: models.RoleUser, Content: text},
		models.Message{Role: models.RoleAssistant, Content: reply},
	)
	if err != nil {
		s.logger.WithError(err).Warn("could not store conversation history")
	}
}
