package tts

import (
	"context"
	"strings"

	"github.com/tahcohcat/talkinghead-web/internal/logger"
)

// DummyTts produces no audio, only an estimated duration, so the lip-sync
// path works without credentials.
type DummyTts struct {
	voice string
}

func NewDummyTts(voice string) *DummyTts {
	return &DummyTts{voice: voice}
}

func (d *DummyTts) Synthesize(_ context.Context, text string) (*Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	logger.New().Debug("no tts configured. estimating duration only")
	return &Speech{Duration: EstimateDuration(text), Voice: d.voice}, nil
}

func (d *DummyTts) Name() string {
	return "dummy"
}
