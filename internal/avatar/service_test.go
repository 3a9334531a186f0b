package avatar

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahcohcat/talkinghead-web/internal/models"
	"github.com/tahcohcat/talkinghead-web/internal/tts"
	"github.com/tahcohcat/talkinghead-web/internal/video"
	"github.com/tahcohcat/talkinghead-web/internal/viseme"
)

type fakeAssistant struct {
	reply   string
	history []models.Message
}

func (f *fakeAssistant) Reply(_ context.Context, _ string, history []models.Message) string {
	f.history = history
	return f.reply
}

type fakeSynth struct {
	speech *tts.Speech
	err    error
}

func (f *fakeSynth) Synthesize(context.Context, string) (*tts.Speech, error) { return f.speech, f.err }
func (f *fakeSynth) Name() string { return "fake" }

type memoryHistory struct {
	mu       sync.Mutex
	messages map[string][]models.Message
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{messages: map[string][]models.Message{}}
}

func (m *memoryHistory) Append(sessionID string, messages ...models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[sessionID] = append(m.messages[sessionID], messages...)
	return nil
}

func (m *memoryHistory) Load(sessionID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message{}, m.messages[sessionID]...), nil
}

func (m *memoryHistory) Clear(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, sessionID)
	return nil
}

type recordingHub struct {
	events []any
}

func (h *recordingHub) Broadcast(v any) error {
	h.events = append(h.events, v)
	return nil
}

type mapResolver map[string]string

func (m mapResolver) Resolve(name string) (string, error) {
	if p, ok := m[name]; ok {
		return p, nil
	}
	return "", errors.New("not found")
}

type fakeRenderer struct {
	image, audio string
	result       *video.Result
}

func (f *fakeRenderer) Render(_ context.Context, imagePath, audioPath string, _ video.StyleOptions) (*video.Result, error) {
	f.image, f.audio = imagePath, audioPath
	return f.result, nil
}

func TestNewServiceRequiresAssistant(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
}

func TestChatWithSpeech(t *testing.T) {
	hub := &recordingHub{}
	svc, err := NewService(Options{
		Assistant:   &fakeAssistant{reply: "hi"},
		Synthesizer: &fakeSynth{speech: &tts.Speech{AudioURL: "/static/audio/speech_1.mp3", Duration: 1.0}},
		Hub:         hub,
	})
	require.NoError(t, err)

	got, err := svc.Chat(t.Context(), "s1", "hello", true)
	require.NoError(t, err)

	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "hi", got.Response)
	require.NotNil(t, got.AudioURL)
	assert.Equal(t, "/static/audio/speech_1.mp3", *got.AudioURL)
	require.NotNil(t, got.Duration)
	assert.Equal(t, 1.0, *got.Duration)
	assert.Equal(t, []viseme.Event{
		{Time: 0, Viseme: viseme.H, Duration: 0.5},
		{Time: 0.5, Viseme: viseme.IY, Duration: 0.5},
		{Time: 1.0, Viseme: viseme.Silence, Duration: 0.5},
	}, got.Visemes)

	require.Len(t, hub.events, 1)
	event := hub.events[0].(TimelineEvent)
	assert.Equal(t, "visemes", event.Type)
	assert.Equal(t, got.Visemes, event.Visemes)
}

func TestChatWithoutSpeech(t *testing.T) {
	svc, err := NewService(Options{
		Assistant:   &fakeAssistant{reply: "hi"},
		Synthesizer: &fakeSynth{err: errors.New("should not be called")},
	})
	require.NoError(t, err)

	got, err := svc.Chat(t.Context(), "", "hello", false)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Response)
	assert.Nil(t, got.AudioURL)
	assert.Nil(t, got.Visemes)
	assert.Nil(t, got.Duration)
}

func TestChatSpeechFailureKeepsReply(t *testing.T) {
	svc, err := NewService(Options{
		Assistant:   &fakeAssistant{reply: "hi"},
		Synthesizer: &fakeSynth{err: errors.New("quota exceeded")},
	})
	require.NoError(t, err)

	got, err := svc.Chat(t.Context(), "", "hello", true)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Response)
	assert.Nil(t, got.AudioURL)
}

func TestChatRejectsEmptyText(t *testing.T) {
	svc, err := NewService(Options{Assistant: &fakeAssistant{reply: "hi"}})
	require.NoError(t, err)

	_, err = svc.Chat(t.Context(), "", "  ", true)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestChatUsesAndStoresHistory(t *testing.T) {
	history := newMemoryHistory()
	bot := &fakeAssistant{reply: "second answer"}
	svc, err := NewService(Options{Assistant: bot, History: history})
	require.NoError(t, err)

	require.NoError(t, history.Append("s1",
		models.Message{Role: "user", Content: "first"},
		models.Message{Role: "assistant", Content: "first answer"},
	))

	_, err = svc.Chat(t.Context(), "s1", "second", false)
	require.NoError(t, err)

	assert.Equal(t, []models.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "first answer"},
	}, bot.history)

	stored, err := svc.History("s1")
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, "second answer", stored[3].Content)

	require.NoError(t, svc.ClearHistory("s1"))
	stored, err = svc.History("s1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSpeak(t *testing.T) {
	svc, err := NewService(Options{
		Assistant:   &fakeAssistant{},
		Synthesizer: tts.NewDummyTts("en-US"),
	})
	require.NoError(t, err)

	got, err := svc.Speak(t.Context(), "hi")
	require.NoError(t, err)
	assert.Equal(t, tts.EstimateDuration("hi"), got.Duration)
	assert.Equal(t, viseme.Silence, got.Visemes[len(got.Visemes)-1].Viseme)

	_, err = svc.Speak(t.Context(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestSpeakWithoutSynthesizer(t *testing.T) {
	svc, err := NewService(Options{Assistant: &fakeAssistant{}})
	require.NoError(t, err)

	_, err = svc.Speak(t.Context(), "hi")
	assert.ErrorIs(t, err, tts.ErrTTSDisabled)
}

func TestRenderVideo(t *testing.T) {
	renderer := &fakeRenderer{result: &video.Result{VideoURL: "/static/videos/avatar_1.mp4"}}
	svc, err := NewService(Options{
		Assistant: &fakeAssistant{},
		Video:     renderer,
		Images:    mapResolver{"face.png": "/data/avatars/face.png"},
		Audio:     mapResolver{"/static/audio/a.mp3": "/data/audio/a.mp3"},
	})
	require.NoError(t, err)

	got, err := svc.RenderVideo(t.Context(), "face.png", "/static/audio/a.mp3", video.DefaultStyleOptions())
	require.NoError(t, err)
	assert.Equal(t, "/static/videos/avatar_1.mp4", got.VideoURL)
	assert.Equal(t, "/data/avatars/face.png", renderer.image)
	assert.Equal(t, "/data/audio/a.mp3", renderer.audio)

	_, err = svc.RenderVideo(t.Context(), "face.png", "", video.DefaultStyleOptions())
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = svc.RenderVideo(t.Context(), "face.png", "/static/audio/missing.mp3", video.DefaultStyleOptions())
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = svc.RenderVideo(t.Context(), "other.png", "/static/audio/a.mp3", video.DefaultStyleOptions())
	assert.Error(t, err)
}

func TestRenderVideoDisabled(t *testing.T) {
	svc, err := NewService(Options{Assistant: &fakeAssistant{}})
	require.NoError(t, err)

	_, err = svc.RenderVideo(t.Context(), "face.png", "/static/audio/a.mp3", video.DefaultStyleOptions())
	assert.ErrorIs(t, err, ErrVideoDisabled)
}
