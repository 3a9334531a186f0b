package viseme

import (
	"math"
	"unicode"
)

// Config holds the timing model. Factors multiply the per-character duration.
type Config struct {
	// CharDuration is used when no audio duration is known (~12 chars/s).
	CharDuration float64 `mapstructure:"char_duration"`
	// SilenceFactor stretches pauses.
	SilenceFactor float64 `mapstructure:"silence_factor"`
	// DigraphFactor stretches two-letter phonemes.
	DigraphFactor float64 `mapstructure:"digraph_factor"`
	// TrailingSilence is the fixed closing-mouth reset appended to every utterance.
	TrailingSilence float64 `mapstructure:"trailing_silence"`
}

const (
	DefaultCharDuration    = 0.08
	DefaultSilenceFactor   = 2.0
	DefaultDigraphFactor   = 1.5
	DefaultTrailingSilence = 0.5
)

// DefaultConfig returns the timing model approximating 150 words per minute.
func DefaultConfig() Config {
	return Config{
		CharDuration:    DefaultCharDuration,
		SilenceFactor:   DefaultSilenceFactor,
		DigraphFactor:   DefaultDigraphFactor,
		TrailingSilence: DefaultTrailingSilence,
	}
}

// withDefaults fills zero or invalid fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if !positive(c.CharDuration) {
		c.CharDuration = d.CharDuration
	}
	if !positive(c.SilenceFactor) {
		c.SilenceFactor = d.SilenceFactor
	}
	if !positive(c.DigraphFactor) {
		c.DigraphFactor = d.DigraphFactor
	}
	if !positive(c.TrailingSilence) {
		c.TrailingSilence = d.TrailingSilence
	}
	return c
}

// Generator converts text to viseme events. It holds no mutable state and is
// safe for concurrent use.
type Generator struct {
	cfg Config
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg.withDefaults()}
}

// Config returns the effective timing model.
func (g *Generator) Config() Config {
	return g.cfg
}

var defaultGenerator = NewGenerator(DefaultConfig())

// Generate runs the default timing model. See (*Generator).Generate.
func Generate(text string, audioDuration float64) []Event {
	return defaultGenerator.Generate(text, audioDuration)
}

// Generate converts text into merged, time-ordered viseme events.
//
// audioDuration is the length in seconds of the spoken text. Zero, negative,
// NaN or infinite values mean the duration is unknown and the configured
// per-character duration is used instead.
//
// Runes with no mapping are skipped without consuming time, so the total can
// fall short of audioDuration. Event boundaries are rounded to milliseconds;
// a character that rounds to zero length is dropped and its time is carried
// by its neighbours. The result always ends in silence.
func (g *Generator) Generate(text string, audioDuration float64) []Event {
	// Lowercase per rune so positions and length match the input.
	runes := []rune(text)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}

	charDuration := g.cfg.CharDuration
	if positive(audioDuration) {
		charDuration = audioDuration / float64(max(len(runes), 1))
	}

	// The clock stays unrounded; only emitted boundaries are rounded, so each
	// event ends exactly where the next one starts and errors never accumulate.
	events := make([]Event, 0, len(runes)+1)
	var clock float64
	emit := func(code Code, duration float64) {
		start, end := round3(clock), round3(clock+duration)
		clock += duration
		if end <= start {
			// Shorter than a millisecond at this position.
			return
		}
		events = append(events, Event{Time: start, Viseme: code, Duration: round3(end - start)})
	}

	for i := 0; i < len(runes); {
		if i+1 < len(runes) {
			if code, ok := digraphs[string(runes[i:i+2])]; ok {
				emit(code, charDuration*g.cfg.DigraphFactor)
				i += 2
				continue
			}
		}

		r := runes[i]
		if IsSilence(r) {
			emit(Silence, charDuration*g.cfg.SilenceFactor)
		} else if code, ok := graphemes[r]; ok {
			emit(code, charDuration)
		}
		i++
	}

	// The closing silence keeps its configured length whatever the clock's
	// rounding.
	events = append(events, Event{
		Time:     round3(clock),
		Viseme:   Silence,
		Duration: max(round3(g.cfg.TrailingSilence), 0.001),
	})

	return Merge(events)
}

// Merge folds runs of identical adjacent codes into one event that starts at
// the first event's time and lasts for the sum of their durations.
func Merge(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}

	merged := make([]Event, 0, len(events))
	current := events[0]
	for _, next := range events[1:] {
		if next.Viseme == current.Viseme {
			current.Duration = round3(current.Duration + next.Duration)
			continue
		}
		merged = append(merged, current)
		current = next
	}

	return append(merged, current)
}

// TotalDuration sums event durations at millisecond precision.
func TotalDuration(events []Event) float64 {
	var total float64
	for _, e := range events {
		total += e.Duration
	}
	return round3(total)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1) && !math.IsNaN(v)
}
