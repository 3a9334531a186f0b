package viseme

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func assertEvents(t *testing.T, want, got []Event) {
	t.Helper()
	require.Len(t, got, len(want), "events: %v", got)
	for i := range want {
		assert.Equal(t, want[i].Viseme, got[i].Viseme, "viseme at %d", i)
		assert.InDelta(t, want[i].Time, got[i].Time, 1e-9, "time at %d", i)
		assert.InDelta(t, want[i].Duration, got[i].Duration, 1e-9, "duration at %d", i)
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		duration float64
		want     []Event
	}{
		{
			name: "empty text is a single trailing silence",
			text: "",
			want: []Event{{0, Silence, 0.5}},
		},
		{
			name: "hi with heuristic timing",
			text: "hi",
			want: []Event{{0, H, 0.08}, {0.08, IY, 0.08}, {0.16, Silence, 0.5}},
		},
		{
			name: "uppercase is normalised",
			text: "HI",
			want: []Event{{0, H, 0.08}, {0.08, IY, 0.08}, {0.16, Silence, 0.5}},
		},
		{
			name:     "known audio duration spreads over characters",
			text:     "hi",
			duration: 1.0,
			want:     []Event{{0, H, 0.5}, {0.5, IY, 0.5}, {1.0, Silence, 0.5}},
		},
		{
			name: "digraph takes precedence over single letters",
			text: "the",
			want: []Event{{0, TH, 0.12}, {0.12, EY, 0.08}, {0.2, Silence, 0.5}},
		},
		{
			name: "repeated digraph is not merged across a pause",
			text: "sh sh",
			want: []Event{{0, SH, 0.12}, {0.12, Silence, 0.16}, {0.28, SH, 0.12}, {0.4, Silence, 0.5}},
		},
		{
			name: "trailing punctuation merges into the closing silence",
			text: "Hello.",
			want: []Event{{0, H, 0.08}, {0.08, EY, 0.08}, {0.16, L, 0.16}, {0.32, OW, 0.08}, {0.4, Silence, 0.66}},
		},
		{
			name: "unmapped runes are skipped without consuming time",
			text: "a1b",
			want: []Event{{0, AE, 0.08}, {0.08, P, 0.08}, {0.16, Silence, 0.5}},
		},
		{
			name: "only unmapped runes",
			text: "123 ",
			want: []Event{{0, Silence, 0.66}},
		},
		{
			name: "accented letters are skipped",
			text: "ñ",
			want: []Event{{0, Silence, 0.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertEvents(t, tt.want, Generate(tt.text, tt.duration))
		})
	}
}

func TestGenerate_InvalidDurationFallsBackToHeuristic(t *testing.T) {
	want := Generate("hello world", 0)
	for _, d := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assertEvents(t, want, Generate("hello world", d))
	}
}

func TestGenerate_DurationUsesRuneCount(t *testing.T) {
	// Four runes, six bytes.
	events := Generate("ñañb", 0.4)
	require.Len(t, events, 3)
	assert.Equal(t, AE, events[0].Viseme)
	assert.InDelta(t, 0.1, events[0].Duration, 1e-9)
	assert.Equal(t, P, events[1].Viseme)
	assert.InDelta(t, 0.1, events[1].Time, 1e-9)
}

func TestGenerate_TinyDurationStaysPositive(t *testing.T) {
	events := Generate(strings.Repeat("ba", 500), 0.01)
	for _, e := range events {
		assert.Greater(t, e.Duration, 0.0)
	}
}

func TestGenerate_ClosingSilenceStartsWhenAudioEnds(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		duration float64
	}{
		{"sub-millisecond remainders", strings.Repeat("ba", 500), 66.5},
		{"characters shorter than a millisecond", strings.Repeat("ba", 2000), 1.0},
		{"thirds", strings.Repeat("pa", 150), 10.0},
		{"half-millisecond boundary", "b", 0.0005},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := Generate(tt.text, tt.duration)
			last := events[len(events)-1]
			assert.Equal(t, Silence, last.Viseme)
			assert.InDelta(t, tt.duration, last.Time, 0.001)
			assert.InDelta(t, 0.5, last.Duration, 1e-9)

			var clock float64
			for i, e := range events {
				assert.Greater(t, e.Duration, 0.0, "duration at %d", i)
				assert.InDelta(t, clock, e.Time, 1e-6, "time at %d", i)
				clock += e.Duration
			}
		})
	}
}

func TestNewGenerator(t *testing.T) {
	t.Run("zero config uses defaults", func(t *testing.T) {
		g := NewGenerator(Config{})
		assert.Equal(t, DefaultConfig(), g.Config())
	})

	t.Run("custom timing", func(t *testing.T) {
		g := NewGenerator(Config{CharDuration: 0.1, TrailingSilence: 0.25})
		assertEvents(t,
			[]Event{{0, H, 0.1}, {0.1, IY, 0.1}, {0.2, Silence, 0.25}},
			g.Generate("hi", 0))
	})

	t.Run("custom factors", func(t *testing.T) {
		g := NewGenerator(Config{CharDuration: 0.1, SilenceFactor: 3, DigraphFactor: 2})
		assertEvents(t,
			[]Event{{0, SH, 0.2}, {0.2, Silence, 0.3}, {0.5, P, 0.1}, {0.6, Silence, 0.5}},
			g.Generate("sh b", 0))
	})
}

func TestMerge(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, Merge(nil))
	})

	t.Run("combines adjacent duplicates only", func(t *testing.T) {
		in := []Event{
			{0, P, 0.08},
			{0.08, P, 0.08},
			{0.16, Silence, 0.16},
			{0.32, P, 0.08},
			{0.4, Silence, 0.5},
		}
		assertEvents(t, []Event{
			{0, P, 0.16},
			{0.16, Silence, 0.16},
			{0.32, P, 0.08},
			{0.4, Silence, 0.5},
		}, Merge(in))
	})

	t.Run("does not modify its input", func(t *testing.T) {
		in := []Event{{0, P, 0.08}, {0.08, P, 0.08}}
		Merge(in)
		assert.Equal(t, 0.08, in[0].Duration)
	})
}

func TestTotalDuration(t *testing.T) {
	assert.Equal(t, 0.0, TotalDuration(nil))
	assert.InDelta(t, 0.66, TotalDuration(Generate("hi", 0)), 1e-9)
}

func textGen() *rapid.Generator[string] {
	alphabet := []rune("abcdefghijklmnopqrstuvwxyzABCZ .,!?;:-\n\t0123456789éñ'")
	return rapid.StringOfN(rapid.SampledFrom(alphabet), 0, 200, -1)
}

func durationGen() *rapid.Generator[float64] {
	return rapid.OneOf(rapid.Just(0.0), rapid.Float64Range(0.05, 120))
}

func TestGenerate_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := textGen().Draw(t, "text")
		d := durationGen().Draw(t, "duration")
		events := Generate(text, d)

		if len(events) == 0 {
			t.Fatalf("no events for %q", text)
		}
		last := events[len(events)-1]
		if last.Viseme != Silence || last.Duration < DefaultTrailingSilence {
			t.Fatalf("last event %+v is not a closing silence", last)
		}

		var clock float64
		for i, e := range events {
			if !e.Viseme.Valid() {
				t.Fatalf("invalid code %d", e.Viseme)
			}
			if e.Duration <= 0 {
				t.Fatalf("non-positive duration at %d: %+v", i, e)
			}
			if math.Abs(e.Time-clock) > 1e-6 {
				t.Fatalf("event %d starts at %v, want %v", i, e.Time, clock)
			}
			if i > 0 && events[i-1].Viseme == e.Viseme {
				t.Fatalf("adjacent duplicates at %d: %v", i, events)
			}
			clock += e.Duration
		}
	})
}

func TestGenerate_ClosingSilenceAfterLetters(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-z]{0,40}[a-z]`).Draw(t, "text")
		events := Generate(text, 0)
		last := events[len(events)-1]
		if last.Viseme != Silence || last.Duration != 0.5 {
			t.Fatalf("want trailing (sil, 0.5), got %+v", last)
		}
	})
}

func TestGenerate_CaseInsensitive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Z .,]{0,60}`).Draw(t, "text")
		d := durationGen().Draw(t, "duration")
		assert.Equal(t, Generate(strings.ToLower(text), d), Generate(text, d))
	})
}

func TestMerge_Properties(t *testing.T) {
	eventsGen := rapid.Custom(func(t *rapid.T) []Event {
		n := rapid.IntRange(0, 50).Draw(t, "n")
		events := make([]Event, 0, n)
		var clock float64
		for i := 0; i < n; i++ {
			code := Code(rapid.IntRange(0, 3).Draw(t, "code"))
			ms := rapid.IntRange(1, 500).Draw(t, "ms")
			d := float64(ms) / 1000
			events = append(events, Event{Time: round3(clock), Viseme: code, Duration: d})
			clock += d
		}
		return events
	})

	rapid.Check(t, func(t *rapid.T) {
		events := eventsGen.Draw(t, "events")
		once := Merge(events)
		twice := Merge(once)

		if len(once) != len(twice) {
			t.Fatalf("merge is not idempotent: %v vs %v", once, twice)
		}
		for i := range once {
			if once[i] != twice[i] {
				t.Fatalf("merge is not idempotent at %d: %v vs %v", i, once[i], twice[i])
			}
		}
		if math.Abs(TotalDuration(events)-TotalDuration(once)) > 1e-9 {
			t.Fatalf("merge changed total duration: %v -> %v", TotalDuration(events), TotalDuration(once))
		}
	})
}

func TestGenerate_ConcurrentUse(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	want := g.Generate("the quick brown fox", 2.4)

	done := make(chan []Event)
	for i := 0; i < 8; i++ {
		go func() { done <- g.Generate("the quick brown fox", 2.4) }()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, want, <-done)
	}
}
