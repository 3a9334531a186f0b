// Package viseme turns text into timed mouth-shape events for lip-sync.
//
// Codes follow the 22-entry (0-21) viseme set used by most animation rigs,
// so the front-end can map them to blend shapes without translation.
package viseme

import "fmt"

// Code identifies a mouth-shape class
type Code int

const (
	Silence Code = iota // silence
	AE                  // ae, ax, ah: cat, father
	AA                  // aa: odd
	AO                  // ao: caught
	EY                  // ey, eh, uh: ate, bed, but
	ER                  // er: bird
	IY                  // y, iy, ih, ix: eat, it
	UW                  // w, uw: oops, boot
	OW                  // ow: boat
	AW                  // aw: cow
	OY                  // oy: toy
	AY                  // ay: eye
	H                   // h: hat
	R                   // r: red
	L                   // l: lid
	S                   // s, z: sit, zap
	SH                  // sh, ch, jh, zh: she, church
	TH                  // th, dh: thin, then
	F                   // f, v: fork, vase
	D                   // d, t, n: dog, top, nose
	K                   // k, g, ng: cat, got, sing
	P                   // p, b, m: put, bat, mat
)

var codeNames = [...]string{
	Silence: "sil",
	AE:      "ae",
	AA:      "aa",
	AO:      "ao",
	EY:      "ey",
	ER:      "er",
	IY:      "iy",
	UW:      "uw",
	OW:      "ow",
	AW:      "aw",
	OY:      "oy",
	AY:      "ay",
	H:       "h",
	R:       "r",
	L:       "l",
	S:       "s",
	SH:      "sh",
	TH:      "th",
	F:       "f",
	D:       "d",
	K:       "k",
	P:       "p",
}

// Codes returns every valid viseme code in ascending order.
func Codes() []Code {
	codes := make([]Code, len(codeNames))
	for i := range codeNames {
		codes[i] = Code(i)
	}
	return codes
}

// Valid reports whether c belongs to the fixed enumeration.
func (c Code) Valid() bool {
	return c >= Silence && int(c) < len(codeNames)
}

// Name returns the short phoneme-class label, e.g. "sh" for SH.
func (c Code) Name() string {
	if !c.Valid() {
		return ""
	}
	return codeNames[c]
}

func (c Code) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return fmt.Sprintf("%d(%s)", int(c), codeNames[c])
}

// Event is a single mouth shape held for Duration seconds starting at Time.
type Event struct {
	Time     float64 `json:"time"`
	Viseme   Code    `json:"viseme"`
	Duration float64 `json:"duration"`
}

// Two-rune spellings that read as one longer phoneme. Checked before graphemes.
var digraphs = map[string]Code{
	"th": TH,
	"sh": SH,
	"ch": SH,
	"wh": UW,
	"ph": F,
	"ng": K,
	"ck": K,
	"ee": IY,
	"ea": IY,
	"oo": UW,
	"ou": AW,
	"ow": OW,
	"oa": OW,
	"oy": OY,
	"oi": OY,
	"ai": EY,
	"ay": EY,
	"au": AO,
	"aw": AO,
	"er": ER,
	"ir": ER,
	"ur": ER,
	"ar": AA,
	"or": AO,
}

// Single letters grouped by place of articulation.
var graphemes = map[rune]Code{
	'p': P, 'b': P, 'm': P,
	'f': F, 'v': F,
	't': D, 'd': D, 'n': D,
	'l': L,
	's': S, 'z': S,
	'k': K, 'g': K, 'c': K, 'q': K, 'x': K,
	'j': SH,
	'h': H,
	'r': R,
	'w': UW,
	'y': IY,

	'a': AE,
	'e': EY,
	'i': IY,
	'o': OW,
	'u': UW,
}

// Runes that close the mouth and are held longer than a letter.
var silences = map[rune]struct{}{
	' ': {}, '.': {}, ',': {}, '!': {}, '?': {},
	'\n': {}, '\r': {}, '\t': {}, '-': {}, ';': {}, ':': {},
}

// LookupDigraph returns the code for a lowercase two-rune sequence.
func LookupDigraph(pair string) (Code, bool) {
	code, ok := digraphs[pair]
	return code, ok
}

// LookupGrapheme returns the code for a single lowercase rune. Silence runes
// report Silence.
func LookupGrapheme(r rune) (Code, bool) {
	if _, ok := silences[r]; ok {
		return Silence, true
	}
	code, ok := graphemes[r]
	return code, ok
}

// IsSilence reports whether r is a pause rune.
func IsSilence(r rune) bool {
	_, ok := silences[r]
	return ok
}
