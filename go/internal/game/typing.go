package game

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mcdev12/lomba/go/internal/models"
)

const (
	TypingDuration = 30 * time.Second
	TokenLength    = 4
	MatchPoints    = 10
)

// EmojiAlphabet is the fixed symbol set targets are drawn from
var EmojiAlphabet = []string{
	"😀", "😂", "🤣", "😅", "😊", "😍", "🤔", "😴", "😎", "😭",
	"🤯", "💃", "🎉", "🔥", "👍", "👎", "🚀", "🍕", "🍦", "🥳",
}

// TypingState is the render view of an emoji sprint
type TypingState struct {
	Target      string `json:"target"`
	Buffer      string `json:"buffer"`
	TimeLeftSec int    `json:"time_left_sec"`
}

// Typing implements the timed typing-match rules
type Typing struct {
	rng      *rand.Rand
	target   string
	buffer   string
	timeLeft time.Duration
}

// NewTyping returns fresh emoji sprint rules using rng for targets
func NewTyping(rng *rand.Rand) *Typing {
	if rng == nil {
		rng = newRand()
	}
	t := &Typing{rng: rng, timeLeft: TypingDuration}
	t.target = t.generate()
	return t
}

func (t *Typing) Kind() models.GameKind { return models.TimedTypingMatch }
func (t *Typing) Cadence() Cadence { return CadenceSecond }

// Tick counts the global clock down and ends the sprint at zero
func (t *Typing) Tick(s *Session, delta time.Duration) {
	t.timeLeft -= delta
	if t.timeLeft <= 0 {
		t.timeLeft = 0
		s.end()
	}
}

// Apply replaces the input buffer and scores an exact match
func (t *Typing) Apply(s *Session, in Input) {
	if in.Action != ActionType {
		return
	}
	t.buffer = in.Text
	if t.buffer == t.target {
		s.award(MatchPoints)
		t.buffer = ""
		t.target = t.generate()
	}
}

func (t *Typing) State() any {
	return TypingState{
		Target:      t.target,
		Buffer:      t.buffer,
		TimeLeftSec: secondsLeft(t.timeLeft),
	}
}

// Target is the token the player has to type
func (t *Typing) Target() string { return t.target }

// Buffer is the current input
func (t *Typing) Buffer() string { return t.buffer }

func (t *Typing) generate() string {
	var b strings.Builder
	for range TokenLength {
		b.WriteString(EmojiAlphabet[t.rng.IntN(len(EmojiAlphabet))])
	}
	return b.String()
}
