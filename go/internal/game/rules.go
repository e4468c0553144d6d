package game

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mcdev12/lomba/go/internal/models"
)

// Options configures the rules built by NewRules
type Options struct {
	Questions []Question
	Rand      *rand.Rand
}

// NewRules builds fresh rules for kind
func NewRules(kind models.GameKind, opts Options) (Rules, error) {
	switch kind {
	case models.ContinuousAvoidance:
		return NewAvoidance(opts.Rand), nil
	case models.TimedMultipleChoice:
		return NewQuiz(opts.Questions), nil
	case models.TimedTypingMatch:
		return NewTyping(opts.Rand), nil
	default:
		return nil, fmt.Errorf("no rules for game kind %q", kind)
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
}
