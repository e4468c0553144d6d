package game

import (
	"time"

	"github.com/mcdev12/lomba/go/internal/models"
)

const (
	QuestionTimeout     = 15 * time.Second
	CorrectAnswerPoints = 10
)

// QuizState is the render view of a quiz; the answer is never exposed
type QuizState struct {
	Index       int      `json:"index"`
	Total       int      `json:"total"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	TimeLeftSec int      `json:"time_left_sec"`
}

// Quiz implements the timed multiple-choice rules
type Quiz struct {
	questions []Question
	index     int
	timeLeft  time.Duration
}

// NewQuiz returns fresh quiz rules over a read-only question bank
func NewQuiz(questions []Question) *Quiz {
	if len(questions) == 0 {
		questions = DefaultQuestions()
	}
	return &Quiz{
		questions: questions,
		timeLeft:  QuestionTimeout,
	}
}

func (q *Quiz) Kind() models.GameKind { return models.TimedMultipleChoice }
func (q *Quiz) Cadence() Cadence { return CadenceSecond }

// Tick counts the current question down; running out counts as unanswered
func (q *Quiz) Tick(s *Session, delta time.Duration) {
	q.timeLeft -= delta
	if q.timeLeft <= 0 {
		q.advance(s)
	}
}

// Apply handles a choice; any non-choice input is ignored
func (q *Quiz) Apply(s *Session, in Input) {
	if in.Action != ActionChoose {
		return
	}
	if in.Option == q.questions[q.index].Answer {
		s.award(CorrectAnswerPoints)
	}
	q.advance(s)
}

func (q *Quiz) advance(s *Session) {
	if q.index >= len(q.questions)-1 {
		s.end()
		return
	}
	q.index++
	q.timeLeft = QuestionTimeout
}

func (q *Quiz) State() any {
	cur := q.questions[q.index]
	opts := make([]string, len(cur.Options))
	copy(opts, cur.Options)
	return QuizState{
		Index:       q.index,
		Total:       len(q.questions),
		Prompt:      cur.Prompt,
		Options:     opts,
		TimeLeftSec: secondsLeft(q.timeLeft),
	}
}

// Index is the zero-based position of the current question
func (q *Quiz) Index() int { return q.index }

// TimeLeft is the time remaining on the current question
func (q *Quiz) TimeLeft() time.Duration { return q.timeLeft }

func secondsLeft(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
