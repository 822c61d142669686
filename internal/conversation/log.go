// Package conversation keeps the ordered question/answer history of a
// session.
package conversation

import (
	"sync"
	"time"
)

// UserPrefix is prepended to every recorded question.
const UserPrefix = "User: "

// Turn is one question and the message shown in reply.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// Log is an append-only list of turns. Append is its only mutator: turns are
// never reordered, edited or removed.
type Log struct {
	mu    sync.Mutex
	turns []Turn
	now   func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append records a turn. The question is stored as UserPrefix + question,
// so an empty question still yields a labeled turn.
func (l *Log) Append(question, answer string) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := Turn{Question: UserPrefix + question, Answer: answer, At: l.now().UTC()}
	l.turns = append(l.turns, t)
	return t
}

// Snapshot returns a copy of the turns in insertion order.
func (l *Log) Snapshot() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of recorded turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
