// Package memory keeps the question/answer log of an assistant conversation.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// ShortTermLimit bounds the recent-interaction window.
const ShortTermLimit = 20

// Record is one answered question.
type Record struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory holds a bounded short-term log and an unbounded long-term log.
// A Memory belongs to one conversation and is not safe for concurrent use.
type Memory struct {
	ShortTerm []Record
	LongTerm  []Record

	now func() time.Time
}

type Option func(*Memory)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

func New(opts ...Option) *Memory {
	m := &Memory{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record appends the pair to both logs and evicts the oldest short-term
// entries beyond ShortTermLimit.
func (m *Memory) Record(question, answer string) Record {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	rec := Record{
		ID:        "qa-" + uuid.NewString(),
		Question:  question,
		Answer:    answer,
		Timestamp: now(),
	}
	m.LongTerm = append(m.LongTerm, rec)
	m.ShortTerm = append(m.ShortTerm, rec)
	if over := len(m.ShortTerm) - ShortTermLimit; over > 0 {
		m.ShortTerm = append([]Record(nil), m.ShortTerm[over:]...)
	}
	return rec
}

// Last returns the most recent record.
func (m *Memory) Last() (Record, bool) {
	if len(m.ShortTerm) == 0 {
		return Record{}, false
	}
	return m.ShortTerm[len(m.ShortTerm)-1], true
}

// Restore rebuilds a memory from a persisted long-term log in append order.
func Restore(records []Record, opts ...Option) *Memory {
	m := New(opts...)
	m.LongTerm = append([]Record(nil), records...)
	start := 0
	if len(records) > ShortTermLimit {
		start = len(records) - ShortTermLimit
	}
	m.ShortTerm = append([]Record(nil), records[start:]...)
	return m
}
