// Package assistant answers free-text questions about the journal: it resolves
// a date window, classifies the intent and renders a templated answer.
package assistant

import (
	"time"

	"github.com/dotsetgreg/daybook/pkg/insights"
	"github.com/dotsetgreg/daybook/pkg/logger"
	"github.com/dotsetgreg/daybook/pkg/memory"
	"github.com/dotsetgreg/daybook/pkg/notes"
)

type Assistant struct {
	now func() time.Time
}

type Option func(*Assistant)

// WithClock overrides the reference time used to resolve windows.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

func New(opts ...Option) *Assistant {
	a := &Assistant{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Answer replies to question using the notes in snap and records the
// exchange in mem when mem is non-nil. Every question gets an answer.
func (a *Assistant) Answer(question string, snap notes.Snapshot, mem *memory.Memory) string {
	intent := Classify(question)
	window := ResolveWindow(question, a.now())

	filtered := snap.Sorted()
	if window != nil {
		filtered = snap.Filter(func(n notes.Note) bool { return window.Contains(n.Date) }).Sorted()
	}

	var sc ScorerContext
	if intent == IntentPattern {
		sc = Score(snap)
	}

	answer := Compose(intent, question, filtered, sc)

	fields := map[string]any{
		"intent": string(intent),
		"notes":  len(filtered),
	}
	if window != nil {
		fields["window"] = window.String()
	}
	logger.DebugCF("assistant", "Answered question", fields)

	if mem != nil {
		mem.Record(question, answer)
	}
	return answer
}

// Score computes the history-wide burnout risk and weekly projection.
func Score(snap notes.Snapshot) ScorerContext {
	baseline := insights.HistoricalBaseline(insights.GroupByMonth(snap))
	return ScorerContext{
		Risk: insights.BurnoutRisk(snap, baseline),
		Load: insights.WeeklyProjection(snap),
	}
}
