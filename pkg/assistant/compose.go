package assistant

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dotsetgreg/daybook/pkg/insights"
	"github.com/dotsetgreg/daybook/pkg/notes"
)

const (
	previewRunes      = 60
	maxSearchResults  = 5
	overloadImportant = 5
)

const (
	msgNoImportant   = "🌱 No important commitments in this period."
	msgNoNotes       = "📭 No notes found."
	msgOverload      = "⚠️ Many important days recorded. Watch out for overload."
	msgCalm          = "🌱 No important days recorded. A calm period."
	msgBalanced      = "📈 Balanced rhythm of commitments."
	msgNoMatches     = "📭 I couldn't find related records."
	msgClarification = "🤔 I didn't fully understand. Try asking about commitments, summaries or periods."
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// ScorerContext carries history-wide signals into composition. Zero values
// mean no signal.
type ScorerContext struct {
	Risk insights.RiskLevel
	Load insights.LoadLevel
}

// Compose renders the answer for intent over the window-filtered notes, which
// must be in chronological order.
func Compose(intent Intent, question string, filtered []notes.Note, sc ScorerContext) string {
	switch intent {
	case IntentImportant:
		return composeImportant(filtered)
	case IntentSummary:
		return composeSummary(filtered)
	case IntentPattern:
		return composePattern(filtered, sc)
	case IntentSearch:
		return composeSearch(question, filtered)
	default:
		return msgClarification
	}
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes])
}

func importantOf(ns []notes.Note) []notes.Note {
	var out []notes.Note
	for _, n := range ns {
		if n.Important {
			out = append(out, n)
		}
	}
	return out
}

func composeImportant(filtered []notes.Note) string {
	important := importantOf(filtered)
	if len(important) == 0 {
		return msgNoImportant
	}
	var b strings.Builder
	b.WriteString("⭐ Important commitments:\n\n")
	for _, n := range important {
		fmt.Fprintf(&b, "⭐ %s: %s\n", n.Date.Format("02/01"), preview(n.Text))
	}
	if len(important) >= overloadImportant {
		b.WriteString("\n⚠️ Many commitments concentrated.")
	}
	return b.String()
}

func composeSummary(filtered []notes.Note) string {
	if len(filtered) == 0 {
		return msgNoNotes
	}
	important, chars := 0, 0
	for _, n := range filtered {
		if n.Important {
			important++
		}
		chars += utf8.RuneCountInString(n.Text)
	}
	return fmt.Sprintf(
		"📊 Overall summary:\n- Total notes: %d\n- Important days: %d\n- Average note size: %d characters",
		len(filtered), important, chars/len(filtered),
	)
}

func composePattern(filtered []notes.Note, sc ScorerContext) string {
	var lines []string
	switch n := len(importantOf(filtered)); {
	case n >= overloadImportant:
		lines = append(lines, msgOverload)
	case n == 0:
		lines = append(lines, msgCalm)
	default:
		lines = append(lines, msgBalanced)
	}
	if msg := sc.Risk.Message(); msg != "" {
		lines = append(lines, msg)
	}
	if msg := sc.Load.Message(); msg != "" {
		lines = append(lines, msg)
	}
	return strings.Join(lines, "\n")
}

// searchNotes returns notes whose text contains any question token, in
// first-hit order, each date at most once.
func searchNotes(question string, filtered []notes.Note) []notes.Note {
	tokens := tokenPattern.FindAllString(strings.ToLower(question), -1)
	lowered := make([]string, len(filtered))
	for i, n := range filtered {
		lowered[i] = strings.ToLower(n.Text)
	}

	seen := make(map[string]bool)
	var hits []notes.Note
	for _, tok := range tokens {
		for i, n := range filtered {
			if seen[n.Key()] || !strings.Contains(lowered[i], tok) {
				continue
			}
			seen[n.Key()] = true
			hits = append(hits, n)
		}
	}
	return hits
}

func composeSearch(question string, filtered []notes.Note) string {
	hits := searchNotes(question, filtered)
	if len(hits) == 0 {
		return msgNoMatches
	}
	if len(hits) > maxSearchResults {
		hits = hits[:maxSearchResults]
	}
	var b strings.Builder
	b.WriteString("🔎 I found records:\n\n")
	for _, n := range hits {
		fmt.Fprintf(&b, "- %s: %s\n", n.Key(), preview(n.Text))
	}
	return b.String()
}
