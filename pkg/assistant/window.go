package assistant

import (
	"strings"
	"time"
)

// Window is an inclusive range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := civil(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	return w.Start.Format("2006-01-02") + ".." + w.End.Format("2006-01-02")
}

// civil drops the time of day, keeping the calendar date in t's location.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type windowRule struct {
	phrases []string
	resolve func(today time.Time) Window
}

// windowRules is evaluated top-down; the first rule with a matching phrase wins.
var windowRules = []windowRule{
	{
		phrases: []string{"last 7 days", "últimos 7 dias", "ultimos 7 dias"},
		resolve: func(today time.Time) Window {
			return Window{Start: today.AddDate(0, 0, -7), End: today}
		},
	},
	{
		phrases: []string{"this week", "essa semana", "esta semana"},
		resolve: func(today time.Time) Window {
			sinceMonday := (int(today.Weekday()) + 6) % 7
			return Window{Start: today.AddDate(0, 0, -sinceMonday), End: today}
		},
	},
	{
		phrases: []string{"this month", "esse mês", "este mês", "esse mes", "este mes"},
		resolve: func(today time.Time) Window {
			return Window{Start: firstOfMonth(today), End: today}
		},
	},
	{
		phrases: []string{"last month", "mês passado", "mes passado"},
		resolve: func(today time.Time) Window {
			end := firstOfMonth(today).AddDate(0, 0, -1)
			return Window{Start: firstOfMonth(end), End: end}
		},
	},
	{
		phrases: []string{"this year", "esse ano", "este ano"},
		resolve: func(today time.Time) Window {
			return Window{Start: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), End: today}
		},
	},
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ResolveWindow maps time phrases in the question to a date range relative to
// now. Nil means the question puts no restriction on dates.
func ResolveWindow(question string, now time.Time) *Window {
	q := strings.ToLower(question)
	today := civil(now)
	for _, rule := range windowRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(q, phrase) {
				w := rule.resolve(today)
				return &w
			}
		}
	}
	return nil
}
