// Package insights derives aggregate statistics and strategy signals from a
// note snapshot. Every function is pure over the snapshot it receives.
package insights

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dotsetgreg/daybook/pkg/notes"
)

const (
	sparseNoteCount = 3
	shortAvgChars   = 80
	longAvgChars    = 250
)

const noDataInsight = "There are not enough notes for analysis yet. " +
	"Start recording your days to generate insights."

// Report is the aggregate view over a set of notes.
type Report struct {
	TotalNotes    int     `json:"total_notes" yaml:"total_notes"`
	ImportantDays int     `json:"important_days" yaml:"important_days"`
	AvgChars      float64 `json:"avg_chars" yaml:"avg_chars"`
	Insight       string  `json:"insight" yaml:"insight"`
}

// YearlyReport is the dashboard view of one calendar year.
type YearlyReport struct {
	Year                int            `json:"year" yaml:"year"`
	TotalDaysWithNotes  int            `json:"total_days_with_notes" yaml:"total_days_with_notes"`
	ImportantDays       int            `json:"important_days" yaml:"important_days"`
	AvgTextSize         float64        `json:"avg_text_size" yaml:"avg_text_size"`
	Insight             string         `json:"insight" yaml:"insight"`
	MonthlyActivity     map[int]int    `json:"monthly_activity" yaml:"monthly_activity"`
	BusiestMonth        int            `json:"busiest_month,omitempty" yaml:"busiest_month,omitempty"`
	WeekdayDistribution map[string]int `json:"weekday_distribution" yaml:"weekday_distribution"`
}

// Aggregate counts notes with non-empty trimmed text, important days and the
// mean trimmed length of non-empty texts, rounded half to even at one decimal.
func Aggregate(s notes.Snapshot) Report {
	var total, important, chars int
	for _, n := range s.Sorted() {
		text := strings.TrimSpace(n.Text)
		if text != "" {
			total++
			chars += utf8.RuneCountInString(text)
		}
		if n.Important {
			important++
		}
	}

	var avg float64
	if total > 0 {
		avg = math.RoundToEven(float64(chars)/float64(total)*10) / 10
	}

	return Report{
		TotalNotes:    total,
		ImportantDays: important,
		AvgChars:      avg,
		Insight:       insightText(total, important, avg),
	}
}

func insightText(total, important int, avgChars float64) string {
	if total == 0 {
		return noDataInsight
	}

	var parts []string
	if total <= sparseNoteCount {
		parts = append(parts, "You have written only a few notes so far, which points to occasional use of the journal.")
	} else {
		parts = append(parts, fmt.Sprintf("You have already recorded %d days, building a consistent history.", total))
	}

	if important > 0 {
		parts = append(parts, fmt.Sprintf("%d day(s) were marked as important.", important))
	} else {
		parts = append(parts, "No day has been marked as important so far.")
	}

	switch {
	case avgChars < shortAvgChars:
		parts = append(parts, "Your notes are short and to the point.")
	case avgChars < longAvgChars:
		parts = append(parts, "Your notes show moderate reflection.")
	default:
		parts = append(parts, "Your notes are long and in-depth.")
	}

	return strings.Join(parts, " ")
}

// AggregateYear restricts the snapshot to year and adds monthly activity,
// the busiest month and the weekday spread of important days.
func AggregateYear(s notes.Snapshot, year int) YearlyReport {
	yearNotes := s.Year(year)
	base := Aggregate(yearNotes)

	monthly := make(map[int]int)
	weekdays := make(map[string]int)
	for _, n := range yearNotes.Sorted() {
		monthly[int(n.Date.Month())]++
		if n.Important {
			weekdays[n.Date.Weekday().String()]++
		}
	}

	return YearlyReport{
		Year:                year,
		TotalDaysWithNotes:  base.TotalNotes,
		ImportantDays:       base.ImportantDays,
		AvgTextSize:         base.AvgChars,
		Insight:             base.Insight,
		MonthlyActivity:     monthly,
		BusiestMonth:        busiestMonth(monthly),
		WeekdayDistribution: weekdays,
	}
}

// busiestMonth returns the month with most notes; ties go to the earliest
// month. 0 means no activity.
func busiestMonth(monthly map[int]int) int {
	best, bestCount := 0, 0
	for m := int(time.January); m <= int(time.December); m++ {
		if c := monthly[m]; c > bestCount {
			best, bestCount = m, c
		}
	}
	return best
}

// MonthMetrics summarises one month of notes.
type MonthMetrics struct {
	Total      int     `json:"total"`
	Important  int     `json:"important"`
	Intensity  float64 `json:"intensity"`
	TextVolume int     `json:"text_volume"`
}

// Baseline is the per-month average over the whole history.
type Baseline struct {
	AvgImportant float64 `json:"avg_important"`
	AvgIntensity float64 `json:"avg_intensity"`
	AvgText      float64 `json:"avg_text"`
}

// GroupByMonth partitions notes by "YYYY-MM". Each group is chronological.
func GroupByMonth(s notes.Snapshot) map[string][]notes.Note {
	grouped := make(map[string][]notes.Note)
	for _, n := range s.Sorted() {
		label := n.Key()[:7]
		grouped[label] = append(grouped[label], n)
	}
	return grouped
}

func MonthMetricsOf(group []notes.Note) MonthMetrics {
	m := MonthMetrics{Total: len(group)}
	for _, n := range group {
		if n.Important {
			m.Important++
		}
		m.TextVolume += utf8.RuneCountInString(n.Text)
	}
	if m.Total > 0 {
		m.Intensity = float64(m.Important) / float64(m.Total)
	}
	return m
}

// HistoricalBaseline averages MonthMetrics across months. Nil when there are
// no non-empty months.
func HistoricalBaseline(grouped map[string][]notes.Note) *Baseline {
	var sumImportant, sumIntensity, sumText float64
	months := 0
	for _, group := range grouped {
		if len(group) == 0 {
			continue
		}
		m := MonthMetricsOf(group)
		sumImportant += float64(m.Important)
		sumIntensity += m.Intensity
		sumText += float64(m.TextVolume)
		months++
	}
	if months == 0 {
		return nil
	}
	n := float64(months)
	return &Baseline{
		AvgImportant: sumImportant / n,
		AvgIntensity: sumIntensity / n,
		AvgText:      sumText / n,
	}
}
