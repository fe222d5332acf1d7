package insights

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dotsetgreg/daybook/pkg/notes"
)

const (
	minHistoryDays   = 7
	riskWindowDays   = 14
	loadWindowDays   = 7
	riskImportantK   = 0.6
	riskTextK        = 0.7
	riskAbsImportant = 5

	fatigueImportant = 6
	safeImportant    = 2
)

// GlobalPeriod is the report key for history-wide signals.
const GlobalPeriod = "global"

// RiskLevel is the burnout-risk estimate. RiskNone means no signal.
type RiskLevel string

const (
	RiskNone     RiskLevel = ""
	RiskMild     RiskLevel = "mild"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

func (r RiskLevel) Message() string {
	switch r {
	case RiskMild:
		return "🟡 Mild risk of continuous overload."
	case RiskModerate:
		return "🟠 Moderate risk of burnout."
	case RiskHigh:
		return "🔴 High risk of burnout. Consider a strategic pause."
	default:
		return ""
	}
}

// LoadLevel is the projected load of next week. LoadNone means no signal.
type LoadLevel string

const (
	LoadNone     LoadLevel = ""
	LoadLight    LoadLevel = "light"
	LoadModerate LoadLevel = "moderate"
	LoadIntense  LoadLevel = "intense"
)

func (l LoadLevel) Message() string {
	switch l {
	case LoadIntense:
		return "📆 Next week tends to be INTENSE if the pace continues."
	case LoadModerate:
		return "📆 Next week tends to be MODERATE."
	case LoadLight:
		return "📆 Next week tends to be LIGHT."
	default:
		return ""
	}
}

func lastDays(s notes.Snapshot, n int) []notes.Note {
	days := s.Sorted()
	if len(days) > n {
		days = days[len(days)-n:]
	}
	return days
}

// BurnoutRisk scores the last 14 days against the historical baseline.
func BurnoutRisk(s notes.Snapshot, baseline *Baseline) RiskLevel {
	if baseline == nil || s.Len() < minHistoryDays {
		return RiskNone
	}

	var important, text int
	for _, n := range lastDays(s, riskWindowDays) {
		if n.Important {
			important++
		}
		text += utf8.RuneCountInString(n.Text)
	}

	score := 0
	if float64(important) >= baseline.AvgImportant*riskImportantK {
		score++
	}
	if float64(text) >= baseline.AvgText*riskTextK {
		score++
	}
	if important >= riskAbsImportant {
		score++
	}

	switch {
	case score >= 3:
		return RiskHigh
	case score == 2:
		return RiskModerate
	case score == 1:
		return RiskMild
	default:
		return RiskNone
	}
}

// WeeklyProjection extrapolates next week's load from the last 7 days.
func WeeklyProjection(s notes.Snapshot) LoadLevel {
	if s.Len() < minHistoryDays {
		return LoadNone
	}
	important := countImportant(lastDays(s, loadWindowDays))
	switch {
	case important >= 4:
		return LoadIntense
	case important >= 2:
		return LoadModerate
	default:
		return LoadLight
	}
}

// SimulationHint comments on adding commitments to a month. Empty when the
// month is in the middle band.
func SimulationHint(month []notes.Note) string {
	important := countImportant(month)
	switch {
	case important >= fatigueImportant:
		return "🧪 Simulation: adding more important days raises fatigue risk."
	case important <= safeImportant:
		return "🧪 Simulation: there is a safe margin for new commitments."
	default:
		return ""
	}
}

func countImportant(ns []notes.Note) int {
	c := 0
	for _, n := range ns {
		if n.Important {
			c++
		}
	}
	return c
}

// StrategicReport maps a period label ("YYYY-MM" or "global") to its
// insight lines.
type StrategicReport map[string][]string

// Labels returns months ascending, then "global" when present.
func (r StrategicReport) Labels() []string {
	labels := make([]string, 0, len(r))
	for label := range r {
		if label != GlobalPeriod {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	if _, ok := r[GlobalPeriod]; ok {
		labels = append(labels, GlobalPeriod)
	}
	return labels
}

// String renders the report as plain text: a "📅 period" heading per label
// followed by one "- line" per insight.
func (r StrategicReport) String() string {
	var b strings.Builder
	for i, label := range r.Labels() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "📅 %s\n", label)
		for _, line := range r[label] {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

// BuildStrategicReport runs the month metrics and simulation hint per month
// and collects the burnout risk and weekly projection under "global".
func BuildStrategicReport(s notes.Snapshot) StrategicReport {
	grouped := GroupByMonth(s)
	baseline := HistoricalBaseline(grouped)

	report := make(StrategicReport, len(grouped)+1)
	for label, month := range grouped {
		m := MonthMetricsOf(month)
		lines := []string{fmt.Sprintf("📊 Important: %d | Intensity: %.2f", m.Important, m.Intensity)}
		if hint := SimulationHint(month); hint != "" {
			lines = append(lines, hint)
		}
		report[label] = lines
	}

	if risk := BurnoutRisk(s, baseline); risk != RiskNone {
		report[GlobalPeriod] = append(report[GlobalPeriod], risk.Message())
	}
	if load := WeeklyProjection(s); load != LoadNone {
		report[GlobalPeriod] = append(report[GlobalPeriod], load.Message())
	}
	return report
}
