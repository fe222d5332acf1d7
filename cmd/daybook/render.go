package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/dotsetgreg/daybook/pkg/insights"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	insightStyle = lipgloss.NewStyle().Italic(true)
)

// reportPeriod is the structured form of one strategic report entry.
type reportPeriod struct {
	Period   string   `json:"period" yaml:"period"`
	Insights []string `json:"insights" yaml:"insights"`
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unsupported format %q (want text, json or yaml)", format)
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return checkFormat(format)
}

func renderAggregate(w io.Writer, format string, r insights.Report) error {
	if format != formatText {
		return writeStructured(w, format, r)
	}
	var b strings.Builder
	b.WriteString(headingStyle.Render("📊 Journal analysis") + "\n")
	writeRow(&b, "Total notes", fmt.Sprintf("%d", r.TotalNotes))
	writeRow(&b, "Important days", fmt.Sprintf("%d", r.ImportantDays))
	writeRow(&b, "Average size", fmt.Sprintf("%.1f characters", r.AvgChars))
	b.WriteString("\n" + insightStyle.Render(r.Insight) + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func renderYearly(w io.Writer, format string, r insights.YearlyReport) error {
	if format != formatText {
		return writeStructured(w, format, r)
	}
	var b strings.Builder
	b.WriteString(headingStyle.Render(fmt.Sprintf("📊 %d in review", r.Year)) + "\n")
	writeRow(&b, "Days with notes", fmt.Sprintf("%d", r.TotalDaysWithNotes))
	writeRow(&b, "Important days", fmt.Sprintf("%d", r.ImportantDays))
	writeRow(&b, "Average size", fmt.Sprintf("%.1f characters", r.AvgTextSize))
	if r.BusiestMonth != 0 {
		writeRow(&b, "Busiest month", fmt.Sprintf("%02d", r.BusiestMonth))
	}

	if len(r.MonthlyActivity) > 0 {
		months := make([]int, 0, len(r.MonthlyActivity))
		for m := range r.MonthlyActivity {
			months = append(months, m)
		}
		sort.Ints(months)
		b.WriteString("\n" + headingStyle.Render("Monthly activity") + "\n")
		for _, m := range months {
			writeRow(&b, fmt.Sprintf("%02d", m), fmt.Sprintf("%d", r.MonthlyActivity[m]))
		}
	}

	if len(r.WeekdayDistribution) > 0 {
		b.WriteString("\n" + headingStyle.Render("Weekdays") + "\n")
		for _, day := range weekdayOrder {
			if n, ok := r.WeekdayDistribution[day]; ok {
				writeRow(&b, day, fmt.Sprintf("%d", n))
			}
		}
	}

	b.WriteString("\n" + insightStyle.Render(r.Insight) + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

var weekdayOrder = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func renderReport(w io.Writer, format string, r insights.StrategicReport) error {
	if format != formatText {
		periods := make([]reportPeriod, 0, len(r))
		for _, label := range r.Labels() {
			periods = append(periods, reportPeriod{Period: label, Insights: r[label]})
		}
		return writeStructured(w, format, periods)
	}

	if len(r) == 0 {
		_, err := fmt.Fprintln(w, "📭 Not enough notes for a report yet.")
		return err
	}
	var b strings.Builder
	for i, label := range r.Labels() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(headingStyle.Render("📅 "+label) + "\n")
		for _, line := range r[label] {
			b.WriteString("- " + line + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-16s", label)) + " " + value + "\n")
}
