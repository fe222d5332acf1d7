package assistant

import "strings"

// ScoreInput holds externally computed wellbeing scores on a 0-100 scale.
// Weekly is either empty or one load value per weekday starting Monday.
type ScoreInput struct {
	Burnout     float64   `json:"burnout" yaml:"burnout"`
	Antifragile float64   `json:"antifragile" yaml:"antifragile"`
	Predicted   float64   `json:"predicted" yaml:"predicted"`
	Weekly      []float64 `json:"weekly,omitempty" yaml:"weekly,omitempty"`
}

var weekdayShort = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var (
	collapseKeywords    = []string{"risco", "colapso", "risk", "collapse"}
	improvementKeywords = []string{"melhorar", "como", "improve", "how"}
)

// ScoreResponder answers free-form questions about a set of scores.
type ScoreResponder struct{}

// Respond builds the answer from fixed fragments joined by single spaces.
func (ScoreResponder) Respond(question string, in ScoreInput) string {
	var parts []string

	switch {
	case in.Burnout > 70:
		parts = append(parts, "Your current burnout level is high. Consider reducing load and increasing recovery.")
	case in.Burnout > 40:
		parts = append(parts, "Your stress level is moderate. Watch for accumulation over the coming weeks.")
	default:
		parts = append(parts, "Your current burnout level is under control.")
	}

	switch {
	case in.Predicted > in.Burnout+10:
		parts = append(parts, "The trend points to rising pressure over the next 30 days.")
	case in.Predicted < in.Burnout-10:
		parts = append(parts, "The trend points to progressive recovery.")
	default:
		parts = append(parts, "The future trend is relatively stable.")
	}

	switch {
	case in.Antifragile > 70:
		parts = append(parts, "Your mental system is adaptive and resilient.")
	case in.Antifragile < 40:
		parts = append(parts, "Low antifragility detected. Lack of recovery or excess pressure.")
	default:
		parts = append(parts, "Moderate adaptation to stress.")
	}

	if day, ok := heaviestDay(in.Weekly); ok {
		parts = append(parts, "Your day with the highest mental load is: "+day+".")
	}

	q := strings.ToLower(question)
	if containsAny(q, collapseKeywords) {
		if in.Burnout > 70 && in.Predicted > 70 {
			parts = append(parts, "Collapse risk is high.")
		} else {
			parts = append(parts, "Collapse risk is under control.")
		}
	}
	if containsAny(q, improvementKeywords) {
		parts = append(parts, "Suggestion: reduce load peaks and spread effort across the week.")
	}

	return strings.Join(parts, " ")
}

// heaviestDay returns the weekday with the first maximum load.
func heaviestDay(weekly []float64) (string, bool) {
	if len(weekly) == 0 {
		return "", false
	}
	best := 0
	for i, v := range weekly {
		if v > weekly[best] {
			best = i
		}
	}
	if best >= len(weekdayShort) {
		return "", false
	}
	return weekdayShort[best], true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
