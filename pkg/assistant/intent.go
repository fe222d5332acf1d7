package assistant

import "strings"

// Intent is the classified purpose of a question.
type Intent string

const (
	IntentImportant Intent = "important"
	IntentSummary   Intent = "summary"
	IntentPattern   Intent = "pattern"
	IntentSearch    Intent = "search"
	IntentUnknown   Intent = "unknown"
)

type intentRule struct {
	intent   Intent
	keywords []string
}

// intentRules is ordered by precedence: a question with keywords from several
// sets gets the first matching intent.
var intentRules = []intentRule{
	{IntentImportant, []string{"importante", "compromisso", "agenda", "important", "commitment", "appointment"}},
	{IntentSummary, []string{"resumo", "estatística", "estatistica", "dados", "summary", "statistics", "stats"}},
	{IntentPattern, []string{"padrão", "padrao", "ciclo", "ritmo", "pattern", "cycle", "rhythm"}},
	{IntentSearch, []string{"aconteceu", "fiz", "teve", "happened", "did i"}},
}

// Classify returns the intent of question by keyword precedence.
func Classify(question string) Intent {
	q := strings.ToLower(question)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.intent
			}
		}
	}
	return IntentUnknown
}
