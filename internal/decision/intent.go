package decision

import "strings"

// Intent is the action a mention asks for.
type Intent string

const (
	IntentCreate         Intent = "create"
	IntentUpdate         Intent = "update"
	IntentRead           Intent = "read"
	IntentDelete         Intent = "delete"
	IntentSummarize      Intent = "summarize"
	IntentNoneApplicable Intent = "none_applicable"
)

// Intents lists every intent the classifier may return.
var Intents = []Intent{
	IntentCreate, IntentUpdate, IntentRead, IntentDelete, IntentSummarize, IntentNoneApplicable,
}

// ParseIntent normalizes a classifier label. Unknown labels map to
// IntentNoneApplicable.
func ParseIntent(s string) Intent {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.Trim(norm, `"'.`)
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, in := range Intents {
		if norm == string(in) {
			return in
		}
	}
	return IntentNoneApplicable
}
