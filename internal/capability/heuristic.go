package capability

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
)

const (
	heuristicMatchedConfidence = 60
	heuristicDefaultConfidence = 50
	maxFallbackSummary         = 500
	defaultTag                 = "general"
)

// decisionPatterns mark sentences that state a decision.
var decisionPatterns = []string{
	`(?i)\bdecided to\b`,
	`(?i)\bwe(?:'ll| will)? (?:go with|use|adopt|choose|pick|switch to)\b`,
	`(?i)\blet'?s (?:go with|use|choose|pick|switch to)\b`,
	`(?i)\bthe approach (?:is|will be)\b`,
	`(?i)\bchoosing .+ over\b`,
	`(?i)\bagreed (?:to|on|that)\b`,
	`(?i)\bwe(?:'re| are) going (?:with|to)\b`,
	`(?i)\bdon'?t (?:do|use)\b.*\bbecause\b`,
}

// tagRule maps a tag to keywords. Order breaks ties.
type tagRule struct {
	tag      string
	keywords []string
}

var defaultTagRules = []tagRule{
	{"frontend", []string{"frontend", "ui", "react", "next.js", "vue", "angular", "css"}},
	{"backend", []string{"backend", "server", "service", "handler", "golang"}},
	{"database", []string{"database", "sql", "postgres", "mysql", "mongodb", "redis", "schema"}},
	{"infrastructure", []string{"kubernetes", "k8s", "terraform", "docker", "aws", "gcp", "deploy"}},
	{"api", []string{"api", "endpoint", "rest", "grpc", "graphql"}},
	{"security", []string{"auth", "secret", "credential", "permission", "encrypt", "security"}},
	{"testing", []string{"test", "tests", "coverage", "qa"}},
	{"process", []string{"meeting", "process", "review", "release", "sprint", "deadline"}},
}

type compiledTagRule struct {
	tag      string
	patterns []*regexp.Regexp
}

// Heuristic extracts a decision candidate without a model.
// Its output is deterministic for a given text.
type Heuristic struct {
	patterns []*regexp.Regexp
	tags     []compiledTagRule
}

// NewHeuristic compiles the default patterns and tag rules.
func NewHeuristic() *Heuristic {
	h := &Heuristic{}
	for _, p := range decisionPatterns {
		h.patterns = append(h.patterns, regexp.MustCompile(p))
	}
	for _, rule := range defaultTagRules {
		c := compiledTagRule{tag: rule.tag}
		for _, kw := range rule.keywords {
			c.patterns = append(c.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
		}
		h.tags = append(h.tags, c)
	}
	return h
}

var sentenceSplit = regexp.MustCompile(`[.!?\n]+\s*`)

// Extract returns a candidate titled by the first sentence that states a
// decision, or by the first sentence when none does. Text without any
// sentence yields a LowConfidenceError.
func (h *Heuristic) Extract(text string) (decision.Candidate, error) {
	var sentences []string
	for _, s := range sentenceSplit.Split(strings.TrimSpace(text), -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	// Punctuation-only text splits into nothing.
	if len(sentences) == 0 {
		return decision.Candidate{}, &decision.LowConfidenceError{Reason: "the thread has no text to record"}
	}

	title := sentences[0]
	confidence := heuristicDefaultConfidence
outer:
	for _, s := range sentences {
		for _, re := range h.patterns {
			if re.MatchString(s) {
				title = s
				confidence = heuristicMatchedConfidence
				break outer
			}
		}
	}

	return decision.Candidate{
		Title:      decision.TruncateTitle(title),
		Summary:    truncate(strings.Join(strings.Fields(text), " "), maxFallbackSummary),
		Tag:        h.Tag(text),
		Confidence: confidence,
		Fallback:   true,
	}, nil
}

// Tag returns the tag whose keywords occur most often in text.
func (h *Heuristic) Tag(text string) string {
	best, bestHits := defaultTag, 0
	for _, rule := range h.tags {
		hits := 0
		for _, re := range rule.patterns {
			hits += len(re.FindAllStringIndex(text, -1))
		}
		if hits > bestHits {
			best, bestHits = rule.tag, hits
		}
	}
	return best
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
