// Package scrub redacts credentials from conversation text before it is
// handed to the model or written into a decision record.
package scrub

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/config"
)

// Replacement is substituted for every redacted span.
const Replacement = "[REDACTED]"

// Finding is one redacted span in the input.
type Finding struct {
	RuleID string
	Start  int
	End    int
}

// Result is the outcome of a Scrub call.
type Result struct {
	Text     string
	Findings []Finding
}

// Redacted reports whether anything was replaced.
func (r Result) Redacted() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the distinct rule ids that matched, sorted.
func (r Result) RuleIDs() []string {
	seen := make(map[string]bool, len(r.Findings))
	ids := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			ids = append(ids, f.RuleID)
		}
	}
	sort.Strings(ids)
	return ids
}

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []string
}

// Scrubber applies a fixed rule set. It is safe for concurrent use.
// A nil or disabled Scrubber returns its input unchanged.
type Scrubber struct {
	enabled bool
	rules   []compiledRule
	allow   []*regexp.Regexp
}

// New compiles DefaultRules and the configured allow list.
func New(cfg config.ScrubConfig) (*Scrubber, error) {
	return NewWithRules(cfg, DefaultRules())
}

// NewWithRules compiles the given rules instead of the defaults.
func NewWithRules(cfg config.ScrubConfig, rules []Rule) (*Scrubber, error) {
	s := &Scrubber{enabled: cfg.Enabled}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("scrub rule %s: %w", r.ID, err)
		}
		kws := make([]string, len(r.Keywords))
		for i, kw := range r.Keywords {
			kws[i] = strings.ToLower(kw)
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, pattern: re, keywords: kws})
	}
	for _, a := range cfg.AllowList {
		re, err := regexp.Compile(a)
		if err != nil {
			return nil, fmt.Errorf("scrub allow_list %q: %w", a, err)
		}
		s.allow = append(s.allow, re)
	}
	return s, nil
}

// Enabled reports whether Scrub redacts anything.
func (s *Scrubber) Enabled() bool {
	return s != nil && s.enabled
}

// Scrub replaces every credential match with Replacement. Overlapping
// matches collapse into a single replacement.
func (s *Scrubber) Scrub(text string) Result {
	res := Result{Text: text}
	if !s.Enabled() || text == "" {
		return res
	}

	lower := strings.ToLower(text)
	for _, r := range s.rules {
		if !hasKeyword(lower, r.keywords) {
			continue
		}
		for _, m := range r.pattern.FindAllStringIndex(text, -1) {
			if s.allowed(text[m[0]:m[1]]) {
				continue
			}
			res.Findings = append(res.Findings, Finding{RuleID: r.id, Start: m[0], End: m[1]})
		}
	}
	if len(res.Findings) == 0 {
		return res
	}

	spans := make([]Finding, len(res.Findings))
	copy(spans, res.Findings)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var b strings.Builder
	pos := 0
	for _, f := range merge(spans) {
		b.WriteString(text[pos:f.Start])
		b.WriteString(Replacement)
		pos = f.End
	}
	b.WriteString(text[pos:])
	res.Text = b.String()
	return res
}

func (s *Scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

func hasKeyword(lower string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// merge folds overlapping or touching spans. Input must be sorted by Start.
func merge(spans []Finding) []Finding {
	out := []Finding{spans[0]}
	for _, cur := range spans[1:] {
		last := &out[len(out)-1]
		if cur.Start <= last.End {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		out = append(out, cur)
	}
	return out
}
