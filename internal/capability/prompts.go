package capability

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
)

const jsonOnly = "Respond with a single JSON object and nothing else."

// enumerate renders records as a 1-based list. includeID adds the record id.
func enumerate(records []decision.Record, includeID bool) string {
	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "%d. ", i+1)
		if includeID {
			fmt.Fprintf(&b, "[id=%s] ", r.ID)
		}
		fmt.Fprintf(&b, "%s (tag: %s)\n   %s\n", r.Title, r.Tag, r.Summary)
	}
	return b.String()
}

func intentPrompt(utterance string) string {
	return fmt.Sprintf(`Classify what the user wants to do with the team's decision log.

Message: %q

Choose exactly one intent:
- create: record a new decision from the conversation
- update: change an existing decision
- read: look up decisions related to the conversation
- delete: remove an existing decision
- summarize: summarize the conversation thread
- none_applicable: none of the above

%s Format: {"intent": "<intent>"}`, utterance, jsonOnly)
}

func extractPrompt(thread string) string {
	return fmt.Sprintf(`Extract the decision made in this conversation.

Conversation:
"""
%s
"""

Return a short title (at most %d characters), a one to three sentence summary,
a single lowercase category tag, and your confidence from 0 to 100 that the
conversation contains a decision. When confidence is low, explain why in "reason".

%s Format: {"title": "", "summary": "", "tag": "", "confidence": 0, "reason": ""}`,
		thread, decision.MaxTitleLen, jsonOnly)
}

func comparePrompt(c decision.Candidate, existing []decision.Record) string {
	return fmt.Sprintf(`Decide whether a new decision restates, revises or reverses one of the existing decisions.

New decision:
Title: %s
Summary: %s
Tag: %s

Existing decisions:
%s
Give a similarity score from 0 to 100. When one existing decision covers the same
subject, set matched_ordinal to its number; otherwise set it to 0.

%s Format: {"is_similar": false, "score": 0, "matched_ordinal": 0}`,
		c.Title, c.Summary, c.Tag, enumerate(existing, false), jsonOnly)
}

func relatedPrompt(thread string, records []decision.Record) string {
	return fmt.Sprintf(`Find the stored decisions related to this conversation.

Conversation:
"""
%s
"""

Stored decisions:
%s
List only decisions that are clearly related, most related first, using their
numbers as "ordinal". Explain your choice in "rationale". Return an empty list when
none are related.

%s Format: {"related_decisions": [{"ordinal": 1, "title": "", "summary": ""}], "rationale": ""}`,
		thread, enumerate(records, false), jsonOnly)
}

func updatePrompt(thread string, candidates []decision.Record) string {
	return fmt.Sprintf(`The conversation asks to change one of the decisions below.

Conversation:
"""
%s
"""

Candidate decisions:
%s
Pick the single decision to change and return its id in "decision_id". In
"changes" include only the fields (title, summary, tag) that the conversation
changes, with their new values. Give your confidence from 0 to 100. If no
candidate is the subject of the request, set "error" to a short explanation for
the user and leave "decision_id" empty.

%s Format: {"decision_id": "", "changes": {}, "confidence": 0, "error": ""}`,
		thread, enumerate(candidates, true), jsonOnly)
}

func summarizePrompt(thread string) string {
	return fmt.Sprintf(`Summarize this conversation thread.

Conversation:
"""
%s
"""

Return a short overview, the open points, the decisions made and the next steps,
plus your confidence from 0 to 100 that the thread has enough substance to
summarize. If it does not, set "error" to a short explanation for the user.

%s Format: {"overview": "", "open_points": [], "decisions_made": [], "next_steps": [], "confidence": 0, "error": ""}`,
		thread, jsonOnly)
}
