package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/pending"
)

// Actions named in failure messages.
const (
	actionAdd       = "add the decision"
	actionUpdate    = "update the decision"
	actionDelete    = "delete the decision"
	actionRead      = "look up decisions"
	actionSummarize = "summarize this thread"
)

const (
	msgClarify = "I'm not sure what you'd like me to do. I can *record* a decision, *update* or *delete* one, " +
		"*show* related decisions, or *summarize* this thread."
	msgInternalError   = "Something went wrong on my side while handling that. Please try again."
	msgNothingToUpdate = "There are no recorded decisions to update yet."
	msgNothingToDelete = "I couldn't find a recorded decision matching this thread, so there is nothing to delete."
	msgNoRecords       = "No decisions have been recorded yet."
	msgNoRelated       = "I couldn't find a recorded decision related to this thread."
)

func msgFailed(action string, err error) string {
	var schemaErr *decision.SchemaError
	switch {
	case errors.Is(err, decision.ErrNotFound):
		return fmt.Sprintf("Failed to %s: the decision no longer exists.", action)
	case errors.As(err, &schemaErr):
		return fmt.Sprintf("Failed to %s: I couldn't understand the model's answer. Please try again.", action)
	default:
		return fmt.Sprintf("Failed to %s. Please try again later.", action)
	}
}

func msgLowConfidence(err *decision.LowConfidenceError) string {
	return fmt.Sprintf("I couldn't identify a clear decision in this thread (confidence %d%%): %s",
		err.Confidence, err.Reason)
}

func withLink(b *strings.Builder, label, url string) {
	if url != "" {
		fmt.Fprintf(b, "\n%s: %s", label, url)
	}
}

func msgAdded(rec decision.Record, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decision added: *%s* (tag: %s)", rec.Title, rec.Tag)
	withLink(&b, "Record", link)
	return b.String()
}

func msgMerged(rec decision.Record, score int, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decision updated (Similarity: %d%%): *%s* (tag: %s)", score, rec.Title, rec.Tag)
	withLink(&b, "Record", link)
	return b.String()
}

func msgUpdated(rec decision.Record, changes decision.Fields, link string) string {
	var changed []string
	if changes.Title != nil {
		changed = append(changed, "title")
	}
	if changes.Summary != nil {
		changed = append(changed, "summary")
	}
	if changes.Tag != nil {
		changed = append(changed, "tag")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Decision updated: *%s* (tag: %s)\nChanged: %s", rec.Title, rec.Tag, strings.Join(changed, ", "))
	withLink(&b, "Record", link)
	return b.String()
}

func msgNoChanges(rec decision.Record) string {
	return fmt.Sprintf("I found *%s* but couldn't tell what should change. Could you say what to update?", rec.Title)
}

func msgDisambiguate(matches []decision.Record) string {
	var b strings.Builder
	b.WriteString("Several decisions match this thread. Which one should I delete?")
	for i, rec := range matches {
		fmt.Fprintf(&b, "\n%d. %s", i+1, rec.Title)
	}
	b.WriteString("\nPlease mention me again with more detail about the one to delete.")
	return b.String()
}

func msgConfirmPrompt(d pending.Deletion) string {
	return fmt.Sprintf("Are you sure you want to delete this decision?\n*%s* (tag: %s)\n%s\nReply *yes* to delete or *no* to cancel.",
		d.Title, d.Tag, d.Summary)
}

func msgDeleted(d pending.Deletion) string {
	return fmt.Sprintf("Decision deleted: *%s*", d.Title)
}

func msgCancelled(d pending.Deletion) string {
	return fmt.Sprintf("Deletion cancelled. *%s* was kept.", d.Title)
}

func msgDeletionExpired(d pending.Deletion) string {
	return fmt.Sprintf("The request to delete *%s* expired, so nothing was removed. Mention me again to start over.", d.Title)
}

func msgAlreadyGone(d pending.Deletion) string {
	return fmt.Sprintf("*%s* had already been removed.", d.Title)
}

func msgRelated(matches []decision.Record, threadURL string) string {
	var b strings.Builder
	b.WriteString("Related decisions:")
	for i, rec := range matches {
		fmt.Fprintf(&b, "\n%d. %s\n%s", i+1, rec.Title, rec.Summary)
	}
	withLink(&b, "Thread", threadURL)
	return b.String()
}

func numbered(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n*%s*", heading)
	for i, item := range items {
		fmt.Fprintf(b, "\n%d. %s", i+1, item)
	}
}

func msgSummary(s decision.Summary, threadURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Summary*\n%s", s.Overview)
	numbered(&b, "Open points", s.OpenPoints)
	numbered(&b, "Decisions made", s.DecisionsMade)
	numbered(&b, "Next steps", s.NextSteps)
	if threadURL != "" {
		b.WriteString("\n")
	}
	withLink(&b, "Thread", threadURL)
	return b.String()
}
