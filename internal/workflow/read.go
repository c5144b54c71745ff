package workflow

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
)

// read answers with the stored decisions related to the thread.
func (r *Router) read(ctx context.Context, conv Conversation) reply {
	records, matches, err := r.related(ctx, conv.ThreadText)
	if err != nil {
		return r.failed(ctx, actionRead, err)
	}
	if len(records) == 0 {
		return reply{text: msgNoRecords, outcome: outcomeNotFound}
	}
	if len(matches) == 0 {
		return reply{text: msgNoRelated, outcome: outcomeNotFound}
	}
	return reply{text: msgRelated(matches, conv.ThreadURL), outcome: outcomeAnswered}
}

// summarize answers with a structured summary of the thread. It does not
// touch the store.
func (r *Router) summarize(ctx context.Context, conv Conversation) reply {
	sum, err := r.caps.Summarize(ctx, conv.ThreadText)
	if err != nil {
		var refusal *decision.RefusalError
		if errors.As(err, &refusal) {
			return reply{text: refusal.Message, outcome: outcomeRefused}
		}
		return r.failed(ctx, actionSummarize, err)
	}
	return reply{text: msgSummary(sum, conv.ThreadURL), outcome: outcomeAnswered}
}
