package workflow

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/pending"
	"go.uber.org/zap"
)

// Answer is how a reply to a confirmation prompt reads.
type Answer int

const (
	AnswerUnclear Answer = iota
	AnswerConfirm
	AnswerCancel
)

var (
	affirmativeWords = map[string]bool{
		"yes": true, "y": true, "confirm": true, "delete": true,
		"ok": true, "sure": true, "yep": true,
	}
	negativeWords = map[string]bool{
		"no": true, "n": true, "cancel": true, "abort": true,
		"stop": true, "nope": true,
	}
)

// ParseAnswer classifies text as a confirmation, a cancellation or
// neither. A cancelling word anywhere wins over a confirming one.
func ParseAnswer(text string) Answer {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	answer := AnswerUnclear
	for _, w := range words {
		if negativeWords[w] {
			return AnswerCancel
		}
		if affirmativeWords[w] {
			answer = AnswerConfirm
		}
	}
	return answer
}

// requestDeletion identifies the single record a delete request refers to
// and asks for confirmation. It never deletes.
func (r *Router) requestDeletion(ctx context.Context, conv Conversation) reply {
	if d, ok := r.pending.Get(conv.key()); ok {
		return reply{text: msgConfirmPrompt(d), outcome: outcomeReminded}
	}

	_, matches, err := r.related(ctx, conv.ThreadText)
	if err != nil {
		return r.failed(ctx, actionDelete, err)
	}

	switch len(matches) {
	case 0:
		return reply{text: msgNothingToDelete, outcome: outcomeNotFound}
	case 1:
	default:
		return reply{text: msgDisambiguate(matches), outcome: outcomeAmbiguous}
	}

	rec := matches[0]
	d := pending.Deletion{
		DecisionID: rec.ID,
		Title:      rec.Title,
		Summary:    rec.Summary,
		Tag:        rec.Tag,
	}
	if err := r.pending.Open(conv.key(), d); err != nil {
		if errors.Is(err, pending.ErrAlreadyPending) {
			existing, _ := r.pending.Get(conv.key())
			return reply{text: msgConfirmPrompt(existing), outcome: outcomeReminded}
		}
		return r.failed(ctx, actionDelete, err)
	}
	r.logger.Info(ctx, "deletion awaiting confirmation", zap.String("decision_id", rec.ID))
	return reply{text: msgConfirmPrompt(d), outcome: outcomePrompted}
}

// confirmDeletion advances the confirmation state machine for d.
func (r *Router) confirmDeletion(ctx context.Context, conv Conversation, d pending.Deletion) reply {
	switch ParseAnswer(conv.Utterance) {
	case AnswerCancel:
		r.pending.Resolve(conv.key())
		r.logger.Info(ctx, "deletion cancelled", zap.String("decision_id", d.DecisionID))
		return reply{text: msgCancelled(d), outcome: outcomeCancelled}

	case AnswerConfirm:
		// The entry may have expired or been resolved since it was read.
		if _, ok := r.pending.Resolve(conv.key()); !ok {
			r.logger.Info(ctx, "confirmation for expired deletion", zap.String("decision_id", d.DecisionID))
			return reply{text: msgDeletionExpired(d), outcome: outcomeExpired}
		}
		if err := r.store.Delete(ctx, d.DecisionID); err != nil {
			if errors.Is(err, decision.ErrNotFound) {
				r.logger.Warn(ctx, "confirmed deletion of missing record", zap.String("decision_id", d.DecisionID))
				return reply{text: msgAlreadyGone(d), outcome: outcomeNotFound}
			}
			return r.failed(ctx, actionDelete, err)
		}
		r.publish(ctx, events.ActionDeleted, decision.Record{ID: d.DecisionID, Title: d.Title, Tag: d.Tag}, conv)
		return reply{text: msgDeleted(d), outcome: outcomeDeleted}

	default:
		return reply{text: msgConfirmPrompt(d), outcome: outcomeReminded}
	}
}

// SweepPending drops expired delete requests every interval until ctx is
// done, keeping the pending gauge in step with the registry.
func (r *Router) SweepPending(ctx context.Context, interval time.Duration) {
	r.pending.Run(ctx, interval, func(removed int) {
		pendingDeletions.Set(float64(r.pending.Len()))
		r.logger.Info(ctx, "expired pending deletions", zap.Int("count", removed))
	})
}
