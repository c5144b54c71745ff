package workflow

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"go.uber.org/zap"
)

// create extracts a decision from the thread and either merges it into a
// similar record or stores it as new.
func (r *Router) create(ctx context.Context, conv Conversation) reply {
	cand, err := r.caps.Extract(ctx, conv.ThreadText)
	if err != nil {
		var low *decision.LowConfidenceError
		if errors.As(err, &low) {
			r.logger.Info(ctx, "extraction below threshold",
				zap.Int("confidence", low.Confidence), zap.String("reason", low.Reason))
			return reply{text: msgLowConfidence(low), outcome: outcomeLowConfidence}
		}
		return r.failed(ctx, actionAdd, err)
	}
	if cand.Fallback {
		r.logger.Warn(ctx, "using heuristic extraction", zap.String("title", cand.Title))
	}

	existing, err := r.store.List(ctx)
	if err != nil {
		return r.failed(ctx, actionAdd, err)
	}

	// An empty store cannot hold a duplicate.
	var sim decision.Similarity
	if len(existing) > 0 {
		sim, err = r.caps.Compare(ctx, cand, existing)
		if err != nil {
			return r.failed(ctx, actionAdd, err)
		}
	}

	fields := decision.FromCandidate(cand, r.source(conv))
	if sim.Score >= r.threshold && sim.MatchedID != "" && decision.Contains(existing, sim.MatchedID) {
		if err := r.store.Update(ctx, sim.MatchedID, fields); err != nil {
			return r.failed(ctx, actionUpdate, err)
		}
		rec := fields.Apply(decision.Record{ID: sim.MatchedID})
		r.publish(ctx, events.ActionUpdated, rec, conv)
		return reply{text: msgMerged(rec, sim.Score, r.store.Link(rec.ID)), outcome: outcomeUpdated}
	}
	if sim.Score >= r.threshold {
		r.logger.Warn(ctx, "similar record not in snapshot, adding new record",
			zap.Int("score", sim.Score), zap.String("matched_id", sim.MatchedID))
	}

	id, err := r.store.Create(ctx, fields)
	if err != nil {
		return r.failed(ctx, actionAdd, err)
	}
	rec := fields.Apply(decision.Record{ID: id})
	r.publish(ctx, events.ActionCreated, rec, conv)
	return reply{text: msgAdded(rec, r.store.Link(id)), outcome: outcomeAdded}
}
