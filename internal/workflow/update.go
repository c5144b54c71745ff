package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"go.uber.org/zap"
)

// related lists the store and resolves the capability's ordinals against
// that listing. Unresolvable ordinals are dropped with a warning.
func (r *Router) related(ctx context.Context, thread string) (records, resolved []decision.Record, err error) {
	records, err = r.store.List(ctx)
	if err != nil || len(records) == 0 {
		return records, nil, err
	}
	res, err := r.caps.FindRelated(ctx, thread, records)
	if err != nil {
		return records, nil, err
	}
	resolved, dropped := res.Resolve(records)
	for _, ord := range dropped {
		r.logger.Warn(ctx, "dropping unresolvable ordinal",
			zap.Int("ordinal", ord), zap.Int("records", len(records)))
	}
	return records, resolved, nil
}

// update applies the changes described in the thread to one related record.
func (r *Router) update(ctx context.Context, conv Conversation) reply {
	records, err := r.store.List(ctx)
	if err != nil {
		return r.failed(ctx, actionUpdate, err)
	}
	if len(records) == 0 {
		return reply{text: msgNothingToUpdate, outcome: outcomeNotFound}
	}

	res, err := r.caps.FindRelated(ctx, conv.ThreadText, records)
	if err != nil {
		return r.failed(ctx, actionUpdate, err)
	}
	if len(res.Items) == 0 {
		return reply{text: msgNoRelated, outcome: outcomeNotFound}
	}
	candidates, dropped := res.Resolve(records)
	for _, ord := range dropped {
		r.logger.Warn(ctx, "dropping unresolvable ordinal",
			zap.Int("ordinal", ord), zap.Int("records", len(records)))
	}
	if len(candidates) == 0 {
		err := fmt.Errorf("none of %d related ordinals matched a stored record", len(res.Items))
		return r.failed(ctx, actionUpdate, err)
	}

	target, err := r.caps.ResolveUpdateTarget(ctx, conv.ThreadText, candidates)
	if err != nil {
		var refusal *decision.RefusalError
		if errors.As(err, &refusal) {
			return reply{text: refusal.Message, outcome: outcomeRefused}
		}
		return r.failed(ctx, actionUpdate, err)
	}

	var original decision.Record
	found := false
	for _, c := range candidates {
		if c.ID == target.DecisionID {
			original, found = c, true
			break
		}
	}
	if !found {
		err := fmt.Errorf("update target %q is not one of the related decisions", target.DecisionID)
		return r.failed(ctx, actionUpdate, err)
	}
	if target.Changes.IsEmpty() {
		return reply{text: msgNoChanges(original), outcome: outcomeRefused}
	}

	fields := target.Changes.WithSource(r.source(conv))
	if err := r.store.Update(ctx, original.ID, fields); err != nil {
		return r.failed(ctx, actionUpdate, err)
	}
	rec := fields.Apply(original)
	r.publish(ctx, events.ActionUpdated, rec, conv)
	return reply{text: msgUpdated(rec, target.Changes, r.store.Link(rec.ID)), outcome: outcomeUpdated}
}
