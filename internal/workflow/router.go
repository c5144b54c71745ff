// Package workflow routes a classified mention to the create, update,
// delete, read or summarize workflow and posts exactly one reply.
//
// Workflows never return errors. Capability and store failures become
// user-visible messages; a panic inside a workflow is recovered and
// replaced by a generic failure reply.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/pending"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/decisiond/internal/workflow"

// DefaultSimilarityThreshold is the comparator score at which a new
// candidate is merged into the matched record.
const DefaultSimilarityThreshold = 70

// Extractor turns thread text into a decision candidate.
type Extractor interface {
	Extract(ctx context.Context, thread string) (decision.Candidate, error)
}

// Comparator scores a candidate against stored records.
type Comparator interface {
	Compare(ctx context.Context, c decision.Candidate, existing []decision.Record) (decision.Similarity, error)
}

// Relater finds stored records related to thread text.
type Relater interface {
	FindRelated(ctx context.Context, thread string, records []decision.Record) (decision.RelatedResult, error)
}

// UpdateResolver picks the record an update request targets.
type UpdateResolver interface {
	ResolveUpdateTarget(ctx context.Context, thread string, candidates []decision.Record) (decision.UpdateTarget, error)
}

// Summarizer summarizes thread text.
type Summarizer interface {
	Summarize(ctx context.Context, thread string) (decision.Summary, error)
}

// Capabilities is everything the workflows ask of the language model.
type Capabilities interface {
	Extractor
	Comparator
	Relater
	UpdateResolver
	Summarizer
}

// Store is the record store as seen by the workflows.
type Store interface {
	Create(ctx context.Context, f decision.Fields) (string, error)
	List(ctx context.Context) ([]decision.Record, error)
	Update(ctx context.Context, id string, f decision.Fields) error
	Delete(ctx context.Context, id string) error
	Link(id string) string
}

// Poster posts a reply into a conversation thread.
type Poster interface {
	PostMessage(ctx context.Context, channel, thread, text string) error
}

// Conversation is the context a workflow runs in.
type Conversation struct {
	Channel     string
	Thread      string
	ChannelName string
	ThreadURL   string
	// ThreadText is the reconstructed thread, oldest message first.
	ThreadText string
	// Utterance is the triggering message with the bot mention removed.
	Utterance string
}

func (c Conversation) key() pending.Key {
	return pending.Key{Channel: c.Channel, Thread: c.Thread}
}

// Deps are the router's collaborators. Capabilities, Store and Poster
// are required.
type Deps struct {
	Capabilities Capabilities
	Store        Store
	Poster       Poster
	Pending      *pending.Registry
	Events       events.Publisher
	Logger       *logging.Logger
	Tracer       trace.Tracer

	SimilarityThreshold int
}

// Router dispatches intents to workflows.
type Router struct {
	caps      Capabilities
	store     Store
	poster    Poster
	pending   *pending.Registry
	events    events.Publisher
	logger    *logging.Logger
	tracer    trace.Tracer
	threshold int
	now       func() time.Time
}

// NewRouter creates a router.
func NewRouter(d Deps) (*Router, error) {
	if d.Capabilities == nil {
		return nil, errors.New("workflow: capabilities are required")
	}
	if d.Store == nil {
		return nil, errors.New("workflow: store is required")
	}
	if d.Poster == nil {
		return nil, errors.New("workflow: poster is required")
	}
	r := &Router{
		caps:      d.Capabilities,
		store:     d.Store,
		poster:    d.Poster,
		pending:   d.Pending,
		events:    d.Events,
		logger:    d.Logger,
		tracer:    d.Tracer,
		threshold: d.SimilarityThreshold,
		now:       time.Now,
	}
	if r.pending == nil {
		r.pending = pending.NewRegistry(0)
	}
	if r.events == nil {
		r.events = events.Nop{}
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(instrumentationName)
	}
	if r.threshold <= 0 {
		r.threshold = DefaultSimilarityThreshold
	}
	return r, nil
}

// reply is a workflow's single outward message and how it ended.
type reply struct {
	text    string
	outcome string
	err     error
}

// Route runs the workflow for intent and posts its reply.
func (r *Router) Route(ctx context.Context, intent decision.Intent, conv Conversation) {
	r.run(ctx, "workflow."+string(intent), string(intent), conv, func(ctx context.Context) reply {
		switch intent {
		case decision.IntentCreate:
			return r.create(ctx, conv)
		case decision.IntentUpdate:
			return r.update(ctx, conv)
		case decision.IntentDelete:
			return r.requestDeletion(ctx, conv)
		case decision.IntentRead:
			return r.read(ctx, conv)
		case decision.IntentSummarize:
			return r.summarize(ctx, conv)
		default:
			return reply{text: msgClarify, outcome: outcomeClarify}
		}
	})
}

// Confirm handles a mention in a thread with a pending deletion. It
// reports false, and does nothing, when the thread has none.
func (r *Router) Confirm(ctx context.Context, conv Conversation) bool {
	d, ok := r.pending.Get(conv.key())
	if !ok {
		return false
	}
	r.run(ctx, "workflow.confirm_delete", "confirm_delete", conv, func(ctx context.Context) reply {
		return r.confirmDeletion(ctx, conv, d)
	})
	return true
}

func (r *Router) run(ctx context.Context, spanName, label string, conv Conversation, fn func(context.Context) reply) {
	ctx = logging.WithConversation(ctx, conv.Channel, conv.Thread)
	ctx, span := r.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("slack.channel", conv.Channel),
		attribute.String("slack.thread", conv.Thread),
	))
	defer span.End()

	start := r.now()
	res := r.guard(ctx, fn)

	span.SetAttributes(attribute.String("workflow.outcome", res.outcome))
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.outcome)
	}
	workflowRuns.WithLabelValues(label, res.outcome).Inc()
	workflowDuration.WithLabelValues(label).Observe(r.now().Sub(start).Seconds())
	pendingDeletions.Set(float64(r.pending.Len()))

	r.logger.Info(ctx, "workflow finished",
		zap.String("workflow", label),
		zap.String("outcome", res.outcome),
		zap.Duration("duration", r.now().Sub(start)))

	if err := r.poster.PostMessage(ctx, conv.Channel, conv.Thread, res.text); err != nil {
		r.logger.Error(ctx, "posting reply failed", zap.String("workflow", label), zap.Error(err))
	}
}

func (r *Router) guard(ctx context.Context, fn func(context.Context) reply) (res reply) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("workflow panic: %v", p)
			r.logger.Error(ctx, "workflow panicked", zap.Error(err), zap.Stack("stack"))
			res = reply{text: msgInternalError, outcome: outcomePanic, err: err}
		}
	}()
	return fn(ctx)
}

// source stamps a record change with the conversation it came from.
func (r *Router) source(conv Conversation) decision.Source {
	return decision.Source{Channel: conv.Channel, Thread: conv.Thread, At: r.now()}
}

func (r *Router) publish(ctx context.Context, action events.Action, rec decision.Record, conv Conversation) {
	err := r.events.Publish(ctx, events.Event{
		Action:     action,
		DecisionID: rec.ID,
		Title:      rec.Title,
		Tag:        rec.Tag,
		Channel:    conv.Channel,
		Thread:     conv.Thread,
	})
	if err != nil {
		r.logger.Warn(ctx, "publishing decision event failed",
			zap.String("action", string(action)), zap.String("decision_id", rec.ID), zap.Error(err))
	}
}

// failed logs err and builds the failure reply for action.
func (r *Router) failed(ctx context.Context, action string, err error) reply {
	r.logger.Error(ctx, "workflow step failed", zap.String("action", action), zap.Error(err))
	return reply{text: msgFailed(action, err), outcome: outcomeFailed, err: err}
}
