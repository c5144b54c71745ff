package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"pgregory.net/rapid"
)

func TestUpdate_NoRecords(t *testing.T) {
	caps := &fakeCaps{}
	h := newHarness(t, caps, newCountingStore())

	h.router.Route(context.Background(), decision.IntentUpdate, testConversation("change the frontend decision"))

	assert.Equal(t, msgNothingToUpdate, h.poster.last(t))
	assert.Equal(t, 0, caps.Calls("related"))
}

func TestUpdate_NoRelated(t *testing.T) {
	caps := &fakeCaps{related: relatedOrdinals()}
	h := newHarness(t, caps, newCountingStore(reactRecord()))

	h.router.Route(context.Background(), decision.IntentUpdate, testConversation("change the database decision"))

	assert.Equal(t, msgNoRelated, h.poster.last(t))
	assert.Equal(t, 0, caps.Calls("resolve"))
}

func TestUpdate_AppliesOnlyReturnedChanges(t *testing.T) {
	original := reactRecord()
	caps := &fakeCaps{
		related: relatedOrdinals(1),
		resolve: func(_ string, candidates []decision.Record) (decision.UpdateTarget, error) {
			return decision.UpdateTarget{
				DecisionID: candidates[0].ID,
				Changes:    decision.Fields{Summary: decision.String("Adopted React 19 with server components.")},
				Confidence: 90,
			}, nil
		},
	}
	store := newCountingStore(original)
	store.link = func(id string) string { return "https://notion.example/" + id }
	h := newHarness(t, caps, store)

	h.router.Route(context.Background(), decision.IntentUpdate, testConversation("we're on React 19 now"))

	assert.Equal(t, []string{original.ID}, store.updates)
	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, original.Title, got.Title)
	assert.Equal(t, original.Tag, got.Tag)
	assert.Equal(t, "Adopted React 19 with server components.", got.Summary)
	assert.Equal(t, "C123", got.SourceChannel)
	assert.Equal(t, "1700000000.000100", got.SourceThread)
	assert.Equal(t, testNow, got.RecordedAt)

	msg := h.poster.last(t)
	assert.Contains(t, msg, "Decision updated")
	assert.Contains(t, msg, "Changed: summary")
	assert.Contains(t, msg, "https://notion.example/"+original.ID)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, events.ActionUpdated, h.publisher.events[0].Action)
}

func TestUpdate_DropsUnresolvableOrdinals(t *testing.T) {
	records := seedRecords(3)
	caps := &fakeCaps{
		related: relatedOrdinals(7, 2, 0),
		resolve: func(_ string, candidates []decision.Record) (decision.UpdateTarget, error) {
			return decision.UpdateTarget{
				DecisionID: candidates[0].ID,
				Changes:    decision.Fields{Tag: decision.String("backend")},
				Confidence: 80,
			}, nil
		},
	}
	h := newHarness(t, caps, newCountingStore(records...))

	h.router.Route(context.Background(), decision.IntentUpdate, testConversation("retag it"))

	require.Len(t, caps.resolveInput, 1)
	assert.Equal(t, records[1].ID, caps.resolveInput[0].ID)
	assert.Equal(t, []string{records[1].ID}, h.store.updates)
	h.logs.AssertLogged(t, zapcore.WarnLevel, "dropping unresolvable ordinal")
}

func TestUpdate_OnlyInvalidOrdinalsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "records")
		bad := rapid.SliceOfN(rapid.OneOf(
			rapid.IntRange(-10, 0),
			rapid.IntRange(n+1, n+20),
		), 1, 5).Draw(t, "ordinals")

		caps := &fakeCaps{related: relatedOrdinals(bad...)}
		h := newHarness(t, caps, newCountingStore(seedRecords(n)...))

		h.router.Route(context.Background(), decision.IntentUpdate, testConversation("update it"))

		assert.Equal(t, 0, caps.Calls("resolve"))
		assert.Equal(t, 0, h.store.mutations())
		assert.Contains(t, h.poster.last(t), "Failed to update the decision")
	})
}

func TestUpdate_RefusalRelayedVerbatim(t *testing.T) {
	const refusal = "I'm not confident enough about which decision to update (confidence 40%). Could you be more specific?"
	caps := &fakeCaps{
		related: relatedOrdinals(1),
		resolve: func(string, []decision.Record) (decision.UpdateTarget, error) {
			return decision.UpdateTarget{}, &decision.RefusalError{Message: refusal}
		},
	}
	h := newHarness(t, caps, newCountingStore(reactRecord()))

	h.router.Route(context.Background(), decision.IntentUpdate, testConversation("change something"))

	assert.Equal(t, refusal, h.poster.last(t))
	assert.Empty(t, h.store.updates)
}

func TestUpdate_TargetOutsideCandidates(t *testing.T) {
	records := seedRecords(3)
	caps := &fakeCaps{
		related: relatedOrdinals(1),
		resolve: func(string, []decision.Record) (decision.UpdateTarget, error) {
			// records[2] exists in the store but was not offered.
			return decision.UpdateTarget{
				DecisionID: records[2].ID,
				Changes:    decision.Fields{Title: decision.String("x")},
				Confidence: 99,
			}, nil
		},
	}
	h := newHarness(t, caps, newCountingStore(records...))

	h.router.Route(context.Background(), decision.IntentUpdate, testConversation("update it"))

	assert.Empty(t, h.store.updates)
	assert.Contains(t, h.poster.last(t), "Failed to update the decision")
}

func TestUpdate_NoChanges(t *testing.T) {
	caps := &fakeCaps{
		related: relatedOrdinals(1),
		resolve: func(_ string, c []decision.Record) (decision.UpdateTarget, error) {
			return decision.UpdateTarget{DecisionID: c[0].ID, Confidence: 90}, nil
		},
	}
	h := newHarness(t, caps, newCountingStore(reactRecord()))

	h.router.Route(context.Background(), decision.IntentUpdate, testConversation("update it"))

	assert.Empty(t, h.store.updates)
	assert.Contains(t, h.poster.last(t), "couldn't tell what should change")
}

func TestUpdate_Failures(t *testing.T) {
	t.Run("relatedness", func(t *testing.T) {
		caps := &fakeCaps{related: func(string, []decision.Record) (decision.RelatedResult, error) {
			return decision.RelatedResult{}, context.DeadlineExceeded
		}}
		h := newHarness(t, caps, newCountingStore(reactRecord()))
		h.router.Route(context.Background(), decision.IntentUpdate, testConversation("x"))
		assert.Contains(t, h.poster.last(t), "Failed to update the decision")
	})

	t.Run("resolver transport", func(t *testing.T) {
		caps := &fakeCaps{
			related: relatedOrdinals(1),
			resolve: func(string, []decision.Record) (decision.UpdateTarget, error) {
				return decision.UpdateTarget{}, errors.New("502 bad gateway")
			},
		}
		h := newHarness(t, caps, newCountingStore(reactRecord()))
		h.router.Route(context.Background(), decision.IntentUpdate, testConversation("x"))
		assert.Contains(t, h.poster.last(t), "Failed to update the decision")
	})

	t.Run("store", func(t *testing.T) {
		caps := &fakeCaps{
			related: relatedOrdinals(1),
			resolve: func(_ string, c []decision.Record) (decision.UpdateTarget, error) {
				return decision.UpdateTarget{DecisionID: c[0].ID, Changes: decision.Fields{Tag: decision.String("api")}, Confidence: 90}, nil
			},
		}
		store := newCountingStore(reactRecord())
		store.updateErr = decision.ErrNotFound
		h := newHarness(t, caps, store)
		h.router.Route(context.Background(), decision.IntentUpdate, testConversation("x"))
		assert.Contains(t, h.poster.last(t), "no longer exists")
		assert.Empty(t, h.publisher.events)
	})
}
