package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/pending"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"pgregory.net/rapid"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		text string
		want Answer
	}{
		{"yes", AnswerConfirm},
		{"Yes, delete it", AnswerConfirm},
		{"CONFIRM", AnswerConfirm},
		{"y", AnswerConfirm},
		{"ok!", AnswerConfirm},
		{"no", AnswerCancel},
		{"Nope.", AnswerCancel},
		{"cancel that", AnswerCancel},
		{"abort", AnswerCancel},
		{"yes... actually no", AnswerCancel},
		{"don't delete, cancel", AnswerCancel},
		{"what does this do?", AnswerUnclear},
		{"yesterday we decided", AnswerUnclear},
		{"notably", AnswerUnclear},
		{"", AnswerUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAnswer(tt.text))
		})
	}
}

func deleteHarness(t testingT, matches ...int) *harness {
	caps := &fakeCaps{related: relatedOrdinals(matches...)}
	return newHarness(t, caps, newCountingStore(reactRecord(), decision.Record{ID: "rec-db", Title: "Use Postgres", Summary: "Chose Postgres.", Tag: "database"}))
}

// mention simulates the intake: a pending thread gets a confirmation
// step, anything else is routed as intent.
func (h *harness) mention(intent decision.Intent, text string) {
	conv := testConversation(text)
	if h.router.Confirm(context.Background(), conv) {
		return
	}
	h.router.Route(context.Background(), intent, conv)
}

func (h *harness) pendingEntry() (pending.Deletion, bool) {
	conv := testConversation("")
	return h.pending.Get(conv.key())
}

func TestDelete_NothingFound(t *testing.T) {
	h := deleteHarness(t)
	h.mention(decision.IntentDelete, "delete the kafka decision")

	assert.Equal(t, msgNothingToDelete, h.poster.last(t))
	_, ok := h.pendingEntry()
	assert.False(t, ok)
}

func TestDelete_EmptyStore(t *testing.T) {
	caps := &fakeCaps{}
	h := newHarness(t, caps, newCountingStore())
	h.mention(decision.IntentDelete, "delete it")

	assert.Equal(t, msgNothingToDelete, h.poster.last(t))
	assert.Equal(t, 0, caps.Calls("related"))
}

func TestDelete_AmbiguousListsTitles(t *testing.T) {
	h := deleteHarness(t, 1, 2)
	h.mention(decision.IntentDelete, "delete the old decisions")

	msg := h.poster.last(t)
	assert.Contains(t, msg, "1. Use React for frontend")
	assert.Contains(t, msg, "2. Use Postgres")
	_, ok := h.pendingEntry()
	assert.False(t, ok)
	assert.Empty(t, h.store.deletes)
}

func TestDelete_ConfirmYes(t *testing.T) {
	h := deleteHarness(t, 1)
	h.mention(decision.IntentDelete, "remove the react decision")

	d, ok := h.pendingEntry()
	require.True(t, ok)
	assert.Equal(t, "rec-react", d.DecisionID)
	prompt := h.poster.last(t)
	assert.Contains(t, prompt, "Use React for frontend")
	assert.Contains(t, prompt, "Adopted React.")
	assert.Contains(t, prompt, "frontend")
	assert.Empty(t, h.store.deletes)

	h.mention(decision.IntentNoneApplicable, "yes")

	assert.Equal(t, []string{"rec-react"}, h.store.deletes)
	_, ok = h.pendingEntry()
	assert.False(t, ok)
	assert.Contains(t, h.poster.last(t), "Decision deleted")
	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, events.ActionDeleted, h.publisher.events[0].Action)
	assert.Equal(t, "rec-react", h.publisher.events[0].DecisionID)
}

func TestDelete_ConfirmNo(t *testing.T) {
	h := deleteHarness(t, 1)
	h.mention(decision.IntentDelete, "remove the react decision")
	h.mention(decision.IntentNoneApplicable, "no")

	assert.Empty(t, h.store.deletes)
	_, ok := h.pendingEntry()
	assert.False(t, ok)
	assert.Contains(t, h.poster.last(t), "Deletion cancelled")
}

func TestDelete_UnrelatedTextRemindsWithIdenticalPrompt(t *testing.T) {
	h := deleteHarness(t, 1)
	h.mention(decision.IntentDelete, "remove the react decision")
	prompt := h.poster.last(t)
	before, _ := h.pendingEntry()

	h.mention(decision.IntentRead, "what was that about?")

	assert.Equal(t, prompt, h.poster.last(t))
	after, ok := h.pendingEntry()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Empty(t, h.store.deletes)
}

func TestDelete_OtherThreadUnaffected(t *testing.T) {
	h := deleteHarness(t, 1)
	h.mention(decision.IntentDelete, "remove the react decision")

	other := testConversation("yes")
	other.Thread = "1700000999.000001"
	assert.False(t, h.router.Confirm(context.Background(), other))
	assert.Empty(t, h.store.deletes)
}

func TestDelete_StoreFailureClearsPending(t *testing.T) {
	h := deleteHarness(t, 1)
	h.store.deleteErr = errors.New("503")
	h.mention(decision.IntentDelete, "remove the react decision")
	h.mention(decision.IntentNoneApplicable, "confirm")

	assert.Len(t, h.store.deletes, 1)
	assert.Contains(t, h.poster.last(t), "Failed to delete the decision")
	_, ok := h.pendingEntry()
	assert.False(t, ok)
	assert.Empty(t, h.publisher.events)
}

func TestDelete_AlreadyRemoved(t *testing.T) {
	h := deleteHarness(t, 1)
	h.mention(decision.IntentDelete, "remove the react decision")
	require.NoError(t, h.store.MemoryStore.Delete(context.Background(), "rec-react"))

	h.mention(decision.IntentNoneApplicable, "yes")
	assert.Contains(t, h.poster.last(t), "had already been removed")
}

func TestDelete_ConfirmAfterExpiryKeepsRecord(t *testing.T) {
	h := deleteHarness(t, 1)
	h.mention(decision.IntentDelete, "remove the react decision")
	d, ok := h.pendingEntry()
	require.True(t, ok)

	// The entry disappears between the lookup and the answer.
	conv := testConversation("yes")
	_, ok = h.pending.Resolve(conv.key())
	require.True(t, ok)

	got := h.router.confirmDeletion(context.Background(), conv, d)
	assert.Equal(t, outcomeExpired, got.outcome)
	assert.Equal(t, msgDeletionExpired(d), got.text)
	assert.Empty(t, h.store.deletes)
	assert.Empty(t, h.publisher.events)

	records, err := h.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSweepPending_UpdatesGauge(t *testing.T) {
	h := deleteHarness(t)
	reg := pending.NewRegistry(time.Minute)
	h.router.pending = reg

	key := testConversation("").key()
	require.NoError(t, reg.Open(key, pending.Deletion{DecisionID: "rec-react", CreatedAt: time.Now().Add(-time.Hour)}))
	pendingDeletions.Set(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.router.SweepPending(ctx, 5*time.Millisecond)
	}()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(pendingDeletions) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 0, reg.Len())
	h.logs.AssertLogged(t, zapcore.InfoLevel, "expired pending deletions")
}

func TestDelete_RouteWhilePendingReminds(t *testing.T) {
	h := deleteHarness(t, 1)
	h.mention(decision.IntentDelete, "remove the react decision")
	prompt := h.poster.last(t)

	h.router.Route(context.Background(), decision.IntentDelete, testConversation("remove the react decision"))

	assert.Equal(t, prompt, h.poster.last(t))
	assert.Equal(t, 1, h.caps.Calls("related"))
}

// TestDelete_StateMachineProperty drives random conversations through one
// thread and checks the pending entry against a model of the protocol.
func TestDelete_StateMachineProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		matches := 1
		caps := &fakeCaps{}
		caps.related = func(s string, records []decision.Record) (decision.RelatedResult, error) {
			ords := make([]int, 0, matches)
			for i := 1; i <= matches; i++ {
				ords = append(ords, i)
			}
			return relatedOrdinals(ords...)(s, records)
		}
		h := newHarness(t, caps, newCountingStore(seedRecords(60)...))

		var (
			modelPending bool
			modelID      string
			wantDeletes  []string
		)
		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.SampledFrom([]string{"request", "yes", "no", "chatter"}).Draw(t, "step") {
			case "request":
				matches = rapid.IntRange(0, 3).Draw(t, "matches")
				records, err := h.store.List(context.Background())
				require.NoError(t, err)
				h.mention(decision.IntentDelete, "remove that decision")
				if !modelPending && matches == 1 {
					modelPending, modelID = true, records[0].ID
				}
			case "yes":
				h.mention(decision.IntentNoneApplicable, "yes")
				if modelPending {
					wantDeletes = append(wantDeletes, modelID)
					modelPending = false
				}
			case "no":
				h.mention(decision.IntentNoneApplicable, "no")
				modelPending = false
			case "chatter":
				h.mention(decision.IntentNoneApplicable, "hmm, what was that")
			}

			d, ok := h.pendingEntry()
			require.Equal(t, modelPending, ok)
			if ok {
				require.Equal(t, modelID, d.DecisionID)
			}
			require.Equal(t, len(wantDeletes), len(h.store.deletes))
		}
		assert.Equal(t, wantDeletes, append([]string(nil), h.store.deletes...))
		assert.Equal(t, steps, len(h.poster.all()))
	})
}
