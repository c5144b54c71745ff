package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/pending"
	"github.com/fyrsmithlabs/decisiond/internal/recordstore"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

// fakeCaps answers capability calls from per-test functions and counts calls.
type fakeCaps struct {
	mu    sync.Mutex
	calls map[string]int

	extract   func(thread string) (decision.Candidate, error)
	compare   func(c decision.Candidate, existing []decision.Record) (decision.Similarity, error)
	related   func(thread string, records []decision.Record) (decision.RelatedResult, error)
	resolve   func(thread string, candidates []decision.Record) (decision.UpdateTarget, error)
	summarize func(thread string) (decision.Summary, error)

	// resolveInput is the candidate set of the last ResolveUpdateTarget call.
	resolveInput []decision.Record
}

func (f *fakeCaps) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeCaps) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCaps) Extract(_ context.Context, thread string) (decision.Candidate, error) {
	f.count("extract")
	if f.extract == nil {
		return decision.Candidate{}, errors.New("unexpected extract call")
	}
	return f.extract(thread)
}

func (f *fakeCaps) Compare(_ context.Context, c decision.Candidate, existing []decision.Record) (decision.Similarity, error) {
	f.count("compare")
	if f.compare == nil {
		return decision.Similarity{}, errors.New("unexpected compare call")
	}
	return f.compare(c, existing)
}

func (f *fakeCaps) FindRelated(_ context.Context, thread string, records []decision.Record) (decision.RelatedResult, error) {
	f.count("related")
	if f.related == nil {
		return decision.RelatedResult{}, errors.New("unexpected find related call")
	}
	return f.related(thread, records)
}

func (f *fakeCaps) ResolveUpdateTarget(_ context.Context, thread string, candidates []decision.Record) (decision.UpdateTarget, error) {
	f.count("resolve")
	f.mu.Lock()
	f.resolveInput = append([]decision.Record(nil), candidates...)
	f.mu.Unlock()
	if f.resolve == nil {
		return decision.UpdateTarget{}, errors.New("unexpected resolve call")
	}
	return f.resolve(thread, candidates)
}

func (f *fakeCaps) Summarize(_ context.Context, thread string) (decision.Summary, error) {
	f.count("summarize")
	if f.summarize == nil {
		return decision.Summary{}, errors.New("unexpected summarize call")
	}
	return f.summarize(thread)
}

// relatedOrdinals answers FindRelated with the given ordinals.
func relatedOrdinals(ords ...int) func(string, []decision.Record) (decision.RelatedResult, error) {
	return func(_ string, records []decision.Record) (decision.RelatedResult, error) {
		var res decision.RelatedResult
		for _, o := range ords {
			item := decision.Related{Ordinal: o}
			if o >= 1 && o <= len(records) {
				item.Title = records[o-1].Title
			}
			res.Items = append(res.Items, item)
		}
		return res, nil
	}
}

// countingStore wraps a memory store, counts mutations and injects errors.
type countingStore struct {
	*recordstore.MemoryStore

	mu      sync.Mutex
	lists   int
	creates int
	updates []string
	deletes []string

	listErr   error
	createErr error
	updateErr error
	deleteErr error
	link      func(id string) string
}

func newCountingStore(seed ...decision.Record) *countingStore {
	return &countingStore{MemoryStore: recordstore.NewMemoryStore(seed...)}
}

func (s *countingStore) List(ctx context.Context) ([]decision.Record, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.List(ctx)
}

func (s *countingStore) Create(ctx context.Context, f decision.Fields) (string, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	return s.MemoryStore.Create(ctx, f)
}

func (s *countingStore) Update(ctx context.Context, id string, f decision.Fields) error {
	s.mu.Lock()
	s.updates = append(s.updates, id)
	s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.Update(ctx, id, f)
}

func (s *countingStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, id)
	s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, id)
}

func (s *countingStore) Link(id string) string {
	if s.link != nil {
		return s.link(id)
	}
	return ""
}

func (s *countingStore) mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates + len(s.updates) + len(s.deletes)
}

type post struct {
	channel, thread, text string
}

type recordingPoster struct {
	mu    sync.Mutex
	posts []post
	err   error
}

func (p *recordingPoster) PostMessage(_ context.Context, channel, thread, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, post{channel, thread, text})
	return p.err
}

func (p *recordingPoster) all() []post {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]post(nil), p.posts...)
}

// last returns the most recent message.
func (p *recordingPoster) last(tb testingT) string {
	posts := p.all()
	require.NotEmpty(tb, posts)
	return posts[len(posts)-1].text
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

// testingT is satisfied by *testing.T and *rapid.T.
type testingT = require.TestingT

type harness struct {
	router    *Router
	caps      *fakeCaps
	store     *countingStore
	poster    *recordingPoster
	publisher *recordingPublisher
	logs      *logging.TestLogger
	pending   *pending.Registry
}

func newHarness(tb testingT, caps *fakeCaps, store *countingStore) *harness {
	h := &harness{
		caps:      caps,
		store:     store,
		poster:    &recordingPoster{},
		publisher: &recordingPublisher{},
		logs:      logging.NewTestLogger(),
		pending:   pending.NewRegistry(0),
	}
	r, err := NewRouter(Deps{
		Capabilities: caps,
		Store:        store,
		Poster:       h.poster,
		Pending:      h.pending,
		Events:       h.publisher,
		Logger:       h.logs.Logger,
	})
	require.NoError(tb, err)
	r.now = func() time.Time { return testNow }
	h.router = r
	return h
}

func testConversation(text string) Conversation {
	return Conversation{
		Channel:     "C123",
		Thread:      "1700000000.000100",
		ChannelName: "eng-decisions",
		ThreadURL:   "https://example.slack.com/archives/C123/p1700000000000100",
		ThreadText:  text,
		Utterance:   text,
	}
}

func reactRecord() decision.Record {
	return decision.Record{
		ID:            "rec-react",
		Title:         "Use React for frontend",
		Summary:       "Adopted React.",
		Tag:           "frontend",
		SourceThread:  "1600000000.000001",
		SourceChannel: "C999",
		RecordedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func seedRecords(n int) []decision.Record {
	out := make([]decision.Record, n)
	for i := range out {
		out[i] = decision.Record{
			ID:      "rec-" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Title:   "Decision " + string(rune('A'+i%26)) + string(rune('a'+i/26)),
			Summary: "Summary of decision",
			Tag:     "process",
		}
	}
	return out
}
