// Package intake turns an app_mention into a routed workflow run: it
// serializes events per thread, checks for a pending delete confirmation,
// rebuilds the thread text, redacts credentials and classifies intent.
package intake

import (
	"context"
	"errors"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/scrub"
	"github.com/fyrsmithlabs/decisiond/internal/slack"
	"github.com/fyrsmithlabs/decisiond/internal/workflow"
	"go.uber.org/zap"
)

// Chat is the part of the Slack Web API the processor reads from.
type Chat interface {
	ThreadMessages(ctx context.Context, channel, thread string) ([]slack.Message, error)
	ChannelName(ctx context.Context, channel string) (string, error)
	Permalink(ctx context.Context, channel, ts string) (string, error)
	BotUserID(ctx context.Context) (string, error)
}

// Classifier maps an utterance to an intent.
type Classifier interface {
	ClassifyIntent(ctx context.Context, utterance string) (decision.Intent, error)
}

// Router runs workflows.
type Router interface {
	Route(ctx context.Context, intent decision.Intent, conv workflow.Conversation)
	Confirm(ctx context.Context, conv workflow.Conversation) bool
}

// Processor handles mention events.
type Processor struct {
	chat       Chat
	classifier Classifier
	router     Router
	logger     *logging.Logger
	scrubber   *scrub.Scrubber
	locks      *keyedMutex
}

// Option configures a Processor.
type Option func(*Processor)

// WithScrubber redacts credentials from the utterance and thread text
// before classification and routing.
func WithScrubber(s *scrub.Scrubber) Option {
	return func(p *Processor) { p.scrubber = s }
}

// NewProcessor creates a processor.
func NewProcessor(chat Chat, classifier Classifier, router Router, logger *logging.Logger, opts ...Option) (*Processor, error) {
	if chat == nil || classifier == nil || router == nil {
		return nil, errors.New("intake: chat, classifier and router are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Processor{
		chat:       chat,
		classifier: classifier,
		router:     router,
		logger:     logger.Named("intake"),
		locks:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// HandleMention processes one mention to completion. Mentions in the same
// thread are handled one at a time, in arrival order at the lock.
func (p *Processor) HandleMention(ctx context.Context, m slack.MentionEvent) {
	thread := m.Thread()
	ctx = logging.WithConversation(ctx, m.Channel, thread)

	unlock := p.locks.Lock(m.Channel + "/" + thread)
	defer unlock()

	conv := workflow.Conversation{
		Channel:   m.Channel,
		Thread:    thread,
		Utterance: slack.StripMentions(m.Text),
	}

	// A reply to a confirmation prompt is not classified.
	if p.router.Confirm(ctx, conv) {
		return
	}
	conv.Utterance = p.scrub(ctx, "utterance", conv.Utterance)

	intent, err := p.classifier.ClassifyIntent(ctx, conv.Utterance)
	if err != nil {
		p.logger.Error(ctx, "intent classification failed", zap.Error(err))
		intent = decision.IntentNoneApplicable
	}
	p.logger.Debug(ctx, "intent classified", zap.String("intent", string(intent)))

	p.router.Route(ctx, intent, p.withThread(ctx, conv, m))
}

// withThread fills in the thread text, channel name and permalink.
// Failed lookups fall back to the utterance, the channel id and no link.
func (p *Processor) withThread(ctx context.Context, conv workflow.Conversation, m slack.MentionEvent) workflow.Conversation {
	conv.ThreadText = p.scrub(ctx, "thread", p.threadText(ctx, m, conv.Utterance))

	conv.ChannelName = m.Channel
	if name, err := p.chat.ChannelName(ctx, m.Channel); err != nil {
		p.logger.Warn(ctx, "channel name lookup failed", zap.Error(err))
	} else if name != "" {
		conv.ChannelName = name
	}

	if link, err := p.chat.Permalink(ctx, m.Channel, conv.Thread); err != nil {
		p.logger.Warn(ctx, "permalink lookup failed", zap.Error(err))
	} else {
		conv.ThreadURL = link
	}
	return conv
}

func (p *Processor) scrub(ctx context.Context, field, text string) string {
	res := p.scrubber.Scrub(text)
	if res.Redacted() {
		p.logger.Warn(ctx, "redacted credentials from conversation text",
			zap.String("field", field),
			zap.Strings("rules", res.RuleIDs()),
			zap.Int("findings", len(res.Findings)),
		)
	}
	return res.Text
}

func (p *Processor) threadText(ctx context.Context, m slack.MentionEvent, utterance string) string {
	msgs, err := p.chat.ThreadMessages(ctx, m.Channel, m.Thread())
	if err != nil {
		p.logger.Warn(ctx, "thread history unavailable, using mention text", zap.Error(err))
		return utterance
	}

	botID, err := p.chat.BotUserID(ctx)
	if err != nil {
		p.logger.Warn(ctx, "bot user lookup failed", zap.Error(err))
	}

	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.BotID != "" || (botID != "" && msg.User == botID) {
			continue
		}
		text := slack.StripMentions(msg.Text)
		if text == "" {
			continue
		}
		if msg.User != "" {
			text = "<" + msg.User + ">: " + text
		}
		lines = append(lines, text)
	}
	if len(lines) == 0 {
		return utterance
	}
	return strings.Join(lines, "\n")
}
