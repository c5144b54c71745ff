// Package capability implements the model-backed capabilities: intent
// classification, decision extraction, comparison, relatedness,
// update-target resolution and summarization.
//
// Every capability sends one prompt through a langchaingo llms.Model,
// validates the JSON answer against a schema and converts it to a
// decision type. Calls are read-only, so a failed call is retried once.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/config"
	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxAttempts    = 2
	retryBackoff   = 500 * time.Millisecond
	defaultTimeout = 30 * time.Second
)

// Config tunes the capability calls.
type Config struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 disables limiting
	MaxTokens int

	// Acceptance thresholds, 0-100.
	ExtractionThreshold int
	UpdateThreshold     int
	SummaryThreshold    int
}

// DefaultConfig returns the default thresholds and limits.
func DefaultConfig() Config {
	return Config{
		Timeout:             defaultTimeout,
		RateLimit:           2,
		MaxTokens:           1024,
		ExtractionThreshold: 50,
		UpdateThreshold:     70,
		SummaryThreshold:    50,
	}
}

// NewModel builds the provider client selected in cfg.
func NewModel(cfg config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.APIKey.Value())}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey.Value())}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// LLM implements every capability over one model.
type LLM struct {
	model     llms.Model
	cfg       Config
	limiter   *rate.Limiter
	schemas   *schemas
	heuristic *Heuristic
	logger    *logging.Logger
	backoff   time.Duration
}

// New creates the capability set.
func New(model llms.Model, cfg Config, logger *logging.Logger) (*LLM, error) {
	if model == nil {
		return nil, errors.New("model required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &LLM{
		model:     model,
		cfg:       cfg,
		limiter:   limiter,
		schemas:   s,
		heuristic: NewHeuristic(),
		logger:    logger.Named("capability"),
		backoff:   retryBackoff,
	}, nil
}

// call sends prompt and decodes the validated answer into out.
// Transport and schema failures are retried once.
func (l *LLM) call(ctx context.Context, name, prompt string, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(l.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			l.logger.Debug(ctx, "retrying capability call",
				zap.String("capability", name), zap.Error(lastErr))
		}

		lastErr = l.attempt(ctx, name, prompt, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (l *LLM) attempt(ctx context.Context, name, prompt string, out any) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	opts := []llms.CallOption{llms.WithTemperature(0)}
	if l.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(l.cfg.MaxTokens))
	}

	l.logger.Trace(ctx, "capability prompt", zap.String("capability", name), zap.String("prompt", prompt))
	raw, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, opts...)
	if err != nil {
		return fmt.Errorf("%s: model call failed: %w", name, err)
	}
	l.logger.Trace(ctx, "capability response", zap.String("capability", name), zap.String("response", raw))

	body := stripFences(raw)
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return &decision.SchemaError{Capability: name, Err: fmt.Errorf("not JSON: %w", err)}
	}
	if err := l.schemas.validate(name, doc); err != nil {
		return &decision.SchemaError{Capability: name, Err: err}
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return &decision.SchemaError{Capability: name, Err: err}
	}
	return nil
}

// stripFences returns the JSON object inside a model answer, dropping
// markdown code fences and surrounding prose.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}
