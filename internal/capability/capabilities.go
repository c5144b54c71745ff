package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/decisiond/internal/decision"
	"go.uber.org/zap"
)

// ClassifyIntent maps an utterance to an intent.
func (l *LLM) ClassifyIntent(ctx context.Context, utterance string) (decision.Intent, error) {
	var resp struct {
		Intent string `json:"intent"`
	}
	if err := l.call(ctx, capIntent, intentPrompt(utterance), &resp); err != nil {
		return decision.IntentNoneApplicable, err
	}
	return decision.ParseIntent(resp.Intent), nil
}

// Extract returns the decision stated in thread. A model failure falls
// back to the heuristic extractor; a low-confidence answer does not.
func (l *LLM) Extract(ctx context.Context, thread string) (decision.Candidate, error) {
	var resp struct {
		Title      string `json:"title"`
		Summary    string `json:"summary"`
		Tag        string `json:"tag"`
		Confidence int    `json:"confidence"`
		Reason     string `json:"reason"`
	}
	if err := l.call(ctx, capExtract, extractPrompt(thread), &resp); err != nil {
		if ctx.Err() != nil {
			return decision.Candidate{}, err
		}
		l.logger.Warn(ctx, "extraction failed, using heuristic fallback", zap.Error(err))
		return l.heuristic.Extract(thread)
	}

	if resp.Confidence < l.cfg.ExtractionThreshold {
		reason := strings.TrimSpace(resp.Reason)
		if reason == "" {
			reason = "no clear decision was found in this thread"
		}
		return decision.Candidate{}, &decision.LowConfidenceError{Reason: reason, Confidence: resp.Confidence}
	}
	if strings.TrimSpace(resp.Title) == "" {
		return decision.Candidate{}, &decision.LowConfidenceError{Reason: "the extracted decision has no title", Confidence: resp.Confidence}
	}

	tag := strings.ToLower(strings.TrimSpace(resp.Tag))
	if tag == "" {
		tag = l.heuristic.Tag(thread)
	}
	return decision.Candidate{
		Title:      decision.TruncateTitle(resp.Title),
		Summary:    strings.TrimSpace(resp.Summary),
		Tag:        tag,
		Confidence: resp.Confidence,
	}, nil
}

// Compare scores c against existing. MatchedID is empty unless the model
// named a position inside existing.
func (l *LLM) Compare(ctx context.Context, c decision.Candidate, existing []decision.Record) (decision.Similarity, error) {
	if len(existing) == 0 {
		return decision.Similarity{}, nil
	}
	var resp struct {
		IsSimilar      bool `json:"is_similar"`
		Score          int  `json:"score"`
		MatchedOrdinal int  `json:"matched_ordinal"`
	}
	if err := l.call(ctx, capCompare, comparePrompt(c, existing), &resp); err != nil {
		return decision.Similarity{}, err
	}

	sim := decision.Similarity{IsSimilar: resp.IsSimilar, Score: resp.Score}
	if resp.MatchedOrdinal >= 1 && resp.MatchedOrdinal <= len(existing) {
		sim.MatchedID = existing[resp.MatchedOrdinal-1].ID
	} else if resp.MatchedOrdinal != 0 {
		l.logger.Warn(ctx, "comparator returned unknown ordinal",
			zap.Int("ordinal", resp.MatchedOrdinal), zap.Int("records", len(existing)))
	}
	return sim, nil
}

// FindRelated returns the records related to thread, by ordinal into records.
func (l *LLM) FindRelated(ctx context.Context, thread string, records []decision.Record) (decision.RelatedResult, error) {
	if len(records) == 0 {
		return decision.RelatedResult{}, nil
	}
	var resp decision.RelatedResult
	if err := l.call(ctx, capRelated, relatedPrompt(thread, records), &resp); err != nil {
		return decision.RelatedResult{}, err
	}
	return resp, nil
}

// ResolveUpdateTarget picks the record to change among candidates.
// Refusals and answers below the update threshold are returned as
// *decision.RefusalError.
func (l *LLM) ResolveUpdateTarget(ctx context.Context, thread string, candidates []decision.Record) (decision.UpdateTarget, error) {
	if len(candidates) == 0 {
		return decision.UpdateTarget{}, &decision.RefusalError{Message: "I couldn't find a related decision to update."}
	}
	var resp struct {
		DecisionID string `json:"decision_id"`
		Changes    struct {
			Title   *string `json:"title"`
			Summary *string `json:"summary"`
			Tag     *string `json:"tag"`
		} `json:"changes"`
		Confidence int    `json:"confidence"`
		Error      string `json:"error"`
	}
	if err := l.call(ctx, capUpdate, updatePrompt(thread, candidates), &resp); err != nil {
		return decision.UpdateTarget{}, err
	}

	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return decision.UpdateTarget{}, &decision.RefusalError{Message: msg}
	}
	if resp.Confidence < l.cfg.UpdateThreshold {
		return decision.UpdateTarget{}, &decision.RefusalError{Message: fmt.Sprintf(
			"I'm not confident enough about which decision to update (confidence %d%%). Could you be more specific?",
			resp.Confidence)}
	}

	return decision.UpdateTarget{
		DecisionID: strings.TrimSpace(resp.DecisionID),
		Changes: decision.Fields{
			Title:   resp.Changes.Title,
			Summary: resp.Changes.Summary,
			Tag:     resp.Changes.Tag,
		},
		Confidence: resp.Confidence,
	}, nil
}

// Summarize returns a structured summary of thread. Refusals and answers
// below the summary threshold are returned as *decision.RefusalError.
func (l *LLM) Summarize(ctx context.Context, thread string) (decision.Summary, error) {
	var resp struct {
		decision.Summary
		Error string `json:"error"`
	}
	if err := l.call(ctx, capSummarize, summarizePrompt(thread), &resp); err != nil {
		return decision.Summary{}, err
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return decision.Summary{}, &decision.RefusalError{Message: msg}
	}
	if resp.Confidence < l.cfg.SummaryThreshold {
		return decision.Summary{}, &decision.RefusalError{Message: fmt.Sprintf(
			"I'm not confident enough to summarize this thread (confidence %d%%).", resp.Confidence)}
	}
	return resp.Summary, nil
}
