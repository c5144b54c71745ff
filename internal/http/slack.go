package http

import (
	"context"
	"io"
	"net/http"

	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/slack"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleSlackEvent verifies and acknowledges an Events API delivery.
// Mentions are processed after the response is sent.
func (s *Server) handleSlackEvent(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		s.logger.Warn(ctx, "failed to read event body", zap.Error(err))
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	if err := s.verifier.Verify(req.Header, body); err != nil {
		s.logger.Warn(ctx, "slack signature rejected", zap.Error(err), zap.String("ip", c.RealIP()))
		s.metrics.event(ctx, dispRejected)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	env, err := slack.ParseEnvelope(body)
	if err != nil {
		s.logger.Warn(ctx, "invalid event payload", zap.Error(err))
		s.metrics.event(ctx, dispInvalid)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	if env.Type == slack.TypeURLVerification {
		s.metrics.event(ctx, dispChallenge)
		return c.JSON(http.StatusOK, ChallengeResponse{Challenge: env.Challenge})
	}

	ctx = logging.WithEventID(ctx, env.EventID)

	// The first delivery was already acknowledged and is being handled.
	if retry := req.Header.Get(slack.HeaderRetryNum); retry != "" {
		s.logger.Info(ctx, "dropping slack retry",
			zap.String("retry_num", retry), zap.String("reason", req.Header.Get("X-Slack-Retry-Reason")))
		s.metrics.event(ctx, dispRetry)
		return c.JSON(http.StatusOK, EventResponse{Status: "ignored"})
	}

	m, ok, err := env.Mention()
	if err != nil {
		s.logger.Warn(ctx, "invalid mention event", zap.Error(err))
	} else if !ok {
		s.logger.Debug(ctx, "ignoring event", zap.String("type", env.Type))
	}
	if err != nil || !ok || m.BotID != "" {
		s.metrics.event(ctx, dispIgnored)
		return c.JSON(http.StatusOK, EventResponse{Status: "ignored"})
	}

	s.metrics.event(ctx, dispDispatched)
	s.dispatch(ctx, m)
	return c.JSON(http.StatusOK, EventResponse{Status: "ok"})
}

// dispatch runs the mention on a context detached from the request and
// bounded by the event timeout.
func (s *Server) dispatch(ctx context.Context, m slack.MentionEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.EventTimeout)
	s.inflight.Add(1)
	s.metrics.inflight.Add(ctx, 1)
	go func() {
		defer s.inflight.Done()
		defer s.metrics.inflight.Add(ctx, -1)
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error(ctx, "mention handler panicked", zap.Any("panic", p), zap.Stack("stack"))
			}
		}()
		s.handler.HandleMention(ctx, m)
	}()
}
