// Package logging provides structured logging for decisiond.
//
// Logger wraps Zap with:
//   - A Trace level (-2, below Debug)
//   - Stdout output, plus OpenTelemetry log export when a provider is given
//   - Context field injection (trace_id, slack.channel, slack.thread, request.id)
//   - Redaction of Slack tokens, signing secrets and API keys
//
// Log with context:
//
//	ctx = logging.WithConversation(ctx, "C123", "1700000000.000100")
//	logger.Info(ctx, "decision recorded", zap.String("decision.id", id))
//
// Tests use TestLogger:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "decision recorded")
//	tl.AssertLogged(t, zapcore.InfoLevel, "decision recorded")
//	tl.AssertNoSecrets(t)
package logging
