package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/fyrsmithlabs/decisiond/internal/http"

// disposition says what happened to one Events API delivery.
type disposition string

const (
	dispChallenge  disposition = "challenge"
	dispRejected   disposition = "rejected"
	dispInvalid    disposition = "invalid"
	dispRetry      disposition = "retry"
	dispIgnored    disposition = "ignored"
	dispDispatched disposition = "dispatched"
)

// ingressMetrics instruments the webhook surface.
type ingressMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	events   metric.Int64Counter
	inflight metric.Int64UpDownCounter
}

func newIngressMetrics(meter metric.Meter) (*ingressMetrics, error) {
	var m ingressMetrics
	var err, errs error

	m.requests, err = meter.Int64Counter("decisiond.http.requests",
		metric.WithDescription("HTTP requests by route, method and status."),
		metric.WithUnit("{request}"))
	errs = errors.Join(errs, err)

	m.latency, err = meter.Float64Histogram("decisiond.http.request.duration",
		metric.WithDescription("Time to acknowledge an HTTP request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 3))
	errs = errors.Join(errs, err)

	m.events, err = meter.Int64Counter("decisiond.slack.events",
		metric.WithDescription("Slack Events API deliveries by disposition."),
		metric.WithUnit("{event}"))
	errs = errors.Join(errs, err)

	m.inflight, err = meter.Int64UpDownCounter("decisiond.slack.mentions.inflight",
		metric.WithDescription("Mentions acknowledged but not yet fully handled."),
		metric.WithUnit("{mention}"))
	errs = errors.Join(errs, err)

	if errs != nil {
		return nil, errs
	}
	return &m, nil
}

func (m *ingressMetrics) event(ctx context.Context, d disposition) {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("disposition", string(d))))
}

// middleware records request counts and latency. The status comes from the
// handler error when there is one, since the response is not written yet.
func (m *ingressMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			status = http.StatusInternalServerError
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}

		ctx := c.Request().Context()
		attrs := metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("method", c.Request().Method),
			attribute.Int("status", status),
		)
		m.requests.Add(ctx, 1, attrs)
		m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
		return err
	}
}
