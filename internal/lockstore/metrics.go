package lockstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	queryLabels   = []string{"query", "success", "driver"}
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taco",
		Subsystem: "lockstore",
		Name:      "query_duration_seconds",
		Help:      "Lock store round trip duration for the noted query.",
	}, queryLabels)
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taco",
		Subsystem: "lockstore",
		Name:      "query_total",
		Help:      "Lock store round trips for the noted query.",
	}, queryLabels)
)

var tracer = otel.Tracer("github.com/testbench-tools/taco/internal/lockstore")

// observe starts a span and a timer for one store round trip. The returned
// func must be deferred with a pointer to the method's error result.
func (s *Store) observe(ctx context.Context, query string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	attrs = append(attrs,
		attribute.String("db.system", s.driver.name),
		attribute.String("taco.query", query),
	)
	ctx, span := tracer.Start(ctx, "lockstore."+query,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	labels := prometheus.Labels{"query": query, "driver": s.driver.name}
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		queryDuration.With(labels).Observe(v)
	}))
	return ctx, func(err *error) {
		failed := err != nil && *err != nil
		// A missing record is an answer, not a failed round trip.
		labels["success"] = strconv.FormatBool(!failed || errors.Is(*err, ErrNotFound))
		timer.ObserveDuration()
		queryTotal.With(labels).Inc()
		if failed {
			span.RecordError(*err)
			span.SetStatus(codes.Error, query+" failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
