package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("github.com/arthaus/storefront/internal/platform/observability")
	meter  = otel.Meter("github.com/arthaus/storefront/internal/platform/observability")

	remoteCallFailures metric.Int64Counter
)

func init() {
	var err error
	remoteCallFailures, err = meter.Int64Counter("storefront.remote_call.failures",
		metric.WithDescription("Remote storefront API calls that resulted in an error."))
	if err != nil {
		remoteCallFailures = nil
	}
}

// StartRemoteCall opens a client span for one outbound API call.
func StartRemoteCall(ctx context.Context, operation, method, route string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, operation, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", SanitizeMethod(method)),
		attribute.String("url.path", SanitizeRoute(route)),
	)
	return ctx, span
}

// EndRemoteCall records the outcome on the span and the failure counter.
func EndRemoteCall(ctx context.Context, span trace.Span, operation string, status int, err error) {
	if span != nil {
		if status > 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	if err != nil && remoteCallFailures != nil {
		remoteCallFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Int("status", status),
		))
	}
}
