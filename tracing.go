package apiclient

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/michaelayoade/dotmac-shared-sub011"

func defaultTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func (d *Dispatcher) startSpan(ctx context.Context, method, target string) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, "apiclient."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if status, ok := StatusCode(err); ok {
			span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
	}
	span.End()
}

func addSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// instrumentHTTPClient returns doer with its transport wrapped by otelhttp.
// Transports other than *http.Client are returned unchanged.
func instrumentHTTPClient(doer HTTPDoer, tp trace.TracerProvider) HTTPDoer {
	hc, ok := doer.(*http.Client)
	if !ok || hc == nil {
		return doer
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *hc
	clone.Transport = otelhttp.NewTransport(base, otelhttp.WithTracerProvider(tp))
	return &clone
}
