package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

type meterContextKey struct{}

// WithMeter stores a request-scoped meter in ctx, creating one when meter is nil.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterContextKey{}, meter.WithCtx(ctx))
}

func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter, ok := ctx.Value(meterContextKey{}).(sentry.Meter); ok && meter != nil {
		return meter.WithCtx(ctx)
	}
	return sentry.NewMeter(ctx).WithCtx(ctx)
}

// Operation is a traced service call. End finishes its span and counts the
// call under metric with an outcome attribute.
type Operation struct {
	span   *sentry.Span
	metric string
}

// StartOperation opens a span named "<op>.<name>" as a child of the span in
// ctx, or as a new transaction when there is none.
func StartOperation(ctx context.Context, op, name, metric string) (context.Context, *Operation) {
	if ctx == nil {
		ctx = context.Background()
	}
	span := sentry.StartSpan(
		ctx,
		op+"."+name,
		sentry.WithOpName(op),
		sentry.WithDescription(name),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	return span.Context(), &Operation{span: span, metric: metric}
}

// SetData attaches a key to the span, e.g. the order id once it is known.
func (o *Operation) SetData(key string, value any) {
	if o == nil {
		return
	}
	o.span.SetData(key, value)
}

func (o *Operation) End(err error) {
	if o == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		o.span.Status = sentry.SpanStatusInternalError
	} else {
		o.span.Status = sentry.SpanStatusOK
	}

	ctx := o.span.Context()
	MeterFromContext(ctx).Count(o.metric, 1, sentry.WithAttributes(
		attribute.String("outcome", outcome),
	))
	o.span.Finish()
}
