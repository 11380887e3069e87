package db

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/logging"
)

type queryStartContextKey struct{}

type queryStart struct {
	query string
	at    time.Time
	span  *sentry.Span
}

const slowQueryThreshold = 250 * time.Millisecond

// queryTracer logs every statement at debug level and slow or failed
// statements at warn level, using the request logger when present. Inside a
// traced request each statement also becomes a db.query span.
type queryTracer struct {
	logger *slog.Logger
}

func newQueryTracer(logger *slog.Logger) *queryTracer {
	return &queryTracer{logger: logger.With("component", "db")}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	start := queryStart{
		query: normalizeQuery(data.SQL),
		at:    time.Now(),
	}

	if sentry.SpanFromContext(ctx) != nil {
		span := sentry.StartSpan(
			ctx,
			"db.query",
			sentry.WithDescription(start.query),
			sentry.WithSpanOrigin(sentry.SpanOriginManual),
		)
		span.SetData("db.system", "postgresql")
		if operation := queryOperation(start.query); operation != "" {
			span.SetData("db.operation", operation)
		}
		start.span = span
		ctx = span.Context()
	}

	return context.WithValue(ctx, queryStartContextKey{}, start)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartContextKey{}).(queryStart)
	if !ok {
		return
	}

	if start.span != nil {
		if data.Err != nil {
			start.span.Status = sentry.SpanStatusInternalError
			start.span.SetData("db.error", data.Err.Error())
		} else {
			start.span.Status = sentry.SpanStatusOK
		}
		if rowsAffected := data.CommandTag.RowsAffected(); rowsAffected >= 0 {
			start.span.SetData("db.rows_affected", rowsAffected)
		}
		start.span.Finish()
	}

	logger := logging.FromContext(ctx, t.logger)
	elapsed := time.Since(start.at)
	attrs := []any{
		"operation", queryOperation(start.query),
		"duration_ms", elapsed.Milliseconds(),
		"rows_affected", data.CommandTag.RowsAffected(),
	}

	switch {
	case data.Err != nil:
		logger.Warn("query failed", append(attrs, "query", start.query, "error", data.Err)...)
	case elapsed >= slowQueryThreshold:
		logger.Warn("slow query", append(attrs, "query", start.query)...)
	default:
		logger.Debug("query", append(attrs, "query", start.query)...)
	}
}

func normalizeQuery(query string) string {
	normalized := strings.TrimSpace(query)
	if normalized == "" {
		return "sql.query"
	}

	normalized = strings.Join(strings.Fields(normalized), " ")
	const maxLen = 512
	if len(normalized) > maxLen {
		return normalized[:maxLen]
	}
	return normalized
}

func queryOperation(query string) string {
	if query == "" {
		return ""
	}

	parts := strings.Fields(query)
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[0])
}
