package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextFallsBack(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fallback := slog.New(slog.NewTextHandler(&buf, nil))

	FromContext(context.Background(), fallback).Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected fallback logger to be used, got %q", buf.String())
	}
}

func TestWithAddsAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), base)
	ctx = With(ctx, nil, "user_id", "abc")
	FromContext(ctx, nil).Info("request")

	if !strings.Contains(buf.String(), "user_id=abc") {
		t.Fatalf("expected user_id attribute, got %q", buf.String())
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	t.Parallel()

	var text, jsonOut bytes.Buffer
	handler := MultiHandler(
		slog.NewTextHandler(&text, &slog.HandlerOptions{Level: slog.LevelInfo}),
		nil,
		slog.NewJSONHandler(&jsonOut, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(handler).With("component", "test")

	logger.Debug("debug only json")
	logger.Info("both")

	if strings.Contains(text.String(), "debug only json") {
		t.Fatalf("text handler should skip debug records, got %q", text.String())
	}
	if !strings.Contains(text.String(), "both") || !strings.Contains(jsonOut.String(), `"msg":"both"`) {
		t.Fatalf("expected record in both handlers, text=%q json=%q", text.String(), jsonOut.String())
	}
	if !strings.Contains(jsonOut.String(), `"component":"test"`) {
		t.Fatalf("expected attrs to propagate, got %q", jsonOut.String())
	}
}
