//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"telegram-credit-miniapp/internal/config"
)

func TestWith_AttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := newWithWriter(config.LogConfig{Level: "info", Format: "json"}, false, &buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithTgID(ctx, 42)
	ctx = WithAction(ctx, "consume")
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a json line, got %q: %v", buf.String(), err)
	}
	if line["trace_id"] != "trace-1" || line["action"] != "consume" {
		t.Errorf("missing context fields: %v", line)
	}
	if line["tg_id"] != float64(42) {
		t.Errorf("expected tg_id 42, got %v", line["tg_id"])
	}
	if TraceIDFrom(ctx) != "trace-1" {
		t.Errorf("TraceIDFrom returned %q", TraceIDFrom(ctx))
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.LogConfig{Level: "warn"}, false, &buf)
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Fatal("warn should be written")
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("123456:ABCDEFGHIJ", false); got != "1234...IJ" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("short values must be fully hidden, got %q", got)
	}
	if got := Redact("visible", true); got != "visible" {
		t.Errorf("dev mode must not redact, got %q", got)
	}
}
