package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: "debug", Output: buf, Format: "json"})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithTenantID(ctx, "sppg-1")

	log.Error(ctx, "boom", errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-123"`) {
		t.Fatalf("expected request_id to be preserved; entry=%s", out)
	}
	if !strings.Contains(out, `"tenant_id":"sppg-1"`) {
		t.Fatalf("expected tenant_id to be preserved; entry=%s", out)
	}
	if !strings.Contains(out, `"stack"`) {
		t.Fatalf("expected stack trace on error; entry=%s", out)
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})
	log.Warn(context.Background(), "no stack")
	if strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("did not expect stack when warn stack disabled: %s", buf.String())
	}

	buf.Reset()
	log = New(Options{ServiceName: "test", Output: buf, WarnStack: true, Format: "json"})
	log.Warn(context.Background(), "with stack")
	if !strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("expected stack when warn stack enabled: %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug suppressed at info level, got %s", buf.String())
	}
}

func TestSensitiveFieldsAreRedacted(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Environment: "prod", Output: buf, Format: "json"})

	ctx := log.WithFields(context.Background(), map[string]any{
		"Authorization": "Bearer abc",
		"db_dsn":        "postgres://u:p@h/db",
		"allocation_id": "alloc-1",
	})
	ctx = log.WithField(ctx, "jwt_token", "xyz")
	log.Info(ctx, "hello")

	out := buf.String()
	for _, leaked := range []string{"Bearer abc", "postgres://", "xyz"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("expected %q to be redacted; entry=%s", leaked, out)
		}
	}
	if !strings.Contains(out, `"allocation_id":"alloc-1"`) {
		t.Fatalf("expected ordinary fields to pass through; entry=%s", out)
	}
	if !strings.Contains(out, `"env":"prod"`) {
		t.Fatalf("expected env field; entry=%s", out)
	}
}

func TestNestedSensitiveFieldsAreRedacted(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})

	fields := map[string]any{
		"request": map[string]any{"password": "hunter2", "path": "/v1/allocations"},
	}
	log.Info(log.WithFields(context.Background(), fields), "nested")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("expected nested password to be redacted; entry=%s", out)
	}
	if !strings.Contains(out, `"path":"/v1/allocations"`) {
		t.Fatalf("expected nested ordinary field; entry=%s", out)
	}
	if fields["request"].(map[string]any)["password"] != "hunter2" {
		t.Fatal("redaction must not mutate the caller's map")
	}
}
