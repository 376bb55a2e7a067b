package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithOptions(Options{Format: "json", Writer: &buf}); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("store").Info(context.Background(), "workout added", String("id", "42"), Float64("distance", 5))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "workout added" || line["id"] != "42" || line["component"] != "store" {
		t.Errorf("unexpected record: %v", line)
	}
	if src, _ := line["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected caller to point at the test, got %q", src)
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithOptions(Options{Writer: &buf}); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer SetLevel(0)

	l := Get().With(Bool("test", true))
	l.Info(context.Background(), "hidden")
	l.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("level filter not applied: %q", out)
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLoggerUnknownFormat(t *testing.T) {
	if err := InitWithOptions(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNop(t *testing.T) {
	Nop().Error(context.Background(), "discarded", Error(nil))
}
