package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// TestPrettyLogger checks the pretty handler emits indented JSON with the
// standard fields.
func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.Info("statement_prepared", "kind", "SELECT")
	output := buf.String()

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("Output is not valid JSON: %v\nOutput was: %s", err, output)
	}
	if result["msg"] != "statement_prepared" {
		t.Errorf("Expected message 'statement_prepared', got '%v'", result["msg"])
	}
	if result["kind"] != "SELECT" {
		t.Errorf("Expected kind 'SELECT', got '%v'", result["kind"])
	}
	if result["level"] != "INFO" {
		t.Errorf("Expected level 'INFO', got '%v'", result["level"])
	}
	if !strings.Contains(output, "\n  \"") {
		t.Errorf("Expected indented output, got %q", output)
	}
}

func TestPrettyLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered, got %q", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), `"kept"`) {
		t.Errorf("Expected warn record, got %q", buf.String())
	}
}

func TestPrettyLogger_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyJSONHandler(&buf, nil)).
		With("dialect", "mysql").
		WithGroup("db").
		With("version", "8.0.36")

	logger.Info("query_executed", "rows", 3)

	var result map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	want := map[string]interface{}{
		"dialect":    "mysql",
		"db.version": "8.0.36",
		"db.rows":    float64(3),
	}
	for k, v := range want {
		if result[k] != v {
			t.Errorf("%s = %v, want %v", k, result[k], v)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		level   string
		check   func(string) bool
		wantErr bool
	}{
		{format: "json", level: "debug", check: func(s string) bool { return strings.HasPrefix(s, `{"time":`) }},
		{format: "text", level: "info", check: func(s string) bool { return strings.Contains(s, "msg=hello") }},
		{format: "pretty", level: "", check: func(s string) bool { return strings.HasPrefix(s, "{\n") }},
		{format: "xml", level: "info", wantErr: true},
		{format: "json", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(tt.format, tt.level, &buf)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			logger.Info("hello")
			if !tt.check(buf.String()) {
				t.Errorf("unexpected output %q", buf.String())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDiscard(t *testing.T) {
	if Discard.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard should drop every level")
	}
}
