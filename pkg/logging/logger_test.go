package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	go_json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := go_json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	return entry
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  logrus.Level
	}{
		{LogLevelDebug, logrus.DebugLevel},
		{LogLevelInfo, logrus.InfoLevel},
		{LogLevelWarn, logrus.WarnLevel},
		{LogLevelError, logrus.ErrorLevel},
		{"verbose", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.level); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LogLevelInfo, &buf)

	LogWithRequestID(logger, "req-1").Info("hello")

	entry := decodeLine(t, &buf)
	for key, want := range map[string]string{
		"message":    "hello",
		"level":      "info",
		"service":    ServiceName,
		"request_id": "req-1",
	} {
		if got, _ := entry[key].(string); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp field missing")
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LogLevelWarn, &buf)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info entry written at warn level: %q", buf.String())
	}
}

func TestLogError_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LogLevelInfo, &buf)

	LogError(logger, errors.New("boom"), "dispatch", map[string]interface{}{"target": "tag:post"})

	entry := decodeLine(t, &buf)
	if entry["error"] != "boom" || entry["context"] != "dispatch" || entry["target"] != "tag:post" {
		t.Errorf("unexpected entry: %v", entry)
	}
}
