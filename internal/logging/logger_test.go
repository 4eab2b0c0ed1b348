package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "AuthPage", "debug")
	logger.Debug("hello", "user_id", "u-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "AuthPage" || entry["user_id"] != "u-1" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}

func TestNewWithWriterFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "", "loud")
	logger.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("debug line should be filtered at info level: %s", buf.String())
	}
	logger.Info("kept")
	if buf.Len() == 0 {
		t.Fatalf("expected info line")
	}
}
