package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/raysh454/webscan/internal/logging"
)

type line struct {
	Level     string         `json:"level"`
	Msg       string         `json:"msg"`
	Component string         `json:"component"`
	Fields    map[string]any `json:"fields"`
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []line {
	t.Helper()
	var out []line
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var l line
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		out = append(out, l)
	}
	return out
}

func TestStdoutLogger_WritesJSONLines(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := logging.NewWriterLogger("test", &buf)

	logger.Info("hello", logging.Field{Key: "url", Value: "https://example.com"})
	logger.Warn("careful", logging.Field{Key: "error", Value: errors.New("boom")})

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Level != "info" || lines[0].Msg != "hello" || lines[0].Component != "test" {
		t.Errorf("unexpected first line: %+v", lines[0])
	}
	if lines[0].Fields["url"] != "https://example.com" {
		t.Errorf("expected url field, got %v", lines[0].Fields)
	}
	if lines[1].Fields["error"] != "boom" {
		t.Errorf("expected error rendered as string, got %v", lines[1].Fields["error"])
	}
}

func TestStdoutLogger_WithCarriesFieldsAndComponent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	root := logging.NewWriterLogger("root", &buf)

	child := root.With(
		logging.Field{Key: "component", Value: "executor"},
		logging.Field{Key: "scan_id", Value: "abc"},
	)
	child.Error("failed")
	root.Debug("untouched")

	lines := decodeLines(t, &buf)
	if lines[0].Component != "executor" {
		t.Errorf("expected child component executor, got %q", lines[0].Component)
	}
	if lines[0].Fields["scan_id"] != "abc" {
		t.Errorf("expected persistent scan_id, got %v", lines[0].Fields)
	}
	if lines[1].Component != "root" || lines[1].Fields["scan_id"] != nil {
		t.Errorf("parent logger must not inherit child fields: %+v", lines[1])
	}
}
