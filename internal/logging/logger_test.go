package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, level, false))

	logger = NewComponentLogger(logger, "amis")
	logger.Info("record resolved", String(FieldRecordID, "R-1001"), Int("images", 3))

	line := buf.String()
	if !strings.Contains(line, "INFO amis: record resolved") {
		t.Errorf("line = %q", line)
	}
	if !strings.Contains(line, "record_id=R-1001") || !strings.Contains(line, "images=3") {
		t.Errorf("fields missing: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, level, false))

	logger.Warn("skipping image", Error(errors.New("bad header")))

	if !strings.Contains(buf.String(), `error="bad header"`) {
		t.Errorf("line = %q", buf.String())
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, level, false))

	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("info record emitted below warn level: %q", buf.String())
	}
	logger.Error("loud")
	if !strings.Contains(buf.String(), "ERROR loud") {
		t.Errorf("line = %q", buf.String())
	}
}

func TestJSONHandlerEmitsStandardKeys(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, level, false))

	logger.Info("run complete", String(FieldRunID, "abc"), Int("warnings", 1))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if record["msg"] != "run complete" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["level"] != "info" {
		t.Errorf("level = %v", record["level"])
	}
	if record["run_id"] != "abc" {
		t.Errorf("run_id = %v", record["run_id"])
	}
	if _, ok := record["ts"]; !ok {
		t.Error("ts key missing")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-1")
	ctx = WithRecordID(ctx, "R-1001")
	ctx = WithStage(ctx, "fetching")

	fields := ContextFields(ctx)
	got := make(map[string]string, len(fields))
	for _, field := range fields {
		got[field.Key] = field.Value.String()
	}
	if got[FieldRunID] != "run-1" || got[FieldRecordID] != "R-1001" || got[FieldStage] != "fetching" {
		t.Errorf("fields = %v", got)
	}
}
