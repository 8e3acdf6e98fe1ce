package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})
	log.With(String("component", "scene")).Info(context.Background(), "mounted",
		Int("pins", 3),
		Float("tile_deg", 1.5),
		Bool("cached", true),
		Duration("elapsed", time.Second),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":       "mounted",
		"component": "scene",
		"pins":      float64(3),
		"tile_deg":  1.5,
		"cached":    true,
		"error":     "boom",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Fatalf("field %s = %v, want %v", k, rec[k], v)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatalf("warn not logged")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		" WARNING": slog.LevelWarn,
		"Error":    slog.LevelError,
		"":         slog.LevelInfo,
		"verbose":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestErrNil(t *testing.T) {
	if f := Err(nil); f.Key != "error" || f.Value != "" {
		t.Fatalf("Err(nil) = %+v", f)
	}
}
