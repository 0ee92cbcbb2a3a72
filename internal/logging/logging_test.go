package logging

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestConsoleLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.Info(ctx, "shown", String("sat", "NAVSTAR 43"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record leaked at info level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, `sat="NAVSTAR 43"`) {
		t.Fatalf("info record missing: %q", out)
	}
}

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "trace", Output: &buf})
	log.Trace(context.Background(), "rise above 5°")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Fatalf("trace record not labelled TRACE: %q", buf.String())
	}
}

func TestOpenWritesPerLevelFiles(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	log, closer, err := Open(Config{Level: "error", Output: &console, Dir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	log.Trace(ctx, "trace-msg")
	log.Debug(ctx, "debug-msg")
	log.Info(ctx, "info-msg")
	log.Warn(ctx, "warn-msg")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}

	if got := read("trace.log"); !strings.Contains(got, "trace-msg") || strings.Contains(got, "debug-msg") {
		t.Fatalf("trace.log = %q", got)
	}
	if got := read("debug.log"); !strings.Contains(got, "debug-msg") || strings.Contains(got, "info-msg") {
		t.Fatalf("debug.log = %q", got)
	}
	if got := read("info.log"); !strings.Contains(got, "info-msg") || strings.Contains(got, "warn-msg") {
		t.Fatalf("info.log = %q", got)
	}
	if console.Len() != 0 {
		t.Fatalf("console at error level should be empty, got %q", console.String())
	}
}

func TestOpenRotatesFilesDaily(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClock()
	log, closer, err := Open(Config{Level: "info", Output: io.Discard, Dir: dir, Clock: clock})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	log.Info(ctx, "day-one")

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("rotation ticker not started: %v", err)
	}
	clock.Advance(24 * time.Hour)

	var backups []string
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); time.Sleep(10 * time.Millisecond) {
		backups, _ = filepath.Glob(filepath.Join(dir, "info-*.log"))
		if len(backups) > 0 {
			break
		}
	}
	if len(backups) != 1 {
		t.Fatalf("backups after one day = %v, want one info backup", backups)
	}

	log.Info(ctx, "day-two")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	old, err := os.ReadFile(backups[0])
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	current, err := os.ReadFile(filepath.Join(dir, "info.log"))
	if err != nil {
		t.Fatalf("read info.log: %v", err)
	}
	if !strings.Contains(string(old), "day-one") || strings.Contains(string(old), "day-two") {
		t.Fatalf("backup = %q", old)
	}
	if !strings.Contains(string(current), "day-two") || strings.Contains(string(current), "day-one") {
		t.Fatalf("info.log = %q", current)
	}
}

func TestOpenWithoutDirNeedsNoClosing(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := Open(Config{Output: &buf})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	log.Info(context.Background(), "console only")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(buf.String(), "console only") {
		t.Fatalf("console = %q", buf.String())
	}
}

func TestWithRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx, log := WithRequestLogger(context.Background(), New(Config{Output: &buf}), "run_id")
	id := RequestIDFromContext(ctx)
	if len(id) != 32 {
		t.Fatalf("request id = %q, want 32 hex chars", id)
	}
	log.Info(ctx, "hello")
	if !strings.Contains(buf.String(), "run_id="+id) {
		t.Fatalf("log line missing run id: %q", buf.String())
	}

	ctx2, id2 := EnsureRequestID(ctx)
	if id2 != id || ctx2 != ctx {
		t.Fatalf("EnsureRequestID should keep existing id")
	}
}

func TestValidLevel(t *testing.T) {
	for _, l := range []string{"trace", "DEBUG", "info", "warning", ""} {
		if !ValidLevel(l) {
			t.Fatalf("ValidLevel(%q) = false", l)
		}
	}
	if ValidLevel("verbose") {
		t.Fatalf("ValidLevel(verbose) = true")
	}
}
