package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"cloudpico-sensorsim/internal/config"
)

func TestNew_TeesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorsim.log")
	cfg := config.Config{
		AppEnv:            "prod",
		LogLevel:          slog.LevelInfo,
		LogFile:           path,
		LogFileMaxSizeMB:  1,
		LogFileMaxBackups: 1,
	}

	logger := New(cfg, "1.2.3", "sensorsim")
	logger.Debug("filtered out")
	logger.Info("tick delivered", "tick", 7)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %v", len(lines), lines)
	}
	got := lines[0]
	if got["msg"] != "tick delivered" {
		t.Errorf("msg = %v", got["msg"])
	}
	if got["app"] != "sensorsim" || got["version"] != "1.2.3" || got["env"] != "prod" {
		t.Errorf("missing app attrs: %v", got)
	}
	if got["tick"] != float64(7) {
		t.Errorf("tick = %v", got["tick"])
	}
}

func TestNew_NoFileByDefault(t *testing.T) {
	logger := New(config.Config{LogLevel: slog.LevelWarn}, "dev", "sensorsim")
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	if _, ok := logger.Handler().(fanout); ok {
		t.Error("fanout handler without LOG_FILE")
	}
}

type countHandler struct {
	level slog.Level
	n     *int
}

func (h countHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h countHandler) Handle(context.Context, slog.Record) error    { *h.n++; return nil }
func (h countHandler) WithAttrs([]slog.Attr) slog.Handler           { return h }
func (h countHandler) WithGroup(string) slog.Handler                { return h }

func TestFanout_RespectsEachLevel(t *testing.T) {
	var debugN, errorN int
	logger := slog.New(fanout{
		countHandler{level: slog.LevelDebug, n: &debugN},
		countHandler{level: slog.LevelError, n: &errorN},
	})

	logger.Debug("a")
	logger.Info("b")
	logger.Error("c")

	if debugN != 3 {
		t.Errorf("debug handler got %d records, want 3", debugN)
	}
	if errorN != 1 {
		t.Errorf("error handler got %d records, want 1", errorN)
	}
}
