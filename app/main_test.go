package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/prompt-comb/app/cfg"
	"github.com/lysyi3m/prompt-comb/app/config"
)

func newLevelSettings(t *testing.T, forceDebug bool) (*levelSettings, *slog.LevelVar) {
	t.Helper()

	store := config.NewStore(filepath.Join(t.TempDir(), "settings.yml"))
	if err := store.Load(); err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	level := new(slog.LevelVar)
	settings := &levelSettings{Store: store, level: level, forceDebug: forceDebug}
	settings.apply(store.Get())
	return settings, level
}

func TestLevelSettings_FollowsDebugMode(t *testing.T) {
	settings, level := newLevelSettings(t, false)

	if level.Level() != slog.LevelInfo {
		t.Errorf("Expected info level for default review mode, got %v", level.Level())
	}

	cases := []struct {
		mode config.DebugMode
		want slog.Level
	}{
		{config.DebugProduction, slog.LevelWarn},
		{config.DebugVerbose, slog.LevelDebug},
		{config.DebugReview, slog.LevelInfo},
	}

	for _, tc := range cases {
		update := settings.Get()
		update.DebugMode = tc.mode
		if _, err := settings.Update(update); err != nil {
			t.Fatalf("Update(%s) failed: %v", tc.mode, err)
		}
		if level.Level() != tc.want {
			t.Errorf("Expected level %v for %s, got %v", tc.want, tc.mode, level.Level())
		}
	}
}

func TestLevelSettings_ForceDebug(t *testing.T) {
	settings, level := newLevelSettings(t, true)

	if level.Level() != slog.LevelDebug {
		t.Errorf("Expected debug level when forced, got %v", level.Level())
	}

	update := settings.Get()
	update.DebugMode = config.DebugProduction
	if _, err := settings.Update(update); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if level.Level() != slog.LevelDebug {
		t.Errorf("Expected forced debug level to survive update, got %v", level.Level())
	}
}

func TestLevelFor_UnknownModeIsInfo(t *testing.T) {
	if got := levelFor("verbose"); got != slog.LevelInfo {
		t.Errorf("Expected info level for unknown mode, got %v", got)
	}
}

func TestNewLogHandler_WritesJSONToFile(t *testing.T) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)

	var stdout, file bytes.Buffer
	logger := slog.New(newLogHandler(level, &stdout, &file))

	logger.Info("hidden")
	logger.Warn("Post fetch failed", "operation", "fetch_post")

	if strings.Contains(stdout.String(), "hidden") || strings.Contains(file.String(), "hidden") {
		t.Error("Expected info record to be filtered at warn level")
	}
	if !strings.Contains(stdout.String(), "operation=fetch_post") {
		t.Errorf("Expected text record on stdout, got %q", stdout.String())
	}

	var record map[string]any
	if err := json.Unmarshal(file.Bytes(), &record); err != nil {
		t.Fatalf("Expected one JSON record in file, got %q: %v", file.String(), err)
	}
	if record["msg"] != "Post fetch failed" || record["operation"] != "fetch_post" {
		t.Errorf("Unexpected JSON record: %v", record)
	}
}

func TestNewLogFile_RotationPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "prompt-comb.log")
	rotating := newLogFile(path)
	defer rotating.Close()

	if rotating.Filename != path {
		t.Errorf("Expected filename %s, got %s", path, rotating.Filename)
	}
	if rotating.MaxSize != 10 {
		t.Errorf("Expected 10 MB max size, got %d", rotating.MaxSize)
	}
	if rotating.MaxBackups != 1 {
		t.Errorf("Expected one backup, got %d", rotating.MaxBackups)
	}

	if _, err := rotating.Write([]byte("line\n")); err != nil {
		t.Errorf("Expected write to create the log directory, got %v", err)
	}
}

func TestRequestTimeouts_WriteOutlastsRequest(t *testing.T) {
	request, write := requestTimeouts(&cfg.Cfg{RequestTimeout: 60})

	if request != 60*time.Second {
		t.Errorf("Expected 60s request deadline, got %v", request)
	}
	if write <= request {
		t.Errorf("Expected write timeout %v to exceed request deadline %v", write, request)
	}
}
