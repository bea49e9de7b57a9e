package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TeamViewMore/Poksin-Webcam/internal/config"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l := NewLogger(&config.Config{LogDirectory: filepath.Join(t.TempDir(), "logs")})
	t.Cleanup(func() { l.Close() })
	return l
}

func readLog(t *testing.T, l *Logger, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(l.Dir(), name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestLogger_LevelsGoToTheirFiles(t *testing.T) {
	l := newTestLogger(t)

	l.Info("session %s opened", "abc")
	l.Warning("queue full for %d", 7)
	l.Error("upload failed: %v", "denied")

	tests := []struct {
		file     string
		prefix   string
		contains string
		absent   string
	}{
		{InfoFile, "INFO", "session abc opened", "queue full"},
		{WarningFile, "WARNING", "queue full for 7", "upload failed"},
		{ErrorFile, "ERROR", "upload failed: denied", "session abc"},
	}
	for _, tt := range tests {
		content := readLog(t, l, tt.file)
		if !strings.HasPrefix(content, tt.prefix) {
			t.Errorf("%s: expected prefix %s, got %q", tt.file, tt.prefix, content)
		}
		if !strings.Contains(content, tt.contains) {
			t.Errorf("%s: expected %q in %q", tt.file, tt.contains, content)
		}
		if strings.Contains(content, tt.absent) {
			t.Errorf("%s: unexpected %q", tt.file, tt.absent)
		}
	}
}

func TestLogger_ReportsCallerFile(t *testing.T) {
	l := newTestLogger(t)
	l.Info("where am I")

	if content := readLog(t, l, InfoFile); !strings.Contains(content, "logger_test.go") {
		t.Errorf("Expected caller file in %q", content)
	}
}

func TestLogger_CleanLogs(t *testing.T) {
	l := newTestLogger(t)
	l.Error("something broke")

	if err := l.CleanLogs(ErrorFile); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}
	if content := readLog(t, l, ErrorFile); content != "" {
		t.Errorf("Expected empty file, got %q", content)
	}

	l.Error("after clean")
	if content := readLog(t, l, ErrorFile); !strings.Contains(content, "after clean") {
		t.Errorf("Expected logging to continue after clean, got %q", content)
	}

	if err := l.CleanLogs("missing.log"); err == nil {
		t.Error("Expected error for missing file")
	}
}
