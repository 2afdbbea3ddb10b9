package cli

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level log.Level
		emit  func(*log.Logger)
		want  bool
	}{
		{"info at info", log.InfoLevel, func(l *log.Logger) { l.Info("step committed") }, true},
		{"debug at info", log.InfoLevel, func(l *log.Logger) { l.Debug("step committed") }, false},
		{"debug at debug", log.DebugLevel, func(l *log.Logger) { l.Debug("step committed") }, true},
		{"warn at info", log.InfoLevel, func(l *log.Logger) { l.Warn("cache write failed") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("wrote output = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, log.InfoLevel).Info("operation rejected", "step", 2, "op", 1)

	out := buf.String()
	if !regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{2} `).MatchString(out) {
		t.Errorf("output %q does not start with a HH:MM:SS.ms timestamp", out)
	}
	for _, want := range []string{"operation rejected", "step=2", "op=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	prog.done("Committed 3 transactions")

	out := buf.String()
	if !strings.Contains(out, "Committed 3 transactions (") {
		t.Errorf("output %q does not contain the message and elapsed time", out)
	}
	if !strings.Contains(out, "s)") {
		t.Errorf("output %q does not end the elapsed time with a unit", out)
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)

	c.Logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatal("debug output at info level")
	}

	c.SetLogLevel(LogDebug)
	c.Logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("debug output missing after SetLogLevel")
	}
}
