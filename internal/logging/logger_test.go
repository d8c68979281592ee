package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/faishion/tryon-client/internal/events"
)

// redirect points l at w, keeping its component field.
func redirect(l *Logger, w io.Writer) {
	l.zlog = build(w, l.component)
}

func TestLoggerIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("loader", nil)
	redirect(l, &buf)

	l.Info().Int("page", 2).Msg("applied page")

	out := buf.String()
	if !strings.Contains(out, `"component":"loader"`) {
		t.Errorf("output %q missing component field", out)
	}
	if !strings.Contains(out, `"page":2`) {
		t.Errorf("output %q missing page field", out)
	}
}

func TestWarnfMirrorsToEventBus(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventLog)

	l := NewLogger("chatbot", bus)
	redirect(l, &bytes.Buffer{})
	l.Warnf("slow reply after %d ms", 900)

	select {
	case ev := <-ch:
		logEv, ok := ev.(*events.LogEvent)
		if !ok {
			t.Fatal("Expected LogEvent")
		}
		if logEv.Level != events.WarnLevel {
			t.Errorf("Level = %v, want %v", logEv.Level, events.WarnLevel)
		}
		if logEv.Message != "slow reply after 900 ms" {
			t.Errorf("Message = %q", logEv.Message)
		}
		if logEv.Source != "chatbot" {
			t.Errorf("Source = %q, want %q", logEv.Source, "chatbot")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for log event")
	}
}

func TestEnableFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tryon.log")
	if err := EnableFileOutput(path); err != nil {
		t.Fatalf("EnableFileOutput() error = %v", err)
	}
	defer CloseFileOutput()

	NewLogger("file-test", nil).Info().Msg("written to file")

	if err := CloseFileOutput(); err != nil {
		t.Fatalf("CloseFileOutput() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file contents %q missing message", string(data))
	}
}

func TestEnableFileOutputEmptyPathIsNoop(t *testing.T) {
	if err := EnableFileOutput(""); err != nil {
		t.Errorf("EnableFileOutput(\"\") error = %v, want nil", err)
	}
}

func TestErrorfMirrorsToEventBus(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventLog)

	l := NewLogger("cli", bus)
	redirect(l, &bytes.Buffer{})
	l.Errorf("connection test failed: %s", "refused")

	select {
	case ev := <-ch:
		logEv := ev.(*events.LogEvent)
		if logEv.Level != events.ErrorLevel || logEv.Message != "connection test failed: refused" {
			t.Errorf("event = %+v", logEv)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for log event")
	}
}
